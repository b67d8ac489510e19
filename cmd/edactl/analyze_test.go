package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"eda-dashboard/internal/config"
	"eda-dashboard/internal/models"
)

const testCSV = `order_id,order_date,product_id,category,quantity,price,discount,customer_id,country,region,payment_method
o1,2024-01-15,p1,Toys,2,10.00,0.1,c1,France,North,card
o2,2024-01-20,p2,Toys,1,5.00,0,c2,Spain,South,cash
o3,2024-02-02,p1,Books,3,10.00,0,c1,France,North,card
`

func writeTestCSV(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "orders.csv")
	if err := os.WriteFile(path, []byte(testCSV), 0o644); err != nil {
		t.Fatalf("write test csv: %v", err)
	}
	return path
}

func runAnalyze(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cfg = config.Default()

	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	rootCmd.SetArgs(append([]string{"analyze"}, args...))
	err := rootCmd.Execute()
	return buf.String(), err
}

func TestAnalyzeJSON(t *testing.T) {
	path := writeTestCSV(t)

	out, err := runAnalyze(t, path, "--format", "json")
	if err != nil {
		t.Fatalf("analyze failed: %v", err)
	}

	var rep models.Report
	if err := json.Unmarshal([]byte(out), &rep); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if rep.Rows != 3 {
		t.Errorf("expected 3 rows, got %d", rep.Rows)
	}
	if !rep.KPIs.Computed {
		t.Error("expected computed kpis")
	}
	if rep.KPIs.TotalRevenue != 53 {
		t.Errorf("expected total revenue 53, got %v", rep.KPIs.TotalRevenue)
	}
	if len(rep.TopProducts.Items) == 0 || rep.TopProducts.Items[0].Key != "p1" {
		t.Errorf("expected p1 as top product, got %+v", rep.TopProducts.Items)
	}
}

func TestAnalyzeText(t *testing.T) {
	path := writeTestCSV(t)

	out, err := runAnalyze(t, path, "--format", "text", "--granularity", "day")
	if err != nil {
		t.Fatalf("analyze failed: %v", err)
	}

	for _, section := range []string{
		"[DATASET] orders.csv",
		"[KPIs]",
		"Total revenue: 53.00",
		"[REVENUE TREND]",
		"2024-01-15",
		"[TOP 10 PRODUCTS]",
		"[ORDERS BY COUNTRY]",
		"[CORRELATIONS]",
		"[DISTRIBUTIONS]",
	} {
		if !strings.Contains(out, section) {
			t.Errorf("expected output to contain %q", section)
		}
	}
}

func TestAnalyzeBadFormat(t *testing.T) {
	path := writeTestCSV(t)

	if _, err := runAnalyze(t, path, "--format", "xml"); err == nil {
		t.Error("expected an error for unsupported format")
	}
}

func TestAnalyzeMissingFile(t *testing.T) {
	if _, err := runAnalyze(t, filepath.Join(t.TempDir(), "nope.csv")); err == nil {
		t.Error("expected an error for missing file")
	}
}
