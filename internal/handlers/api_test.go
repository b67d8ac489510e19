package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"eda-dashboard/internal/models"
	"eda-dashboard/internal/services"
)

const testCSV = `order_id,order_date,product_id,category,quantity,price,discount,customer_id,country,region,payment_method
o1,2024-01-15,p1,Toys,2,10.00,0.1,c1,France,North,card
o2,2024-01-20,p2,Toys,1,5.00,0,c2,Spain,South,cash
o3,2024-02-02,p1,Books,3,10.00,0,c1,France,North,card
`

func createTestStore(t *testing.T) (*services.Store, string) {
	t.Helper()
	store := services.NewStore(
		services.NewIngestor(nil), services.NewEngine(nil),
		models.DefaultOptions(), 4, t.TempDir(), nil,
	)
	entry, err := store.IngestAndAdd(context.Background(), strings.NewReader(testCSV), "orders.csv")
	if err != nil {
		t.Fatalf("ingest test data: %v", err)
	}
	return store, entry.ID
}

func createTestAPIHandlers(t *testing.T) (*APIHandlers, string) {
	t.Helper()
	store, id := createTestStore(t)
	return NewAPIHandlers(store, models.DefaultOptions(), slog.Default()), id
}

func viewRequest(id, path, query string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, path+query, nil)
	req.SetPathValue("id", id)
	return req
}

func decodeSuccess(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected content-type 'application/json', got %q", ct)
	}

	var response map[string]interface{}
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode JSON: %v", err)
	}
	if success, ok := response["success"].(bool); !ok || !success {
		t.Error("expected success=true in response")
	}
	data, ok := response["data"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected data object in response, got %T", response["data"])
	}
	return data
}

func TestAPIHandlers_HandleReport(t *testing.T) {
	handlers, id := createTestAPIHandlers(t)

	w := httptest.NewRecorder()
	handlers.HandleReport(w, viewRequest(id, "/api/datasets/"+id+"/report", ""))

	data := decodeSuccess(t, w)
	if cc := w.Header().Get("Cache-Control"); cc != "public, max-age=300" {
		t.Errorf("expected cache-control 'public, max-age=300', got %q", cc)
	}
	if rows, ok := data["rows"].(float64); !ok || rows != 3 {
		t.Errorf("expected 3 rows, got %v", data["rows"])
	}
	for _, key := range []string{
		"overview", "kpis", "revenue_trend", "top_products",
		"revenue_by_category", "payment_share", "revenue_by_region",
		"correlation", "top_customers", "orders_per_month",
		"orders_by_country", "distributions",
	} {
		if _, ok := data[key]; !ok {
			t.Errorf("report is missing view %q", key)
		}
	}
}

func TestAPIHandlers_HandleKPIs(t *testing.T) {
	handlers, id := createTestAPIHandlers(t)

	w := httptest.NewRecorder()
	handlers.HandleKPIs(w, viewRequest(id, "/api/datasets/"+id+"/kpis", ""))

	data := decodeSuccess(t, w)
	if computed, ok := data["computed"].(bool); !ok || !computed {
		t.Error("expected kpis to be computed")
	}
	// 2*10*0.9 + 1*5 + 3*10 = 53
	if total, ok := data["total_revenue"].(float64); !ok || total != 53 {
		t.Errorf("expected total_revenue 53, got %v", data["total_revenue"])
	}
	if orders, ok := data["total_orders"].(float64); !ok || orders != 3 {
		t.Errorf("expected 3 total orders, got %v", data["total_orders"])
	}
}

func TestAPIHandlers_HandleTrendGranularity(t *testing.T) {
	handlers, id := createTestAPIHandlers(t)

	w := httptest.NewRecorder()
	handlers.HandleTrend(w, viewRequest(id, "/api/datasets/"+id+"/trend", "?granularity=day"))

	data := decodeSuccess(t, w)
	if g, ok := data["granularity"].(string); !ok || g != "day" {
		t.Errorf("expected day granularity, got %v", data["granularity"])
	}
	points, ok := data["points"].([]interface{})
	if !ok || len(points) != 3 {
		t.Fatalf("expected 3 daily points, got %v", data["points"])
	}
	first := points[0].(map[string]interface{})
	if first["period"] != "2024-01-15" {
		t.Errorf("expected first period 2024-01-15, got %v", first["period"])
	}
}

func TestAPIHandlers_HandleTopProductsClampsN(t *testing.T) {
	handlers, id := createTestAPIHandlers(t)

	w := httptest.NewRecorder()
	handlers.HandleTopProducts(w, viewRequest(id, "/api/datasets/"+id+"/top-products", "?top_n=100"))

	data := decodeSuccess(t, w)
	if n, ok := data["top_n"].(float64); !ok || n != float64(models.MaxTopN) {
		t.Errorf("expected top_n clamped to %d, got %v", models.MaxTopN, data["top_n"])
	}
}

func TestAPIHandlers_MalformedOptionsAre400(t *testing.T) {
	handlers, id := createTestAPIHandlers(t)

	tests := []struct {
		name  string
		query string
	}{
		{"bad granularity", "?granularity=weekly"},
		{"bad top_n", "?top_n=abc"},
		{"bad bins", "?bins=x"},
		{"bad log_price", "?log_price=maybe"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			handlers.HandleReport(w, viewRequest(id, "/api/datasets/"+id+"/report", tt.query))

			if w.Code != http.StatusBadRequest {
				t.Errorf("expected status 400, got %d", w.Code)
			}
			var response map[string]interface{}
			if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
				t.Fatalf("failed to decode JSON: %v", err)
			}
			if success, _ := response["success"].(bool); success {
				t.Error("expected success=false in error response")
			}
		})
	}
}

func TestAPIHandlers_UnknownDataset(t *testing.T) {
	handlers, _ := createTestAPIHandlers(t)

	w := httptest.NewRecorder()
	handlers.HandleReport(w, viewRequest("does-not-exist", "/api/datasets/does-not-exist/report", ""))

	if w.Code != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", w.Code)
	}
}

func TestAPIHandlers_LatestAlias(t *testing.T) {
	handlers, _ := createTestAPIHandlers(t)

	w := httptest.NewRecorder()
	handlers.HandleOverview(w, viewRequest("latest", "/api/datasets/latest/overview", ""))

	data := decodeSuccess(t, w)
	if rows, ok := data["rows"].(float64); !ok || rows != 3 {
		t.Errorf("expected 3 rows via latest alias, got %v", data["rows"])
	}
}

func TestAPIHandlers_HandleUpload(t *testing.T) {
	handlers, _ := createTestAPIHandlers(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "upload.csv")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	part.Write([]byte(testCSV))
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/datasets", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()

	handlers.HandleUpload(w, req)

	data := decodeSuccess(t, w)
	if data["id"] == "" {
		t.Error("expected a dataset id in upload response")
	}
	if data["name"] != "upload.csv" {
		t.Errorf("expected name 'upload.csv', got %v", data["name"])
	}
	manifest, ok := data["manifest"].(map[string]interface{})
	if !ok {
		t.Fatal("expected manifest in upload response")
	}
	if rev, ok := manifest["revenue"].(bool); !ok || !rev {
		t.Error("expected revenue capability in manifest")
	}
}

func TestAPIHandlers_UploadRejectsExtension(t *testing.T) {
	handlers, _ := createTestAPIHandlers(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, _ := mw.CreateFormFile("file", "payload.exe")
	part.Write([]byte("MZ"))
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/datasets", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()

	handlers.HandleUpload(w, req)

	if w.Code != http.StatusUnsupportedMediaType {
		t.Errorf("expected status 415, got %d", w.Code)
	}
}

func TestAPIHandlers_UploadRejectsMalformed(t *testing.T) {
	handlers, _ := createTestAPIHandlers(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, _ := mw.CreateFormFile("file", "empty.csv")
	part.Write(nil)
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/datasets", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()

	handlers.HandleUpload(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", w.Code)
	}
}

func TestAPIHandlers_UploadTooLarge(t *testing.T) {
	handlers, _ := createTestAPIHandlers(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, _ := mw.CreateFormFile("file", "big.csv")
	part.Write(bytes.Repeat([]byte("order_id,quantity\n"), 256))
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/datasets", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	// Same cap the body-size middleware applies; multipart parsing wraps
	// the limit error before the handler sees it.
	req.Body = http.MaxBytesReader(w, req.Body, 128)

	handlers.HandleUpload(w, req)

	if w.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("expected status 413, got %d", w.Code)
	}
}

func TestAPIHandlers_UploadMissingField(t *testing.T) {
	handlers, _ := createTestAPIHandlers(t)

	req := httptest.NewRequest(http.MethodPost, "/api/datasets", strings.NewReader(""))
	w := httptest.NewRecorder()

	handlers.HandleUpload(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", w.Code)
	}
}

func TestAPIHandlers_HandleListDatasets(t *testing.T) {
	handlers, _ := createTestAPIHandlers(t)

	w := httptest.NewRecorder()
	handlers.HandleListDatasets(w, httptest.NewRequest(http.MethodGet, "/api/datasets", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	var response map[string]interface{}
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode JSON: %v", err)
	}
	list, ok := response["data"].([]interface{})
	if !ok || len(list) != 1 {
		t.Errorf("expected one dataset in listing, got %v", response["data"])
	}
}

func TestAPIHandlers_HandleHealth(t *testing.T) {
	handlers, _ := createTestAPIHandlers(t)

	w := httptest.NewRecorder()
	handlers.HandleHealth(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	data := decodeSuccess(t, w)
	if status, ok := data["status"].(string); !ok || status != "healthy" {
		t.Errorf("expected status 'healthy', got %q", data["status"])
	}
	if timestamp, ok := data["timestamp"].(string); !ok || timestamp == "" {
		t.Error("expected non-empty timestamp")
	} else if _, err := time.Parse(time.RFC3339, timestamp); err != nil {
		t.Errorf("invalid timestamp format: %v", err)
	}

	// Health endpoint should NOT have cache-control header.
	if cc := w.Header().Get("Cache-Control"); cc != "" {
		t.Errorf("health endpoint should not set cache-control, got %q", cc)
	}
}

func TestAPIHandlers_HandleStats(t *testing.T) {
	handlers, _ := createTestAPIHandlers(t)

	w := httptest.NewRecorder()
	handlers.HandleStats(w, httptest.NewRequest(http.MethodGet, "/admin/stats", nil))

	data := decodeSuccess(t, w)
	if datasets, ok := data["datasets"].(float64); !ok || datasets != 1 {
		t.Errorf("expected 1 dataset in stats, got %v", data["datasets"])
	}
}

func TestAPIHandlers_ViewOmittedWithoutCapability(t *testing.T) {
	store := services.NewStore(
		services.NewIngestor(nil), services.NewEngine(nil),
		models.DefaultOptions(), 4, t.TempDir(), nil,
	)
	// No payment_method column in this dataset.
	csv := "order_id,quantity,price,discount\no1,1,2,0\n"
	entry, err := store.IngestAndAdd(context.Background(), strings.NewReader(csv), "bare.csv")
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	handlers := NewAPIHandlers(store, models.DefaultOptions(), slog.Default())

	w := httptest.NewRecorder()
	handlers.HandlePayments(w, viewRequest(entry.ID, "/api/datasets/"+entry.ID+"/payments", ""))

	data := decodeSuccess(t, w)
	if computed, _ := data["computed"].(bool); computed {
		t.Error("expected payments view to be omitted")
	}
	if reason, ok := data["reason"].(string); !ok || !strings.Contains(reason, "payment_method") {
		t.Errorf("expected reason naming payment_method, got %v", data["reason"])
	}
}
