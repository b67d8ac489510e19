package main

import (
	"fmt"
	"strings"

	"eda-dashboard/internal/models"
)

// renderText prints the catalogue in a compact sectioned layout; omitted
// views show their reason instead of data.
func renderText(rep *models.Report) string {
	var b strings.Builder

	fmt.Fprintf(&b, "[DATASET] %s\n", rep.Dataset)
	fmt.Fprintf(&b, "Rows: %d  Columns: %d\n\n", rep.Overview.Rows, rep.Overview.Cols)

	b.WriteString("[SCHEMA]\n")
	for _, c := range rep.Overview.Columns {
		fmt.Fprintf(&b, "- %s: %s (nulls %d)\n", c.Name, c.Kind, c.Nulls)
	}

	b.WriteString("\n[KPIs]\n")
	if rep.KPIs.Computed {
		fmt.Fprintf(&b, "Total revenue: %.2f\nTotal orders: %d\nAvg order value: %.2f\n",
			rep.KPIs.TotalRevenue, rep.KPIs.TotalOrders, rep.KPIs.AvgOrderValue)
	} else {
		fmt.Fprintf(&b, "(omitted: %s)\n", rep.KPIs.Reason)
	}

	b.WriteString("\n[REVENUE TREND]\n")
	if rep.Trend.Computed {
		for _, p := range rep.Trend.Points {
			fmt.Fprintf(&b, "%s  %.2f\n", p.Period, p.Revenue)
		}
	} else {
		fmt.Fprintf(&b, "(omitted: %s)\n", rep.Trend.Reason)
	}

	writeRanking(&b, fmt.Sprintf("TOP %d PRODUCTS", rep.TopProducts.TopN), rep.TopProducts.ViewMeta, rep.TopProducts.Items)
	writeRanking(&b, "REVENUE BY CATEGORY", rep.Categories.ViewMeta, rep.Categories.Items)
	writeRanking(&b, "REVENUE BY REGION", rep.Regions.ViewMeta, rep.Regions.Items)
	writeRanking(&b, "TOP CUSTOMERS", rep.TopCustomers.ViewMeta, rep.TopCustomers.Items)

	b.WriteString("\n[PAYMENT METHODS]\n")
	if rep.Payments.Computed {
		for _, it := range rep.Payments.Items {
			fmt.Fprintf(&b, "%s  %d (%.1f%%)\n", it.Key, it.Count, it.Share*100)
		}
	} else {
		fmt.Fprintf(&b, "(omitted: %s)\n", rep.Payments.Reason)
	}

	b.WriteString("\n[ORDERS PER MONTH]\n")
	if rep.OrdersMonthly.Computed {
		for _, p := range rep.OrdersMonthly.Points {
			fmt.Fprintf(&b, "%s  %d\n", p.Period, p.Orders)
		}
	} else {
		fmt.Fprintf(&b, "(omitted: %s)\n", rep.OrdersMonthly.Reason)
	}

	b.WriteString("\n[ORDERS BY COUNTRY]\n")
	if rep.Countries.Computed {
		for _, it := range rep.Countries.Items {
			fmt.Fprintf(&b, "%s  %d\n", it.Key, it.Count)
		}
	} else {
		fmt.Fprintf(&b, "(omitted: %s)\n", rep.Countries.Reason)
	}

	b.WriteString("\n[CORRELATIONS]\n")
	if rep.Correlation.Computed {
		cols := rep.Correlation.Columns
		for i, a := range cols {
			for j := i + 1; j < len(cols); j++ {
				fmt.Fprintf(&b, "%s ~ %s: r=%.3f\n", a, cols[j], rep.Correlation.Matrix[i][j])
			}
		}
	} else {
		fmt.Fprintf(&b, "(omitted: %s)\n", rep.Correlation.Reason)
	}

	b.WriteString("\n[DISTRIBUTIONS]\n")
	if rep.Distributions.Computed {
		for _, h := range rep.Distributions.Histograms {
			scale := ""
			if h.Log {
				scale = " (log10"
				if h.Skipped > 0 {
					scale += fmt.Sprintf(", %d non-positive skipped", h.Skipped)
				}
				scale += ")"
			}
			fmt.Fprintf(&b, "- %s: %d buckets%s\n", h.Column, len(h.Buckets), scale)
		}
	} else {
		fmt.Fprintf(&b, "(omitted: %s)\n", rep.Distributions.Reason)
	}

	return b.String()
}

func writeRanking(b *strings.Builder, title string, meta models.ViewMeta, items []models.RevenueEntry) {
	fmt.Fprintf(b, "\n[%s]\n", title)
	if !meta.Computed {
		fmt.Fprintf(b, "(omitted: %s)\n", meta.Reason)
		return
	}
	for _, it := range items {
		fmt.Fprintf(b, "%s  %.2f\n", it.Key, it.Revenue)
	}
}
