package handlers

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"eda-dashboard/internal/models"
)

func createTestSSEHandlers(t *testing.T) (*SSEHandlers, string) {
	t.Helper()
	store, id := createTestStore(t)
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	return NewSSEHandlers(store, models.DefaultOptions(), logger), id
}

func TestSSEHandlers_HandleKPIs(t *testing.T) {
	handlers, id := createTestSSEHandlers(t)

	req := viewRequest(id, "/sse/datasets/"+id+"/kpis", "")
	w := httptest.NewRecorder()

	handlers.HandleKPIs(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); !strings.Contains(ct, "text/event-stream") {
		t.Errorf("expected event-stream content type, got %q", ct)
	}

	// The DataStar library formats the SSE events; assert on the payload.
	body := w.Body.String()
	for _, content := range []string{
		`<div id="kpi-content">`,
		"Total Revenue",
		"$53.00",
		"Avg Order Value",
	} {
		if !strings.Contains(body, content) {
			t.Errorf("expected SSE body to contain %q", content)
		}
	}
}

func TestSSEHandlers_HandleKPIs_NoDataset(t *testing.T) {
	handlers, _ := createTestSSEHandlers(t)

	req := viewRequest("missing", "/sse/datasets/missing/kpis", "")
	w := httptest.NewRecorder()

	handlers.HandleKPIs(w, req)

	if !strings.Contains(w.Body.String(), "No dataset uploaded yet") {
		t.Error("expected placeholder fragment for unknown dataset")
	}
}

func TestSSEHandlers_HandleTrend(t *testing.T) {
	handlers, id := createTestSSEHandlers(t)

	req := viewRequest(id, "/sse/datasets/"+id+"/trend", "")
	w := httptest.NewRecorder()

	handlers.HandleTrend(w, req)

	body := w.Body.String()
	if !strings.Contains(body, "trendData") {
		t.Error("expected trendData signal")
	}
	if !strings.Contains(body, "2024-01") {
		t.Error("expected monthly periods in trend signal")
	}
}

func TestSSEHandlers_HandleTopProducts(t *testing.T) {
	handlers, id := createTestSSEHandlers(t)

	req := viewRequest(id, "/sse/datasets/"+id+"/top-products", "")
	w := httptest.NewRecorder()

	handlers.HandleTopProducts(w, req)

	body := w.Body.String()
	if !strings.Contains(body, "productsData") {
		t.Error("expected productsData signal")
	}
	if !strings.Contains(body, `<div id="products-content">`) {
		t.Error("expected products status fragment")
	}
}

func TestSSEHandlers_HandleCountries(t *testing.T) {
	handlers, id := createTestSSEHandlers(t)

	req := viewRequest(id, "/sse/datasets/"+id+"/countries", "")
	w := httptest.NewRecorder()

	handlers.HandleCountries(w, req)

	body := w.Body.String()
	for _, content := range []string{
		`<table class="modern-table">`,
		"<th>Country</th>",
		"<th>Orders</th>",
		"France",
		"Spain",
	} {
		if !strings.Contains(body, content) {
			t.Errorf("expected country table to contain %q", content)
		}
	}
}

func TestSSEHandlers_HandleRefreshAll(t *testing.T) {
	handlers, _ := createTestSSEHandlers(t)

	req := viewRequest("latest", "/sse/datasets/latest/refresh-all", "")
	w := httptest.NewRecorder()

	handlers.HandleRefreshAll(w, req)

	body := w.Body.String()
	for _, content := range []string{
		`<div id="kpi-content">`,
		`<div id="country-content">`,
		"trendData",
		"productsData",
		"categoriesData",
		"correlationData",
		"distributionsData",
	} {
		if !strings.Contains(body, content) {
			t.Errorf("expected refresh-all stream to contain %q", content)
		}
	}
}

func TestSSEHandlers_OmittedViewRendersReason(t *testing.T) {
	store, _ := createTestStore(t)
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	_ = NewSSEHandlers(store, models.DefaultOptions(), logger)

	html, err := renderTemplate(kpiTemplate, models.KPIs{
		ViewMeta: models.ViewMeta{Reason: "missing columns: revenue"},
	})
	if err != nil {
		t.Fatalf("renderTemplate() failed: %v", err)
	}
	if !strings.Contains(html, "KPIs unavailable: missing columns: revenue") {
		t.Errorf("expected omission reason in fragment, got %s", html)
	}
}
