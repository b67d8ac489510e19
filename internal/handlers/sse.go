package handlers

import (
	"encoding/json"
	"html/template"
	"log/slog"
	"net/http"
	"strings"

	"github.com/starfederation/datastar-go/datastar"

	"eda-dashboard/internal/models"
	"eda-dashboard/internal/services"
)

var kpiTemplate = template.Must(template.New("kpis").Parse(`
<div id="kpi-content">
{{if .Computed}}
<div class="kpi-grid">
<div class="kpi-card"><span class="kpi-label">Total Revenue</span><span class="kpi-value">${{printf "%.2f" .TotalRevenue}}</span></div>
<div class="kpi-card"><span class="kpi-label">Total Orders</span><span class="kpi-value">{{.TotalOrders}}</span></div>
<div class="kpi-card"><span class="kpi-label">Avg Order Value</span><span class="kpi-value">${{printf "%.2f" .AvgOrderValue}}</span></div>
</div>
{{else}}
<p class="view-omitted">KPIs unavailable: {{.Reason}}</p>
{{end}}
</div>`))

var countryTableTemplate = template.Must(template.New("countryTable").Parse(`
<div id="country-content">
{{if .Computed}}
<table class="modern-table">
<thead><tr><th>Country</th><th>Orders</th></tr></thead>
<tbody>
{{range .Items}}<tr><td>{{.Key}}</td><td>{{.Count}}</td></tr>
{{end}}
</tbody>
</table>
{{else}}
<p class="view-omitted">Country view unavailable: {{.Reason}}</p>
{{end}}
</div>`))

type SSEHandlers struct {
	store    *services.Store
	defaults models.Options
	logger   *slog.Logger
}

func NewSSEHandlers(store *services.Store, defaults models.Options, logger *slog.Logger) *SSEHandlers {
	return &SSEHandlers{
		store:    store,
		defaults: defaults.Normalize(),
		logger:   logger,
	}
}

func (h *SSEHandlers) report(r *http.Request) (*models.Report, bool) {
	entry, ok := h.store.Get(r.PathValue("id"))
	if !ok {
		return nil, false
	}
	return h.store.ReportFor(entry, h.defaults), true
}

func (h *SSEHandlers) HandleKPIs(w http.ResponseWriter, r *http.Request) {
	sse := datastar.NewSSE(w, r)

	rep, ok := h.report(r)
	if !ok {
		sse.PatchElements(`<div id="kpi-content">No dataset uploaded yet</div>`)
		return
	}

	html, err := renderTemplate(kpiTemplate, rep.KPIs)
	if err != nil {
		h.logger.Error("render kpis", "error", err)
		return
	}
	sse.PatchElements(html)
	flush(w)
}

func (h *SSEHandlers) HandleTrend(w http.ResponseWriter, r *http.Request) {
	sse := datastar.NewSSE(w, r)

	rep, ok := h.report(r)
	if !ok {
		return
	}

	signals, err := json.Marshal(map[string]any{"trendData": rep.Trend})
	if err != nil {
		h.logger.Error("marshal trend data", "error", err)
		return
	}
	sse.PatchSignals(signals)
	sse.PatchElements(`<div id="trend-content">Revenue trend loaded</div>`)
	flush(w)
}

func (h *SSEHandlers) HandleTopProducts(w http.ResponseWriter, r *http.Request) {
	sse := datastar.NewSSE(w, r)

	rep, ok := h.report(r)
	if !ok {
		return
	}

	signals, err := json.Marshal(map[string]any{"productsData": rep.TopProducts})
	if err != nil {
		h.logger.Error("marshal products data", "error", err)
		return
	}
	sse.PatchSignals(signals)
	sse.PatchElements(`<div id="products-content">Top products loaded</div>`)
	flush(w)
}

func (h *SSEHandlers) HandleCountries(w http.ResponseWriter, r *http.Request) {
	sse := datastar.NewSSE(w, r)

	rep, ok := h.report(r)
	if !ok {
		sse.PatchElements(`<div id="country-content">No dataset uploaded yet</div>`)
		return
	}

	html, err := renderTemplate(countryTableTemplate, rep.Countries)
	if err != nil {
		h.logger.Error("render country table", "error", err)
		return
	}
	sse.PatchElements(html)
	flush(w)
}

// HandleRefreshAll pushes every dashboard panel in one stream.
func (h *SSEHandlers) HandleRefreshAll(w http.ResponseWriter, r *http.Request) {
	sse := datastar.NewSSE(w, r)

	rep, ok := h.report(r)
	if !ok {
		sse.PatchElements(`<div id="kpi-content">No dataset uploaded yet</div>`)
		return
	}

	if html, err := renderTemplate(kpiTemplate, rep.KPIs); err == nil {
		sse.PatchElements(html)
	}
	if html, err := renderTemplate(countryTableTemplate, rep.Countries); err == nil {
		sse.PatchElements(html)
	}

	signals, err := json.Marshal(map[string]any{
		"trendData":         rep.Trend,
		"productsData":      rep.TopProducts,
		"categoriesData":    rep.Categories,
		"paymentsData":      rep.Payments,
		"regionsData":       rep.Regions,
		"correlationData":   rep.Correlation,
		"customersData":     rep.TopCustomers,
		"ordersMonthlyData": rep.OrdersMonthly,
		"distributionsData": rep.Distributions,
	})
	if err != nil {
		h.logger.Error("marshal refresh signals", "error", err)
		return
	}
	sse.PatchSignals(signals)
	flush(w)
}

func renderTemplate(t *template.Template, data any) (string, error) {
	var buf strings.Builder
	err := t.Execute(&buf, data)
	return buf.String(), err
}

func flush(w http.ResponseWriter) {
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
}
