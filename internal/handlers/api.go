package handlers

import (
	stderrors "errors"
	"log/slog"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"eda-dashboard/internal/errors"
	"eda-dashboard/internal/models"
	"eda-dashboard/internal/observability"
	"eda-dashboard/internal/services"
)

var cacheHeaders = map[string]string{
	"Cache-Control": "public, max-age=300",
}

var uploadExtensions = map[string]bool{
	".csv":  true,
	".tsv":  true,
	".txt":  true,
	".xlsx": true,
}

type APIHandlers struct {
	store    *services.Store
	defaults models.Options
	logger   *slog.Logger
}

func NewAPIHandlers(store *services.Store, defaults models.Options, logger *slog.Logger) *APIHandlers {
	return &APIHandlers{
		store:    store,
		defaults: defaults.Normalize(),
		logger:   logger,
	}
}

// uploadResponse is what the dashboard needs to decide which panels it can
// render: the id to query with, the manifest, and the schema overview.
type uploadResponse struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Rows     int             `json:"rows"`
	Manifest models.Manifest `json:"manifest"`
	Overview models.Overview `json:"overview"`
}

func (h *APIHandlers) HandleUpload(w http.ResponseWriter, r *http.Request) {
	requestID := observability.GetRequestID(r.Context())

	file, header, err := r.FormFile("file")
	if err != nil {
		// Multipart parsing wraps the body reader's error.
		var maxBytesErr *http.MaxBytesError
		if stderrors.As(err, &maxBytesErr) {
			errors.WriteError(w, h.logger, errors.PayloadTooLarge("Uploaded file is too large"), requestID)
			return
		}
		errors.WriteError(w, h.logger, errors.BadRequestWrap(err, "Missing multipart field 'file'"), requestID)
		return
	}
	defer file.Close()

	ext := strings.ToLower(filepath.Ext(header.Filename))
	if !uploadExtensions[ext] {
		errors.WriteError(w, h.logger, errors.UnsupportedMedia("Only CSV, TSV and XLSX files are accepted"), requestID)
		return
	}

	entry, err := h.store.IngestAndAdd(r.Context(), file, header.Filename)
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		if stderrors.As(err, &maxBytesErr) {
			errors.WriteError(w, h.logger, errors.PayloadTooLarge("Uploaded file is too large"), requestID)
			return
		}
		errors.WriteError(w, h.logger, errors.ValidationWrap(err, "Could not parse uploaded file"), requestID)
		return
	}

	errors.WriteSuccess(w, uploadResponse{
		ID:       entry.ID,
		Name:     entry.Name,
		Rows:     len(entry.Dataset.Rows),
		Manifest: entry.Dataset.Manifest,
		Overview: entry.Report.Overview,
	})
}

func (h *APIHandlers) HandleListDatasets(w http.ResponseWriter, r *http.Request) {
	errors.WriteSuccess(w, h.store.List())
}

func (h *APIHandlers) HandleReport(w http.ResponseWriter, r *http.Request) {
	h.writeView(w, r, func(rep *models.Report) any { return rep })
}

func (h *APIHandlers) HandleOverview(w http.ResponseWriter, r *http.Request) {
	h.writeView(w, r, func(rep *models.Report) any { return rep.Overview })
}

func (h *APIHandlers) HandleKPIs(w http.ResponseWriter, r *http.Request) {
	h.writeView(w, r, func(rep *models.Report) any { return rep.KPIs })
}

func (h *APIHandlers) HandleTrend(w http.ResponseWriter, r *http.Request) {
	h.writeView(w, r, func(rep *models.Report) any { return rep.Trend })
}

func (h *APIHandlers) HandleTopProducts(w http.ResponseWriter, r *http.Request) {
	h.writeView(w, r, func(rep *models.Report) any { return rep.TopProducts })
}

func (h *APIHandlers) HandleCategories(w http.ResponseWriter, r *http.Request) {
	h.writeView(w, r, func(rep *models.Report) any { return rep.Categories })
}

func (h *APIHandlers) HandlePayments(w http.ResponseWriter, r *http.Request) {
	h.writeView(w, r, func(rep *models.Report) any { return rep.Payments })
}

func (h *APIHandlers) HandleRegions(w http.ResponseWriter, r *http.Request) {
	h.writeView(w, r, func(rep *models.Report) any { return rep.Regions })
}

func (h *APIHandlers) HandleCorrelation(w http.ResponseWriter, r *http.Request) {
	h.writeView(w, r, func(rep *models.Report) any { return rep.Correlation })
}

func (h *APIHandlers) HandleTopCustomers(w http.ResponseWriter, r *http.Request) {
	h.writeView(w, r, func(rep *models.Report) any { return rep.TopCustomers })
}

func (h *APIHandlers) HandleOrdersMonthly(w http.ResponseWriter, r *http.Request) {
	h.writeView(w, r, func(rep *models.Report) any { return rep.OrdersMonthly })
}

func (h *APIHandlers) HandleCountries(w http.ResponseWriter, r *http.Request) {
	h.writeView(w, r, func(rep *models.Report) any { return rep.Countries })
}

func (h *APIHandlers) HandleDistributions(w http.ResponseWriter, r *http.Request) {
	h.writeView(w, r, func(rep *models.Report) any { return rep.Distributions })
}

func (h *APIHandlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	errors.WriteSuccess(w, map[string]string{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
		"version":   "1.0.0",
	})
}

func (h *APIHandlers) HandleStats(w http.ResponseWriter, r *http.Request) {
	errors.WriteSuccess(w, h.store.Stats())
}

func (h *APIHandlers) writeView(w http.ResponseWriter, r *http.Request, pick func(*models.Report) any) {
	requestID := observability.GetRequestID(r.Context())

	entry, ok := h.store.Get(r.PathValue("id"))
	if !ok {
		errors.WriteError(w, h.logger, errors.NotFound("Unknown dataset"), requestID)
		return
	}

	opts, err := h.parseOptions(r)
	if err != nil {
		errors.WriteError(w, h.logger, err, requestID)
		return
	}

	rep := h.store.ReportFor(entry, opts)
	errors.WriteSuccessWithHeaders(w, pick(rep), cacheHeaders)
}

// parseOptions reads the tunables off the query string, starting from the
// server defaults. Out-of-range values clamp; malformed values are 400s.
func (h *APIHandlers) parseOptions(r *http.Request) (models.Options, error) {
	opts := h.defaults
	q := r.URL.Query()

	if g := q.Get("granularity"); g != "" {
		switch models.Granularity(g) {
		case models.GranularityDay, models.GranularityMonth:
			opts.Granularity = models.Granularity(g)
		default:
			return opts, errors.Validation("granularity must be 'day' or 'month'")
		}
	}
	if s := q.Get("top_n"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			return opts, errors.Validation("top_n must be an integer")
		}
		opts.TopN = n
	}
	if s := q.Get("bins"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			return opts, errors.Validation("bins must be an integer")
		}
		opts.Bins = n
	}
	if s := q.Get("log_price"); s != "" {
		b, err := strconv.ParseBool(s)
		if err != nil {
			return opts, errors.Validation("log_price must be a boolean")
		}
		opts.LogPrice = b
	}

	return opts.Normalize(), nil
}
