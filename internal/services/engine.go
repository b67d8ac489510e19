package services

import (
	"fmt"
	"log/slog"
	"math"
	"slices"
	"strings"

	"eda-dashboard/internal/models"
)

// topCustomerCount is fixed by the dashboard, unlike the tunable product N.
const topCustomerCount = 10

// excludedCountry is a business rule of the orders-by-country view only:
// the UK warehouse rows are reported elsewhere and skew the chart.
const excludedCountry = "United Kingdom"

// histogramBins holds the per-field defaults used when no override is set.
var histogramBins = map[string]int{
	"quantity": 30,
	"price":    40,
	"discount": 20,
	"revenue":  30,
}

// Engine computes the view catalogue. It is a pure transform: identical
// dataset and options produce byte-identical reports, and nothing shared
// is mutated.
type Engine struct {
	logger *slog.Logger
}

func NewEngine(logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{logger: logger}
}

// Report runs every view, each independently gated by the manifest.
func (e *Engine) Report(ds *models.Dataset, opts models.Options) *models.Report {
	opts = opts.Normalize()

	return &models.Report{
		Dataset:       ds.Name,
		Rows:          len(ds.Rows),
		Manifest:      ds.Manifest,
		Options:       opts,
		Overview:      e.Overview(ds),
		KPIs:          e.KPIs(ds),
		Trend:         e.RevenueTrend(ds, opts.Granularity),
		TopProducts:   e.TopProducts(ds, opts.TopN),
		Categories:    e.RevenueByCategory(ds),
		Payments:      e.PaymentShare(ds),
		Regions:       e.RevenueByRegion(ds),
		Correlation:   e.Correlation(ds),
		TopCustomers:  e.TopCustomers(ds),
		OrdersMonthly: e.OrdersPerMonth(ds),
		Countries:     e.OrdersByCountry(ds),
		Distributions: e.Distributions(ds, opts),
	}
}

// requires gates a view on manifest capabilities; the omission reason names
// exactly what was missing.
func requires(m models.Manifest, caps ...models.Capability) models.ViewMeta {
	missing := m.Missing(caps...)
	if len(missing) == 0 {
		return models.ViewMeta{Computed: true}
	}
	names := make([]string, len(missing))
	for i, c := range missing {
		names[i] = string(c)
	}
	return models.ViewMeta{Reason: fmt.Sprintf("missing columns: %s", strings.Join(names, ", "))}
}

func (e *Engine) Overview(ds *models.Dataset) models.Overview {
	return models.Overview{
		ViewMeta: models.ViewMeta{Computed: true},
		Rows:     len(ds.Rows),
		Cols:     len(ds.Columns),
		Columns:  ds.Columns,
		Sample:   ds.Sample,
	}
}

func (e *Engine) KPIs(ds *models.Dataset) models.KPIs {
	meta := requires(ds.Manifest, models.CapRevenue, models.CapOrderID)
	if !meta.Computed {
		return models.KPIs{ViewMeta: meta}
	}

	var total float64
	orders := make(map[string]struct{})
	for _, r := range ds.Rows {
		if r.Revenue.Valid {
			total += r.Revenue.Float64
		}
		if r.OrderID != "" {
			orders[r.OrderID] = struct{}{}
		}
	}

	avg := 0.0
	if len(orders) > 0 {
		avg = total / float64(len(orders))
	}

	return models.KPIs{
		ViewMeta:      meta,
		TotalRevenue:  total,
		TotalOrders:   len(orders),
		AvgOrderValue: avg,
	}
}

func (e *Engine) RevenueTrend(ds *models.Dataset, g models.Granularity) models.RevenueTrend {
	meta := requires(ds.Manifest, models.CapOrderDate, models.CapRevenue)
	if !meta.Computed {
		return models.RevenueTrend{ViewMeta: meta, Granularity: g}
	}

	agg := newRevenueGroups()
	for _, r := range ds.Rows {
		if !r.OrderDate.Valid {
			continue
		}
		key := r.YearMonth
		if g == models.GranularityDay {
			key = r.OrderDate.Time.Format("2006-01-02")
		}
		agg.add(key, r.Revenue)
	}

	entries := agg.entries()
	slices.SortFunc(entries, func(a, b models.RevenueEntry) int {
		return strings.Compare(a.Key, b.Key)
	})

	points := make([]models.TrendPoint, len(entries))
	for i, en := range entries {
		points[i] = models.TrendPoint{Period: en.Key, Revenue: en.Revenue}
	}
	return models.RevenueTrend{ViewMeta: meta, Granularity: g, Points: points}
}

func (e *Engine) TopProducts(ds *models.Dataset, n int) models.ProductRanking {
	meta := requires(ds.Manifest, models.CapProductID, models.CapRevenue)
	if !meta.Computed {
		return models.ProductRanking{ViewMeta: meta, TopN: n}
	}
	items := truncate(rankDescending(ds.Rows, func(o models.Order) string { return o.ProductID }), n)
	return models.ProductRanking{ViewMeta: meta, TopN: n, Items: items}
}

func (e *Engine) RevenueByCategory(ds *models.Dataset) models.CategoryRevenue {
	meta := requires(ds.Manifest, models.CapCategory, models.CapRevenue)
	if !meta.Computed {
		return models.CategoryRevenue{ViewMeta: meta}
	}
	items := rankDescending(ds.Rows, func(o models.Order) string { return o.Category })
	return models.CategoryRevenue{ViewMeta: meta, Items: items}
}

func (e *Engine) PaymentShare(ds *models.Dataset) models.PaymentShare {
	meta := requires(ds.Manifest, models.CapPaymentMethod)
	if !meta.Computed {
		return models.PaymentShare{ViewMeta: meta}
	}

	counts := newCountGroups()
	for _, r := range ds.Rows {
		counts.add(r.PaymentMethod)
	}

	items := counts.entries()
	slices.SortStableFunc(items, func(a, b models.CountEntry) int {
		return b.Count - a.Count
	})
	total := len(ds.Rows)
	for i := range items {
		if total > 0 {
			items[i].Share = float64(items[i].Count) / float64(total)
		}
	}
	return models.PaymentShare{ViewMeta: meta, Items: items}
}

func (e *Engine) RevenueByRegion(ds *models.Dataset) models.RegionRevenue {
	meta := requires(ds.Manifest, models.CapRegion, models.CapRevenue)
	if !meta.Computed {
		return models.RegionRevenue{ViewMeta: meta}
	}

	agg := newRevenueGroups()
	for _, r := range ds.Rows {
		agg.add(r.Region, r.Revenue)
	}
	items := agg.entries()
	slices.SortFunc(items, func(a, b models.RevenueEntry) int {
		return strings.Compare(a.Key, b.Key)
	})
	return models.RegionRevenue{ViewMeta: meta, Items: items}
}

func (e *Engine) TopCustomers(ds *models.Dataset) models.CustomerRanking {
	meta := requires(ds.Manifest, models.CapCustomerID, models.CapRevenue)
	if !meta.Computed {
		return models.CustomerRanking{ViewMeta: meta}
	}
	items := truncate(rankDescending(ds.Rows, func(o models.Order) string { return o.CustomerID }), topCustomerCount)
	return models.CustomerRanking{ViewMeta: meta, Items: items}
}

func (e *Engine) OrdersPerMonth(ds *models.Dataset) models.MonthlyOrders {
	meta := requires(ds.Manifest, models.CapOrderID, models.CapYearMonth)
	if !meta.Computed {
		return models.MonthlyOrders{ViewMeta: meta}
	}

	var months []string
	distinct := make(map[string]map[string]struct{})
	for _, r := range ds.Rows {
		if r.YearMonth == "" || r.OrderID == "" {
			continue
		}
		set, ok := distinct[r.YearMonth]
		if !ok {
			set = make(map[string]struct{})
			distinct[r.YearMonth] = set
			months = append(months, r.YearMonth)
		}
		set[r.OrderID] = struct{}{}
	}
	slices.Sort(months)

	points := make([]models.CountPoint, len(months))
	for i, m := range months {
		points[i] = models.CountPoint{Period: m, Orders: len(distinct[m])}
	}
	return models.MonthlyOrders{ViewMeta: meta, Points: points}
}

func (e *Engine) OrdersByCountry(ds *models.Dataset) models.CountryOrders {
	meta := requires(ds.Manifest, models.CapCountry)
	if !meta.Computed {
		return models.CountryOrders{ViewMeta: meta}
	}

	counts := newCountGroups()
	for _, r := range ds.Rows {
		if r.Country == excludedCountry {
			continue
		}
		counts.add(r.Country)
	}

	items := counts.entries()
	slices.SortStableFunc(items, func(a, b models.CountEntry) int {
		return a.Count - b.Count
	})
	return models.CountryOrders{ViewMeta: meta, Items: items}
}

// numericColumns lists the numeric fields present in the dataset, with
// accessors, in the fixed quantity/price/discount/revenue order.
func numericColumns(ds *models.Dataset) (names []string, get []func(models.Order) models.NullFloat) {
	type candidate struct {
		name string
		cap  models.Capability
		get  func(models.Order) models.NullFloat
	}
	for _, c := range []candidate{
		{"quantity", models.CapQuantity, func(o models.Order) models.NullFloat { return o.Quantity }},
		{"price", models.CapPrice, func(o models.Order) models.NullFloat { return o.Price }},
		{"discount", models.CapDiscount, func(o models.Order) models.NullFloat { return o.Discount }},
		{"revenue", models.CapRevenue, func(o models.Order) models.NullFloat { return o.Revenue }},
	} {
		if ds.Manifest[c.cap] {
			names = append(names, c.name)
			get = append(get, c.get)
		}
	}
	return names, get
}

func (e *Engine) Correlation(ds *models.Dataset) models.Correlation {
	names, get := numericColumns(ds)
	if len(names) < 2 {
		return models.Correlation{ViewMeta: models.ViewMeta{
			Reason: "fewer than 2 numeric columns present",
		}}
	}

	// Pairwise accumulators with per-row missingness handling: a pair only
	// sees rows where both cells are non-null.
	type pairAcc struct {
		n, sumX, sumY, sumXX, sumYY, sumXY float64
	}
	k := len(names)
	accs := make([]pairAcc, k*k)

	for _, row := range ds.Rows {
		for i := 0; i < k; i++ {
			x := get[i](row)
			if !x.Valid {
				continue
			}
			for j := i + 1; j < k; j++ {
				y := get[j](row)
				if !y.Valid {
					continue
				}
				a := &accs[i*k+j]
				a.n++
				a.sumX += x.Float64
				a.sumY += y.Float64
				a.sumXX += x.Float64 * x.Float64
				a.sumYY += y.Float64 * y.Float64
				a.sumXY += x.Float64 * y.Float64
			}
		}
	}

	matrix := make([][]float64, k)
	for i := range matrix {
		matrix[i] = make([]float64, k)
		matrix[i][i] = 1
	}
	for i := 0; i < k; i++ {
		for j := i + 1; j < k; j++ {
			a := accs[i*k+j]
			r := 0.0
			if a.n >= 2 {
				denom := math.Sqrt((a.n*a.sumXX - a.sumX*a.sumX) * (a.n*a.sumYY - a.sumY*a.sumY))
				if denom != 0 {
					r = (a.n*a.sumXY - a.sumX*a.sumY) / denom
				}
			}
			r = math.Max(-1, math.Min(1, r))
			if math.IsNaN(r) || math.IsInf(r, 0) {
				r = 0
			}
			matrix[i][j] = r
			matrix[j][i] = r
		}
	}

	return models.Correlation{
		ViewMeta: models.ViewMeta{Computed: true},
		Columns:  names,
		Matrix:   matrix,
	}
}

func (e *Engine) Distributions(ds *models.Dataset, opts models.Options) models.Distributions {
	names, get := numericColumns(ds)
	if len(names) == 0 {
		return models.Distributions{ViewMeta: models.ViewMeta{
			Reason: "no numeric columns present",
		}}
	}

	hists := make([]models.Histogram, 0, len(names))
	for i, name := range names {
		bins := histogramBins[name]
		if opts.Bins != 0 {
			bins = opts.Bins
		}

		var values []float64
		skipped := 0
		logScale := name == "price" && opts.LogPrice
		for _, row := range ds.Rows {
			v := get[i](row)
			if !v.Valid {
				continue
			}
			if logScale {
				if v.Float64 <= 0 {
					skipped++
					continue
				}
				values = append(values, math.Log10(v.Float64))
			} else {
				values = append(values, v.Float64)
			}
		}

		h := models.Histogram{
			Column:  name,
			Buckets: bucketize(values, bins),
			Log:     logScale,
			Skipped: skipped,
		}
		// The discount distribution is rendered as a density in the
		// dashboard; precompute the normalization here.
		if name == "discount" {
			h.Density = densities(h.Buckets, len(values))
		}
		hists = append(hists, h)
	}

	return models.Distributions{
		ViewMeta:   models.ViewMeta{Computed: true},
		Histograms: hists,
	}
}

// bucketize builds an equal-width histogram. A degenerate range collapses
// into a single bucket; no values yields no buckets.
func bucketize(values []float64, bins int) []models.Bucket {
	if len(values) == 0 {
		return []models.Bucket{}
	}
	lo, hi := values[0], values[0]
	for _, v := range values[1:] {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	if lo == hi {
		return []models.Bucket{{Low: lo, High: hi, Count: len(values)}}
	}
	if bins < 1 {
		bins = 1
	}

	width := (hi - lo) / float64(bins)
	buckets := make([]models.Bucket, bins)
	for i := range buckets {
		buckets[i] = models.Bucket{Low: lo + float64(i)*width, High: lo + float64(i+1)*width}
	}
	buckets[bins-1].High = hi
	for _, v := range values {
		idx := int((v - lo) / width)
		if idx >= bins {
			idx = bins - 1
		}
		buckets[idx].Count++
	}
	return buckets
}

func densities(buckets []models.Bucket, n int) []float64 {
	out := make([]float64, len(buckets))
	for i, b := range buckets {
		width := b.High - b.Low
		if n > 0 && width > 0 {
			out[i] = float64(b.Count) / (float64(n) * width)
		}
	}
	return out
}

// revenueGroups sums revenue per key, remembering first-seen key order so
// equal revenues rank stably and output stays deterministic.
type revenueGroups struct {
	keys []string
	sums map[string]float64
}

func newRevenueGroups() *revenueGroups {
	return &revenueGroups{sums: make(map[string]float64)}
}

func (g *revenueGroups) add(key string, v models.NullFloat) {
	if _, ok := g.sums[key]; !ok {
		g.keys = append(g.keys, key)
		g.sums[key] = 0
	}
	if v.Valid {
		g.sums[key] += v.Float64
	}
}

func (g *revenueGroups) entries() []models.RevenueEntry {
	out := make([]models.RevenueEntry, len(g.keys))
	for i, k := range g.keys {
		out[i] = models.RevenueEntry{Key: k, Revenue: g.sums[k]}
	}
	return out
}

type countGroups struct {
	keys   []string
	counts map[string]int
}

func newCountGroups() *countGroups {
	return &countGroups{counts: make(map[string]int)}
}

func (g *countGroups) add(key string) {
	if _, ok := g.counts[key]; !ok {
		g.keys = append(g.keys, key)
	}
	g.counts[key]++
}

func (g *countGroups) entries() []models.CountEntry {
	out := make([]models.CountEntry, len(g.keys))
	for i, k := range g.keys {
		out[i] = models.CountEntry{Key: k, Count: g.counts[k]}
	}
	return out
}

// rankDescending groups revenue by key and sorts descending, ties kept in
// first-seen order.
func rankDescending(rows []models.Order, key func(models.Order) string) []models.RevenueEntry {
	agg := newRevenueGroups()
	for _, r := range rows {
		agg.add(key(r), r.Revenue)
	}
	items := agg.entries()
	slices.SortStableFunc(items, func(a, b models.RevenueEntry) int {
		if a.Revenue > b.Revenue {
			return -1
		}
		if a.Revenue < b.Revenue {
			return 1
		}
		return 0
	})
	return items
}

func truncate(items []models.RevenueEntry, n int) []models.RevenueEntry {
	if len(items) > n {
		return items[:n]
	}
	return items
}
