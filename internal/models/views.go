package models

// Granularity selects the time bucketing of the revenue trend.
type Granularity string

const (
	GranularityDay   Granularity = "day"
	GranularityMonth Granularity = "month"
)

const (
	DefaultTopN = 10
	MinTopN     = 5
	MaxTopN     = 20
	MaxBins     = 100
	MinBins     = 5
)

// Options is the full tunable surface of the engine.
type Options struct {
	Granularity Granularity `json:"granularity"`
	TopN        int         `json:"top_n"`
	Bins        int         `json:"bins,omitempty"`
	LogPrice    bool        `json:"log_price"`
}

// DefaultOptions mirrors the defaults of the interactive dashboard:
// monthly trend, top 10, per-field bin counts, linear price axis.
func DefaultOptions() Options {
	return Options{Granularity: GranularityMonth, TopN: DefaultTopN}
}

// Normalize clamps the options into their allowed ranges.
func (o Options) Normalize() Options {
	if o.Granularity != GranularityDay {
		o.Granularity = GranularityMonth
	}
	if o.TopN == 0 {
		o.TopN = DefaultTopN
	}
	if o.TopN < MinTopN {
		o.TopN = MinTopN
	}
	if o.TopN > MaxTopN {
		o.TopN = MaxTopN
	}
	if o.Bins != 0 {
		if o.Bins < MinBins {
			o.Bins = MinBins
		}
		if o.Bins > MaxBins {
			o.Bins = MaxBins
		}
	}
	return o
}

// ViewMeta tags every view with whether it was computed and, when it was
// omitted, which capabilities were missing.
type ViewMeta struct {
	Computed bool   `json:"computed"`
	Reason   string `json:"reason,omitempty"`
}

type Overview struct {
	ViewMeta
	Rows    int        `json:"rows"`
	Cols    int        `json:"cols"`
	Columns []Column   `json:"columns"`
	Sample  [][]string `json:"sample,omitempty"`
}

type KPIs struct {
	ViewMeta
	TotalRevenue  float64 `json:"total_revenue"`
	TotalOrders   int     `json:"total_orders"`
	AvgOrderValue float64 `json:"avg_order_value"`
}

type TrendPoint struct {
	Period  string  `json:"period"`
	Revenue float64 `json:"revenue"`
}

type RevenueTrend struct {
	ViewMeta
	Granularity Granularity  `json:"granularity"`
	Points      []TrendPoint `json:"points"`
}

// RevenueEntry is one row of a revenue ranking or grouping.
type RevenueEntry struct {
	Key     string  `json:"key"`
	Revenue float64 `json:"revenue"`
}

type ProductRanking struct {
	ViewMeta
	TopN  int            `json:"top_n"`
	Items []RevenueEntry `json:"items"`
}

type CategoryRevenue struct {
	ViewMeta
	Items []RevenueEntry `json:"items"`
}

type RegionRevenue struct {
	ViewMeta
	Items []RevenueEntry `json:"items"`
}

type CustomerRanking struct {
	ViewMeta
	Items []RevenueEntry `json:"items"`
}

// CountEntry is one row of a count grouping.
type CountEntry struct {
	Key   string  `json:"key"`
	Count int     `json:"count"`
	Share float64 `json:"share,omitempty"`
}

type PaymentShare struct {
	ViewMeta
	Items []CountEntry `json:"items"`
}

type CountryOrders struct {
	ViewMeta
	Items []CountEntry `json:"items"`
}

type CountPoint struct {
	Period string `json:"period"`
	Orders int    `json:"orders"`
}

type MonthlyOrders struct {
	ViewMeta
	Points []CountPoint `json:"points"`
}

type Correlation struct {
	ViewMeta
	Columns []string    `json:"columns"`
	Matrix  [][]float64 `json:"matrix"`
}

type Bucket struct {
	Low   float64 `json:"low"`
	High  float64 `json:"high"`
	Count int     `json:"count"`
}

type Histogram struct {
	Column  string    `json:"column"`
	Buckets []Bucket  `json:"buckets"`
	Density []float64 `json:"density,omitempty"`
	Log     bool      `json:"log,omitempty"`
	Skipped int       `json:"skipped,omitempty"`
}

type Distributions struct {
	ViewMeta
	Histograms []Histogram `json:"histograms"`
}

// Report is the complete view catalogue for one dataset and one set of
// options. Identical inputs produce byte-identical reports.
type Report struct {
	Dataset       string          `json:"dataset"`
	Rows          int             `json:"rows"`
	Manifest      Manifest        `json:"manifest"`
	Options       Options         `json:"options"`
	Overview      Overview        `json:"overview"`
	KPIs          KPIs            `json:"kpis"`
	Trend         RevenueTrend    `json:"revenue_trend"`
	TopProducts   ProductRanking  `json:"top_products"`
	Categories    CategoryRevenue `json:"revenue_by_category"`
	Payments      PaymentShare    `json:"payment_share"`
	Regions       RegionRevenue   `json:"revenue_by_region"`
	Correlation   Correlation     `json:"correlation"`
	TopCustomers  CustomerRanking `json:"top_customers"`
	OrdersMonthly MonthlyOrders   `json:"orders_per_month"`
	Countries     CountryOrders   `json:"orders_by_country"`
	Distributions Distributions   `json:"distributions"`
}
