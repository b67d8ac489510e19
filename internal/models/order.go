package models

import "time"

// NullFloat is a float64 that may be absent for a given row.
type NullFloat struct {
	Float64 float64
	Valid   bool
}

// NullTime is a timestamp that may be absent for a given row.
type NullTime struct {
	Time  time.Time
	Valid bool
}

// Order is one ingested row after header aliasing and type coercion.
// Cells that failed to parse are null, never dropped rows.
type Order struct {
	OrderID       string
	OrderDate     NullTime
	ProductID     string
	ProductName   string
	Category      string
	CustomerID    string
	Country       string
	Region        string
	PaymentMethod string
	Quantity      NullFloat
	Price         NullFloat
	Discount      NullFloat

	// Revenue = Quantity * Price * (1 - Discount), valid only when all
	// three inputs are valid for this row and present in the dataset.
	Revenue NullFloat

	// YearMonth is the sortable "2006-01" bucket of OrderDate.
	YearMonth string
}

// ColumnKind is the inferred role of a source column.
type ColumnKind string

const (
	KindNumeric     ColumnKind = "numeric"
	KindDatetime    ColumnKind = "datetime"
	KindCategorical ColumnKind = "categorical"
	KindIdentifier  ColumnKind = "identifier"
	KindDerived     ColumnKind = "derived"
)

// Column describes one column of the ingested dataset, in source order.
type Column struct {
	Name  string     `json:"name"`
	Kind  ColumnKind `json:"kind"`
	Nulls int        `json:"nulls"`
}

// Capability names an optional source or derived field. Views declare the
// capabilities they need; ingestion records which ones a dataset has.
type Capability string

const (
	CapOrderID       Capability = "order_id"
	CapOrderDate     Capability = "order_date"
	CapProductID     Capability = "product_id"
	CapCategory      Capability = "category"
	CapCustomerID    Capability = "customer_id"
	CapCountry       Capability = "country"
	CapRegion        Capability = "region"
	CapPaymentMethod Capability = "payment_method"
	CapQuantity      Capability = "quantity"
	CapPrice         Capability = "price"
	CapDiscount      Capability = "discount"
	CapRevenue       Capability = "revenue"
	CapYearMonth     Capability = "year_month"
)

// Manifest records which capabilities a dataset provides.
type Manifest map[Capability]bool

func (m Manifest) Has(caps ...Capability) bool {
	for _, c := range caps {
		if !m[c] {
			return false
		}
	}
	return true
}

// Missing returns the subset of caps the manifest lacks, in argument order.
func (m Manifest) Missing(caps ...Capability) []Capability {
	var out []Capability
	for _, c := range caps {
		if !m[c] {
			out = append(out, c)
		}
	}
	return out
}

// Dataset is the immutable result of one ingestion: the augmented rows,
// the source schema, and the capability manifest. The engine never
// modifies it; every view is derived fresh.
type Dataset struct {
	Name     string
	Columns  []Column
	Rows     []Order
	Sample   [][]string
	Manifest Manifest
}
