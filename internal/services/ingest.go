package services

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/xuri/excelize/v2"
	"golang.org/x/sync/errgroup"

	"eda-dashboard/internal/models"
)

const (
	ingestChunkSize = 10000
	maxWorkers      = 10
	sampleRows      = 5
)

// columnAliases maps the header spellings seen across dataset variants onto
// the canonical snake_case schema.
var columnAliases = map[string]string{
	"invoiceno":        "order_id",
	"invoice_no":       "order_id",
	"invoicedate":      "order_date",
	"invoice_date":     "order_date",
	"date":             "order_date",
	"transaction_date": "order_date",
	"customerid":       "customer_id",
	"userid":           "customer_id",
	"user_id":          "customer_id",
	"stockcode":        "product_id",
	"stock_code":       "product_id",
	"productid":        "product_id",
	"description":      "product_name",
	"productname":      "product_name",
	"unitprice":        "price",
	"unit_price":       "price",
	"paymentmethod":    "payment_method",
	"payment":          "payment_method",
}

var columnKinds = map[string]models.ColumnKind{
	"order_id":       models.KindIdentifier,
	"product_id":     models.KindIdentifier,
	"customer_id":    models.KindIdentifier,
	"order_date":     models.KindDatetime,
	"quantity":       models.KindNumeric,
	"price":          models.KindNumeric,
	"discount":       models.KindNumeric,
	"category":       models.KindCategorical,
	"country":        models.KindCategorical,
	"region":         models.KindCategorical,
	"payment_method": models.KindCategorical,
	"product_name":   models.KindCategorical,
}

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"2006/01/02",
	"02/01/2006 15:04",
	"02/01/2006",
	"1/2/2006 15:04",
	"1/2/2006",
}

// Ingestor turns an uploaded tabular file into an immutable Dataset plus
// its capability manifest. Per-value failures become nulls; only structural
// problems (unreadable file, no header) are errors.
type Ingestor struct {
	logger *slog.Logger
}

func NewIngestor(logger *slog.Logger) *Ingestor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ingestor{logger: logger}
}

// Ingest dispatches on the file extension: .xlsx goes through excelize,
// everything else is treated as delimited text.
func (ing *Ingestor) Ingest(ctx context.Context, r io.Reader, name string) (*models.Dataset, error) {
	if strings.EqualFold(filepath.Ext(name), ".xlsx") {
		return ing.IngestXLSX(ctx, r, name)
	}
	return ing.IngestCSV(ctx, r, name)
}

// IngestCSV reads a comma/semicolon/tab separated file, sniffing the
// delimiter from the header line.
func (ing *Ingestor) IngestCSV(ctx context.Context, r io.Reader, name string) (*models.Dataset, error) {
	br := bufio.NewReaderSize(r, 1<<20)

	delim, err := sniffDelimiter(br)
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	cr := csv.NewReader(br)
	cr.Comma = delim
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("empty file")
		}
		return nil, fmt.Errorf("read header: %w", err)
	}

	var records [][]string
	for {
		rec, err := cr.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("read row %d: %w", len(records)+2, err)
		}
		row := make([]string, len(rec))
		copy(row, rec)
		records = append(records, row)
	}

	return ing.build(ctx, name, header, records)
}

// IngestXLSX reads the first sheet of a workbook.
func (ing *Ingestor) IngestXLSX(ctx context.Context, r io.Reader, name string) (*models.Dataset, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	if sheet == "" {
		return nil, fmt.Errorf("workbook has no sheets")
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("empty file")
	}

	return ing.build(ctx, name, rows[0], rows[1:])
}

func (ing *Ingestor) build(ctx context.Context, name string, header []string, records [][]string) (*models.Dataset, error) {
	start := time.Now()

	canon := canonicalHeader(header)
	if len(canon) == 0 {
		return nil, fmt.Errorf("no columns")
	}

	// First occurrence of each canonical column wins.
	idx := make(map[string]int, len(canon))
	for i, c := range canon {
		if _, ok := idx[c]; !ok && c != "" {
			idx[c] = i
		}
	}
	// Retail-style exports carry only a country column; region views read it.
	if _, ok := idx["region"]; !ok {
		if ci, ok := idx["country"]; ok {
			idx["region"] = ci
		}
	}

	manifest := buildManifest(idx)

	columns := make([]models.Column, len(canon))
	for i, c := range canon {
		kind, ok := columnKinds[c]
		if !ok {
			kind = models.KindCategorical
		}
		columns[i] = models.Column{Name: c, Kind: kind}
	}

	rows := make([]models.Order, len(records))
	nulls := make([]int, len(canon))
	deriveRevenue := manifest.Has(models.CapQuantity, models.CapPrice, models.CapDiscount)

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxWorkers)

	for lo := 0; lo < len(records); lo += ingestChunkSize {
		hi := min(lo+ingestChunkSize, len(records))
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}

			localNulls := make([]int, len(canon))
			for i := lo; i < hi; i++ {
				countEmptyCells(records[i], len(canon), localNulls)
				rows[i] = parseOrder(records[i], idx, deriveRevenue, localNulls)
			}

			mu.Lock()
			for i, n := range localNulls {
				nulls[i] += n
			}
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for i := range columns {
		columns[i].Nulls = nulls[i]
	}

	sample := records
	if len(sample) > sampleRows {
		sample = sample[:sampleRows]
	}

	ds := &models.Dataset{
		Name:     name,
		Columns:  columns,
		Rows:     rows,
		Sample:   sample,
		Manifest: manifest,
	}

	ing.logger.Info("dataset ingested",
		"name", name,
		"rows", len(rows),
		"cols", len(columns),
		"revenue", manifest[models.CapRevenue],
		"duration", time.Since(start),
	)

	return ds, nil
}

func canonicalHeader(header []string) []string {
	out := make([]string, len(header))
	for i, h := range header {
		c := strings.ToLower(strings.TrimSpace(h))
		c = strings.NewReplacer(" ", "_", "-", "_").Replace(c)
		if alias, ok := columnAliases[c]; ok {
			c = alias
		}
		out[i] = c
	}
	return out
}

func buildManifest(idx map[string]int) models.Manifest {
	m := make(models.Manifest)
	for _, cap := range []models.Capability{
		models.CapOrderID, models.CapOrderDate, models.CapProductID,
		models.CapCategory, models.CapCustomerID, models.CapCountry,
		models.CapRegion, models.CapPaymentMethod, models.CapQuantity,
		models.CapPrice, models.CapDiscount,
	} {
		if _, ok := idx[string(cap)]; ok {
			m[cap] = true
		}
	}
	if m.Has(models.CapQuantity, models.CapPrice, models.CapDiscount) {
		m[models.CapRevenue] = true
	}
	if m[models.CapOrderDate] {
		m[models.CapYearMonth] = true
	}
	return m
}

// countEmptyCells records a null for every physical column whose cell is
// empty or absent from a short row. Each cell is counted once no matter how
// many canonical names resolve to it.
func countEmptyCells(rec []string, cols int, nulls []int) {
	for i := 0; i < cols; i++ {
		if i >= len(rec) || strings.TrimSpace(rec[i]) == "" {
			nulls[i]++
		}
	}
}

// parseOrder coerces one record. A cell that is empty or fails to parse
// becomes null; the row is kept. Empty cells are already counted by
// countEmptyCells, so only non-empty parse failures bump the counter here.
func parseOrder(rec []string, idx map[string]int, deriveRevenue bool, nulls []int) models.Order {
	cell := func(name string) (string, int) {
		i, ok := idx[name]
		if !ok || i >= len(rec) {
			return "", -1
		}
		return strings.TrimSpace(rec[i]), i
	}
	text := func(name string) string {
		v, _ := cell(name)
		return v
	}
	num := func(name string) models.NullFloat {
		v, i := cell(name)
		if i < 0 || v == "" {
			return models.NullFloat{}
		}
		f, ok := parseNumber(v)
		if !ok {
			nulls[i]++
			return models.NullFloat{}
		}
		return models.NullFloat{Float64: f, Valid: true}
	}

	o := models.Order{
		OrderID:       text("order_id"),
		ProductID:     text("product_id"),
		ProductName:   text("product_name"),
		Category:      text("category"),
		CustomerID:    text("customer_id"),
		Country:       text("country"),
		Region:        text("region"),
		PaymentMethod: text("payment_method"),
		Quantity:      num("quantity"),
		Price:         num("price"),
		Discount:      num("discount"),
	}

	if v, i := cell("order_date"); i >= 0 && v != "" {
		if t, ok := parseDate(v); ok {
			o.OrderDate = models.NullTime{Time: t, Valid: true}
			o.YearMonth = t.Format("2006-01")
		} else {
			nulls[i]++
		}
	}

	if deriveRevenue && o.Quantity.Valid && o.Price.Valid && o.Discount.Valid {
		o.Revenue = models.NullFloat{
			Float64: o.Quantity.Float64 * o.Price.Float64 * (1 - o.Discount.Float64),
			Valid:   true,
		}
	}

	return o
}

func parseDate(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func parseNumber(s string) (float64, bool) {
	if s == "" {
		return 0, false
	}
	s = strings.TrimPrefix(s, "$")
	s = strings.ReplaceAll(s, ",", "")
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// sniffDelimiter inspects the header line without consuming the reader.
func sniffDelimiter(br *bufio.Reader) (rune, error) {
	prefix, err := br.Peek(4096)
	if len(prefix) == 0 {
		if err != nil && !errors.Is(err, bufio.ErrBufferFull) {
			return 0, fmt.Errorf("empty file")
		}
	}
	line := string(prefix)
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = line[:i]
	}

	best, bestCount := ',', strings.Count(line, ",")
	for _, cand := range []rune{';', '\t'} {
		if n := strings.Count(line, string(cand)); n > bestCount {
			best, bestCount = cand, n
		}
	}
	return best, nil
}
