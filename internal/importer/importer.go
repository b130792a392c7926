package importer

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"analogue-shop/internal/domain"
)

type ProductWriter interface {
	Upsert(ctx context.Context, product domain.Product) (*domain.Product, error)
	IncrementStock(ctx context.Context, id string, qty int) (*domain.Product, error)
}

// Mode selects what a row does to the catalogue.
type Mode int

const (
	// ModeUpsert creates or replaces products matched by code.
	ModeUpsert Mode = iota
	// ModeRestock adds the stock column to existing products matched by id.
	ModeRestock
)

// CSVImporter reads product CSV files with a header row. Recognised columns are
// id, code, title, description, category, price_cents and stock.
type CSVImporter struct {
	reader *csv.Reader
	repo   ProductWriter
	mode   Mode
}

func NewCSVImporter(r io.Reader, repo ProductWriter, mode Mode) *CSVImporter {
	csvr := csv.NewReader(r)
	csvr.FieldsPerRecord = -1 // rows may have trailing commas
	csvr.TrimLeadingSpace = true
	return &CSVImporter{reader: csvr, repo: repo, mode: mode}
}

type csvRow struct {
	line        int
	ID          string
	Code        string
	Title       string
	Description string
	Category    string
	Cents       int64
	Stock       int
}

// Run applies every row and returns how many were applied. It stops at the
// first invalid row; rows before it stay applied.
func (i *CSVImporter) Run(ctx context.Context) (int, error) {
	headers, err := i.reader.Read()
	if err != nil {
		return 0, fmt.Errorf("read headers: %w", err)
	}
	index := headerIndex(headers)

	imported := 0
	for line := 2; ; line++ {
		record, err := i.reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return imported, fmt.Errorf("read row: %w", err)
		}

		row, err := parseRow(record, index, line)
		if err != nil {
			return imported, err
		}
		if row == nil {
			continue
		}
		if err := i.apply(ctx, row); err != nil {
			return imported, err
		}
		imported++
	}
	return imported, nil
}

func (i *CSVImporter) apply(ctx context.Context, row *csvRow) error {
	if i.mode == ModeRestock {
		if row.ID == "" || row.Stock <= 0 {
			return fmt.Errorf("line %d: restock needs an id and a positive stock", row.line)
		}
		if _, err := i.repo.IncrementStock(ctx, row.ID, row.Stock); err != nil {
			return fmt.Errorf("line %d: restock %s: %w", row.line, row.ID, err)
		}
		return nil
	}

	if row.Code == "" || row.Title == "" || row.Cents < 0 || row.Stock < 0 {
		return fmt.Errorf("line %d: invalid product row (code and title required, price and stock not negative)", row.line)
	}
	p := domain.Product{
		ID:          row.ID,
		Code:        row.Code,
		Title:       row.Title,
		Description: row.Description,
		Category:    row.Category,
		PriceCents:  row.Cents,
		Stock:       row.Stock,
	}
	if _, err := i.repo.Upsert(ctx, p); err != nil {
		return fmt.Errorf("line %d: upsert product %q: %w", row.line, row.Code, err)
	}
	return nil
}

func headerIndex(headers []string) map[string]int {
	idx := make(map[string]int, len(headers))
	for i, h := range headers {
		idx[strings.ToLower(strings.TrimSpace(h))] = i
	}
	return idx
}

// parseRow returns nil for blank rows.
func parseRow(record []string, index map[string]int, line int) (*csvRow, error) {
	row := &csvRow{
		line:        line,
		ID:          pick(record, index, "id"),
		Code:        pick(record, index, "code"),
		Title:       pick(record, index, "title"),
		Description: pick(record, index, "description"),
		Category:    pick(record, index, "category"),
	}
	cents := pick(record, index, "price_cents")
	stock := pick(record, index, "stock")
	if row.ID == "" && row.Code == "" && row.Title == "" && cents == "" && stock == "" {
		return nil, nil
	}

	var err error
	if cents != "" {
		if row.Cents, err = strconv.ParseInt(cents, 10, 64); err != nil {
			return nil, fmt.Errorf("line %d: price_cents %q: %w", line, cents, err)
		}
	}
	if stock != "" {
		if row.Stock, err = strconv.Atoi(stock); err != nil {
			return nil, fmt.Errorf("line %d: stock %q: %w", line, stock, err)
		}
	}
	return row, nil
}

func pick(record []string, index map[string]int, key string) string {
	pos, ok := index[key]
	if !ok || pos >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[pos])
}
