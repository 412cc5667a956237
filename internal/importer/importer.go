// Package importer loads a commercetools-style product CSV export into the mock commerce
// API catalog.
package importer

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"storefront/internal/domain"
)

// ProductWriter stores a product under a stable key. *fakeapi.Store implements it.
type ProductWriter interface {
	UpsertProduct(ctx context.Context, key string, product domain.Product) (domain.Product, error)
}

// CSVImporter reads product rows and upserts them by key.
type CSVImporter struct {
	reader   *csv.Reader
	products ProductWriter
}

func NewCSVImporter(r io.Reader, products ProductWriter) *CSVImporter {
	csvr := csv.NewReader(r)
	csvr.FieldsPerRecord = -1 // rows may have trailing commas
	return &CSVImporter{
		reader:   csvr,
		products: products,
	}
}

type csvRow struct {
	Key       string
	Name      string
	Desc      string
	Cents     int64
	Stock     int
	ImageURLs []string
}

// Run parses CSV rows and upserts products grouped by product key.
func (i *CSVImporter) Run(ctx context.Context) (int, error) {
	headers, err := i.reader.Read()
	if err != nil {
		return 0, fmt.Errorf("read headers: %w", err)
	}
	index := headerIndex(headers)

	var (
		current  *csvRow
		imported int
	)

	for {
		record, err := i.reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return imported, fmt.Errorf("read row: %w", err)
		}

		row := parseRow(record, index)
		if row == nil {
			continue
		}

		if row.Key != "" {
			if current != nil {
				if err := i.save(ctx, current); err != nil {
					return imported, err
				}
				imported++
			}
			current = row
			continue
		}

		// Continuation rows (images) belong to the current product.
		if current != nil && len(row.ImageURLs) > 0 {
			current.ImageURLs = append(current.ImageURLs, row.ImageURLs...)
		}
	}

	if current != nil {
		if err := i.save(ctx, current); err != nil {
			return imported, err
		}
		imported++
	}

	return imported, nil
}

func (i *CSVImporter) save(ctx context.Context, row *csvRow) error {
	if row.Name == "" || row.Cents <= 0 {
		return fmt.Errorf("invalid product row (missing name or price) for key %q", row.Key)
	}

	p := domain.Product{
		Name:        row.Name,
		Description: row.Desc,
		Price:       decimal.NewNullDecimal(decimal.New(row.Cents, -2)),
		Stock:       row.Stock,
	}
	if len(row.ImageURLs) > 0 {
		p.Image = row.ImageURLs[0]
	}

	if _, err := i.products.UpsertProduct(ctx, row.Key, p); err != nil {
		return fmt.Errorf("upsert product %q: %w", row.Key, err)
	}
	return nil
}

func headerIndex(headers []string) map[string]int {
	idx := make(map[string]int, len(headers))
	for i, h := range headers {
		idx[strings.TrimSpace(h)] = i
	}
	return idx
}

func parseRow(record []string, index map[string]int) *csvRow {
	key := pick(record, index, "key")
	imageURL := pick(record, index, "variants.images.url")
	if key == "" && imageURL == "" {
		return nil
	}

	row := &csvRow{
		Key:  key,
		Name: pick(record, index, "name.en"),
		Desc: pick(record, index, "description.en"),
	}
	if s := pick(record, index, "variants.prices.value.centAmount"); s != "" {
		row.Cents, _ = strconv.ParseInt(s, 10, 64)
	}
	if s := pick(record, index, "variants.availability.availableQuantity"); s != "" {
		row.Stock, _ = strconv.Atoi(s)
	}
	if imageURL != "" {
		row.ImageURLs = []string{imageURL}
	}
	return row
}

func pick(record []string, index map[string]int, key string) string {
	pos, ok := index[key]
	if !ok || pos >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[pos])
}
