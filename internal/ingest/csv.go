// Package ingest loads the stock CSV into the vector store.
package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/fyrsmithlabs/finsight/internal/stock"
)

// RequiredColumns must all appear in the CSV header.
var RequiredColumns = []string{
	stock.KeySymbol,
	stock.KeyName,
	stock.KeySector,
	stock.KeyPrice,
	stock.KeyMarketCap,
	stock.KeyPERatio,
	stock.KeyDividendYield,
	stock.KeyDescription,
}

// ErrMissingColumn is returned when the header lacks a required column.
var ErrMissingColumn = errors.New("missing required column")

// RowError reports a malformed row. Line is 1-based and counts the header.
type RowError struct {
	Line int
	Err  error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e *RowError) Unwrap() error { return e.Err }

// ReadCSV parses records from r. Header names are matched case-insensitively
// after trimming; an optional Date (or date) column fills Record.Date.
// Every malformed row is reported and no records are returned if any row is
// bad.
func ReadCSV(r io.Reader) ([]stock.Record, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("%w: empty file", ErrMissingColumn)
	}
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}

	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))] = i
	}
	for _, col := range RequiredColumns {
		if _, ok := index[strings.ToLower(col)]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingColumn, col)
		}
	}
	dateCol, hasDate := index[strings.ToLower(stock.KeyDate)]

	field := func(row []string, col string) string {
		return strings.TrimSpace(row[index[strings.ToLower(col)]])
	}

	var (
		records []stock.Record
		errs    []error
	)
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			line := 0
			var pe *csv.ParseError
			if errors.As(err, &pe) {
				line = pe.Line
			}
			errs = append(errs, &RowError{Line: line, Err: err})
			if !errors.Is(err, csv.ErrFieldCount) {
				// Quote errors leave the reader out of sync.
				break
			}
			continue
		}

		rec := stock.Record{
			Symbol:        field(row, stock.KeySymbol),
			Name:          field(row, stock.KeyName),
			Sector:        field(row, stock.KeySector),
			Price:         field(row, stock.KeyPrice),
			MarketCap:     field(row, stock.KeyMarketCap),
			PERatio:       field(row, stock.KeyPERatio),
			DividendYield: field(row, stock.KeyDividendYield),
			Description:   field(row, stock.KeyDescription),
		}
		if hasDate {
			rec.Date = strings.TrimSpace(row[dateCol])
		}
		if rec.Symbol == "" {
			line, _ := cr.FieldPos(0)
			errs = append(errs, &RowError{Line: line, Err: errors.New("empty Symbol")})
			continue
		}
		records = append(records, rec.WithEmbeddedText())
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return records, nil
}
