// Package feed turns uploaded spreadsheets and row lists into raw ray rows.
// Parsing numeric fields is left to the core; readers only materialise text.
package feed

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/samirrijal/raycross/internal/core/domain"
	"github.com/samirrijal/raycross/internal/core/ports"
)

// Format names an input encoding.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// ErrUnknownFormat is returned when a body cannot be matched to a reader.
var ErrUnknownFormat = errors.New("unknown feed format")

// Static is a feed over rows that are already in memory.
type Static struct {
	Name string
	Data []domain.RawRow
}

// Rows returns the rows as given.
func (s Static) Rows(ctx context.Context) ([]domain.RawRow, error) { return s.Data, nil }

// Source names the feed for logs and metrics.
func (s Static) Source() string {
	if s.Name == "" {
		return "static"
	}
	return s.Name
}

// CSV reads comma-separated rows. Rows may have any number of fields.
type CSV struct {
	r io.Reader
}

// NewCSV wraps r.
func NewCSV(r io.Reader) *CSV { return &CSV{r: r} }

// Rows reads every record.
func (c *CSV) Rows(ctx context.Context) ([]domain.RawRow, error) {
	reader := csv.NewReader(c.r)
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	var rows []domain.RawRow
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv: %w", err)
		}
		rows = append(rows, domain.RawRow(rec))
	}
	return rows, nil
}

// Source names the feed.
func (c *CSV) Source() string { return string(FormatCSV) }

// XLSX reads every row of the first worksheet of a workbook.
type XLSX struct {
	r io.Reader
}

// NewXLSX wraps r.
func NewXLSX(r io.Reader) *XLSX { return &XLSX{r: r} }

// Rows reads the first sheet.
func (x *XLSX) Rows(ctx context.Context) ([]domain.RawRow, error) {
	f, err := excelize.OpenReader(x.r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil
	}
	records, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", sheets[0], err)
	}
	rows := make([]domain.RawRow, len(records))
	for i, rec := range records {
		rows[i] = domain.RawRow(rec)
	}
	return rows, nil
}

// Source names the feed.
func (x *XLSX) Source() string { return string(FormatXLSX) }

// xlsxMagic is the zip local file header every .xlsx starts with.
var xlsxMagic = []byte("PK\x03\x04")

// Detect picks a format from a content type, a file name, or the body itself.
func Detect(contentType, filename string, body []byte) (Format, error) {
	ct := strings.ToLower(contentType)
	switch {
	case strings.Contains(ct, "spreadsheetml"), strings.Contains(ct, "ms-excel"):
		return FormatXLSX, nil
	case strings.HasPrefix(ct, "text/csv"), strings.HasPrefix(ct, "text/plain"):
		return FormatCSV, nil
	}
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xlsx", ".xlsm":
		return FormatXLSX, nil
	case ".csv", ".txt":
		return FormatCSV, nil
	}
	if bytes.HasPrefix(body, xlsxMagic) {
		return FormatXLSX, nil
	}
	if len(body) > 0 {
		return FormatCSV, nil
	}
	return "", ErrUnknownFormat
}

// FromBytes builds the reader for a detected format.
func FromBytes(format Format, body []byte) (ports.RowFeed, error) {
	switch format {
	case FormatCSV:
		return NewCSV(bytes.NewReader(body)), nil
	case FormatXLSX:
		return NewXLSX(bytes.NewReader(body)), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}
