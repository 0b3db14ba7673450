package fetcher

import (
	"bufio"
	"context"
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

const utf8BOM = "\ufeff"

// Table is a header row plus data rows from a lead spreadsheet.
type Table struct {
	Header []string
	Rows   [][]string
}

// Index returns the position of a header, matched case-insensitively, or -1.
func (t Table) Index(header string) int {
	for i, h := range t.Header {
		if strings.EqualFold(strings.TrimSpace(h), header) {
			return i
		}
	}
	return -1
}

// ReadTable reads a CSV or XLSX file, chosen by extension. The first
// non-blank row is the header. Every data row is padded or cut to the header
// width and rows without a value are dropped.
func ReadTable(ctx context.Context, path string) (Table, error) {
	var (
		raw [][]string
		err error
	)
	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		raw, err = readXLSX(path)
	} else {
		raw, err = readCSVFile(ctx, path)
	}
	if err != nil {
		return Table{}, err
	}

	var t Table
	for _, row := range raw {
		if blank(row) {
			continue
		}
		if t.Header == nil {
			t.Header = row
			continue
		}
		t.Rows = append(t.Rows, fit(row, len(t.Header)))
	}
	if t.Header == nil {
		return Table{}, eris.Errorf("table: %s has no header row", path)
	}
	return t, nil
}

func readCSVFile(ctx context.Context, path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "csv: open %s", path)
	}
	defer f.Close() //nolint:errcheck
	return ReadCSV(ctx, f)
}

// ReadCSV reads every record of r, header included. A leading UTF-8
// byte-order mark, as spreadsheet exports write, is dropped; quoting is read
// leniently and cells are trimmed.
func ReadCSV(ctx context.Context, r io.Reader) ([][]string, error) {
	reader := csv.NewReader(skipBOM(r))
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	var rows [][]string
	for {
		if err := ctx.Err(); err != nil {
			return nil, eris.Wrap(err, "csv: context cancelled")
		}
		record, err := reader.Read()
		if err == io.EOF {
			return rows, nil
		}
		if err != nil {
			return nil, eris.Wrap(err, "csv: read row")
		}
		for i, field := range record {
			record[i] = strings.TrimSpace(field)
		}
		rows = append(rows, record)
	}
}

func skipBOM(r io.Reader) io.Reader {
	br := bufio.NewReader(r)
	if b, err := br.Peek(len(utf8BOM)); err == nil && string(b) == utf8BOM {
		_, _ = br.Discard(len(utf8BOM))
	}
	return br
}

// readXLSX reads the first sheet of an XLSX workbook.
func readXLSX(path string) ([][]string, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "xlsx: open %s", path)
	}
	if len(f.Sheets) == 0 {
		return nil, eris.Errorf("xlsx: %s has no sheets", path)
	}

	var rows [][]string
	for _, row := range f.Sheets[0].Rows {
		if row == nil {
			continue
		}
		cells := make([]string, len(row.Cells))
		for j, cell := range row.Cells {
			cells[j] = strings.TrimSpace(cell.String())
		}
		rows = append(rows, cells)
	}
	return rows, nil
}

func fit(row []string, width int) []string {
	switch {
	case len(row) == width:
		return row
	case len(row) > width:
		return row[:width]
	default:
		out := make([]string, width)
		copy(out, row)
		return out
	}
}

func blank(cells []string) bool {
	for _, c := range cells {
		if c != "" {
			return false
		}
	}
	return true
}
