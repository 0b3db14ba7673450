// Package export writes enriched entities to CSV or XLSX and prepares
// curated pitch lists.
package export

import (
	"cmp"
	"encoding/csv"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/lead-bridge/internal/model"
)

// Column is one output column: its header and the entity field it shows.
// Field is one of name, website, contact_name, contact_title, contact_email,
// email_source, address, city, state, zip, phone, email, org_id or
// attr:<key>.
type Column struct {
	Header string `yaml:"header" json:"header"`
	Field  string `yaml:"field" json:"field"`
}

// DefaultColumns is the layout used when a profile names none.
var DefaultColumns = []Column{
	{Header: "company", Field: "name"},
	{Header: "website", Field: "website"},
	{Header: "contact_name", Field: "contact_name"},
	{Header: "contact_title", Field: "contact_title"},
	{Header: "contact_email", Field: "contact_email"},
	{Header: "email_source", Field: "email_source"},
}

var knownFields = map[string]bool{
	"name": true, "website": true, "contact_name": true, "contact_title": true,
	"contact_email": true, "email_source": true, "address": true, "city": true,
	"state": true, "zip": true, "phone": true, "email": true, "org_id": true,
}

// ValidateColumns rejects unknown fields and blank headers.
func ValidateColumns(cols []Column) error {
	for i, c := range cols {
		if strings.TrimSpace(c.Header) == "" {
			return eris.Errorf("export: column %d has no header", i)
		}
		if knownFields[c.Field] {
			continue
		}
		if key, ok := strings.CutPrefix(c.Field, "attr:"); ok && key != "" {
			continue
		}
		return eris.Errorf("export: column %q has unknown field %q", c.Header, c.Field)
	}
	return nil
}

// Value resolves a field on an entity.
func Value(e *model.Entity, field string) string {
	switch field {
	case "name":
		return e.Name
	case "website":
		return e.Domain
	case "contact_name":
		return e.Contact.Name
	case "contact_title":
		return e.Contact.Title
	case "contact_email":
		return e.Contact.Email
	case "email_source":
		if e.Contact.Source == "" {
			return model.SourceNotFound
		}
		return e.Contact.Source
	case "address":
		return e.Location.Address
	case "city":
		return e.Location.City
	case "state":
		return e.Location.State
	case "zip":
		return e.Location.Zip
	case "phone":
		return e.Phone
	case "email":
		return e.Email
	case "org_id":
		return e.OrgID
	}
	if key, ok := strings.CutPrefix(field, "attr:"); ok {
		return e.Attr(key)
	}
	return ""
}

var lineBreaks = strings.NewReplacer("\r\n", " ", "\r", " ", "\n", " ")

// clean collapses embedded line breaks so each entity stays on one line.
func clean(s string) string {
	if !strings.ContainsAny(s, "\r\n") {
		return s
	}
	return strings.Join(strings.Fields(lineBreaks.Replace(s)), " ")
}

// Rows renders entities as a header plus one row per entity, stably sorted
// by name.
func Rows(cols []Column, entities []*model.Entity) (header []string, rows [][]string) {
	if len(cols) == 0 {
		cols = DefaultColumns
	}
	header = make([]string, len(cols))
	for i, c := range cols {
		header[i] = c.Header
	}

	sorted := slices.Clone(entities)
	slices.SortStableFunc(sorted, func(a, b *model.Entity) int {
		return cmp.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name))
	})

	rows = make([][]string, 0, len(sorted))
	for _, e := range sorted {
		row := make([]string, len(cols))
		for i, c := range cols {
			row[i] = clean(Value(e, c.Field))
		}
		rows = append(rows, row)
	}
	return header, rows
}

// Write exports entities to path, as XLSX when the extension is .xlsx and
// CSV otherwise.
func Write(path string, cols []Column, entities []*model.Entity) error {
	header, rows := Rows(cols, entities)
	return WriteTable(path, Table{Header: header, Rows: rows})
}

// WriteCSV exports entities as CSV.
func WriteCSV(path string, cols []Column, entities []*model.Entity) error {
	header, rows := Rows(cols, entities)
	return writeCSV(path, Table{Header: header, Rows: rows})
}

// WriteXLSX exports entities as a single-sheet workbook.
func WriteXLSX(path string, cols []Column, entities []*model.Entity) error {
	header, rows := Rows(cols, entities)
	return writeXLSX(path, Table{Header: header, Rows: rows})
}

// WriteTable writes a table to path, choosing the format by extension.
func WriteTable(path string, t Table) error {
	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		return writeXLSX(path, t)
	}
	return writeCSV(path, t)
}

func writeCSV(path string, t Table) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "export: create %s", path)
	}

	w := csv.NewWriter(f)
	if err := w.Write(t.Header); err != nil {
		_ = f.Close()
		return eris.Wrap(err, "export: write header")
	}
	for _, row := range t.Rows {
		cleaned := make([]string, len(row))
		for i, v := range row {
			cleaned[i] = clean(v)
		}
		if err := w.Write(cleaned); err != nil {
			_ = f.Close()
			return eris.Wrap(err, "export: write row")
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		_ = f.Close()
		return eris.Wrap(err, "export: flush csv")
	}
	if err := f.Close(); err != nil {
		return eris.Wrapf(err, "export: close %s", path)
	}
	return nil
}

func writeXLSX(path string, t Table) error {
	file := xlsx.NewFile()
	sheet, err := file.AddSheet("Leads")
	if err != nil {
		return eris.Wrap(err, "export: add sheet")
	}
	addRow := func(cells []string) {
		row := sheet.AddRow()
		for _, v := range cells {
			row.AddCell().SetString(clean(v))
		}
	}
	addRow(t.Header)
	for _, r := range t.Rows {
		addRow(r)
	}
	if err := file.Save(path); err != nil {
		return eris.Wrapf(err, "export: save %s", path)
	}
	return nil
}
