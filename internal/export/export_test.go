package export

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/lead-bridge/internal/model"
)

func entity(name, domain, email, source string) *model.Entity {
	e := model.NewEntity(name)
	e.Domain = domain
	e.Contact = model.Contact{Email: email, Source: source}
	return e
}

func TestRows_SortedAndNotFoundDefault(t *testing.T) {
	ents := []*model.Entity{
		entity("beta", "beta.com", "", ""),
		entity("Acme", "acme.com", "jane@acme.com", "hunter_tier0"),
		entity("acme", "acme.io", "", model.SourceNotFound),
	}
	header, rows := Rows(nil, ents)
	assert.Equal(t, []string{"company", "website", "contact_name", "contact_title", "contact_email", "email_source"}, header)
	require.Len(t, rows, 3)

	// Stable: "Acme" and "acme" keep input order.
	assert.Equal(t, "Acme", rows[0][0])
	assert.Equal(t, "acme", rows[1][0])
	assert.Equal(t, "beta", rows[2][0])
	assert.Equal(t, "not_found", rows[2][5])
	assert.Equal(t, "Acme", ents[1].Name, "input slice is not reordered")
}

func TestValue_Fields(t *testing.T) {
	e := model.NewEntity("Mid Freight")
	e.Location = model.Location{Address: "1 Main", City: "Troy", State: "MI", Zip: "48083"}
	e.Phone = "(248) 555-0100"
	e.Email = "ops@midfreight.com"
	e.OrgID = "org1"
	e.SetAttr("dot_number", "2")

	assert.Equal(t, "Troy", Value(e, "city"))
	assert.Equal(t, "48083", Value(e, "zip"))
	assert.Equal(t, "ops@midfreight.com", Value(e, "email"))
	assert.Equal(t, "org1", Value(e, "org_id"))
	assert.Equal(t, "2", Value(e, "attr:dot_number"))
	assert.Empty(t, Value(e, "attr:missing"))
	assert.Empty(t, Value(e, "bogus"))
}

func TestValidateColumns(t *testing.T) {
	require.NoError(t, ValidateColumns(DefaultColumns))
	require.NoError(t, ValidateColumns([]Column{{Header: "usdot_number", Field: "attr:dot_number"}}))
	assert.Error(t, ValidateColumns([]Column{{Header: "x", Field: "attr:"}}))
	assert.Error(t, ValidateColumns([]Column{{Header: "x", Field: "nope"}}))
	assert.Error(t, ValidateColumns([]Column{{Header: " ", Field: "name"}}))
}

func TestWriteCSV_CollapsesNewlines(t *testing.T) {
	e := entity("Acme", "acme.com", "jane@acme.com", "hunter_tier0")
	e.Contact.Title = "Owner\r\nand\nFounder"
	path := filepath.Join(t.TempDir(), "out.csv")

	require.NoError(t, WriteCSV(path, nil, []*model.Entity{e}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[1], "Owner and Founder")
}

func TestWriteCSV_OneRowPerEntity(t *testing.T) {
	var ents []*model.Entity
	for i := range 25 {
		ents = append(ents, entity("Org "+strconv.Itoa(i), "", "", ""))
	}
	path := filepath.Join(t.TempDir(), "out.csv")
	require.NoError(t, WriteCSV(path, nil, ents))

	tbl, err := ReadTable(context.Background(), path)
	require.NoError(t, err)
	assert.Len(t, tbl.Header, 6)
	assert.Len(t, tbl.Rows, 25)
}

func TestWrite_XLSXRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.xlsx")
	cols := []Column{{Header: "Company", Field: "name"}, {Header: "Email Source", Field: "email_source"}}
	require.NoError(t, Write(path, cols, []*model.Entity{entity("Beta", "", "", ""), entity("Acme", "", "", "apollo_owner")}))

	tbl, err := ReadTable(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, []string{"Company", "Email Source"}, tbl.Header)
	require.Len(t, tbl.Rows, 2)
	assert.Equal(t, []string{"Acme", "apollo_owner"}, tbl.Rows[0])
	assert.Equal(t, []string{"Beta", "not_found"}, tbl.Rows[1])
}

func TestWriteXLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.xlsx")
	require.NoError(t, WriteXLSX(path, nil, []*model.Entity{entity("Acme", "acme.com", "", "")}))
	tbl, err := ReadTable(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, tbl.Rows, 1)
	assert.Equal(t, "acme.com", tbl.Rows[0][1])
}

func TestMeasure(t *testing.T) {
	c := Measure([]*model.Entity{
		entity("a", "a.com", "x@a.com", "hunter_tier0"),
		entity("b", "b.com", "", model.SourceNotFound),
		entity("c", "", "", ""),
		entity("d", "d.com", "y@d.com", "fmcsa_registry"),
	})
	assert.Equal(t, 4, c.Total)
	assert.Equal(t, 3, c.WithWebsite)
	assert.Equal(t, 2, c.WithEmail)
	assert.InDelta(t, 75.0, c.WebsitePct(), 0.001)
	assert.InDelta(t, 50.0, c.EmailPct(), 0.001)
	assert.Equal(t, map[string]int{"hunter_tier0": 1, "not_found": 2, "fmcsa_registry": 1}, c.BySource)

	assert.Zero(t, Measure(nil).EmailPct())
}
