package export

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsRoleBased(t *testing.T) {
	assert.True(t, IsRoleBased("Dispatch@fleet.com"))
	assert.True(t, IsRoleBased(" info@x.com"))
	assert.False(t, IsRoleBased("jane@info.com"))
}

func TestIsPersonal(t *testing.T) {
	assert.True(t, IsPersonal("joe@GMAIL.com"))
	assert.False(t, IsPersonal("joe@gmail.company.com"))
}

func TestCurate_Filters(t *testing.T) {
	tbl := Table{
		Header: []string{"company", "Email", "owner_name"},
		Rows: [][]string{
			{"A", "", "x"},
			{"B", "info@b.com", "x"},
			{"C", "c@gmail.com", "x"},
			{"D", "dan@dfreight.com", "x"},
			{"E"},
		},
	}
	out, st, err := Curate(tbl, DefaultCurateOptions())
	require.NoError(t, err)

	assert.Equal(t, CurateStats{Total: 5, NoEmail: 2, RoleBased: 1, Personal: 1, Qualified: 1, Sampled: 1}, st)
	assert.Equal(t, []string{"company", "Email"}, out.Header)
	assert.Equal(t, [][]string{{"D", "dan@dfreight.com"}}, out.Rows)
}

func TestCurate_SampleIsDeterministic(t *testing.T) {
	tbl := Table{Header: []string{"company", "email"}}
	for i := range 100 {
		tbl.Rows = append(tbl.Rows, []string{"Org " + strconv.Itoa(i), "owner" + strconv.Itoa(i) + "@fleet" + strconv.Itoa(i) + ".com"})
	}
	opts := CurateOptions{Sample: 30, Seed: 42}

	a, st, err := Curate(tbl, opts)
	require.NoError(t, err)
	b, _, err := Curate(tbl, opts)
	require.NoError(t, err)

	assert.Equal(t, 30, st.Sampled)
	assert.Len(t, a.Rows, 30)
	assert.Equal(t, a.Rows, b.Rows)

	opts.Seed = 7
	c, _, err := Curate(tbl, opts)
	require.NoError(t, err)
	assert.NotEqual(t, a.Rows, c.Rows)
}

func TestCurate_NeverKeepsRoleOrPersonal(t *testing.T) {
	tbl := Table{Header: []string{"email"}}
	for i := range 60 {
		var e string
		switch i % 3 {
		case 0:
			e = "sales@co" + strconv.Itoa(i) + ".com"
		case 1:
			e = "p" + strconv.Itoa(i) + "@yahoo.com"
		default:
			e = "owner@co" + strconv.Itoa(i) + ".com"
		}
		tbl.Rows = append(tbl.Rows, []string{e})
	}
	out, _, err := Curate(tbl, CurateOptions{Sample: 10, Seed: 1})
	require.NoError(t, err)
	require.Len(t, out.Rows, 10)
	for _, r := range out.Rows {
		assert.False(t, IsRoleBased(r[0]))
		assert.False(t, IsPersonal(r[0]))
	}
}

func TestCurate_MissingColumn(t *testing.T) {
	_, _, err := Curate(Table{Header: []string{"company"}}, CurateOptions{})
	require.Error(t, err)
}

func TestCurate_NothingQualified(t *testing.T) {
	tbl := Table{
		Header: []string{"company", "email"},
		Rows: [][]string{
			{"A", "dispatch@a.com"},
			{"B", "b@hotmail.com"},
			{"C", ""},
		},
	}
	out, st, err := Curate(tbl, DefaultCurateOptions())
	require.ErrorIs(t, err, ErrNoQualifiedRows)
	assert.Empty(t, out.Header)
	assert.Equal(t, CurateStats{Total: 3, NoEmail: 1, RoleBased: 1, Personal: 1}, st)
}

func TestReadTable_CSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "in.csv")
	require.NoError(t, os.WriteFile(path, []byte("company,email\nAcme,a@acme.com\n"), 0o644))

	tbl, err := ReadTable(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, 1, tbl.Index("EMAIL"))
	assert.Equal(t, -1, tbl.Index("phone"))
	assert.Equal(t, [][]string{{"Acme", "a@acme.com"}}, tbl.Rows)

	out := filepath.Join(t.TempDir(), "out.csv")
	require.NoError(t, WriteTable(out, tbl))
	again, err := ReadTable(context.Background(), out)
	require.NoError(t, err)
	assert.Equal(t, tbl, again)
}
