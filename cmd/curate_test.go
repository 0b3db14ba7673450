package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/lead-bridge/internal/export"
)

func writeInput(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "leads.csv")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestCurateFile_WritesQualifiedRows(t *testing.T) {
	in := writeInput(t, "company,email\nAcme,ann@acme.com\nBeta,info@beta.com\n")
	out := filepath.Join(t.TempDir(), "pitch.csv")

	stats, err := curateFile(context.Background(), in, out, export.CurateOptions{Sample: 30, Seed: 42})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Qualified)

	tbl, err := export.ReadTable(context.Background(), out)
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"Acme", "ann@acme.com"}}, tbl.Rows)
	assert.NoFileExists(t, out+".lock")
}

func TestCurateFile_NothingQualifiedWritesNothing(t *testing.T) {
	in := writeInput(t, "company,email\nMid Freight,dispatch@midfreight.com\nSolo,solo@gmail.com\n")
	out := filepath.Join(t.TempDir(), "pitch.csv")

	stats, err := curateFile(context.Background(), in, out, export.DefaultCurateOptions())
	require.ErrorIs(t, err, export.ErrNoQualifiedRows)
	assert.Equal(t, 2, stats.Total)
	assert.Zero(t, stats.Qualified)
	assert.NoFileExists(t, out)
}

func TestFormatCurateStats(t *testing.T) {
	var buf bytes.Buffer
	formatCurateStats(&buf, "pitch.csv", export.CurateStats{Total: 4, NoEmail: 1, RoleBased: 1, Qualified: 2, Sampled: 2})
	assert.Contains(t, buf.String(), "Qualified:")
	assert.Contains(t, buf.String(), "2 -> pitch.csv")
}
