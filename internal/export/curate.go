package export

import (
	"context"
	"math/rand/v2"
	"slices"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/lead-bridge/internal/fetcher"
)

// Table is a header plus rows, as read from or written to a file.
type Table = fetcher.Table

// ReadTable loads a CSV or XLSX file.
func ReadTable(ctx context.Context, path string) (Table, error) {
	t, err := fetcher.ReadTable(ctx, path)
	if err != nil {
		return Table{}, eris.Wrap(err, "export: read")
	}
	return t, nil
}

// RolePrefixes are shared-mailbox local parts a pitch should not go to.
var RolePrefixes = []string{
	"info@", "dispatch@", "office@", "admin@",
	"sales@", "contact@", "safety@", "billing@",
}

// PersonalDomains are consumer mailbox providers.
var PersonalDomains = []string{
	"@gmail.com", "@yahoo.com", "@hotmail.com", "@aol.com",
	"@outlook.com", "@icloud.com", "@msn.com", "@live.com",
}

// IsRoleBased reports whether an email is a shared role mailbox.
func IsRoleBased(email string) bool {
	e := strings.ToLower(strings.TrimSpace(email))
	for _, p := range RolePrefixes {
		if strings.HasPrefix(e, p) {
			return true
		}
	}
	return false
}

// IsPersonal reports whether an email is at a consumer provider.
func IsPersonal(email string) bool {
	e := strings.ToLower(strings.TrimSpace(email))
	for _, d := range PersonalDomains {
		if strings.HasSuffix(e, d) {
			return true
		}
	}
	return false
}

// CurateOptions tunes Curate.
type CurateOptions struct {
	EmailColumn string
	Sample      int
	Seed        uint64
	DropColumns []string
}

// DefaultCurateOptions mirrors the trucking pitch list.
func DefaultCurateOptions() CurateOptions {
	return CurateOptions{
		EmailColumn: "email",
		Sample:      30,
		Seed:        42,
		DropColumns: []string{"owner_name", "owner_title", "owner_email", "apollo_org_id"},
	}
}

// CurateStats counts each filter's removals.
type CurateStats struct {
	Total     int `json:"total"`
	NoEmail   int `json:"no_email"`
	RoleBased int `json:"role_based"`
	Personal  int `json:"personal"`
	Qualified int `json:"qualified"`
	Sampled   int `json:"sampled"`
}

// ErrNoQualifiedRows is returned by Curate when no row has a direct business
// email.
var ErrNoQualifiedRows = eris.New("export: no rows qualified for curation")

// Curate keeps rows with a direct business email, samples them with a fixed
// seed and drops the listed columns. The same input and seed always yield
// the same output. A table with no qualifying row yields ErrNoQualifiedRows
// and the counts.
func Curate(t Table, opts CurateOptions) (Table, CurateStats, error) {
	if opts.EmailColumn == "" {
		opts.EmailColumn = "email"
	}
	col := t.Index(opts.EmailColumn)
	if col < 0 {
		return Table{}, CurateStats{}, eris.Errorf("export: no %q column to curate on", opts.EmailColumn)
	}

	st := CurateStats{Total: len(t.Rows)}
	var kept [][]string
	for _, row := range t.Rows {
		email := ""
		if col < len(row) {
			email = strings.TrimSpace(row[col])
		}
		switch {
		case email == "":
			st.NoEmail++
		case IsRoleBased(email):
			st.RoleBased++
		case IsPersonal(email):
			st.Personal++
		default:
			kept = append(kept, row)
		}
	}
	st.Qualified = len(kept)
	if st.Qualified == 0 {
		zap.L().Error("export: nothing to curate",
			zap.Int("total", st.Total),
			zap.Int("no_email", st.NoEmail),
			zap.Int("role_based", st.RoleBased),
			zap.Int("personal", st.Personal),
		)
		return Table{}, st, ErrNoQualifiedRows
	}

	if opts.Sample > 0 && len(kept) > opts.Sample {
		r := rand.New(rand.NewPCG(opts.Seed, opts.Seed))
		idx := r.Perm(len(kept))[:opts.Sample]
		slices.Sort(idx)
		sample := make([][]string, 0, opts.Sample)
		for _, i := range idx {
			sample = append(sample, kept[i])
		}
		kept = sample
	}
	st.Sampled = len(kept)

	out := dropColumns(Table{Header: t.Header, Rows: kept}, opts.DropColumns)

	zap.L().Info("export: curated",
		zap.Int("total", st.Total),
		zap.Int("no_email", st.NoEmail),
		zap.Int("role_based", st.RoleBased),
		zap.Int("personal", st.Personal),
		zap.Int("sampled", st.Sampled),
	)
	return out, st, nil
}

func dropColumns(t Table, drop []string) Table {
	var keep []int
	for i, h := range t.Header {
		if !slices.ContainsFunc(drop, func(d string) bool { return strings.EqualFold(d, strings.TrimSpace(h)) }) {
			keep = append(keep, i)
		}
	}
	if len(keep) == len(t.Header) {
		return t
	}

	pick := func(row []string) []string {
		out := make([]string, 0, len(keep))
		for _, i := range keep {
			if i < len(row) {
				out = append(out, row[i])
			} else {
				out = append(out, "")
			}
		}
		return out
	}
	res := Table{Header: pick(t.Header)}
	for _, row := range t.Rows {
		res.Rows = append(res.Rows, pick(row))
	}
	return res
}
