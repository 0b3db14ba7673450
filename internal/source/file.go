package source

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/lead-bridge/internal/fetcher"
	"github.com/sells-group/lead-bridge/internal/model"
)

// File reads entities back from a CSV or XLSX file, typically an earlier
// run's output. Columns are matched by header name; unknown columns are kept
// as attributes so they survive a re-export.
type File struct {
	path string
}

// NewFile creates a file source. The format follows the extension.
func NewFile(path string) *File { return &File{path: path} }

func (f *File) Name() string { return KindFile }

// headerAliases maps normalised header names onto entity fields.
var headerAliases = map[string]string{
	"name":          "name",
	"company":       "name",
	"company_name":  "name",
	"brand":         "name",
	"brand_name":    "name",
	"clinic_name":   "name",
	"agency_name":   "name",
	"dealer":        "name",
	"website":       "website",
	"domain":        "website",
	"address":       "address",
	"street":        "address",
	"city":          "city",
	"state":         "state",
	"zip":           "zip",
	"zip_code":      "zip",
	"phone":         "phone",
	"email":         "email",
	"contact_name":  "contact_name",
	"owner_name":    "contact_name",
	"contact_title": "contact_title",
	"owner_title":   "contact_title",
	"contact_email": "contact_email",
	"owner_email":   "contact_email",
	"email_source":  "email_source",
	"org_id":        "org_id",
	"apollo_org_id": "org_id",
}

// NormalizeHeader lower-cases a header and joins its words with "_".
func NormalizeHeader(h string) string {
	return strings.Join(strings.Fields(strings.ToLower(strings.TrimSpace(h))), "_")
}

func (f *File) Load(ctx context.Context) ([]*model.Entity, error) {
	header, rows, err := f.read(ctx)
	if err != nil {
		return nil, err
	}

	fields := make([]string, len(header))
	hasName := false
	for i, h := range header {
		key := NormalizeHeader(h)
		if target, ok := headerAliases[key]; ok {
			fields[i] = target
			hasName = hasName || target == "name"
		} else {
			fields[i] = "attr:" + key
		}
	}
	if !hasName {
		return nil, eris.Errorf("file: %s has no name column", f.path)
	}

	ents := make([]*model.Entity, 0, len(rows))
	for _, row := range rows {
		ent := &model.Entity{Attrs: map[string]string{}}
		for i, v := range row {
			if i >= len(fields) {
				break
			}
			assign(ent, fields[i], strings.TrimSpace(v))
		}
		if ent.Name == "" {
			continue
		}
		ents = append(ents, ent)
	}

	zap.L().Info("file: loaded", zap.String("path", f.path), zap.Int("entities", len(ents)))
	return ents, nil
}

func (f *File) read(ctx context.Context) ([]string, [][]string, error) {
	t, err := fetcher.ReadTable(ctx, f.path)
	if err != nil {
		return nil, nil, eris.Wrap(err, "file")
	}
	return t.Header, t.Rows, nil
}

func assign(ent *model.Entity, field, v string) {
	if v == "" {
		return
	}
	switch field {
	case "name":
		if ent.Name == "" {
			ent.Name = v
		}
	case "website":
		ent.Domain = bareHost(v)
	case "address":
		ent.Location.Address = v
	case "city":
		ent.Location.City = v
	case "state":
		ent.Location.State = v
	case "zip":
		ent.Location.Zip = v
	case "phone":
		ent.Phone = v
	case "email":
		ent.Email = v
	case "contact_name":
		ent.Contact.Name = v
	case "contact_title":
		ent.Contact.Title = v
	case "contact_email":
		ent.Contact.Email = v
	case "email_source":
		ent.Contact.Source = v
	case "org_id":
		ent.OrgID = v
	default:
		ent.SetAttr(strings.TrimPrefix(field, "attr:"), v)
	}
}

// bareHost strips scheme, "www." and path from a website cell.
func bareHost(v string) string {
	v = strings.ToLower(strings.TrimSpace(v))
	if i := strings.Index(v, "://"); i >= 0 {
		v = v[i+3:]
	}
	if i := strings.IndexAny(v, "/?#"); i >= 0 {
		v = v[:i]
	}
	return strings.TrimPrefix(v, "www.")
}
