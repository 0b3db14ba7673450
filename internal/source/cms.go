package source

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/lead-bridge/internal/fetcher"
	"github.com/sells-group/lead-bridge/internal/model"
)

const (
	defaultCMSURL  = "https://data.cms.gov/provider-data/api/1/datastore/query/6jpm-sxkc/0"
	defaultCMSPage = 1500
)

// CMS reads the provider-data datastore and keeps one state's providers.
type CMS struct {
	f        fetcher.Fetcher
	baseURL  string
	state    string
	pageSize int
}

// NewCMS creates a CMS datastore source.
func NewCMS(f fetcher.Fetcher, cfg Config) *CMS {
	c := &CMS{
		f:        f,
		baseURL:  cfg.BaseURL,
		state:    strings.ToUpper(strings.TrimSpace(cfg.State)),
		pageSize: pageSize(cfg, defaultCMSPage),
	}
	if c.baseURL == "" {
		c.baseURL = defaultCMSURL
	}
	return c
}

func (c *CMS) Name() string { return KindCMS }

type cmsPage struct {
	Results []map[string]any `json:"results"`
}

func (c *CMS) Load(ctx context.Context) ([]*model.Entity, error) {
	log := zap.L().With(zap.String("source", KindCMS), zap.String("state", c.state))

	var (
		ents    []*model.Entity
		fetched int
	)
	for offset := 0; ; offset += c.pageSize {
		q := url.Values{
			"limit":  {strconv.Itoa(c.pageSize)},
			"offset": {strconv.Itoa(offset)},
		}

		var page cmsPage
		if err := c.f.GetJSON(ctx, c.baseURL, &page, fetcher.WithQuery(q)); err != nil {
			if fetched == 0 || ctx.Err() != nil {
				return nil, eris.Wrapf(err, "cms: fetch page at offset %d", offset)
			}
			log.Warn("cms: page failed, keeping partial results", zap.Int("offset", offset), zap.Error(err))
			break
		}
		fetched += len(page.Results)

		for _, row := range page.Results {
			if !strings.EqualFold(field(row, "state"), c.state) {
				continue
			}
			name := field(row, "provider_name")
			if name == "" {
				continue
			}
			ent := model.NewEntity(name)
			ent.Location = model.Location{
				Address: field(row, "address"),
				City:    field(row, "citytown"),
				State:   c.state,
				Zip:     zip5(field(row, "zip_code")),
			}
			ent.Phone = FormatPhone(field(row, "telephone_number"))
			ent.SetAttr("ccn", field(row, "cms_certification_number_ccn"))
			ents = append(ents, ent)
		}

		if len(page.Results) < c.pageSize {
			break
		}
	}

	log.Info("cms: loaded", zap.Int("fetched", fetched), zap.Int("entities", len(ents)))
	return ents, nil
}

// field reads a datastore column as trimmed text.
func field(row map[string]any, key string) string {
	v, ok := row[key]
	if !ok || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return strings.TrimSpace(fmt.Sprint(t))
	}
}
