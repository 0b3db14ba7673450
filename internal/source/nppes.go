package source

import (
	"context"
	"encoding/json"
	"net/url"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/lead-bridge/internal/fetcher"
	"github.com/sells-group/lead-bridge/internal/model"
)

const (
	defaultNPPESURL    = "https://npiregistry.cms.hhs.gov/api/"
	defaultNPPESPage   = 200
	defaultNPPESTarget = 20
)

// NPPES pages through the NPI registry for organizations with a taxonomy.
type NPPES struct {
	f          fetcher.Fetcher
	baseURL    string
	taxonomy   string
	entityType string
	target     int
	pageSize   int
}

// NewNPPES creates an NPI registry source.
func NewNPPES(f fetcher.Fetcher, cfg Config) *NPPES {
	n := &NPPES{
		f:          f,
		baseURL:    cfg.BaseURL,
		taxonomy:   cfg.Taxonomy,
		entityType: cfg.EntityType,
		target:     cfg.Target,
		pageSize:   pageSize(cfg, defaultNPPESPage),
	}
	if n.baseURL == "" {
		n.baseURL = defaultNPPESURL
	}
	if n.entityType == "" {
		n.entityType = "2"
	}
	if n.target <= 0 {
		n.target = defaultNPPESTarget
	}
	return n
}

func (n *NPPES) Name() string { return KindNPPES }

type nppesResponse struct {
	ResultCount int           `json:"result_count"`
	Results     []nppesResult `json:"results"`
}

type nppesResult struct {
	Number json.Number `json:"number"`
	Basic  struct {
		OrganizationName string `json:"organization_name"`
	} `json:"basic"`
	Addresses []struct {
		Purpose    string `json:"address_purpose"`
		Address1   string `json:"address_1"`
		City       string `json:"city"`
		State      string `json:"state"`
		PostalCode string `json:"postal_code"`
		Telephone  string `json:"telephone_number"`
	} `json:"addresses"`
}

func (n *NPPES) Load(ctx context.Context) ([]*model.Entity, error) {
	log := zap.L().With(zap.String("source", KindNPPES), zap.String("taxonomy", n.taxonomy))

	var ents []*model.Entity
	for skip := 0; len(ents) < n.target; skip += n.pageSize {
		q := url.Values{
			"version":              {"2.1"},
			"taxonomy_description": {n.taxonomy},
			"entity_type":          {n.entityType},
			"limit":                {strconv.Itoa(n.pageSize)},
			"skip":                 {strconv.Itoa(skip)},
		}

		var page nppesResponse
		if err := n.f.GetJSON(ctx, n.baseURL, &page, fetcher.WithQuery(q)); err != nil {
			if len(ents) == 0 || ctx.Err() != nil {
				return nil, eris.Wrapf(err, "nppes: fetch page at skip %d", skip)
			}
			log.Warn("nppes: page failed, keeping partial results", zap.Int("skip", skip), zap.Error(err))
			break
		}
		log.Debug("nppes: page", zap.Int("skip", skip), zap.Int("results", len(page.Results)))

		for _, r := range page.Results {
			if len(ents) >= n.target {
				break
			}
			name := strings.TrimSpace(r.Basic.OrganizationName)
			if name == "" || len(r.Addresses) == 0 {
				continue
			}
			addr := r.Addresses[0]
			for _, a := range r.Addresses {
				if strings.EqualFold(a.Purpose, "LOCATION") {
					addr = a
					break
				}
			}
			ent := model.NewEntity(name)
			ent.Location = model.Location{
				Address: strings.TrimSpace(addr.Address1),
				City:    strings.TrimSpace(addr.City),
				State:   strings.TrimSpace(addr.State),
				Zip:     zip5(addr.PostalCode),
			}
			ent.Phone = FormatPhone(addr.Telephone)
			ent.SetAttr("npi", string(r.Number))
			ents = append(ents, ent)
		}

		if len(page.Results) < n.pageSize {
			break
		}
	}

	log.Info("nppes: loaded", zap.Int("entities", len(ents)))
	return ents, nil
}
