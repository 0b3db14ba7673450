package source

import (
	"context"
	"net/url"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/lead-bridge/internal/fetcher"
	"github.com/sells-group/lead-bridge/internal/model"
)

const (
	defaultFMCSAURL  = "https://data.transportation.gov/resource/kjg3-diqy.json"
	defaultFMCSAPage = 1000
)

// FMCSA pages the Socrata carrier census for one or more states and keeps
// carriers whose fleet size is inside a power-unit band.
type FMCSA struct {
	f        fetcher.Fetcher
	baseURL  string
	token    string
	states   []string
	minUnits int
	maxUnits int
	pageSize int
}

// NewFMCSA creates a carrier census source.
func NewFMCSA(f fetcher.Fetcher, cfg Config, appToken string) *FMCSA {
	states := cfg.States
	if len(states) == 0 && cfg.State != "" {
		states = []string{cfg.State}
	}
	s := &FMCSA{
		f:        f,
		baseURL:  cfg.BaseURL,
		token:    appToken,
		minUnits: cfg.MinPowerUnits,
		maxUnits: cfg.MaxPowerUnits,
		pageSize: pageSize(cfg, defaultFMCSAPage),
	}
	for _, st := range states {
		st = strings.ToUpper(strings.TrimSpace(strings.ReplaceAll(st, "'", "")))
		if st != "" {
			s.states = append(s.states, st)
		}
	}
	if s.baseURL == "" {
		s.baseURL = defaultFMCSAURL
	}
	if s.minUnits <= 0 {
		s.minUnits = 5
	}
	if s.maxUnits <= 0 {
		s.maxUnits = 50
	}
	return s
}

func (s *FMCSA) Name() string { return KindFMCSA }

type carrierRow struct {
	DOTNumber  string `json:"dot_number"`
	LegalName  string `json:"legal_name"`
	DBAName    string `json:"dba_name"`
	PowerUnits string `json:"nbr_power_unit"`
	Telephone  string `json:"telephone"`
	Email      string `json:"email_address"`
	Street     string `json:"phy_street"`
	City       string `json:"phy_city"`
	State      string `json:"phy_state"`
	Zip        string `json:"phy_zip"`
}

func (s *FMCSA) Load(ctx context.Context) ([]*model.Entity, error) {
	log := zap.L().With(zap.String("source", KindFMCSA))

	var (
		ents    []*model.Entity
		seen    = map[string]bool{}
		fetched int
	)
	for _, state := range s.states {
		rows, err := s.fetchState(ctx, state)
		if err != nil {
			if ctx.Err() != nil {
				return nil, err
			}
			log.Warn("fmcsa: state failed", zap.String("state", state), zap.Error(err))
			continue
		}
		fetched += len(rows)

		for _, r := range rows {
			dot := strings.TrimSpace(r.DOTNumber)
			name := strings.TrimSpace(r.LegalName)
			if dot == "" || name == "" || seen[dot] {
				continue
			}
			units, err := strconv.Atoi(strings.TrimSpace(r.PowerUnits))
			if err != nil || units < s.minUnits || units > s.maxUnits {
				continue
			}
			seen[dot] = true

			ent := model.NewEntity(name)
			ent.Location = model.Location{
				Address: strings.TrimSpace(r.Street),
				City:    strings.TrimSpace(r.City),
				State:   strings.TrimSpace(r.State),
				Zip:     zip5(r.Zip),
			}
			ent.Phone = FormatPhone(r.Telephone)
			ent.Email = strings.ToLower(strings.TrimSpace(r.Email))
			ent.SetAttr("dot_number", dot)
			ent.SetAttr("dba_name", r.DBAName)
			ent.SetAttr("power_units", strconv.Itoa(units))
			ents = append(ents, ent)
		}
	}

	if len(ents) == 0 && fetched == 0 && len(s.states) > 0 {
		return nil, eris.Errorf("fmcsa: no carriers fetched for %v", s.states)
	}
	log.Info("fmcsa: loaded",
		zap.Strings("states", s.states),
		zap.Int("fetched", fetched),
		zap.Int("entities", len(ents)),
	)
	return ents, nil
}

func (s *FMCSA) fetchState(ctx context.Context, state string) ([]carrierRow, error) {
	var all []carrierRow
	for offset := 0; ; offset += s.pageSize {
		q := url.Values{
			"$where":  {"phy_state='" + state + "'"},
			"$limit":  {strconv.Itoa(s.pageSize)},
			"$offset": {strconv.Itoa(offset)},
			"$order":  {"dot_number ASC"},
		}
		body, err := s.f.Download(ctx, s.baseURL,
			fetcher.WithQuery(q),
			fetcher.WithHeader("X-App-Token", s.token),
			fetcher.WithHeader("Accept", "application/json"),
		)
		if err != nil {
			if len(all) > 0 && ctx.Err() == nil {
				zap.L().Warn("fmcsa: page failed, keeping partial state",
					zap.String("state", state), zap.Int("offset", offset), zap.Error(err))
				return all, nil
			}
			return nil, eris.Wrapf(err, "fmcsa: fetch %s at offset %d", state, offset)
		}
		rows, err := fetcher.DecodeJSONArray[carrierRow](body)
		_ = body.Close()
		if err != nil {
			return nil, eris.Wrapf(err, "fmcsa: decode %s at offset %d", state, offset)
		}
		all = append(all, rows...)
		if len(rows) < s.pageSize {
			return all, nil
		}
	}
}
