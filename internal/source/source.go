// Package source loads the organizations a profile targets from seed lists,
// public registries, dealer directories and input files.
package source

import (
	"context"
	"regexp"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/lead-bridge/internal/fetcher"
	"github.com/sells-group/lead-bridge/internal/model"
)

// Source kinds.
const (
	KindSeed      = "seed"
	KindNPPES     = "nppes"
	KindCMS       = "cms"
	KindFMCSA     = "fmcsa"
	KindDirectory = "directory"
	KindFile      = "file"
)

// Source produces the entities a run starts from.
type Source interface {
	Name() string
	Load(ctx context.Context) ([]*model.Entity, error)
}

// Config is the source block of a profile. Only the fields of the chosen
// kind are read.
type Config struct {
	Kind string `yaml:"kind" json:"kind"`

	// seed
	Names []string `yaml:"names,omitempty" json:"names,omitempty"`

	// nppes
	Taxonomy   string `yaml:"taxonomy,omitempty" json:"taxonomy,omitempty"`
	EntityType string `yaml:"entity_type,omitempty" json:"entity_type,omitempty"`
	Target     int    `yaml:"target,omitempty" json:"target,omitempty"`

	// nppes, cms, fmcsa: endpoint override
	BaseURL string `yaml:"base_url,omitempty" json:"base_url,omitempty"`

	// cms, fmcsa
	State  string   `yaml:"state,omitempty" json:"state,omitempty"`
	States []string `yaml:"states,omitempty" json:"states,omitempty"`

	// fmcsa
	MinPowerUnits int `yaml:"min_power_units,omitempty" json:"min_power_units,omitempty"`
	MaxPowerUnits int `yaml:"max_power_units,omitempty" json:"max_power_units,omitempty"`

	// page size for the paginated registries
	PageSize int `yaml:"page_size,omitempty" json:"page_size,omitempty"`

	// directory
	URLs      []string           `yaml:"urls,omitempty" json:"urls,omitempty"`
	Files     []string           `yaml:"files,omitempty" json:"files,omitempty"`
	Selectors DirectorySelectors `yaml:"selectors,omitempty" json:"selectors,omitempty"`
	Exclude   []string           `yaml:"exclude,omitempty" json:"exclude,omitempty"`

	// file
	Path string `yaml:"path,omitempty" json:"path,omitempty"`
}

// Deps carries what remote sources need.
type Deps struct {
	Fetcher      fetcher.Fetcher
	SocrataToken string
}

// New builds the source a profile names.
func New(cfg Config, deps Deps) (Source, error) {
	needFetcher := func() error {
		if deps.Fetcher == nil {
			return eris.Errorf("source: %s needs a fetcher", cfg.Kind)
		}
		return nil
	}

	switch cfg.Kind {
	case KindSeed:
		return NewSeed(cfg.Names), nil
	case KindNPPES:
		if err := needFetcher(); err != nil {
			return nil, err
		}
		return NewNPPES(deps.Fetcher, cfg), nil
	case KindCMS:
		if err := needFetcher(); err != nil {
			return nil, err
		}
		if cfg.State == "" {
			return nil, eris.New("source: cms needs a state")
		}
		return NewCMS(deps.Fetcher, cfg), nil
	case KindFMCSA:
		if err := needFetcher(); err != nil {
			return nil, err
		}
		if len(cfg.States) == 0 && cfg.State == "" {
			return nil, eris.New("source: fmcsa needs at least one state")
		}
		return NewFMCSA(deps.Fetcher, cfg, deps.SocrataToken), nil
	case KindDirectory:
		if len(cfg.URLs) > 0 {
			if err := needFetcher(); err != nil {
				return nil, err
			}
		}
		return NewDirectory(deps.Fetcher, cfg), nil
	case KindFile:
		if cfg.Path == "" {
			return nil, eris.New("source: file needs a path")
		}
		return NewFile(cfg.Path), nil
	default:
		return nil, eris.Errorf("source: unknown kind %q", cfg.Kind)
	}
}

type limited struct {
	Source
	n int
}

// Limit caps a source at its first n entities. n <= 0 leaves it unchanged.
func Limit(s Source, n int) Source {
	if n <= 0 {
		return s
	}
	return &limited{Source: s, n: n}
}

func (l *limited) Load(ctx context.Context) ([]*model.Entity, error) {
	ents, err := l.Source.Load(ctx)
	if err != nil {
		return nil, err
	}
	if len(ents) > l.n {
		ents = ents[:l.n]
	}
	return ents, nil
}

var nonDigit = regexp.MustCompile(`\D`)

// FormatPhone renders ten-digit US numbers as "(555) 123-4567" and returns
// anything else trimmed.
func FormatPhone(raw string) string {
	digits := nonDigit.ReplaceAllString(raw, "")
	if len(digits) == 11 && digits[0] == '1' {
		digits = digits[1:]
	}
	if len(digits) != 10 {
		return strings.TrimSpace(raw)
	}
	return "(" + digits[:3] + ") " + digits[3:6] + "-" + digits[6:]
}

// zip5 keeps the first five characters of a ZIP or ZIP+4.
func zip5(raw string) string {
	raw = strings.TrimSpace(raw)
	if len(raw) > 5 {
		return raw[:5]
	}
	return raw
}

func pageSize(cfg Config, def int) int {
	if cfg.PageSize > 0 {
		return cfg.PageSize
	}
	return def
}
