package pipeline

import (
	_ "embed"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/lead-bridge/internal/export"
	"github.com/sells-group/lead-bridge/internal/gate"
	"github.com/sells-group/lead-bridge/internal/source"
	"github.com/sells-group/lead-bridge/internal/waterfall"
)

//go:embed profiles.yaml
var builtinProfiles []byte

// Discovery kinds.
const (
	DiscoveryNone     = ""
	DiscoveryClearbit = "clearbit"
	DiscoverySearch   = "search"
)

// DiscoveryProfile selects how missing domains are found.
type DiscoveryProfile struct {
	Kind    string   `yaml:"kind,omitempty"`
	Queries []string `yaml:"queries,omitempty"`
	Count   int      `yaml:"count,omitempty"`
	DelayMs int      `yaml:"delay_ms,omitempty"`
}

// TestProfile caps a --test run.
type TestProfile struct {
	Limit    int `yaml:"limit"`
	MaxCalls int `yaml:"max_calls"`
}

// Profile is one lead-generation variant: where entities come from, how
// their domains are found, which providers enrich them and what the output
// looks like.
type Profile struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description,omitempty"`

	Source    source.Config    `yaml:"source"`
	Discovery DiscoveryProfile `yaml:"discovery,omitempty"`

	Denylist      []string `yaml:"denylist,omitempty"`
	ReplaceCommon bool     `yaml:"replace_common,omitempty"`
	RequireDomain bool     `yaml:"require_domain,omitempty"`

	// RegistryEmailTag is stamped on entities whose source already carried
	// an email; those are never sent to a provider.
	RegistryEmailTag string `yaml:"registry_email_tag,omitempty"`

	Providers []waterfall.StageConfig `yaml:"providers,omitempty"`
	MaxCalls  int                     `yaml:"max_calls,omitempty"`
	Test      TestProfile             `yaml:"test,omitempty"`

	Columns []export.Column `yaml:"columns,omitempty"`
	Output  string          `yaml:"output,omitempty"`
}

// Gate builds the profile's domain denylist.
func (p Profile) Gate() *gate.Denylist {
	if p.ReplaceCommon {
		return gate.New(p.Denylist...)
	}
	return gate.Default().With(p.Denylist...)
}

// Validate checks a profile before any network call is made.
func (p Profile) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return eris.New("profile: name is required")
	}
	if p.Source.Kind == "" {
		return eris.Errorf("profile %s: source.kind is required", p.Name)
	}
	switch p.Discovery.Kind {
	case DiscoveryNone, DiscoveryClearbit, DiscoverySearch:
	default:
		return eris.Errorf("profile %s: unknown discovery kind %q", p.Name, p.Discovery.Kind)
	}
	for i, sc := range p.Providers {
		if sc.Provider == "" {
			return eris.Errorf("profile %s: provider %d has no name", p.Name, i)
		}
	}
	if p.MaxCalls < 0 || p.Test.MaxCalls < 0 || p.Test.Limit < 0 {
		return eris.Errorf("profile %s: limits must not be negative", p.Name)
	}
	if err := export.ValidateColumns(p.Columns); err != nil {
		return eris.Wrapf(err, "profile %s", p.Name)
	}
	return nil
}

// OutputPath is the default output file. Test runs get a _TEST suffix so a
// trial never overwrites a full run.
func (p Profile) OutputPath(test bool) string {
	out := p.Output
	if out == "" {
		out = p.Name + "_leads.csv"
	}
	if !test {
		return out
	}
	ext := filepath.Ext(out)
	return strings.TrimSuffix(out, ext) + "_TEST" + ext
}

// Profiles is a set of profiles keyed by name.
type Profiles map[string]Profile

// Get returns a profile by name.
func (ps Profiles) Get(name string) (Profile, error) {
	p, ok := ps[name]
	if !ok {
		return Profile{}, eris.Errorf("profile %q not found (have %s)", name, strings.Join(ps.Names(), ", "))
	}
	return p, nil
}

// Names lists profile names in sorted order.
func (ps Profiles) Names() []string {
	names := make([]string, 0, len(ps))
	for n := range ps {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}

// ParseProfiles decodes a YAML document with a top-level "profiles" list.
func ParseProfiles(data []byte) (Profiles, error) {
	var doc struct {
		Profiles []Profile `yaml:"profiles"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, eris.Wrap(err, "profile: parse")
	}
	ps := make(Profiles, len(doc.Profiles))
	for _, p := range doc.Profiles {
		if err := p.Validate(); err != nil {
			return nil, err
		}
		if _, dup := ps[p.Name]; dup {
			return nil, eris.Errorf("profile %s: defined twice", p.Name)
		}
		ps[p.Name] = p
	}
	return ps, nil
}

// LoadProfiles returns the built-in profiles, plus any profiles defined in
// overridePath. A profile there replaces the built-in of the same name.
func LoadProfiles(overridePath string) (Profiles, error) {
	ps, err := ParseProfiles(builtinProfiles)
	if err != nil {
		return nil, eris.Wrap(err, "profile: built-in")
	}
	if overridePath == "" {
		return ps, nil
	}

	data, err := os.ReadFile(overridePath)
	if err != nil {
		return nil, eris.Wrapf(err, "profile: read %s", overridePath)
	}
	extra, err := ParseProfiles(data)
	if err != nil {
		return nil, eris.Wrapf(err, "profile: %s", overridePath)
	}
	for name, p := range extra {
		ps[name] = p
	}
	return ps, nil
}
