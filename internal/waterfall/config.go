package waterfall

import (
	"os"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/lead-bridge/internal/rank"
	"github.com/sells-group/lead-bridge/internal/waterfall/provider"
)

// StageConfig names one provider in the chain and the tiers its candidates
// are ranked against.
type StageConfig struct {
	Provider string      `yaml:"provider"`
	Label    string      `yaml:"label,omitempty"`
	Tiers    []rank.Tier `yaml:"tiers"`
	// Titles optionally narrows a people search server-side.
	Titles []string `yaml:"titles,omitempty"`
}

// Stage is a resolved StageConfig.
type Stage struct {
	Provider provider.Provider
	Label    string
	Tiers    []rank.Tier
}

// LoadStages reads a chain from a YAML file with a top-level "waterfall" key.
func LoadStages(path string) ([]StageConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "waterfall: read config %s", path)
	}

	var wrapper struct {
		Waterfall []StageConfig `yaml:"waterfall"`
	}
	if err := yaml.Unmarshal(data, &wrapper); err != nil {
		return nil, eris.Wrap(err, "waterfall: parse config")
	}
	if len(wrapper.Waterfall) == 0 {
		return nil, eris.Errorf("waterfall: %s defines no stages", path)
	}
	return wrapper.Waterfall, nil
}

// BuildStages resolves each configured provider from the registry, keeping
// chain order. Providers that were not registered (typically a missing
// credential) are skipped with a warning, so a chain may resolve to nothing.
func BuildStages(cfgs []StageConfig, registry *provider.Registry) []Stage {
	stages := make([]Stage, 0, len(cfgs))
	for _, sc := range cfgs {
		p := registry.Get(sc.Provider)
		if p == nil {
			zap.L().Warn("waterfall: provider not available, stage skipped",
				zap.String("provider", sc.Provider),
			)
			continue
		}
		label := sc.Label
		if label == "" {
			label = p.Name()
		}
		stages = append(stages, Stage{Provider: p, Label: label, Tiers: sc.Tiers})
	}
	return stages
}
