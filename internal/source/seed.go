package source

import (
	"context"
	"strings"

	"github.com/sells-group/lead-bridge/internal/model"
)

// Seed is a fixed list of organization names.
type Seed struct {
	names []string
}

// NewSeed creates a seed source. Blank and repeated names are dropped.
func NewSeed(names []string) *Seed {
	seen := make(map[string]bool, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		key := strings.ToLower(n)
		if n == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, n)
	}
	return &Seed{names: out}
}

func (s *Seed) Name() string { return KindSeed }

func (s *Seed) Load(_ context.Context) ([]*model.Entity, error) {
	ents := make([]*model.Entity, 0, len(s.names))
	for _, n := range s.names {
		ents = append(ents, model.NewEntity(n))
	}
	return ents, nil
}
