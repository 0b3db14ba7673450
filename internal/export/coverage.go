package export

import (
	"github.com/sells-group/lead-bridge/internal/model"
)

// Coverage summarises how much of a run found a website and an email.
type Coverage struct {
	Total       int            `json:"total"`
	WithWebsite int            `json:"with_website"`
	WithEmail   int            `json:"with_email"`
	BySource    map[string]int `json:"by_source"`
}

// Measure computes coverage over entities.
func Measure(entities []*model.Entity) Coverage {
	c := Coverage{Total: len(entities), BySource: map[string]int{}}
	for _, e := range entities {
		if e.Domain != "" {
			c.WithWebsite++
		}
		if e.Contact.Email != "" {
			c.WithEmail++
		}
		src := e.Contact.Source
		if src == "" {
			src = model.SourceNotFound
		}
		c.BySource[src]++
	}
	return c
}

// WebsitePct is the share of entities with a website, 0-100.
func (c Coverage) WebsitePct() float64 { return pct(c.WithWebsite, c.Total) }

// EmailPct is the share of entities with a contact email, 0-100.
func (c Coverage) EmailPct() float64 { return pct(c.WithEmail, c.Total) }

func pct(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(n) * 100 / float64(total)
}
