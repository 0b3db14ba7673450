// Package rank reduces a provider's candidate contacts to the single best
// one using ordered keyword tiers matched against job titles.
package rank

import (
	"strconv"
	"strings"

	"github.com/sells-group/lead-bridge/internal/model"
)

// Fallback tags used when no tier matches.
const (
	TagGeneric = "generic"
	TagNoTitle = "no_title"
)

// Tier is one priority group of title keywords. Lower index wins.
type Tier struct {
	Name     string   `yaml:"name" json:"name"`
	Keywords []string `yaml:"keywords" json:"keywords"`
}

// Matches reports whether any keyword occurs as a substring of the
// lower-cased title. Matching is deliberately loose: "coo" does not match
// "chief operating officer" and "gm" matches inside unrelated words.
func (t Tier) Matches(title string) bool {
	title = strings.ToLower(title)
	if title == "" {
		return false
	}
	for _, kw := range t.Keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw != "" && strings.Contains(title, kw) {
			return true
		}
	}
	return false
}

// Pick is the ranker's choice.
type Pick struct {
	Candidate model.Candidate
	// Index is the candidate's position in the input.
	Index int
	// Tier is the matched tier index, or -1 for a fallback pick.
	Tier int
	tag  string
}

// Tag is the provenance suffix: the tier name, TagGeneric or TagNoTitle.
func (p Pick) Tag() string { return p.tag }

// PickBest selects one candidate. Tiers are tried in order; within the first
// tier that matches anything, the earliest match wins unless candidates carry
// a confidence, in which case the highest confidence wins and ties fall back
// to input order. With no tier match it falls back to the first candidate
// with a title, then the first with an email.
func PickBest(candidates []model.Candidate, tiers []Tier) (Pick, bool) {
	if len(candidates) == 0 {
		return Pick{}, false
	}

	for ti, tier := range tiers {
		best := -1
		bestScore, bestHasScore := 0, false
		for i, c := range candidates {
			if !tier.Matches(c.Title) {
				continue
			}
			score, ok := c.Score()
			if best < 0 || better(score, ok, bestScore, bestHasScore) {
				best, bestScore, bestHasScore = i, score, ok
			}
		}
		if best >= 0 {
			return Pick{Candidate: candidates[best], Index: best, Tier: ti, tag: tierTag(tier, ti)}, true
		}
	}

	for i, c := range candidates {
		if strings.TrimSpace(c.Title) != "" {
			return Pick{Candidate: c, Index: i, Tier: -1, tag: TagGeneric}, true
		}
	}
	for i, c := range candidates {
		if strings.TrimSpace(c.Email) != "" {
			return Pick{Candidate: c, Index: i, Tier: -1, tag: TagNoTitle}, true
		}
	}
	return Pick{}, false
}

// better reports whether a strictly outranks b. A scored candidate outranks
// an unscored one; equal scores keep the earlier candidate.
func better(a int, aOK bool, b int, bOK bool) bool {
	switch {
	case aOK && !bOK:
		return true
	case aOK && bOK:
		return a > b
	default:
		return false
	}
}

func tierTag(t Tier, idx int) string {
	if name := strings.TrimSpace(t.Name); name != "" {
		return name
	}
	return "tier" + strconv.Itoa(idx)
}
