// Package gate rejects candidate web domains that belong to directories,
// marketplaces and social sites rather than to the organization itself.
package gate

import "strings"

// Common holds the aggregator entries every profile blocks.
var Common = []string{
	"facebook.com",
	"linkedin.com",
	"instagram.com",
	"twitter.com",
	"youtube.com",
	"yelp.com",
	"yellowpages",
	"bbb.org",
	"manta.com",
	"mapquest.com",
	"wikipedia.org",
	"amazon.com",
	"google.com",
	"bing.com",
	"zoominfo.com",
	"dnb.com",
	"crunchbase.com",
	"indeed.com",
	"glassdoor.com",
	"bloomberg.com",
}

// Denylist is an immutable set of lower-cased substrings.
type Denylist struct {
	entries []string
}

// New builds a denylist. Entries are trimmed and lower-cased; blanks and
// duplicates are dropped.
func New(entries ...string) *Denylist {
	d := &Denylist{}
	return d.With(entries...)
}

// Default returns a denylist of the Common entries.
func Default() *Denylist {
	return New(Common...)
}

// With returns a new denylist holding the union of d and entries. The
// accepted-domain set can only shrink.
func (d *Denylist) With(entries ...string) *Denylist {
	out := &Denylist{}
	seen := make(map[string]struct{})
	add := func(e string) {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" {
			return
		}
		if _, ok := seen[e]; ok {
			return
		}
		seen[e] = struct{}{}
		out.entries = append(out.entries, e)
	}
	if d != nil {
		for _, e := range d.entries {
			add(e)
		}
	}
	for _, e := range entries {
		add(e)
	}
	return out
}

// IsBlocked reports whether any entry occurs anywhere in domain, ignoring
// case. An empty domain is never blocked: "no domain" is for the caller to
// handle.
func (d *Denylist) IsBlocked(domain string) bool {
	if d == nil || domain == "" {
		return false
	}
	domain = strings.ToLower(domain)
	for _, e := range d.entries {
		if strings.Contains(domain, e) {
			return true
		}
	}
	return false
}

// Match returns the first entry found in domain, or "".
func (d *Denylist) Match(domain string) string {
	if d == nil || domain == "" {
		return ""
	}
	domain = strings.ToLower(domain)
	for _, e := range d.entries {
		if strings.Contains(domain, e) {
			return e
		}
	}
	return ""
}

// Len returns the number of entries.
func (d *Denylist) Len() int {
	if d == nil {
		return 0
	}
	return len(d.entries)
}
