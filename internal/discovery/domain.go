package discovery

import (
	"net/url"
	"strings"

	"golang.org/x/net/publicsuffix"
)

// RootDomain reduces a URL or host to its registrable domain, e.g.
// "https://shop.acme.co.uk/x" -> "acme.co.uk". It returns "" for anything
// that has no registrable domain.
func RootDomain(raw string) string {
	raw = strings.TrimSpace(strings.ToLower(raw))
	if raw == "" {
		return ""
	}
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	host := strings.TrimSuffix(u.Hostname(), ".")
	if host == "" || !strings.Contains(host, ".") {
		return ""
	}
	root, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return ""
	}
	return root
}

// CacheKey identifies a lookup in the domain cache.
func CacheKey(discoverer, name, state string) string {
	name = strings.Join(strings.Fields(strings.ToLower(name)), " ")
	return discoverer + "|" + name + "|" + strings.ToUpper(strings.TrimSpace(state))
}
