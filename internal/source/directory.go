package source

import (
	"context"
	"io"
	"os"
	"regexp"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/net/html/charset"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/sells-group/lead-bridge/internal/fetcher"
	"github.com/sells-group/lead-bridge/internal/model"
)

// DirectorySelectors locate the parts of a dealer listing. Address matches
// two elements per card: the street line, then "City, ST 12345".
type DirectorySelectors struct {
	Card    string `yaml:"card,omitempty" json:"card,omitempty"`
	Company string `yaml:"company,omitempty" json:"company,omitempty"`
	Address string `yaml:"address,omitempty" json:"address,omitempty"`
	Phone   string `yaml:"phone,omitempty" json:"phone,omitempty"`
	Website string `yaml:"website,omitempty" json:"website,omitempty"`
}

// DefaultSelectors match the equipment-dealer directory layout.
var DefaultSelectors = DirectorySelectors{
	Card:    "div.dealer-directory-listing",
	Company: "a.dealer-title-text",
	Address: "div.dealer-data-text",
	Phone:   "a.dealer-phone",
}

// DefaultExclusions names chains, rental fleets, auction houses, OEM finance
// arms, truck and parts sellers and public bodies. Matching is a
// case-insensitive substring test on the listing name.
var DefaultExclusions = []string{
	"united rentals", "sunbelt rentals", "herc rentals", "ahern rentals",
	"maxim crane", "bigge crane", "neff corp",
	"ritchie bros", "iron planet", "purple wave", "bigiron", "proxibid",
	"caterpillar financial", "cat financial", "deere financial",
	"cnh industrial", "komatsu america", "volvo financial",
	"truck sales", "truck center", "truck parts", "trucking",
	"trailer sales", "peterbilt", "freightliner", "western star",
	"auto sales", "vehicle sales",
	"replacement parts", "aftermarket parts", "diesel parts",
	"material handling",
	"city of", "county of", "state of ", "township of",
	"public works", "road commission", "transit authority", "army corps",
}

var (
	individualName   = regexp.MustCompile(`^(?:[A-Z][a-z]+\.?\s+){1,2}[A-Z][a-z]+$`)
	businessKeywords = regexp.MustCompile(`(?i)\b(equipment|sales|supply|service|machinery|tractor|rental|parts|inc|llc|corp|co|bros|brothers|sons|enterprises|group|solutions|systems|industries|international|midwest|national)\b`)
	legalSuffix      = regexp.MustCompile(`\b(inc|llc|ltd|co|corp|company|equipment)\b\.?`)
	nonAlnum         = regexp.MustCompile(`[^a-z0-9\s]`)
)

// Directory parses pre-rendered dealer directory pages.
type Directory struct {
	f             fetcher.Fetcher
	urls          []string
	files         []string
	sel           DirectorySelectors
	exclude       []string
	fallbackState string
}

// NewDirectory creates a directory source over URLs and saved HTML files.
func NewDirectory(f fetcher.Fetcher, cfg Config) *Directory {
	sel := cfg.Selectors
	if sel.Card == "" {
		sel.Card = DefaultSelectors.Card
	}
	if sel.Company == "" {
		sel.Company = DefaultSelectors.Company
	}
	if sel.Address == "" {
		sel.Address = DefaultSelectors.Address
	}
	if sel.Phone == "" {
		sel.Phone = DefaultSelectors.Phone
	}

	exclude := make([]string, 0, len(DefaultExclusions)+len(cfg.Exclude))
	for _, e := range append(append([]string{}, DefaultExclusions...), cfg.Exclude...) {
		if e = strings.ToLower(e); strings.TrimSpace(e) != "" {
			exclude = append(exclude, e)
		}
	}

	return &Directory{
		f:             f,
		urls:          cfg.URLs,
		files:         cfg.Files,
		sel:           sel,
		exclude:       exclude,
		fallbackState: strings.ToUpper(strings.TrimSpace(cfg.State)),
	}
}

func (d *Directory) Name() string { return KindDirectory }

// ParseStats counts what a page parse kept and dropped.
type ParseStats struct {
	Cards     int
	Kept      int
	Excluded  int
	Empty     int
	Duplicate int
}

func (d *Directory) Load(ctx context.Context) ([]*model.Entity, error) {
	log := zap.L().With(zap.String("source", KindDirectory))

	var (
		ents  []*model.Entity
		seen  = map[string]bool{}
		total ParseStats
		pages int
	)
	collect := func(origin string, r io.Reader) {
		got, st, err := d.Parse(r, origin, seen)
		if err != nil {
			log.Warn("directory: parse failed", zap.String("page", origin), zap.Error(err))
			return
		}
		pages++
		if st.Cards == 0 {
			log.Warn("directory: no listing cards found, selectors may be stale",
				zap.String("page", origin), zap.String("card_selector", d.sel.Card))
		}
		total.Cards += st.Cards
		total.Kept += st.Kept
		total.Excluded += st.Excluded
		total.Empty += st.Empty
		total.Duplicate += st.Duplicate
		ents = append(ents, got...)
	}

	for _, path := range d.files {
		f, err := os.Open(path)
		if err != nil {
			log.Warn("directory: open failed", zap.String("file", path), zap.Error(err))
			continue
		}
		collect(path, f)
		_ = f.Close()
	}
	for _, u := range d.urls {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		body, err := d.f.Download(ctx, u)
		if err != nil {
			log.Warn("directory: fetch failed", zap.String("url", u), zap.Error(err))
			continue
		}
		collect(u, body)
		_ = body.Close()
	}

	if pages == 0 && len(d.files)+len(d.urls) > 0 {
		return nil, eris.New("directory: no page could be read")
	}
	log.Info("directory: loaded",
		zap.Int("pages", pages),
		zap.Int("cards", total.Cards),
		zap.Int("kept", total.Kept),
		zap.Int("excluded", total.Excluded),
		zap.Int("empty", total.Empty),
		zap.Int("duplicate", total.Duplicate),
	)
	return ents, nil
}

// Parse extracts listings from one page. seen carries normalised company
// keys across pages; it may be nil.
func (d *Directory) Parse(r io.Reader, origin string, seen map[string]bool) ([]*model.Entity, ParseStats, error) {
	var st ParseStats
	if seen == nil {
		seen = map[string]bool{}
	}

	decoded, err := charset.NewReader(r, "")
	if err != nil {
		return nil, st, eris.Wrap(err, "directory: detect charset")
	}
	doc, err := goquery.NewDocumentFromReader(decoded)
	if err != nil {
		return nil, st, eris.Wrap(err, "directory: parse html")
	}

	var ents []*model.Entity
	doc.Find(d.sel.Card).Each(func(_ int, card *goquery.Selection) {
		st.Cards++

		raw := strings.TrimSpace(card.Find(d.sel.Company).First().Text())
		company := stripLocationSuffix(raw)
		if company == "" {
			st.Empty++
			return
		}
		if d.Excluded(company) {
			st.Excluded++
			return
		}

		lines := card.Find(d.sel.Address)
		street := strings.TrimSpace(lines.Eq(0).Text())
		city, state, zip := splitCityLine(lines.Eq(1).Text())
		if state == "" {
			state = d.fallbackState
		}
		if badAddress(street) || city == "" {
			st.Empty++
			return
		}

		key := NormalizeCompany(company)
		if seen[key] {
			st.Duplicate++
			return
		}
		seen[key] = true

		ent := model.NewEntity(company)
		ent.Location = model.Location{Address: street, City: city, State: state, Zip: zip}
		ent.Phone = FormatPhone(phoneOf(card.Find(d.sel.Phone).First()))
		if d.sel.Website != "" {
			if href, ok := card.Find(d.sel.Website).First().Attr("href"); ok {
				ent.SetAttr("listed_website", href)
			}
		}
		ent.SetAttr("source_url", origin)
		ents = append(ents, ent)
		st.Kept++
	})
	return ents, st, nil
}

// Excluded reports whether a listing name is a chain, public body or a bare
// person's name.
func (d *Directory) Excluded(company string) bool {
	lower := strings.ToLower(company)
	for _, e := range d.exclude {
		if strings.Contains(lower, e) {
			return true
		}
	}
	return individualName.MatchString(company) && !businessKeywords.MatchString(company)
}

var foldDiacritics = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// NormalizeCompany produces a dedup key: diacritics folded, lower-cased,
// legal suffixes and punctuation removed.
func NormalizeCompany(name string) string {
	folded, _, err := transform.String(foldDiacritics, name)
	if err != nil {
		folded = name
	}
	s := strings.ToLower(strings.TrimSpace(folded))
	s = legalSuffix.ReplaceAllString(s, "")
	s = nonAlnum.ReplaceAllString(s, "")
	return strings.Join(strings.Fields(s), " ")
}

// stripLocationSuffix drops the " - City, ST" the directory appends to names.
func stripLocationSuffix(raw string) string {
	if i := strings.Index(raw, " - "); i >= 0 {
		raw = raw[:i]
	}
	return strings.TrimSpace(raw)
}

// splitCityLine parses "City, ST 12345".
func splitCityLine(line string) (city, state, zip string) {
	line = strings.TrimSpace(line)
	c, rest, ok := strings.Cut(line, ",")
	if !ok {
		return "", "", ""
	}
	parts := strings.Fields(rest)
	if len(parts) > 0 {
		state = strings.ToUpper(parts[0])
	}
	if len(parts) > 1 {
		zip = zip5(parts[1])
	}
	return strings.TrimSpace(c), state, zip
}

// badAddress flags empty, purely numeric or too-short street lines.
func badAddress(s string) bool {
	s = strings.TrimSpace(s)
	if len(s) < 6 {
		return true
	}
	return strings.IndexFunc(s, func(r rune) bool { return !unicode.IsDigit(r) }) < 0
}

func phoneOf(sel *goquery.Selection) string {
	if href, ok := sel.Attr("href"); ok && strings.HasPrefix(href, "tel:") {
		return strings.TrimSpace(strings.TrimPrefix(href, "tel:"))
	}
	return strings.TrimSpace(sel.Text())
}
