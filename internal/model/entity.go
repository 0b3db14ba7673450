package model

import "strings"

// SourceNotFound is the provenance tag for an entity no provider produced an
// email for. Every exported entity carries either this or a provider tag.
const SourceNotFound = "not_found"

// SourceInput tags an email that arrived with the input row untagged.
const SourceInput = "input"

// Location holds the free-text location fields a source may supply.
type Location struct {
	Address string `json:"address,omitempty"`
	City    string `json:"city,omitempty"`
	State   string `json:"state,omitempty"`
	Zip     string `json:"zip,omitempty"`
}

// Contact is the single contact an entity is enriched with.
type Contact struct {
	Name   string `json:"name,omitempty"`
	Title  string `json:"title,omitempty"`
	Email  string `json:"email,omitempty"`
	Source string `json:"source,omitempty"`
}

// Entity is one organization to be contacted: a brand, clinic, carrier,
// agency or dealer.
type Entity struct {
	Name     string   `json:"name"`
	Domain   string   `json:"domain,omitempty"`
	Location Location `json:"location"`
	Phone    string   `json:"phone,omitempty"`
	// Email is an organization address carried by the source registry. It is
	// not a contact and is never merged into Contact.
	Email string `json:"email,omitempty"`
	// OrgID is the provider-side organization identifier, when one resolved.
	OrgID   string            `json:"org_id,omitempty"`
	Attrs   map[string]string `json:"attrs,omitempty"`
	Contact Contact           `json:"contact"`
}

// NewEntity returns an entity with the given display name and an empty
// contact block.
func NewEntity(name string) *Entity {
	return &Entity{Name: strings.TrimSpace(name), Attrs: map[string]string{}}
}

// SetAttr records a passthrough value, ignoring blanks.
func (e *Entity) SetAttr(key, value string) {
	value = strings.TrimSpace(value)
	if value == "" {
		return
	}
	if e.Attrs == nil {
		e.Attrs = map[string]string{}
	}
	e.Attrs[key] = value
}

// Attr returns a passthrough value or "".
func (e *Entity) Attr(key string) string {
	return e.Attrs[key]
}

// Enriched reports whether the entity already carries a final contact, either
// from an earlier run or from its source.
func (e *Entity) Enriched() bool {
	return e.Contact.Source != "" && e.Contact.Source != SourceNotFound
}

// MergeContact fills the empty fields of dst from src. Fields already set on
// dst are never overwritten. It reports whether dst gained an email.
func MergeContact(dst *Contact, src Contact) bool {
	hadEmail := dst.Email != ""
	if dst.Name == "" {
		dst.Name = src.Name
	}
	if dst.Title == "" {
		dst.Title = src.Title
	}
	if dst.Email == "" {
		dst.Email = src.Email
	}
	return !hadEmail && dst.Email != ""
}
