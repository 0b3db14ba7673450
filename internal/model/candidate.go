package model

import "strings"

// Candidate is a contact returned by a lookup provider before ranking.
type Candidate struct {
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	Title     string `json:"title,omitempty"`
	Email     string `json:"email,omitempty"`
	// Confidence is the provider's score, when it reports one.
	Confidence *int `json:"confidence,omitempty"`
}

// FullName joins the name parts.
func (c Candidate) FullName() string {
	return strings.TrimSpace(strings.TrimSpace(c.FirstName) + " " + strings.TrimSpace(c.LastName))
}

// Contact converts the candidate into a contact block without a source tag.
func (c Candidate) Contact() Contact {
	return Contact{
		Name:  c.FullName(),
		Title: strings.TrimSpace(c.Title),
		Email: strings.TrimSpace(c.Email),
	}
}

// Score returns the confidence and whether one was reported.
func (c Candidate) Score() (int, bool) {
	if c.Confidence == nil {
		return 0, false
	}
	return *c.Confidence, true
}
