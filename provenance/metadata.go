package provenance

import "strings"

// Reviewer captures one human or automated certification event.
type Reviewer struct {
	Kind      string   `yaml:"kind"`
	ID        string   `yaml:"id"`
	Scrutiny  Scrutiny `yaml:"scrutiny,omitempty"`
	Notes     string   `yaml:"notes,omitempty"`
	Timestamp string   `yaml:"timestamp,omitempty"`
}

// Metadata is the canonical provenance record attached to a code artifact.
type Metadata struct {
	AIComposed     string
	HumanCertified string
	AgentCertified string
	Scrutiny       Scrutiny
	Date           string
	Notes          string
	Done           bool
	History        []string
	Extras         []string
	Reviewers      []Reviewer
}

// Clone returns a copy safe for mutation.
func (m *Metadata) Clone() *Metadata {
	clone := *m
	clone.History = append([]string(nil), m.History...)
	clone.Extras = append([]string(nil), m.Extras...)
	clone.Reviewers = append([]Reviewer(nil), m.Reviewers...)
	return &clone
}

// HasMetadata reports whether any primary provenance field is populated.
func (m *Metadata) HasMetadata() bool {
	return m.AIComposed != "" ||
		m.HumanCertified != "" ||
		m.Scrutiny != "" ||
		m.Date != "" ||
		m.Notes != ""
}

// HasHumanCertification reports whether a non-pending human certification is
// recorded, either in the legacy human_certified field or as a reviewer.
func (m *Metadata) HasHumanCertification() bool {
	if m.HumanCertified != "" && strings.ToLower(m.HumanCertified) != "pending" {
		return true
	}
	for _, reviewer := range m.Reviewers {
		if reviewer.Kind == "human" && reviewer.ID != "" && strings.ToLower(reviewer.ID) != "pending" {
			return true
		}
	}
	return false
}

// IsPendingCertification reports whether the artifact still requires a human
// certification before it can be finalized.
func (m *Metadata) IsPendingCertification() bool {
	return !m.Done && !m.HasHumanCertification()
}

// AddReviewer appends a reviewer record; a record with the same (kind, id)
// replaces the prior one in place.
func (m *Metadata) AddReviewer(reviewer Reviewer) {
	for i, existing := range m.Reviewers {
		if existing.Kind == reviewer.Kind && existing.ID == reviewer.ID {
			m.Reviewers[i] = reviewer
			return
		}
	}
	m.Reviewers = append(m.Reviewers, reviewer)
}
