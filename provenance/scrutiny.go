package provenance

import "strings"

// Scrutiny is an ordered review-rigor tier attached to a certification.
type Scrutiny string

const (
	ScrutinyAuto   Scrutiny = "auto"
	ScrutinyLow    Scrutiny = "low"
	ScrutinyMedium Scrutiny = "medium"
	ScrutinyHigh   Scrutiny = "high"
)

var scrutinyOrder = []Scrutiny{ScrutinyAuto, ScrutinyLow, ScrutinyMedium, ScrutinyHigh}

// ParseScrutiny normalizes a string into a scrutiny level. Unrecognized
// values yield the empty level rather than an error; callers that require a
// valid level must check the result.
func ParseScrutiny(value string) Scrutiny {
	normalized := strings.ToLower(strings.TrimSpace(value))
	for _, candidate := range scrutinyOrder {
		if string(candidate) == normalized {
			return candidate
		}
	}
	return ""
}

// Rank returns the position of the level in the auto < low < medium < high
// ordering, or -1 for the empty level.
func (s Scrutiny) Rank() int {
	for i, candidate := range scrutinyOrder {
		if candidate == s {
			return i
		}
	}
	return -1
}

// Within reports whether the level does not exceed the given limit.
func (s Scrutiny) Within(limit Scrutiny) bool {
	rank, limitRank := s.Rank(), limit.Rank()
	if rank == -1 || limitRank == -1 {
		return false
	}
	return rank <= limitRank
}
