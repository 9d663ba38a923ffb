package petri

import "strings"

// Place is a passive node holding an integer token count. Its identity is
// its trimmed id; two places are equal iff their ids match.
type Place struct {
	ID       string
	Name     string
	Capacity *int // nil means unbounded
	Metadata map[string]any
	IsSource bool
	IsSink   bool
}

// NewPlace constructs a place, trimming the id per §3.1.
func NewPlace(id, name string) Place {
	return Place{ID: strings.TrimSpace(id), Name: name}
}

// Equal reports whether two places share identity.
func (p Place) Equal(other Place) bool {
	return p.ID == other.ID
}

// HasCapacity reports whether the place declares a finite capacity.
func (p Place) HasCapacity() bool {
	return p.Capacity != nil
}
