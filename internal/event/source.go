package event

import (
	"fmt"
	"strings"
)

// SourceSet is a set of sources a query or report is restricted to.
// The zero value means every source.
type SourceSet uint8

const (
	SourceRadio SourceSet = 1 << iota
	SourceTV
	SourceSocial

	SourceBroadcast = SourceRadio | SourceTV
	AllSources      = SourceRadio | SourceTV | SourceSocial
)

// ParseSourceSet parses a comma separated list of sources. An empty list
// selects all sources.
func ParseSourceSet(s string) (SourceSet, error) {
	var set SourceSet
	for _, part := range strings.Split(s, ",") {
		switch strings.ToLower(strings.TrimSpace(part)) {
		case "", "all", "todos", "any":
			set |= AllSources
		case "radio":
			set |= SourceRadio
		case "tv", "television":
			set |= SourceTV
		case "broadcast", "tvradio":
			set |= SourceBroadcast
		case "social", "redes":
			set |= SourceSocial
		default:
			return 0, fmt.Errorf("unknown source %q", strings.TrimSpace(part))
		}
	}
	return set, nil
}

// Normalize maps the zero value to AllSources and drops unknown bits.
func (s SourceSet) Normalize() SourceSet {
	if s == 0 {
		return AllSources
	}
	return s & AllSources
}

// Intersect returns the sources selected by both sets. ok is false when the
// sets are disjoint.
func (s SourceSet) Intersect(other SourceSet) (SourceSet, bool) {
	both := s.Normalize() & other.Normalize()
	return both, both != 0
}

// Includes reports whether the association with e falls inside the set.
func (s SourceSet) Includes(e Entity) bool {
	n := s.Normalize()
	switch {
	case e.Family == Social:
		return n&SourceSocial != 0
	case e.Medium == Radio:
		return n&SourceRadio != 0
	case e.Medium == TV:
		return n&SourceTV != 0
	default:
		// A program without a known medium is only selected when every
		// broadcast medium is.
		return n&SourceBroadcast == SourceBroadcast
	}
}

// HasBroadcast reports whether any broadcast medium is selected.
func (s SourceSet) HasBroadcast() bool {
	return s.Normalize()&SourceBroadcast != 0
}

// HasSocial reports whether social sources are selected.
func (s SourceSet) HasSocial() bool {
	return s.Normalize()&SourceSocial != 0
}

func (s SourceSet) String() string {
	n := s.Normalize()
	if n == AllSources {
		return "all"
	}
	var parts []string
	if n&SourceRadio != 0 {
		parts = append(parts, "radio")
	}
	if n&SourceTV != 0 {
		parts = append(parts, "tv")
	}
	if n&SourceSocial != 0 {
		parts = append(parts, "social")
	}
	return strings.Join(parts, ",")
}
