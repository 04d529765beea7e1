package report

import (
	"errors"
	"fmt"

	"github.com/ppiankov/coctel/internal/aggregate"
	"github.com/ppiankov/coctel/internal/dedup"
	"github.com/ppiankov/coctel/internal/event"
	"github.com/ppiankov/coctel/internal/rank"
)

// Spec declares a report: what to group by, how to compute percentages,
// which sources it covers, how bounces are counted and whether to rank.
type Spec struct {
	Name    string
	Title   string
	Dims    []aggregate.Dimension
	Percent aggregate.Policy
	Sources event.SourceSet
	// Grain sets the per-family entity grain. Topic and Actor are derived
	// from Dims.
	Grain dedup.Grain
	Top   *rank.Options
	// IncludeUndefined keeps undefined positions in position and stance
	// groupings and their denominators.
	IncludeUndefined bool
}

// Validate checks that the spec is internally consistent.
func (s Spec) Validate() error {
	if s.Name == "" {
		return errors.New("report name is required")
	}
	if len(s.Dims) == 0 {
		return fmt.Errorf("report %s: at least one dimension is required", s.Name)
	}
	seen := make(map[aggregate.Dimension]bool, len(s.Dims))
	for _, d := range s.Dims {
		if !d.Valid() {
			return fmt.Errorf("report %s: unknown dimension %q", s.Name, d)
		}
		if seen[d] {
			return fmt.Errorf("report %s: dimension %q repeated", s.Name, d)
		}
		seen[d] = true
	}
	for _, d := range s.Percent.Within {
		if !seen[d] {
			return fmt.Errorf("report %s: percent dimension %q is not grouped", s.Name, d)
		}
	}
	if s.Top != nil {
		if !seen[s.Top.By] {
			return fmt.Errorf("report %s: ranking dimension %q is not grouped", s.Name, s.Top.By)
		}
		if s.Top.Mode == rank.Latest && !s.hasTime() {
			return fmt.Errorf("report %s: latest ranking needs a week or month dimension", s.Name)
		}
	}
	return nil
}

// Has reports whether the spec groups by d.
func (s Spec) Has(d aggregate.Dimension) bool {
	for _, sd := range s.Dims {
		if sd == d {
			return true
		}
	}
	return false
}

func (s Spec) hasTime() bool {
	for _, d := range s.Dims {
		if d.IsTime() {
			return true
		}
	}
	return false
}

// EffectiveGrain returns the dedup grain for the spec's dimensions.
func (s Spec) EffectiveGrain() dedup.Grain {
	g := s.Grain
	g.Topic = s.Has(aggregate.Topic)
	g.Actor = s.Has(aggregate.Actor)
	return g
}

// WithTop returns a copy of s ranking the n first keys. n <= 0 removes the
// limit but keeps the ranking order.
func (s Spec) WithTop(n int) Spec {
	if s.Top == nil {
		return s
	}
	top := *s.Top
	top.N = n
	s.Top = &top
	return s
}

// WithRankMode returns a copy of s ranking in mode m. Reports without a
// ranking reject it.
func (s Spec) WithRankMode(m rank.Mode) (Spec, error) {
	if s.Top == nil {
		return s, fmt.Errorf("report %s has no ranking", s.Name)
	}
	top := *s.Top
	top.Mode = m
	s.Top = &top
	return s, nil
}
