package report

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/ppiankov/coctel/internal/event"
)

// RegionResolver expands a macro-region name into its locations.
type RegionResolver interface {
	Expand(name string) ([]string, bool)
}

// Params are the filters of a report request as typed by a user.
type Params struct {
	// From and To accept YYYY-MM-DD (civil dates in the report timezone,
	// both inclusive) or RFC 3339 instants (To exclusive).
	From      string
	To        string
	Locations []string
	Regions   []string
	Sources   string
	Flag      string
}

// Query converts p into a Query. Regions are expanded and merged with the
// explicit locations.
func (p Params) Query(loc *time.Location, regions RegionResolver) (Query, error) {
	var (
		q   Query
		err error
	)
	if loc == nil {
		loc = time.UTC
	}

	if q.From, err = parseBound(p.From, loc, false); err != nil {
		return Query{}, fmt.Errorf("from: %w", err)
	}
	if q.To, err = parseBound(p.To, loc, true); err != nil {
		return Query{}, fmt.Errorf("to: %w", err)
	}
	if !q.From.IsZero() && !q.To.IsZero() && !q.From.Before(q.To) {
		return Query{}, fmt.Errorf("empty date range: from %s is not before to %s", p.From, p.To)
	}

	if q.Sources, err = event.ParseSourceSet(p.Sources); err != nil {
		return Query{}, err
	}
	if q.Flag, err = ParseFlagFilter(p.Flag); err != nil {
		return Query{}, err
	}

	seen := make(map[string]bool)
	add := func(l string) {
		l = strings.TrimSpace(l)
		if l != "" && !seen[l] {
			seen[l] = true
			q.Locations = append(q.Locations, l)
		}
	}
	for _, l := range p.Locations {
		add(l)
	}
	for _, name := range p.Regions {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if regions == nil {
			return Query{}, fmt.Errorf("unknown region %q: no regions configured", name)
		}
		locs, ok := regions.Expand(name)
		if !ok {
			return Query{}, fmt.Errorf("unknown region %q", name)
		}
		for _, l := range locs {
			add(l)
		}
	}
	sort.Strings(q.Locations)

	return q, nil
}

// parseBound parses a date bound. A date-only upper bound covers its whole
// day.
func parseBound(s string, loc *time.Location, upper bool) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	if d, err := time.ParseInLocation("2006-01-02", s, loc); err == nil {
		if upper {
			d = d.AddDate(0, 0, 1)
		}
		return d, nil
	}
	ts, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse %q: want YYYY-MM-DD or RFC 3339", s)
	}
	return ts, nil
}

// SplitList splits a comma separated list, dropping blanks.
func SplitList(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
