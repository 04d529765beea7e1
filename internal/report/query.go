package report

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/ppiankov/coctel/internal/event"
)

// FlagFilter restricts rows by their flag.
type FlagFilter int

const (
	AnyFlag FlagFilter = iota
	WithFlag
	WithoutFlag
)

// ParseFlagFilter accepts "", "all", "con"/"with"/"flagged" and
// "sin"/"without"/"unflagged".
func ParseFlagFilter(s string) (FlagFilter, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "all", "any", "todos":
		return AnyFlag, nil
	case "con", "with", "flagged", event.FlaggedLabel:
		return WithFlag, nil
	case "sin", "without", "unflagged", event.UnflaggedLabel:
		return WithoutFlag, nil
	default:
		return AnyFlag, fmt.Errorf("unknown flag filter %q (want con or sin)", s)
	}
}

func (f FlagFilter) String() string {
	switch f {
	case WithFlag:
		return "con"
	case WithoutFlag:
		return "sin"
	default:
		return "all"
	}
}

// Match reports whether a row with the given flag passes the filter.
func (f FlagFilter) Match(flagged bool) bool {
	switch f {
	case WithFlag:
		return flagged
	case WithoutFlag:
		return !flagged
	default:
		return true
	}
}

// Query is the set of parameters sent to the query layer. Empty location
// and source filters select everything.
type Query struct {
	From      time.Time // inclusive, zero for no lower bound
	To        time.Time // exclusive, zero for no upper bound
	Locations []string
	Sources   event.SourceSet
	Flag      FlagFilter
	// Topics and Actors ask the query layer to join the tag tables.
	Topics bool
	Actors bool
}

// Key returns a canonical cache key for q.
func (q Query) Key() string {
	locs := append([]string(nil), q.Locations...)
	sort.Strings(locs)
	return event.JoinKey(
		formatBound(q.From),
		formatBound(q.To),
		strings.Join(locs, ","),
		q.Sources.String(),
		q.Flag.String(),
		fmt.Sprintf("t=%t", q.Topics),
		fmt.Sprintf("a=%t", q.Actors),
	)
}

// Match reports whether r passes the date, location and flag filters of q.
// Source filtering is left to the association resolver.
func (q Query) Match(r event.Row) bool {
	if !q.From.IsZero() && r.At.Before(q.From) {
		return false
	}
	if !q.To.IsZero() && !r.At.Before(q.To) {
		return false
	}
	if len(q.Locations) > 0 {
		found := false
		for _, loc := range q.Locations {
			if loc == r.Location {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return q.Flag.Match(r.Flagged)
}

func formatBound(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.UTC().Format(time.RFC3339)
}

// Source is the query layer: it returns the raw joined rows for a query.
type Source interface {
	Rows(ctx context.Context, q Query) ([]event.Row, error)
}

// Rows is an in-memory Source over a fixed snapshot of rows.
type Rows []event.Row

// Rows returns the rows matching q. Tag columns are cleared when q does not
// ask for them, as a query without the tag joins would.
func (rs Rows) Rows(_ context.Context, q Query) ([]event.Row, error) {
	var out []event.Row
	for _, r := range rs {
		if !q.Match(r) {
			continue
		}
		if !q.Topics {
			r.Topic = ""
		}
		if !q.Actors {
			r.Actor = ""
		}
		out = append(out, r)
	}
	return out, nil
}
