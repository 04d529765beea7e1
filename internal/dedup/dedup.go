// Package dedup collapses raw joined rows into countable units.
//
// An event linked to k distinct grouping entities yields k units (a bounce
// per entity). Copies of the same (event, entity) pair produced by join fan-out
// collapse to one. When topics or actors are measured, the grain widens to one
// unit per observed (entity, tag) combination.
package dedup

import (
	"strconv"

	"github.com/ppiankov/coctel/internal/event"
)

// EntityGrain selects how grouping entities of one family are told apart.
type EntityGrain int

const (
	// PerEntity keeps one unit per distinct entity: program (name, channel,
	// medium) or social post.
	PerEntity EntityGrain = iota
	// PerName keeps one unit per program name, or per publisher page for
	// social posts.
	PerName
	// PerEvent keeps one unit per event, without bounces.
	PerEvent
)

func (g EntityGrain) String() string {
	switch g {
	case PerEntity:
		return "entity"
	case PerName:
		return "name"
	case PerEvent:
		return "event"
	default:
		return "unknown"
	}
}

// Grain is the finest level a measurement counts at.
type Grain struct {
	Broadcast EntityGrain
	Social    EntityGrain
	Topic     bool
	Actor     bool
}

// Unique reports whether g counts each event once across both families.
func (g Grain) Unique() bool {
	return g.Broadcast == PerEvent && g.Social == PerEvent
}

// Collapse returns one row per distinct key at grain g, keeping the first row
// seen for each key and preserving input order. Rows without an association
// are dropped. Collapse(Collapse(rows, g), g) equals Collapse(rows, g).
func Collapse(rows []event.Row, g Grain) []event.Row {
	if len(rows) == 0 {
		return nil
	}

	seen := make(map[string]struct{}, len(rows))
	out := make([]event.Row, 0, len(rows))
	for _, r := range rows {
		key, ok := g.key(r)
		if !ok {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, r)
	}
	return out
}

// Count returns the number of units rows collapse to at grain g.
func Count(rows []event.Row, g Grain) int {
	return len(Collapse(rows, g))
}

func (g Grain) key(r event.Row) (string, bool) {
	if r.Entity == nil {
		return "", false
	}

	var parts []string
	if !g.Unique() {
		parts = append(parts, string(r.Entity.Family), entityPart(*r.Entity, g.entityGrain(r.Entity.Family)))
	}
	if g.Topic {
		parts = append(parts, r.Topic)
	}
	if g.Actor {
		parts = append(parts, r.Actor)
	}
	return event.JoinKey(append([]string{strconv.FormatInt(r.EventID, 10)}, parts...)...), true
}

func (g Grain) entityGrain(f event.Family) EntityGrain {
	if f == event.Social {
		return g.Social
	}
	return g.Broadcast
}

func entityPart(e event.Entity, g EntityGrain) string {
	switch g {
	case PerEvent:
		return ""
	case PerName:
		if e.Family == event.Social {
			return e.Channel
		}
		return e.Name
	default:
		return e.Key()
	}
}
