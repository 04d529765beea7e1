// Package resolve enumerates the grouping entities each event is attached to.
package resolve

import (
	"sort"

	"github.com/ppiankov/coctel/internal/event"
)

// Index holds the distinct associations found in a row set, per event.
type Index struct {
	byEvent map[int64][]event.Association
	seen    map[string]bool
}

// NewIndex builds an index over rows. Rows without an association are skipped.
func NewIndex(rows []event.Row) *Index {
	idx := &Index{
		byEvent: make(map[int64][]event.Association),
		seen:    make(map[string]bool),
	}
	for _, r := range rows {
		a, ok := r.Association()
		if !ok {
			continue
		}
		key := a.Key()
		if idx.seen[key] {
			continue
		}
		idx.seen[key] = true
		idx.byEvent[r.EventID] = append(idx.byEvent[r.EventID], a)
	}
	return idx
}

// Associations returns the distinct associations of eventID within sources,
// ordered by entity key. An event with no association in sources returns nil.
func (idx *Index) Associations(eventID int64, sources event.SourceSet) []event.Association {
	var out []event.Association
	for _, a := range idx.byEvent[eventID] {
		if sources.Includes(a.Entity) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Entity.Key() < out[j].Entity.Key()
	})
	return out
}

// Events returns the ids of events having at least one association within
// sources, ascending.
func (idx *Index) Events(sources event.SourceSet) []int64 {
	var ids []int64
	for id, assocs := range idx.byEvent {
		for _, a := range assocs {
			if sources.Includes(a.Entity) {
				ids = append(ids, id)
				break
			}
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Scope keeps the rows whose association falls inside sources. Rows without
// an association contribute nothing to any source family.
func Scope(rows []event.Row, sources event.SourceSet) []event.Row {
	var out []event.Row
	for _, r := range rows {
		if r.Entity == nil || !sources.Includes(*r.Entity) {
			continue
		}
		out = append(out, r)
	}
	return out
}

// Split partitions rows by the family of their association.
func Split(rows []event.Row) (broadcast, social []event.Row) {
	for _, r := range rows {
		if r.Entity == nil {
			continue
		}
		if r.Entity.Family == event.Social {
			social = append(social, r)
			continue
		}
		broadcast = append(broadcast, r)
	}
	return broadcast, social
}
