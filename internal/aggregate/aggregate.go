// Package aggregate groups countable units by a key and computes counts and
// percentages over the result.
//
// Counts are exact integers. Percentages are always derived from counts of
// the table they belong to, so merged tables recompute them instead of adding
// percentages of their inputs.
package aggregate

import (
	"fmt"
	"math"
	"sort"

	"github.com/ppiankov/coctel/internal/event"
)

// Row is one aggregate bucket.
type Row struct {
	Key     []string // values aligned with Table.Dims
	Count   int
	Percent float64 // 0..100, meaningful when the table has a percent policy
}

// Table is the result of a grouping. Rows are sorted by key.
type Table struct {
	Dims   []Dimension
	Rows   []Row
	Policy Policy
}

// Empty reports whether the table has no rows.
func (t Table) Empty() bool {
	return len(t.Rows) == 0
}

// Total returns the sum of counts.
func (t Table) Total() int {
	total := 0
	for _, r := range t.Rows {
		total += r.Count
	}
	return total
}

// Index returns the key position of d, or -1.
func (t Table) Index(d Dimension) int {
	for i, td := range t.Dims {
		if td == d {
			return i
		}
	}
	return -1
}

// Value returns the value of d in r, or "" when the table lacks d.
func (t Table) Value(r Row, d Dimension) string {
	i := t.Index(d)
	if i < 0 || i >= len(r.Key) {
		return ""
	}
	return r.Key[i]
}

// Lookup returns the row with the given key.
func (t Table) Lookup(key ...string) (Row, bool) {
	want := event.JoinKey(key...)
	for _, r := range t.Rows {
		if event.JoinKey(r.Key...) == want {
			return r, true
		}
	}
	return Row{}, false
}

// Count returns the count of the row with the given key, 0 when absent.
func (t Table) Count(key ...string) int {
	r, _ := t.Lookup(key...)
	return r.Count
}

// Group counts rows per distinct combination of dims. Rows lacking a value
// for any of the dims are left out. Grouping no rows yields an empty table.
func Group(rows []event.Row, dims []Dimension, k Keyer) (Table, error) {
	if err := checkDims(dims); err != nil {
		return Table{}, err
	}

	counts := make(map[string]*Row)
	for _, r := range rows {
		key := make([]string, len(dims))
		ok := true
		for i, d := range dims {
			key[i], ok = k.Value(r, d)
			if !ok {
				break
			}
		}
		if !ok {
			continue
		}
		id := event.JoinKey(key...)
		if agg, exists := counts[id]; exists {
			agg.Count++
			continue
		}
		counts[id] = &Row{Key: key, Count: 1}
	}

	t := Table{Dims: append([]Dimension(nil), dims...)}
	t.Rows = make([]Row, 0, len(counts))
	for _, r := range counts {
		t.Rows = append(t.Rows, *r)
	}
	sortRows(t.Rows)
	return t, nil
}

// Combine merges tables grouped by the same dims. Counts of matching keys
// are summed; a key missing from one table counts as zero there. Empty
// tables without dims are ignored. Percentages are recomputed with p.
func Combine(p Policy, tables ...Table) (Table, error) {
	var dims []Dimension
	for _, t := range tables {
		if len(t.Dims) == 0 && t.Empty() {
			continue
		}
		if dims == nil {
			dims = t.Dims
			continue
		}
		if !sameDims(dims, t.Dims) {
			return Table{}, fmt.Errorf("combine: dims %v do not match %v", t.Dims, dims)
		}
	}

	counts := make(map[string]*Row)
	for _, t := range tables {
		for _, r := range t.Rows {
			id := event.JoinKey(r.Key...)
			if agg, ok := counts[id]; ok {
				agg.Count += r.Count
				continue
			}
			counts[id] = &Row{Key: append([]string(nil), r.Key...), Count: r.Count}
		}
	}

	out := Table{Dims: append([]Dimension(nil), dims...)}
	out.Rows = make([]Row, 0, len(counts))
	for _, r := range counts {
		out.Rows = append(out.Rows, *r)
	}
	sortRows(out.Rows)
	return out.WithPercent(p)
}

// Round rounds v to digits decimals. It is meant for presentation only.
func Round(v float64, digits int) float64 {
	if digits < 0 {
		digits = 0
	}
	scale := math.Pow(10, float64(digits))
	return math.Round(v*scale) / scale
}

func sameDims(a, b []Dimension) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func sortRows(rows []Row) {
	sort.SliceStable(rows, func(i, j int) bool {
		return lessKey(rows[i].Key, rows[j].Key)
	})
}

func lessKey(a, b []string) bool {
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return len(a) < len(b)
}
