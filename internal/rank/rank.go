// Package rank selects the top entities of an aggregate table.
package rank

import (
	"errors"
	"fmt"
	"sort"

	"github.com/ppiankov/coctel/internal/aggregate"
)

// Mode selects the reference period of the ranking value.
type Mode int

const (
	// Cumulative ranks by the value summed over every row of a key.
	Cumulative Mode = iota
	// Latest ranks by the value in the most recent period bucket only.
	Latest
)

func (m Mode) String() string {
	if m == Latest {
		return "latest"
	}
	return "cumulative"
}

// ParseMode parses "cumulative" or "latest". Empty means cumulative.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "", "cumulative", "total":
		return Cumulative, nil
	case "latest", "last":
		return Latest, nil
	default:
		return 0, fmt.Errorf("unknown ranking mode %q (want cumulative or latest)", s)
	}
}

// Metric selects the table column a ranking is computed on. Cumulative
// rankings on Percent use each key's share of the summed counts.
type Metric int

const (
	Count Metric = iota
	Percent
)

// Options configures TopN.
type Options struct {
	By     aggregate.Dimension
	N      int // N <= 0 keeps every key
	Mode   Mode
	Metric Metric
	// Period is the time dimension used by Latest. When empty the first
	// week or month dimension of the table is used.
	Period aggregate.Dimension
}

// Entry is one ranked key.
type Entry struct {
	Rank  int
	Key   string
	Value float64
}

// Result holds the ranking and the table restricted to the ranked keys.
type Result struct {
	Ranking []Entry
	Table   aggregate.Table
}

// TopN ranks the values of o.By by descending metric, breaking ties by
// ascending key, and keeps the first o.N keys. The returned table holds every
// row of the kept keys across the full range, ordered by rank then key.
func TopN(t aggregate.Table, o Options) (Result, error) {
	byIdx := t.Index(o.By)
	if byIdx < 0 {
		return Result{}, fmt.Errorf("rank: dimension %q is not part of the key %v", o.By, t.Dims)
	}

	periodIdx := -1
	latest := ""
	if o.Mode == Latest {
		var err error
		periodIdx, err = periodIndex(t, o.Period)
		if err != nil {
			return Result{}, err
		}
		for _, r := range t.Rows {
			if r.Key[periodIdx] > latest {
				latest = r.Key[periodIdx]
			}
		}
	}

	// A cumulative share is recomputed from summed counts; partitioned
	// percentages of different buckets are never added up.
	shares := o.Mode == Cumulative && o.Metric == Percent

	values := make(map[string]float64)
	for _, r := range t.Rows {
		key := r.Key[byIdx]
		if _, ok := values[key]; !ok {
			values[key] = 0
		}
		if periodIdx >= 0 && r.Key[periodIdx] != latest {
			continue
		}
		if shares {
			values[key] += float64(r.Count)
			continue
		}
		values[key] += metric(r, o.Metric)
	}
	if total := t.Total(); shares && total > 0 {
		for k, v := range values {
			values[k] = v / float64(total) * 100
		}
	}

	ranking := make([]Entry, 0, len(values))
	for k, v := range values {
		ranking = append(ranking, Entry{Key: k, Value: v})
	}
	sort.Slice(ranking, func(i, j int) bool {
		if ranking[i].Value != ranking[j].Value {
			return ranking[i].Value > ranking[j].Value
		}
		return ranking[i].Key < ranking[j].Key
	})
	if o.N > 0 && len(ranking) > o.N {
		ranking = ranking[:o.N]
	}

	pos := make(map[string]int, len(ranking))
	for i := range ranking {
		ranking[i].Rank = i + 1
		pos[ranking[i].Key] = i
	}

	out := aggregate.Table{Dims: t.Dims, Policy: t.Policy}
	for _, r := range t.Rows {
		if _, ok := pos[r.Key[byIdx]]; ok {
			out.Rows = append(out.Rows, r)
		}
	}
	sort.SliceStable(out.Rows, func(i, j int) bool {
		return pos[out.Rows[i].Key[byIdx]] < pos[out.Rows[j].Key[byIdx]]
	})

	return Result{Ranking: ranking, Table: out}, nil
}

var errNoPeriod = errors.New("rank: latest mode needs a week or month dimension")

func periodIndex(t aggregate.Table, period aggregate.Dimension) (int, error) {
	if period != "" {
		if !period.IsTime() {
			return -1, fmt.Errorf("rank: %q is not a period dimension", period)
		}
		i := t.Index(period)
		if i < 0 {
			return -1, errNoPeriod
		}
		return i, nil
	}
	for i, d := range t.Dims {
		if d.IsTime() {
			return i, nil
		}
	}
	return -1, errNoPeriod
}

func metric(r aggregate.Row, m Metric) float64 {
	if m == Percent {
		return r.Percent
	}
	return float64(r.Count)
}
