package aggregate

import (
	"fmt"

	"github.com/ppiankov/coctel/internal/event"
)

// PercentMode selects the denominator of row percentages.
type PercentMode int

const (
	// NoPercent leaves percentages at zero.
	NoPercent PercentMode = iota
	// Global divides by the table total.
	Global
	// Partitioned divides by the total of rows sharing the Within values.
	Partitioned
)

func (m PercentMode) String() string {
	switch m {
	case Global:
		return "global"
	case Partitioned:
		return "partitioned"
	default:
		return "none"
	}
}

// Policy describes how percentages are computed.
type Policy struct {
	Mode   PercentMode
	Within []Dimension
}

// OfTotal is the global percentage policy.
func OfTotal() Policy {
	return Policy{Mode: Global}
}

// Within is the partitioned policy: each row is a share of the rows sharing
// its values on dims. Within() with no dims behaves as OfTotal.
func Within(dims ...Dimension) Policy {
	return Policy{Mode: Partitioned, Within: dims}
}

// WithPercent returns a copy of t with percentages computed under p.
// A zero denominator yields 0.
func (t Table) WithPercent(p Policy) (Table, error) {
	out := Table{Dims: t.Dims, Policy: p}
	out.Rows = make([]Row, len(t.Rows))
	copy(out.Rows, t.Rows)

	switch p.Mode {
	case NoPercent:
		for i := range out.Rows {
			out.Rows[i].Percent = 0
		}
		return out, nil
	case Global:
		total := t.Total()
		for i := range out.Rows {
			out.Rows[i].Percent = share(out.Rows[i].Count, total)
		}
		return out, nil
	case Partitioned:
	default:
		return Table{}, fmt.Errorf("unknown percent mode %d", p.Mode)
	}

	idx := make([]int, len(p.Within))
	for i, d := range p.Within {
		idx[i] = t.Index(d)
		if idx[i] < 0 {
			return Table{}, fmt.Errorf("percent: dimension %q is not part of the key %v", d, t.Dims)
		}
	}

	partKey := func(r Row) string {
		parts := make([]string, len(idx))
		for i, j := range idx {
			parts[i] = r.Key[j]
		}
		return event.JoinKey(parts...)
	}

	totals := make(map[string]int)
	for _, r := range out.Rows {
		totals[partKey(r)] += r.Count
	}
	for i := range out.Rows {
		out.Rows[i].Percent = share(out.Rows[i].Count, totals[partKey(out.Rows[i])])
	}
	return out, nil
}

func share(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(n) / float64(total) * 100
}
