// Package render writes report results for people and for other programs.
package render

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/ppiankov/coctel/internal/aggregate"
	"github.com/ppiankov/coctel/internal/bucket"
	"github.com/ppiankov/coctel/internal/rank"
	"github.com/ppiankov/coctel/internal/report"
)

// Input is a computed report and its presentation options.
type Input struct {
	Result report.Result
	// Precision is the number of decimals percentages are rounded to.
	Precision int
}

// Formatter writes a formatted report to w.
type Formatter interface {
	Format(w io.Writer, in Input) error
}

// Formats lists the names accepted by New.
var Formats = []string{"terminal", "json", "markdown", "csv"}

// New returns the formatter for name. Color applies to terminal output only.
func New(name string, color bool) (Formatter, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "terminal", "text":
		return NewTerminal(color), nil
	case "json":
		return NewJSON(), nil
	case "markdown", "md":
		return NewMarkdown(), nil
	case "csv":
		return NewCSV(), nil
	default:
		return nil, fmt.Errorf("unknown format %q (want %s)", name, strings.Join(Formats, ", "))
	}
}

const noData = "No data."

func hasPercent(t aggregate.Table) bool {
	return t.Policy.Mode != aggregate.NoPercent
}

func formatPercent(v float64, precision int) string {
	return strconv.FormatFloat(aggregate.Round(v, precision), 'f', precision, 64)
}

func formatRankValue(e rank.Entry, spec report.Spec, precision int) string {
	if spec.Top != nil && spec.Top.Metric == rank.Percent {
		return formatPercent(e.Value, precision)
	}
	return strconv.FormatFloat(e.Value, 'f', 0, 64)
}

// displayValue renders a key value for people: months get their name, a
// week gets its ISO week next to the anchor day.
func displayValue(d aggregate.Dimension, v string) string {
	switch d {
	case aggregate.Month:
		if m, err := bucket.ParseMonthLabel(v); err == nil {
			return m.Name()
		}
	case aggregate.Week:
		if w, err := bucket.ParseWeekLabel(v); err == nil {
			return v + " (" + w.String() + ")"
		}
	}
	return v
}

func title(spec report.Spec) string {
	if spec.Title != "" {
		return spec.Title
	}
	return spec.Name
}

// describeQuery summarizes the filters of q on one line.
func describeQuery(q report.Query) string {
	parts := []string{"sources " + q.Sources.String()}
	switch {
	case !q.From.IsZero() && !q.To.IsZero():
		parts = append(parts, fmt.Sprintf("from %s to %s", q.From.Format("2006-01-02"), q.To.Format("2006-01-02")))
	case !q.From.IsZero():
		parts = append(parts, "from "+q.From.Format("2006-01-02"))
	case !q.To.IsZero():
		parts = append(parts, "until "+q.To.Format("2006-01-02"))
	}
	if len(q.Locations) > 0 {
		parts = append(parts, "locations "+strings.Join(q.Locations, ", "))
	}
	if q.Flag != report.AnyFlag {
		parts = append(parts, "flag "+q.Flag.String())
	}
	return strings.Join(parts, "; ")
}
