package render

import (
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-runewidth"

	"github.com/ppiankov/coctel/internal/aggregate"
)

// TerminalFormatter formats a report as an aligned text table.
type TerminalFormatter struct {
	color bool
}

// NewTerminal creates a terminal formatter. Set color=true for ANSI colors.
func NewTerminal(color bool) *TerminalFormatter {
	return &TerminalFormatter{color: color}
}

// Format writes the report table to w, followed by the ranking if any.
func (f *TerminalFormatter) Format(w io.Writer, in Input) error {
	res := in.Result
	t := res.Table

	fmt.Fprintln(w, f.bold(fmt.Sprintf("coctel — %s", title(res.Spec))))
	fmt.Fprintln(w, f.dim(describeQuery(res.Query)))
	fmt.Fprintln(w)

	if t.Empty() {
		fmt.Fprintln(w, noData)
		return nil
	}

	header, rows := cells(t, in.Precision, true)
	numeric := len(t.Dims)

	widths := make([]int, len(header))
	for i, h := range header {
		widths[i] = runewidth.StringWidth(h)
	}
	for _, row := range rows {
		for i, c := range row {
			if cw := runewidth.StringWidth(c); cw > widths[i] {
				widths[i] = cw
			}
		}
	}

	fmt.Fprintln(w, f.bold(f.line(header, widths, numeric)))
	seps := make([]string, len(widths))
	for i, wd := range widths {
		seps[i] = strings.Repeat("-", wd)
	}
	fmt.Fprintln(w, f.dim(f.line(seps, widths, numeric)))
	for _, row := range rows {
		fmt.Fprintln(w, f.line(row, widths, numeric))
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, f.dim(fmt.Sprintf("Total: %s", humanize.Comma(int64(t.Total())))))

	if len(res.Ranking) > 0 && res.Spec.Top != nil {
		fmt.Fprintln(w)
		fmt.Fprintln(w, f.green(f.bold(fmt.Sprintf("--- Top %s (%s) ---", res.Spec.Top.By, res.Spec.Top.Mode))))
		for _, e := range res.Ranking {
			fmt.Fprintf(w, "  %2d. %s  %s\n", e.Rank, e.Key, formatRankValue(e, res.Spec, in.Precision))
		}
	}

	return nil
}

// line pads cells to widths. Columns from numeric on are right-aligned.
func (f *TerminalFormatter) line(cells []string, widths []int, numeric int) string {
	padded := make([]string, len(cells))
	for i, c := range cells {
		if i >= numeric {
			padded[i] = runewidth.FillLeft(c, widths[i])
		} else {
			padded[i] = runewidth.FillRight(c, widths[i])
		}
	}
	return strings.TrimRight(strings.Join(padded, "  "), " ")
}

// cells renders the header and body of t. Human output localizes time
// buckets and groups digits.
func cells(t aggregate.Table, precision int, human bool) ([]string, [][]string) {
	header := make([]string, 0, len(t.Dims)+2)
	for _, d := range t.Dims {
		header = append(header, string(d))
	}
	header = append(header, "count")
	if hasPercent(t) {
		header = append(header, "%")
	}

	rows := make([][]string, 0, len(t.Rows))
	for _, r := range t.Rows {
		row := make([]string, 0, len(header))
		for i, d := range t.Dims {
			if human {
				row = append(row, displayValue(d, r.Key[i]))
			} else {
				row = append(row, r.Key[i])
			}
		}
		if human {
			row = append(row, humanize.Comma(int64(r.Count)))
		} else {
			row = append(row, fmt.Sprint(r.Count))
		}
		if hasPercent(t) {
			row = append(row, formatPercent(r.Percent, precision))
		}
		rows = append(rows, row)
	}
	return header, rows
}

// ANSI helpers, no-op when color=false.

func (f *TerminalFormatter) bold(s string) string {
	if !f.color {
		return s
	}
	return "\033[1m" + s + "\033[0m"
}

func (f *TerminalFormatter) green(s string) string {
	if !f.color {
		return s
	}
	return "\033[32m" + s + "\033[0m"
}

func (f *TerminalFormatter) dim(s string) string {
	if !f.color {
		return s
	}
	return "\033[2m" + s + "\033[0m"
}
