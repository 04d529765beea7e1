package render

import (
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"
)

// MarkdownFormatter formats a report as a Markdown table.
type MarkdownFormatter struct{}

// NewMarkdown creates a Markdown formatter.
func NewMarkdown() *MarkdownFormatter {
	return &MarkdownFormatter{}
}

// Format writes the report as Markdown to w.
func (f *MarkdownFormatter) Format(w io.Writer, in Input) error {
	res := in.Result
	t := res.Table

	fmt.Fprintf(w, "# %s\n\n", title(res.Spec))
	fmt.Fprintf(w, "%s\n\n", describeQuery(res.Query))

	if t.Empty() {
		fmt.Fprintln(w, noData)
		return nil
	}

	header, rows := cells(t, in.Precision, true)
	fmt.Fprintf(w, "| %s |\n", strings.Join(escapeCells(header), " | "))

	align := make([]string, len(header))
	for i := range header {
		if i >= len(t.Dims) {
			align[i] = "---:"
		} else {
			align[i] = "---"
		}
	}
	fmt.Fprintf(w, "|%s|\n", strings.Join(align, "|"))

	for _, row := range rows {
		fmt.Fprintf(w, "| %s |\n", strings.Join(escapeCells(row), " | "))
	}

	fmt.Fprintf(w, "\n*Total: %s*\n", humanize.Comma(int64(t.Total())))

	if len(res.Ranking) > 0 && res.Spec.Top != nil {
		fmt.Fprintf(w, "\n## Top %s (%s)\n\n", res.Spec.Top.By, res.Spec.Top.Mode)
		for _, e := range res.Ranking {
			fmt.Fprintf(w, "%d. **%s** %s\n", e.Rank, escapeCell(e.Key), formatRankValue(e, res.Spec, in.Precision))
		}
	}

	return nil
}

func escapeCells(cells []string) []string {
	out := make([]string, len(cells))
	for i, c := range cells {
		out[i] = escapeCell(c)
	}
	return out
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}
