package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"

	"github.com/ppiankov/coctel/internal/event"
	"github.com/ppiankov/coctel/internal/report"
)

var reportsCmd = &cobra.Command{
	Use:   "reports",
	Short: "List the available reports",
	RunE: func(_ *cobra.Command, _ []string) error {
		printCatalog(os.Stdout, report.Catalog())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(reportsCmd)
}

func printCatalog(w io.Writer, specs []report.Spec) {
	width := 0
	for _, s := range specs {
		if sw := runewidth.StringWidth(s.Name); sw > width {
			width = sw
		}
	}
	for _, s := range specs {
		dims := make([]string, len(s.Dims))
		for i, d := range s.Dims {
			dims[i] = string(d)
		}
		extra := ""
		if s.Sources.Normalize() != event.AllSources {
			extra = " [" + s.Sources.String() + "]"
		}
		if s.Top != nil {
			extra += fmt.Sprintf(" [top %s, %s]", s.Top.By, s.Top.Mode)
		}
		fmt.Fprintf(w, "  %s  %s (%s)%s\n", runewidth.FillRight(s.Name, width), s.Title, strings.Join(dims, ", "), extra)
	}
}
