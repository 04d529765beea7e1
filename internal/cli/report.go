package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ppiankov/coctel/internal/config"
	"github.com/ppiankov/coctel/internal/rank"
	"github.com/ppiankov/coctel/internal/render"
	"github.com/ppiankov/coctel/internal/report"
	"github.com/ppiankov/coctel/internal/store"
)

var (
	reportFrom         string
	reportTo           string
	reportLocations    []string
	reportRegions      []string
	reportSource       string
	reportFlag         string
	reportTop          int
	reportRank         string
	reportFormat       string
	reportPrecision    int
	reportAllPositions bool
	noColor            bool
)

var reportCmd = &cobra.Command{
	Use:   "report <name>",
	Short: "Run a report and print its table",
	Long:  "Run one of the reports listed by \"coctel reports\" over the stored events.",
	Args:  cobra.ExactArgs(1),
	RunE:  reportAction,
}

func init() {
	f := reportCmd.Flags()
	f.StringVar(&reportFrom, "from", "", "first day (YYYY-MM-DD) or RFC 3339 instant")
	f.StringVar(&reportTo, "to", "", "last day, inclusive (YYYY-MM-DD), or RFC 3339 instant, exclusive")
	f.StringSliceVar(&reportLocations, "location", nil, "restrict to locations (repeatable)")
	f.StringSliceVar(&reportRegions, "region", nil, "restrict to the locations of macro-regions (repeatable)")
	f.StringVar(&reportSource, "source", "", "sources: radio, tv, social, broadcast (comma separated)")
	f.StringVar(&reportFlag, "flag", "", "con or sin to keep only flagged or unflagged events")
	f.IntVar(&reportTop, "top", -1, "number of ranked keys (default from config)")
	f.StringVar(&reportRank, "rank", "", "ranking mode: cumulative or latest (default per report)")
	f.StringVar(&reportFormat, "format", "terminal", "output format: terminal, json, markdown, csv")
	f.IntVar(&reportPrecision, "precision", -1, "decimals of percentages (default from config)")
	f.BoolVar(&reportAllPositions, "all-positions", false, "keep undefined positions in position and stance reports")
	f.BoolVar(&noColor, "no-color", false, "disable ANSI colors")
	rootCmd.AddCommand(reportCmd)
}

func reportAction(cmd *cobra.Command, args []string) error {
	spec, ok := report.Lookup(args[0])
	if !ok {
		return fmt.Errorf("unknown report %q (see coctel reports)", args[0])
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	formatter, err := render.New(reportFormat, !noColor)
	if err != nil {
		return err
	}

	precision := cfg.PrecisionDigits()
	if reportPrecision >= 0 {
		if reportPrecision > config.MaxPrecision {
			return fmt.Errorf("--precision: want 0..%d, got %d", config.MaxPrecision, reportPrecision)
		}
		precision = reportPrecision
	}

	top := cfg.Report.TopN
	if reportTop >= 0 {
		top = reportTop
	}
	spec = spec.WithTop(top)
	if reportRank != "" {
		mode, err := rank.ParseMode(reportRank)
		if err != nil {
			return err
		}
		if spec, err = spec.WithRankMode(mode); err != nil {
			return err
		}
	}
	if reportAllPositions {
		spec.IncludeUndefined = true
	}

	loc, err := cfg.Location()
	if err != nil {
		return fmt.Errorf("load timezone: %w", err)
	}
	q, err := report.Params{
		From:      reportFrom,
		To:        reportTo,
		Locations: reportLocations,
		Regions:   reportRegions,
		Sources:   reportSource,
		Flag:      reportFlag,
	}.Query(loc, cfg.Regions)
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	keyer, err := newKeyer(cfg)
	if err != nil {
		return err
	}

	db, err := store.Open(cfg.Storage.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() { _ = db.Close() }()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	runner := &report.Runner{Source: db, Keyer: keyer, Logger: logger}
	res, err := runner.Run(ctx, q, spec)
	if err != nil {
		return fmt.Errorf("run %s: %w", spec.Name, err)
	}

	return formatter.Format(os.Stdout, render.Input{Result: res, Precision: precision})
}
