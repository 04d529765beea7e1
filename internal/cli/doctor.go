package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ppiankov/coctel/internal/config"
	"github.com/ppiankov/coctel/internal/dedup"
	"github.com/ppiankov/coctel/internal/event"
	"github.com/ppiankov/coctel/internal/report"
	"github.com/ppiankov/coctel/internal/resolve"
	"github.com/ppiankov/coctel/internal/store"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check configuration and store health",
	RunE:  doctorAction,
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}

// unclassifiedWarnPct is the share of events without position reported as info.
const unclassifiedWarnPct = 20

func doctorAction(cmd *cobra.Command, _ []string) error {
	ok := true

	// Config dir
	if info, err := os.Stat(configDir); err != nil || !info.IsDir() {
		printCheck(false, "config directory %s", configDir)
		ok = false
	} else {
		printCheck(true, "config directory %s", configDir)
	}

	// Config file, regions included
	cfg, err := config.Load(configDir)
	if err != nil {
		printCheck(false, "config.yaml: %v", err)
		ok = false
	} else {
		printCheck(true, "config.yaml (timezone %s, top %d, precision %d)",
			cfg.Report.Timezone, cfg.Report.TopN, cfg.PrecisionDigits())
	}

	regionsPath := filepath.Join(configDir, config.DefaultRegionsFile)
	if _, err := os.Stat(regionsPath); err != nil {
		printInfo("no %s: region reports will be empty", config.DefaultRegionsFile)
	} else if cfg != nil {
		printCheck(true, "%s (%d regions)", config.DefaultRegionsFile, len(cfg.Regions))
	}

	// Database
	var db *store.Store
	if cfg != nil {
		db, err = store.Open(cfg.Storage.Path)
		if err != nil {
			printCheck(false, "database: %v", err)
			ok = false
		} else {
			defer func() { _ = db.Close() }()
			printCheck(true, "database %s", cfg.Storage.Path)
		}
	}

	// Data quality (info-level, non-fatal)
	if db != nil && cfg != nil {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		checkDataQuality(ctx, db, cfg)
	}

	if !ok {
		return fmt.Errorf("some checks failed")
	}
	fmt.Println("\nAll checks passed.")
	return nil
}

func checkDataQuality(ctx context.Context, db *store.Store, cfg *config.Config) {
	stats, err := db.Stats(ctx)
	if err != nil || stats.Events == 0 {
		return // no data yet, skip
	}

	fmt.Println()
	if p := pct(stats.Unclassified, stats.Events); p >= unclassifiedWarnPct {
		printInfo("unclassified: %.0f%% of %d events have no position, position and stance reports leave them out", p, stats.Events)
	}
	if stats.Broadcasts+stats.Posts == 0 {
		printInfo("no associations: events are not linked to any program or post, every report will be empty")
	}

	checkBounce(ctx, db)

	if len(cfg.Regions) == 0 {
		return
	}
	locs, err := db.Locations(ctx)
	if err != nil {
		return
	}
	byLoc := cfg.Regions.ByLocation()
	var unmapped []string
	for _, l := range locs {
		if _, ok := byLoc[l]; !ok {
			unmapped = append(unmapped, l)
		}
	}
	if len(unmapped) > 0 {
		printInfo("unmapped: %d locations belong to no region and are left out of region reports: %v", len(unmapped), unmapped)
	}
}

// checkBounce reports, per source family, how many events have associations
// and how many countable units they bounce into.
func checkBounce(ctx context.Context, db *store.Store) {
	rows, err := db.Rows(ctx, report.Query{})
	if err != nil {
		return
	}
	idx := resolve.NewIndex(rows)

	for _, fam := range []struct {
		name string
		set  event.SourceSet
	}{
		{"broadcast", event.SourceBroadcast},
		{"social", event.SourceSocial},
	} {
		ids := idx.Events(fam.set)
		if len(ids) == 0 {
			continue
		}
		var (
			most   int
			mostID int64
		)
		for _, id := range ids {
			if n := len(idx.Associations(id, fam.set)); n > most {
				most, mostID = n, id
			}
		}
		units := dedup.Count(resolve.Scope(rows, fam.set), dedup.Grain{})
		printInfo("%s: %d events bounce into %d units (%.2f per event, most %d on event %d)",
			fam.name, len(ids), units, float64(units)/float64(len(ids)), most, mostID)
	}
}

func printCheck(pass bool, format string, args ...any) {
	mark := "FAIL"
	if pass {
		mark = " OK "
	}
	fmt.Printf("[%s] %s\n", mark, fmt.Sprintf(format, args...))
}

func printInfo(format string, args ...any) {
	fmt.Printf("[INFO] %s\n", fmt.Sprintf(format, args...))
}
