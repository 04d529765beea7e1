package cli

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/ppiankov/coctel/internal/store"
)

var pruneDays int

var pruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete events older than the retention window",
	RunE:  pruneAction,
}

func init() {
	pruneCmd.Flags().IntVar(&pruneDays, "days", 0, "retention in days (default storage.retain_days)")
	rootCmd.AddCommand(pruneCmd)
}

func pruneAction(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	days := cfg.Storage.RetainDays
	if pruneDays > 0 {
		days = pruneDays
	}
	if days <= 0 {
		fmt.Println("Retention is disabled (storage.retain_days is 0); nothing to prune.")
		return nil
	}

	db, err := store.Open(cfg.Storage.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() { _ = db.Close() }()

	n, err := db.PruneOld(cmd.Context(), days)
	if err != nil {
		return fmt.Errorf("prune: %w", err)
	}
	fmt.Printf("Pruned %s events older than %d days.\n", humanize.Comma(n), days)
	return nil
}
