package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ppiankov/coctel/internal/api"
	"github.com/ppiankov/coctel/internal/cache"
	"github.com/ppiankov/coctel/internal/report"
	"github.com/ppiankov/coctel/internal/store"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve reports as JSON over HTTP",
	RunE:  serveAction,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from config)")
	rootCmd.AddCommand(serveCmd)
}

func serveAction(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
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

	addr := cfg.Server.Addr
	if serveAddr != "" {
		addr = serveAddr
	}

	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	rows := cache.NewSource(db, cfg.Cache.Capacity, cfg.Cache.TTL.Duration, nil)
	logger.Debug("row cache", "capacity", cfg.Cache.Capacity, "ttl", cfg.Cache.TTL.Duration)

	srv := api.New(api.Options{
		Runner:    &report.Runner{Source: rows, Keyer: keyer, Logger: logger},
		Regions:   cfg.Regions,
		Location:  keyer.Bucketer.Location(),
		Precision: cfg.PrecisionDigits(),
		TopN:      cfg.Report.TopN,
		Logger:    logger,
	})
	return srv.ListenAndServe(ctx, addr)
}
