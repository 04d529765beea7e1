// Package cli provides the command-line interface for coctel.
package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/ppiankov/coctel/internal/aggregate"
	"github.com/ppiankov/coctel/internal/bucket"
	"github.com/ppiankov/coctel/internal/config"
	"github.com/ppiankov/coctel/internal/logging"
)

// Version and Commit are set via ldflags at build time.
var (
	Version = "dev"
	Commit  = "none"
)

var (
	configDir string
	logLevel  string
)

var rootCmd = &cobra.Command{
	Use:   "coctel",
	Short: "Aggregate media-monitoring events into reports",
	Long: "coctel ingests events observed on radio, TV and social pages, counts them " +
		"once per program or post they bounced through, and reports counts, shares, " +
		"weekly and monthly trends and top-N rankings.",
	SilenceUsage: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(_ *cobra.Command, _ []string) {
		fmt.Printf("coctel %s (%s)\n", Version, Commit)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configDir, "config-dir", config.DefaultConfigDir, "configuration directory")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error (overrides config)")
	rootCmd.AddCommand(versionCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// loadConfig reads the config directory. A directory without config.yaml
// runs on defaults, with its regions.yaml if there is one.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configDir)
	if errors.Is(err, fs.ErrNotExist) {
		cfg = config.Default()
		regionsPath := filepath.Join(configDir, config.DefaultRegionsFile)
		if _, statErr := os.Stat(regionsPath); statErr == nil {
			if cfg.Regions, err = config.LoadRegions(regionsPath); err != nil {
				return nil, fmt.Errorf("load config: %w", err)
			}
		}
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// newLogger builds the stderr logger. --log-level wins over the config.
func newLogger(cfg *config.Config) (*log.Logger, error) {
	level := cfg.Log.Level
	if logLevel != "" {
		level = logLevel
	}
	return logging.New(os.Stderr, level)
}

// newKeyer maps rows to dimension values in the configured timezone and
// regions.
func newKeyer(cfg *config.Config) (aggregate.Keyer, error) {
	b, err := bucket.NewFor(cfg.Report.Timezone)
	if err != nil {
		return aggregate.Keyer{}, err
	}
	return aggregate.Keyer{
		Bucketer:         b,
		Regions:          cfg.Regions.ByLocation(),
		IncludeUndefined: cfg.Report.IncludeUndefined,
	}, nil
}
