package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ppiankov/coctel/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create config directory with example files",
	RunE:  initAction,
}

func init() {
	rootCmd.AddCommand(initCmd)
}

func initAction(_ *cobra.Command, _ []string) error {
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	created := 0
	for _, f := range []struct {
		name string
		body string
	}{
		{config.DefaultConfigFile, exampleConfig},
		{config.DefaultRegionsFile, exampleRegions},
	} {
		wrote, err := writeIfNotExists(filepath.Join(configDir, f.name), []byte(f.body))
		if err != nil {
			return err
		}
		if wrote {
			created++
		}
	}

	if created == 0 {
		fmt.Printf("Config directory %s already initialized.\n", configDir)
	} else {
		fmt.Printf("Initialized %s with %d config files.\n", configDir, created)
	}
	return nil
}

// writeIfNotExists writes data to path if the file does not exist.
// Returns true if the file was created.
func writeIfNotExists(path string, data []byte) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		fmt.Printf("  exists: %s\n", path)
		return false, nil
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return false, fmt.Errorf("write %s: %w", path, err)
	}
	fmt.Printf("  created: %s\n", path)
	return true, nil
}

const exampleConfig = `# coctel configuration

storage:
  path: .coctel/coctel.db
  retain_days: 0 # keep everything

report:
  timezone: "America/Lima"
  top_n: 5
  precision: 1
  include_undefined: false

cache:
  ttl: 5m
  capacity: 256

server:
  addr: "127.0.0.1:8089"

log:
  level: info
`

const exampleRegions = `# coctel macro-regions: each location belongs to at most one region

regions:
  Lima y Callao:
    - Lima
    - Callao
  Norte:
    - Piura
    - Tumbes
    - Lambayeque
    - La Libertad
    - Cajamarca
  Centro:
    - Junin
    - Huancavelica
    - Pasco
    - Huanuco
    - Ancash
    - Ica
  Sur:
    - Arequipa
    - Cusco
    - Puno
    - Tacna
    - Moquegua
    - Apurimac
    - Ayacucho
  Oriente:
    - Loreto
    - Ucayali
    - San Martin
    - Madre de Dios
    - Amazonas
`
