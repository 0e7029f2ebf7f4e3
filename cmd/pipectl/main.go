// Command pipectl is the operator CLI for the pipeline's artifact
// maintenance operations: creating the sharded output trees, bulk
// retargeting recorded artifact paths after a storage move, and
// retention cleanup of stale artifacts.
//
// The exit status is a bitmask: bit 0 (1) means a directory operation
// failed, bit 1 (2) means the find/delete pipeline failed. Zero means
// full success. Configuration errors abort before any mutation.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	pipeline "github.com/zzygyx9119/ensembl-pipeline"
	"github.com/zzygyx9119/ensembl-pipeline/job"
	"github.com/zzygyx9119/ensembl-pipeline/store/postgres"
	"github.com/zzygyx9119/ensembl-pipeline/store/sqlite"
)

// Exit bitmask bits.
const (
	exitDirFailed  = 1 << 0
	exitPipeFailed = 1 << 1
)

var (
	flagConfig string
	flagDB     string
	flagMinAge int
	flagDryRun bool

	exitCode int
	logger   = slog.New(slog.NewTextHandler(os.Stderr, nil))
)

func main() {
	root := &cobra.Command{
		Use:           "pipectl",
		Short:         "Maintenance operations for pipeline job artifacts",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&flagConfig, "config", "pipeline.yaml", "pipeline configuration file")
	root.PersistentFlags().StringVar(&flagDB, "db", "pipeline.db", "job store: sqlite path or postgres:// URL")
	root.PersistentFlags().IntVar(&flagMinAge, "min-age", 30, "minimum current-status age in days before a job's artifacts are touched")
	root.PersistentFlags().BoolVar(&flagDryRun, "dry-run", false, "report what would change without mutating anything")

	root.AddCommand(newCreateCmd(), newRetargetCmd(), newCleanupCmd())

	if err := root.Execute(); err != nil {
		logger.Error("pipectl failed", slog.String("error", err.Error()))
		if exitCode == 0 {
			exitCode = exitPipeFailed
		}
	}
	os.Exit(exitCode)
}

// loadConfig loads and validates the configuration. Invalid
// configuration is fatal before any mutation happens.
func loadConfig() (pipeline.Config, error) {
	cfg, err := pipeline.LoadConfig(flagConfig)
	if err != nil {
		return cfg, fmt.Errorf("configuration: %w", err)
	}
	if flagMinAge < 0 {
		return cfg, fmt.Errorf("configuration: --min-age must be >= 0, got %d", flagMinAge)
	}
	return cfg, nil
}

// openStore opens the job store named by --db. A postgres:// URL
// selects the PostgreSQL store; anything else is a SQLite path.
func openStore(cmd *cobra.Command) (job.Store, error) {
	if strings.HasPrefix(flagDB, "postgres://") || strings.HasPrefix(flagDB, "postgresql://") {
		return postgres.New(cmd.Context(), flagDB)
	}
	return sqlite.Open(flagDB)
}
