package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/zzygyx9119/ensembl-pipeline/artifact"
)

func newCleanupCmd() *cobra.Command {
	var opDelay time.Duration

	cmd := &cobra.Command{
		Use:   "cleanup [roots...]",
		Short: "Delete stale job artifacts older than the retention window",
		Long: `Recursively finds job_<id>_<timestamp>.out/.err files under the given
roots (default: the configured output and fallback roots) whose
modification, change, and access times are all older than --min-age
days, and deletes them. Deletion is rate-limited to bound sustained
load on shared storage. Counts already processed are reported even
when the walk fails partway.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			roots := args
			if len(roots) == 0 {
				roots = []string{cfg.OutputRoot}
				if cfg.FallbackRoot != "" {
					roots = append(roots, cfg.FallbackRoot)
				}
			}

			mgr := artifact.NewManager(cfg.OutputRoot,
				artifact.WithShardCount(cfg.ShardCount),
				artifact.WithLogger(logger),
				artifact.WithOpDelay(opDelay),
			)

			report, err := mgr.Cleanup(cmd.Context(), roots, artifact.CleanupOptions{
				MinAgeDays: flagMinAge,
				DryRun:     flagDryRun,
			})

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "scanned %d, stale %d, deleted %d, failed %d\n",
				report.Scanned, report.Stale, report.Deleted, report.Failed)

			if err != nil {
				exitCode |= exitPipeFailed
				return err
			}
			if report.Failed > 0 {
				exitCode |= exitPipeFailed
			}
			return nil
		},
	}

	cmd.Flags().DurationVar(&opDelay, "op-delay", 100*time.Millisecond, "fixed delay between filesystem operations")
	return cmd
}
