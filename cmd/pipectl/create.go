package main

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/zzygyx9119/ensembl-pipeline/artifact"
	"github.com/zzygyx9119/ensembl-pipeline/job"
)

func newCreateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "create <outputRoot> <defaultRoot>",
		Short: "Create the sharded artifact trees for every configured analysis",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputRoot, defaultRoot := args[0], args[1]

			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			mgr := artifact.NewManager(outputRoot,
				artifact.WithShardCount(cfg.ShardCount),
				artifact.WithLogger(logger),
			)

			analyses := make([]job.Analysis, 0, len(cfg.Analyses)+1)
			for _, a := range cfg.Analyses {
				analyses = append(analyses, a.Analysis())
			}
			// The deployment's fallback tree is created alongside the
			// per-analysis trees so relocation always has a landing spot.
			analyses = append(analyses, job.Analysis{
				LogicName:  "default",
				OutputRoot: defaultRoot,
			})

			if flagDryRun {
				logger.Info("dry run: would create shard trees",
					slog.Int("analyses", len(analyses)),
					slog.Int("shards", cfg.ShardCount),
					slog.String("root", outputRoot),
				)
				return nil
			}

			err = mgr.EnsureRoots(analyses)
			var dirErrs artifact.DirErrors
			if errors.As(err, &dirErrs) {
				// Per-directory failures are reported individually and
				// folded into the exit bitmask; the batch completed.
				for _, de := range dirErrs {
					logger.Error("directory operation failed",
						slog.String("dir", de.Dir),
						slog.String("error", de.Err.Error()),
					)
				}
				exitCode |= exitDirFailed
				fmt.Fprintf(cmd.OutOrStdout(), "created trees with %d failures\n", len(dirErrs))
				return nil
			}
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "created %d shard trees under %s\n",
				len(analyses)*cfg.ShardCount, outputRoot)
			return nil
		},
	}
}
