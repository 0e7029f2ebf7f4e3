package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/zzygyx9119/ensembl-pipeline/artifact"
)

func newRetargetCmd() *cobra.Command {
	var literal bool

	cmd := &cobra.Command{
		Use:   "retarget <newRoot> [oldPattern]",
		Short: "Bulk-rewrite recorded artifact paths under a new root",
		Long: `Rewrites the stdout/stderr paths recorded for jobs whose current
status is older than --min-age days. Only the recorded paths move; the
physical files are never touched. Without oldPattern the conventional
pipe_<dataset>/<shard>/<leaf> layout is matched. With --literal the
pattern is a fixed path prefix (trailing separators normalized);
otherwise it is an anchored regular expression whose first capture
group is preserved under the new root.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			newRoot := args[0]

			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			var matcher artifact.PathMatcher
			if len(args) == 2 {
				if literal {
					matcher = artifact.NewLiteral(args[1])
				} else {
					matcher, err = artifact.NewPattern(args[1])
					if err != nil {
						return fmt.Errorf("configuration: bad pattern: %w", err)
					}
				}
			}

			store, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer store.Close()

			mgr := artifact.NewManager(cfg.OutputRoot,
				artifact.WithShardCount(cfg.ShardCount),
				artifact.WithLogger(logger),
			)

			report, err := mgr.Retarget(cmd.Context(), store, artifact.RetargetOptions{
				NewRoot: newRoot,
				Matcher: matcher,
				MinAge:  time.Duration(flagMinAge) * 24 * time.Hour,
				DryRun:  flagDryRun,
			})
			if err != nil {
				exitCode |= exitPipeFailed
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "examined %d, rewritten %d, missed %d\n",
				report.Examined, report.Rewritten, report.Missed)
			if flagDryRun {
				for _, p := range report.MatchSample {
					fmt.Fprintf(out, "  match: %s\n", p)
				}
				for _, p := range report.MissSample {
					fmt.Fprintf(out, "  miss:  %s\n", p)
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&literal, "literal", false, "treat oldPattern as a fixed prefix instead of a regular expression")
	return cmd
}
