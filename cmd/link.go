package main

import (
	"context"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/vanline-group/recon-cli/internal/linkage"
	"github.com/vanline-group/recon-cli/internal/resilience"
)

var (
	linkExecute     bool
	linkSkipQuotes  bool
	linkPerformance bool
)

var linkCmd = &cobra.Command{
	Use:   "link",
	Short: "Link unresolved records to canonical entities",
	Long: `Runs the linkage strategies over all unlinked records.

Jobs are linked to customers through four strategies in priority order:
booked-opportunity contact match, email, phone, then name plus city pair for
records with no contact details. Leads are linked to booked opportunities by
quote number. Already linked records are never touched, so re-running is a
no-op.

By default this is a dry run: every strategy executes and reports its counts,
then the transaction rolls back. Pass --execute to commit.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		log := zap.L().With(zap.String("command", "link"))

		st, err := initPostgres(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		resolver := linkage.NewResolver(st.Pool(), !linkExecute)
		retryCfg := resilience.ForBatch(cfg.Batch.MaxRetries)
		retryCfg.OnRetry = resilience.RetryLogger("postgres", "link")

		stats, err := resilience.DoVal(ctx, retryCfg, func(ctx context.Context) (linkage.JobLinkStats, error) {
			return resolver.LinkJobs(ctx)
		})
		if err != nil {
			return eris.Wrap(err, "link jobs")
		}

		var quotesLinked int64
		if !linkSkipQuotes {
			quotesLinked, err = resilience.DoVal(ctx, retryCfg, func(ctx context.Context) (int64, error) {
				return resolver.LinkQuotes(ctx)
			})
			if err != nil {
				return eris.Wrap(err, "link quotes")
			}
		}

		log.Info("linkage pass complete",
			zap.Bool("dry_run", !linkExecute),
			zap.Int64("via_booked_opportunity", stats.ViaBookedOpportunity),
			zap.Int64("by_email", stats.ByEmail),
			zap.Int64("by_phone", stats.ByPhone),
			zap.Int64("by_name_city", stats.ByNameCity),
			zap.Int64("jobs_linked", stats.Total()),
			zap.Int64("quotes_linked", quotesLinked),
		)

		if linkPerformance {
			perf, err := resolver.LinkPerformanceRows(ctx, cfg.Matching.SimilarityThreshold)
			if err != nil {
				return eris.Wrap(err, "link performance rows")
			}
			log.Info("performance linkage complete",
				zap.Int64("linked", perf.Linked),
				zap.Int64("unmatched", perf.Unmatched),
			)
		}

		if !linkExecute {
			log.Info("dry run: no changes were committed; pass --execute to apply")
		}
		return nil
	},
}

func init() {
	linkCmd.Flags().BoolVar(&linkExecute, "execute", false, "commit linkage updates (default is a dry run)")
	linkCmd.Flags().BoolVar(&linkSkipQuotes, "skip-quotes", false, "skip lead-to-booked-opportunity quote linkage")
	linkCmd.Flags().BoolVar(&linkPerformance, "performance", false, "also link performance rows to salespeople by fuzzy name")
	rootCmd.AddCommand(linkCmd)
}
