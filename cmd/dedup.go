package main

import (
	"context"
	"sync/atomic"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/vanline-group/recon-cli/internal/dedup"
	"github.com/vanline-group/recon-cli/internal/model"
	"github.com/vanline-group/recon-cli/internal/resilience"
	"github.com/vanline-group/recon-cli/internal/store"
)

var (
	dedupCustomerID string
	dedupExecute    bool
)

var dedupCmd = &cobra.Command{
	Use:   "dedup",
	Short: "Detect duplicate jobs per customer",
	Long: `Runs the three-level duplicate classifier over every customer's linked jobs.

Level 1 flags records whose full tuple collides: customer, job date, type,
entry timestamp, both addresses, and cost all equal (confidence 0.99).
Level 2 flags same-customer jobs whose dates and entry timestamps fall
inside a short window with both addresses similar above the configured
threshold (0.85). Level 3 flags same-customer jobs within a day sharing the
same city pair at a near-identical cost (0.70); these go to review only. Each customer partition is classified independently and its
flags commit in one transaction, so a failed partition retries wholesale
without corrupting the rest of the batch.

By default this is a dry run: partitions are classified and counts reported,
but no flags are written. Pass --execute to persist them.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		log := zap.L().With(zap.String("command", "dedup"))

		st, err := initPostgres(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		var customerIDs []string
		if dedupCustomerID != "" {
			customerIDs = []string{dedupCustomerID}
		} else {
			customerIDs, err = st.ListJobCustomerIDs(ctx)
			if err != nil {
				return eris.Wrap(err, "dedup: list partitions")
			}
		}
		if len(customerIDs) == 0 {
			log.Info("no linked jobs to classify")
			return nil
		}

		classifier := dedup.New(dedup.OptionsFromConfig(cfg.Matching))
		retryCfg := resilience.ForBatch(cfg.Batch.MaxRetries)
		retryCfg.OnRetry = resilience.RetryLogger("postgres", "dedup")

		var flagged, exact, fuzzy, suspicious int64

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(cfg.Batch.MaxConcurrentPartitions)
		for _, customerID := range customerIDs {
			customerID := customerID
			g.Go(func() error {
				res, err := classifyPartition(gctx, st, classifier, retryCfg, customerID)
				if err != nil {
					return eris.Wrapf(err, "dedup: partition %s", customerID)
				}
				for _, f := range res.Flags {
					if f.IsDuplicate {
						atomic.AddInt64(&flagged, 1)
					}
				}
				atomic.AddInt64(&exact, int64(res.LevelCounts[model.LevelExact]))
				atomic.AddInt64(&fuzzy, int64(res.LevelCounts[model.LevelFuzzy]))
				atomic.AddInt64(&suspicious, int64(res.LevelCounts[model.LevelSuspicious]))
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}

		log.Info("duplicate detection complete",
			zap.Bool("dry_run", !dedupExecute),
			zap.Int("partitions", len(customerIDs)),
			zap.Int64("flagged", flagged),
			zap.Int64("exact", exact),
			zap.Int64("fuzzy", fuzzy),
			zap.Int64("suspicious", suspicious),
		)
		if !dedupExecute {
			log.Info("dry run: no flags were written; pass --execute to apply")
		}
		return nil
	},
}

// classifyPartition classifies one customer's jobs and persists the flags.
// Classification is deterministic, so the retry wraps the whole read-classify-
// write cycle rather than just the final transaction.
func classifyPartition(ctx context.Context, st *store.PostgresStore, classifier *dedup.Classifier, retryCfg resilience.RetryConfig, customerID string) (dedup.Result, error) {
	return resilience.DoVal(ctx, retryCfg, func(ctx context.Context) (dedup.Result, error) {
		jobs, err := st.ListJobs(ctx, store.JobFilter{CustomerID: customerID})
		if err != nil {
			return dedup.Result{}, err
		}

		res := classifier.Classify(jobs)
		if !dedupExecute {
			return res, nil
		}
		if err := dedup.SaveFlags(ctx, st.Pool(), res); err != nil {
			return dedup.Result{}, err
		}
		return res, nil
	})
}

func init() {
	dedupCmd.Flags().BoolVar(&dedupExecute, "execute", false, "persist duplicate flags (default is a dry run)")
	dedupCmd.Flags().StringVar(&dedupCustomerID, "customer", "", "classify a single customer partition")
	rootCmd.AddCommand(dedupCmd)
}
