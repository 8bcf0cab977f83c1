package main

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/vanline-group/recon-cli/internal/model"
)

var reviewOutPath string

var reviewCmd = &cobra.Command{
	Use:   "review",
	Short: "Export suspicious duplicates for manual review",
	Long: `Exports the jobs flagged at the lowest-confidence duplicate level as CSV.

Level 3 flags mark patterns worth a human look, not records safe to
auto-merge; this export is the review queue.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		jobs, err := st.ListSuspiciousJobs(ctx)
		if err != nil {
			return eris.Wrap(err, "review: list suspicious jobs")
		}

		out := os.Stdout
		if reviewOutPath != "" {
			out, err = os.Create(reviewOutPath)
			if err != nil {
				return eris.Wrapf(err, "review: create %s", reviewOutPath)
			}
			defer out.Close() //nolint:errcheck
		}

		if err := writeReviewCSV(out, jobs); err != nil {
			return err
		}

		zap.L().Info("review export complete",
			zap.Int("jobs", len(jobs)),
			zap.String("output", outputName(reviewOutPath)),
		)
		return nil
	},
}

func outputName(path string) string {
	if path == "" {
		return "stdout"
	}
	return path
}

func writeReviewCSV(out *os.File, jobs []model.Job) error {
	w := csv.NewWriter(out)
	header := []string{
		"id", "job_number", "customer_id", "customer_name", "job_type",
		"job_date", "origin_city", "destination_city",
		"total_estimated_cost", "duplicate_confidence",
	}
	if err := w.Write(header); err != nil {
		return eris.Wrap(err, "review: write header")
	}

	for _, j := range jobs {
		var jobDate, cost string
		if j.JobDate != nil {
			jobDate = j.JobDate.Format(time.RFC3339)
		}
		if j.TotalEstimatedCost != nil {
			cost = strconv.FormatFloat(*j.TotalEstimatedCost, 'f', 2, 64)
		}
		row := []string{
			j.ID, j.JobNumber, j.CustomerID, j.CustomerName, j.JobType,
			jobDate, j.OriginCity, j.DestinationCity,
			cost, fmt.Sprintf("%.2f", j.DuplicateConfidence),
		}
		if err := w.Write(row); err != nil {
			return eris.Wrapf(err, "review: write job %s", j.ID)
		}
	}

	w.Flush()
	return eris.Wrap(w.Error(), "review: flush csv")
}

func init() {
	reviewCmd.Flags().StringVarP(&reviewOutPath, "out", "o", "", "write CSV to file instead of stdout")
	rootCmd.AddCommand(reviewCmd)
}
