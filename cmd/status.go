package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/vanline-group/recon-cli/internal/model"
)

var statusJSON bool

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show record and linkage counts",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		summary, err := st.Summarize(ctx)
		if err != nil {
			return eris.Wrap(err, "status: summarize")
		}

		if statusJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return eris.Wrap(enc.Encode(summary), "status: encode")
		}

		fmt.Printf("Jobs:                   %d (%d linked, %d flagged duplicate, %d suspicious)\n",
			summary.Jobs, summary.LinkedJobs, summary.DuplicateJobs, summary.SuspiciousJobs)
		fmt.Printf("Booked opportunities:   %d\n", summary.BookedOpportunities)
		fmt.Printf("Leads:                  %d (%d linked)\n", summary.Leads, summary.LinkedLeads)
		fmt.Printf("Performance rows:       %d\n", summary.PerformanceRows)
		fmt.Println("Entities:")
		for _, kind := range []model.EntityKind{
			model.EntityCustomer, model.EntitySalesPerson, model.EntityBranch, model.EntityLeadSource,
		} {
			fmt.Printf("  %-20s  %d\n", kind, summary.Entities[kind])
		}
		return nil
	},
}

func init() {
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "emit JSON instead of text")
	rootCmd.AddCommand(statusCmd)
}
