package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var recordsSubmissionID string

var recordsCmd = &cobra.Command{
	Use:   "records",
	Short: "List the pay records imported for a submission",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return eris.Wrap(err, "init store")
		}
		defer st.Close()

		recs, err := st.ListPayRecords(ctx, recordsSubmissionID)
		if err != nil {
			return eris.Wrapf(err, "list records for %s", recordsSubmissionID)
		}

		w := cmd.OutOrStdout()
		for _, r := range recs {
			active := "active"
			if !r.IsActive {
				active = "inactive"
			}
			fmt.Fprintf(w, "row %3d  %-10s %-20s %6.1f days @ %8.2f  net %10.2f  vat %9.2f  %s  %s\n",
				r.RowNumber, r.EmployeeID, r.Forename+" "+r.Surname,
				r.UnitDays, r.DayRate, r.Amount, r.VATAmount, r.RecordType, active)
		}
		fmt.Fprintf(w, "%d records\n", len(recs))
		return nil
	},
}

func init() {
	recordsCmd.Flags().StringVar(&recordsSubmissionID, "id", "", "submission ID (required)")
	_ = recordsCmd.MarkFlagRequired("id")
	rootCmd.AddCommand(recordsCmd)
}
