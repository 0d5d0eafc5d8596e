package main

import (
	"encoding/json"
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/formicag/contractor-pay-tracker-sub000/internal/model"
)

var (
	statusSubmissionID string
	statusJSON         bool
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show a submission and its validation findings",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return eris.Wrap(err, "init store")
		}
		defer st.Close()

		sub, err := st.GetSubmission(ctx, statusSubmissionID)
		if err != nil {
			return eris.Wrapf(err, "load submission %s", statusSubmissionID)
		}
		findings, err := st.ListFindings(ctx, statusSubmissionID)
		if err != nil {
			return eris.Wrap(err, "load findings")
		}

		if statusJSON {
			out := struct {
				Submission *model.Submission `json:"submission"`
				Findings   []model.Finding   `json:"findings"`
			}{sub, findings}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		}

		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "submission %s\n", sub.ID)
		fmt.Fprintf(w, "  file:    %s\n", sub.Filename)
		fmt.Fprintf(w, "  status:  %s", sub.Status)
		if sub.IsCurrentVersion {
			fmt.Fprintf(w, " (current, v%d)", sub.Version)
		}
		fmt.Fprintln(w)
		if sub.Status == model.StatusFailed {
			fmt.Fprintf(w, "  failed:  %s: %s\n", sub.FailureStage, sub.FailureReason)
		}
		fmt.Fprintf(w, "  records: %d total, %d valid, %d rejected\n",
			sub.TotalRecords, sub.ValidRecords, sub.ErrorRecords)

		if len(findings) > 0 {
			fmt.Fprintf(w, "findings (%d):\n", len(findings))
			for _, f := range findings {
				fmt.Fprintf(w, "  [%s] row %d %s: %s\n", f.Severity, f.RowNumber, f.Kind, f.Message)
				if f.SuggestedFix != "" {
					fmt.Fprintf(w, "           fix: %s\n", f.SuggestedFix)
				}
			}
		}
		return nil
	},
}

func init() {
	statusCmd.Flags().StringVar(&statusSubmissionID, "id", "", "submission ID (required)")
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "emit JSON instead of text")
	_ = statusCmd.MarkFlagRequired("id")
	rootCmd.AddCommand(statusCmd)
}
