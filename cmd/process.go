package main

import (
	"context"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/formicag/contractor-pay-tracker-sub000/internal/blob"
	"github.com/formicag/contractor-pay-tracker-sub000/internal/model"
	"github.com/formicag/contractor-pay-tracker-sub000/internal/pipeline"
	"github.com/formicag/contractor-pay-tracker-sub000/internal/store"
)

var processSubmissionID string

var processCmd = &cobra.Command{
	Use:   "process",
	Short: "Run the ingestion pipeline for a submission",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return eris.Wrap(err, "init store")
		}
		defer st.Close()

		bs, err := initBlob()
		if err != nil {
			return eris.Wrap(err, "init blob storage")
		}

		return runPipeline(ctx, st, bs, processSubmissionID)
	},
}

func runPipeline(ctx context.Context, st store.Store, bs blob.Storage, submissionID string) error {
	sub, err := pipeline.New(cfg, st, bs, zap.L()).Run(ctx, submissionID)
	if err != nil {
		return eris.Wrapf(err, "process submission %s", submissionID)
	}

	fields := []zap.Field{
		zap.String("submission_id", sub.ID),
		zap.String("status", string(sub.Status)),
		zap.Int("total_records", sub.TotalRecords),
		zap.Int("valid_records", sub.ValidRecords),
	}
	if sub.Status == model.StatusError {
		zap.L().Warn("submission rejected", fields...)
		return nil
	}
	zap.L().Info("submission processed", fields...)
	return nil
}

func init() {
	processCmd.Flags().StringVar(&processSubmissionID, "id", "", "submission ID (required)")
	_ = processCmd.MarkFlagRequired("id")
	rootCmd.AddCommand(processCmd)
}
