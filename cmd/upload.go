package main

import (
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/formicag/contractor-pay-tracker-sub000/internal/model"
)

var (
	uploadFilePath string
	uploadProcess  bool
)

var uploadCmd = &cobra.Command{
	Use:   "upload",
	Short: "Register a pay file for processing",
	Long:  "Copies the spreadsheet into blob storage and creates an UPLOADED submission. With --process the pipeline runs immediately.",
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

		f, err := os.Open(uploadFilePath)
		if err != nil {
			return eris.Wrapf(err, "open %s", uploadFilePath)
		}
		defer f.Close() //nolint:errcheck

		filename := filepath.Base(uploadFilePath)
		key, err := bs.Put(ctx, filename, f)
		if err != nil {
			return eris.Wrap(err, "store pay file")
		}

		sub := &model.Submission{Filename: filename}
		if err := st.CreateSubmission(ctx, sub); err != nil {
			return eris.Wrap(err, "create submission")
		}

		zap.L().Info("submission registered",
			zap.String("submission_id", sub.ID),
			zap.String("filename", filename),
			zap.String("blob_key", key),
		)

		if uploadProcess {
			return runPipeline(ctx, st, bs, sub.ID)
		}
		return nil
	},
}

func init() {
	uploadCmd.Flags().StringVar(&uploadFilePath, "file", "", "path to the xlsx pay file (required)")
	uploadCmd.Flags().BoolVar(&uploadProcess, "process", false, "run the pipeline immediately after upload")
	_ = uploadCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(uploadCmd)
}
