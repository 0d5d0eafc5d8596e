package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/formicag/contractor-pay-tracker-sub000/internal/store"
)

var migrateSeedPath string

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the schema and optionally seed reference data",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return eris.Wrap(err, "init store")
		}
		defer st.Close()

		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate schema")
		}
		zap.L().Info("schema migrated", zap.String("driver", cfg.Store.Driver))

		if migrateSeedPath == "" {
			return nil
		}

		data, err := os.ReadFile(migrateSeedPath)
		if err != nil {
			return eris.Wrapf(err, "read seed file %s", migrateSeedPath)
		}
		var seed store.SeedData
		if err := yaml.Unmarshal(data, &seed); err != nil {
			return eris.Wrapf(err, "parse seed file %s", migrateSeedPath)
		}
		if err := st.SeedReference(ctx, &seed); err != nil {
			return eris.Wrap(err, "seed reference data")
		}

		zap.L().Info("reference data seeded",
			zap.Int("intermediaries", len(seed.Intermediaries)),
			zap.Int("pay_periods", len(seed.PayPeriods)),
			zap.Int("contractors", len(seed.Contractors)),
			zap.Int("associations", len(seed.Associations)),
			zap.Int("permanent_staff", len(seed.PermanentStaff)),
		)
		return nil
	},
}

func init() {
	migrateCmd.Flags().StringVar(&migrateSeedPath, "seed", "", "YAML file of reference data to upsert after migrating")
	rootCmd.AddCommand(migrateCmd)
}
