package cmd

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/tanpawarit/Chative-Commerce-Tools/store"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the products, orders and order_lines tables",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := log.Logger.WithContext(cmd.Context())

		db, err := openDatabase(ctx)
		if err != nil {
			return err
		}
		defer db.Close()

		return store.Migrate(ctx, db)
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
