package main

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/rpattn/advfilters/internal/db"
	"github.com/rpattn/advfilters/internal/log"
)

func NewMigrateCommand(root *rootOptions) *cobra.Command {
	var down bool
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply (or with --down revert) the filter store migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.load()
			if err != nil {
				return err
			}
			if !cfg.UsesSQL() {
				return errors.New("the memory driver has nothing to migrate")
			}
			conn, err := db.Open(cmd.Context(), cfg.Database)
			if err != nil {
				return err
			}
			defer conn.Close()

			if down {
				if err := db.RollbackMigrations(conn); err != nil {
					return err
				}
				log.Infof("migrations rolled back")
				return nil
			}
			return db.RunMigrations(cmd.Context(), conn)
		},
	}
	cmd.Flags().BoolVar(&down, "down", false, "revert every migration (postgres only)")
	return cmd
}
