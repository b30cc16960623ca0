package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rpattn/advfilters/internal/schema"
)

// NewSchemaCommand prints the entity registry as YAML, so an introspected
// schema can be saved and edited into a schema file.
func NewSchemaCommand(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print the entity registry as YAML",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.load()
			if err != nil {
				return err
			}
			conn, err := openDatabase(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			if conn != nil {
				defer conn.Close()
			}
			reg, err := loadRegistry(cmd.Context(), cfg, conn)
			if err != nil {
				return err
			}
			out, err := schema.Dump(reg.Entities())
			if err != nil {
				return err
			}
			_, err = fmt.Fprint(cmd.OutOrStdout(), string(out))
			return err
		},
	}
}
