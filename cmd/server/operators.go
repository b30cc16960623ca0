package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/rpattn/advfilters/internal/domain"
	"github.com/rpattn/advfilters/internal/operators"
)

var listedKinds = []domain.FieldKind{
	domain.FieldKindText,
	domain.FieldKindEmail,
	domain.FieldKindURL,
	domain.FieldKindSlug,
	domain.FieldKindBoolean,
	domain.FieldKindInteger,
	domain.FieldKindFloat,
	domain.FieldKindDecimal,
	domain.FieldKindDate,
	domain.FieldKindDateTime,
	domain.FieldKindTime,
	domain.FieldKindUUID,
	domain.FieldKindJSON,
	domain.FieldKindRelation,
}

// NewOperatorsCommand prints the operator table after configured overrides.
func NewOperatorsCommand(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "operators",
		Short: "List the operators available per field kind",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.load()
			if err != nil {
				return err
			}
			catalog, err := newCatalog(cfg)
			if err != nil {
				return err
			}
			return printOperators(cmd, catalog)
		},
	}
}

func printOperators(cmd *cobra.Command, catalog *operators.Catalog) error {
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "KIND\tOPERATORS")
	for _, kind := range listedKinds {
		keys := ""
		for i, choice := range catalog.ForKind(kind) {
			if i > 0 {
				keys += ", "
			}
			keys += string(choice.Key)
		}
		fmt.Fprintf(tw, "%s\t%s\n", kind, keys)
	}
	return tw.Flush()
}
