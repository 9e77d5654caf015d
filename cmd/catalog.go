package cmd

import (
	"github.com/spf13/cobra"

	"github.com/xkilldash9x/pathtaint/internal/analysis/static/pathtaint/catalog"
)

// newCatalogCmd creates the `catalog` command. Its output can be edited and
// passed back with --catalog and --no-default-catalog.
func newCatalogCmd() *cobra.Command {
	catalogCmd := &cobra.Command{
		Use:   "catalog",
		Short: "Prints the effective taint catalog as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := getConfigFromContext(cmd.Context())
			if err != nil {
				return err
			}
			cat, err := buildCatalog(cfg.Catalog())
			if err != nil {
				return err
			}
			return catalog.Write(cmd.OutOrStdout(), cat.Entries())
		},
	}
	addCatalogFlags(catalogCmd.Flags())
	return catalogCmd
}
