package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var catalogRefreshCmd = &cobra.Command{
	Use:   "catalog:refresh",
	Short: "Refresh the item catalog and customer directory",
	RunE:  runCatalogRefresh,
}

func init() {
	rootCmd.AddCommand(catalogRefreshCmd)
}

func runCatalogRefresh(cmd *cobra.Command, _ []string) error {
	a, err := setup()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	if err := a.InitAccounting(ctx); err != nil {
		return err
	}
	if err := a.WarmCaches(ctx); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "catalog refresh complete items=%d customers=%d\n", a.Items.Len(), a.Customers.Len())
	return nil
}
