package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"go-omegaloops/internal/models"
)

var categoriesCmd = &cobra.Command{
	Use:   "categories",
	Short: "Print the category taxonomy accepted by submit",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		for _, g := range models.Categories {
			fmt.Fprintf(out, "%s\n", g.Name)
			for _, leaf := range g.Subcategories {
				fmt.Fprintf(out, "  %s\n", leaf)
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(categoriesCmd)
}
