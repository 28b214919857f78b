package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var gatewayCmd = &cobra.Command{
	Use:   "gateway CID",
	Short: "Print the public gateway URL of a CID",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Fprintln(cmd.OutOrStdout(), newPinataClient().GatewayURL(args[0]))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(gatewayCmd)
}
