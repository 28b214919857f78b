package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"go-omegaloops/internal/config"
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Check the configured Pinata credentials",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !config.HasPinataCredentials(globalConfig) {
			return errors.New("no Pinata credentials configured (PinataJWT or PinataApiKey/PinataSecretKey)")
		}
		if err := newPinataClient().TestAuthentication(cmd.Context()); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Pinata credentials are valid.")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(authCmd)
}
