package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"go-omegaloops/internal/helpers"
	"go-omegaloops/internal/uploader"
)

var validateCmd = &cobra.Command{
	Use:   "validate FILE",
	Short: "Check whether a file can be uploaded, without uploading it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		asset, f, err := uploader.OpenAsset(args[0])
		if err != nil {
			return err
		}
		defer f.Close()
		if err := uploader.Validate(asset); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %s, %s, ok\n", asset.Name, asset.MediaType, helpers.BytesToSize(uint64(asset.Size)))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
