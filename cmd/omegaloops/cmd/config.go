package cmd

import (
	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"

	"go-omegaloops/internal/models"
)

const redacted = "********"

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration with secrets redacted",
	Long: `Prints the configuration after the config file, OMEGALOOPS_* environment
variables, flags and defaults have been applied, in config file format.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return toml.NewEncoder(cmd.OutOrStdout()).Encode(redactConfig(globalConfig))
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
}

func redactConfig(cfg models.Config) models.Config {
	for _, secret := range []*string{&cfg.PinataJWT, &cfg.PinataApiKey, &cfg.PinataSecretKey, &cfg.PrivateKey} {
		if *secret != "" {
			*secret = redacted
		}
	}
	return cfg
}
