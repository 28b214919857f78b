package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"go-omegaloops/internal/api"
	"go-omegaloops/internal/config"
	"go-omegaloops/internal/database"
	"go-omegaloops/internal/ledger"
	"go-omegaloops/internal/models"
)

// cfgFile holds the path to the config file specified by the user
var cfgFile string

// logLevel and logFormat configure logrus (see initLogging)
var (
	logLevel  string
	logFormat string
)

// logApiFlag holds the value of the --log-api flag
var logApiFlag bool

// apiTimeoutFlag holds the value of the --api-timeout flag
var apiTimeoutFlag int

// rpcUrlFlag holds the value of the --rpc-url flag
var rpcUrlFlag string

// concurrencyFlag holds the value of the --concurrency flag
var concurrencyFlag int

// globalConfig holds the loaded configuration
var globalConfig models.Config

// globalHttpTransport is the transport shared by the pinning and RPC clients
// (base or logging-wrapped)
var globalHttpTransport http.RoundTripper = http.DefaultTransport

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "omegaloops",
	Short: "Upload samples to IPFS and browse the Omegaloops marketplace",
	Long: `Omegaloops uploads audio and video samples to the Pinata pinning
service, registers them on the marketplace contract and lists the catalog
rebuilt from the contract's event log.`,
	PersistentPreRunE: loadGlobalConfig,
	SilenceUsage:      true,
	SilenceErrors:     true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	closeTransport()
	if err != nil {
		log.WithError(err).Error("Command failed")
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "config.toml", "Configuration file path")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Logging level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "Logging format (text, json)")
	rootCmd.PersistentFlags().BoolVar(&logApiFlag, "log-api", false, "Log API and RPC requests/responses to api.log (overrides config)")
	rootCmd.PersistentFlags().IntVar(&apiTimeoutFlag, "api-timeout", -1, "Timeout for the pinning API client in seconds (overrides config, -1 uses config default)")
	rootCmd.PersistentFlags().StringVar(&rpcUrlFlag, "rpc-url", "", "Ethereum JSON-RPC endpoint (overrides config)")
	rootCmd.PersistentFlags().IntVarP(&concurrencyFlag, "concurrency", "c", -1, "Parallel ledger detail reads (overrides config, -1 uses config default)")

	cobra.OnInitialize(initLogging)
}

// initLogging configures logrus based on persistent flags
func initLogging() {
	level, err := log.ParseLevel(logLevel)
	if err != nil {
		log.WithError(err).Warnf("Invalid log level '%s', using default 'info'", logLevel)
		level = log.InfoLevel
	}
	log.SetLevel(level)

	switch logFormat {
	case "json":
		log.SetFormatter(&log.JSONFormatter{})
	case "text":
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	default:
		log.Warnf("Invalid log format '%s', using default 'text'", logFormat)
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
	log.Debugf("Logging configured: Level=%s, Format=%s", log.GetLevel(), logFormat)
}

// loadGlobalConfig loads the config file, overlays the environment and flag
// overrides, applies defaults and sets up the shared HTTP transport.
func loadGlobalConfig(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig(cfgFile)
	if err != nil {
		return err
	}
	config.ApplyEnv(&cfg, viper.New())

	if cmd.Flags().Changed("log-api") {
		cfg.LogApiRequests = logApiFlag
		log.Debugf("Overriding LogApiRequests based on --log-api flag: %t", logApiFlag)
	}
	if cmd.Flags().Changed("api-timeout") {
		if apiTimeoutFlag > 0 {
			cfg.ApiClientTimeoutSec = apiTimeoutFlag
		} else {
			log.Warnf("--api-timeout flag provided with invalid value %d, using config value", apiTimeoutFlag)
		}
	}
	if cmd.Flags().Changed("rpc-url") && rpcUrlFlag != "" {
		cfg.RpcUrl = rpcUrlFlag
	}
	if cmd.Flags().Changed("concurrency") {
		if concurrencyFlag > 0 {
			cfg.Concurrency = concurrencyFlag
		} else {
			log.Warnf("--concurrency flag provided with invalid value %d, using config value", concurrencyFlag)
		}
	}
	config.ApplyDefaults(&cfg)
	globalConfig = cfg

	closeTransport()
	globalHttpTransport = http.DefaultTransport
	if globalConfig.LogApiRequests {
		logFilePath := "api.log"
		log.Infof("API logging to file: %s", logFilePath)
		lt, err := api.NewLoggingTransport(http.DefaultTransport, logFilePath)
		if err != nil {
			log.WithError(err).Error("Failed to initialize API logging transport, logging disabled.")
		} else {
			globalHttpTransport = lt
		}
	}
	return nil
}

func closeTransport() {
	if lt, ok := globalHttpTransport.(*api.LoggingTransport); ok {
		log.Debug("Closing API logging transport file.")
		if err := lt.Close(); err != nil {
			log.WithError(err).Error("Error closing API log file")
		}
		globalHttpTransport = http.DefaultTransport
	}
}

// newPinataClient builds the pinning client from globalConfig.
func newPinataClient() *api.PinataClient {
	httpClient := &http.Client{
		Transport: globalHttpTransport,
		Timeout:   time.Duration(globalConfig.ApiClientTimeoutSec) * time.Second,
	}
	return api.NewPinataClient(globalConfig, httpClient)
}

// ledgerDialer connects to the marketplace contract. Tests replace it.
var ledgerDialer = func(ctx context.Context, cfg models.Config) (ledger.Ledger, func(), error) {
	if cfg.ContractAddress == "" {
		return nil, nil, fmt.Errorf("ContractAddress is not configured (set it in %s or OMEGALOOPS_CONTRACT_ADDRESS)", cfgFile)
	}
	httpClient := &http.Client{
		Transport: globalHttpTransport,
		Timeout:   time.Duration(cfg.RpcTimeoutSec) * time.Second,
	}
	l, err := ledger.Dial(ctx, cfg, httpClient)
	if err != nil {
		return nil, nil, err
	}
	return l, l.Close, nil
}

// openJournal opens the upload journal at globalConfig.DatabasePath.
func openJournal() (*database.DB, error) {
	db, err := database.Open(globalConfig.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open upload journal: %w", err)
	}
	return db, nil
}
