package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"go-omegaloops/internal/models"

	"github.com/BurntSushi/toml"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g. OMEGALOOPS_PINATA_JWT.
const EnvPrefix = "OMEGALOOPS"

const (
	DefaultPinataApiUrl        = "https://api.pinata.cloud"
	DefaultGatewayUrl          = "https://gateway.pinata.cloud/ipfs/"
	DefaultRpcUrl              = "http://127.0.0.1:8545"
	DefaultDatabasePath        = "omegaloops_db"
	DefaultBleveIndexPath      = "omegaloops.bleve"
	DefaultConcurrency         = 4
	DefaultApiClientTimeoutSec = 300 // uploads of up to 100 MiB
	DefaultRpcTimeoutSec       = 30
)

// LoadConfig reads the configuration from the specified path (defaulting to
// "config.toml"). A missing file is not an error: the zero config is
// returned so environment variables and flags can still supply everything.
func LoadConfig(configFilePath string) (models.Config, error) {
	if configFilePath == "" {
		configFilePath = "config.toml"
	}
	var cfg models.Config
	_, err := toml.DecodeFile(configFilePath, &cfg)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			log.Debugf("Config file %s not found, continuing with defaults", configFilePath)
			return cfg, nil
		}
		return models.Config{}, fmt.Errorf("error loading config file %s: %w", configFilePath, err)
	}

	log.Infof("Configuration loaded from %s", configFilePath)
	return cfg, nil
}

// ApplyEnv overlays OMEGALOOPS_* environment variables on cfg. Only variables
// that are actually set override the file values.
func ApplyEnv(cfg *models.Config, v *viper.Viper) {
	if v == nil {
		v = viper.New()
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	strs := map[string]*string{
		"pinata_jwt":        &cfg.PinataJWT,
		"pinata_api_key":    &cfg.PinataApiKey,
		"pinata_secret_key": &cfg.PinataSecretKey,
		"pinata_api_url":    &cfg.PinataApiUrl,
		"gateway_url":       &cfg.GatewayUrl,
		"rpc_url":           &cfg.RpcUrl,
		"contract_address":  &cfg.ContractAddress,
		"private_key":       &cfg.PrivateKey,
		"database_path":     &cfg.DatabasePath,
		"bleve_index_path":  &cfg.BleveIndexPath,
	}
	for key, dst := range strs {
		if v.IsSet(key) {
			*dst = v.GetString(key)
			log.Debugf("Config %s overridden from environment", key)
		}
	}

	ints := map[string]*int{
		"concurrency":            &cfg.Concurrency,
		"api_client_timeout_sec": &cfg.ApiClientTimeoutSec,
		"rpc_timeout_sec":        &cfg.RpcTimeoutSec,
	}
	for key, dst := range ints {
		if v.IsSet(key) {
			*dst = v.GetInt(key)
			log.Debugf("Config %s overridden from environment: %d", key, *dst)
		}
	}

	if v.IsSet("from_block") {
		cfg.FromBlock = v.GetUint64("from_block")
	}
	if v.IsSet("log_api_requests") {
		cfg.LogApiRequests = v.GetBool("log_api_requests")
	}
}

// ApplyDefaults fills unset or invalid values.
func ApplyDefaults(cfg *models.Config) {
	if cfg.PinataApiUrl == "" {
		cfg.PinataApiUrl = DefaultPinataApiUrl
	}
	cfg.PinataApiUrl = strings.TrimRight(cfg.PinataApiUrl, "/")
	if cfg.GatewayUrl == "" {
		cfg.GatewayUrl = DefaultGatewayUrl
	}
	if !strings.HasSuffix(cfg.GatewayUrl, "/") {
		cfg.GatewayUrl += "/"
	}
	if cfg.RpcUrl == "" {
		cfg.RpcUrl = DefaultRpcUrl
	}
	if cfg.DatabasePath == "" {
		cfg.DatabasePath = DefaultDatabasePath
	}
	if cfg.BleveIndexPath == "" {
		cfg.BleveIndexPath = DefaultBleveIndexPath
	}
	if cfg.Concurrency <= 0 {
		if cfg.Concurrency < 0 {
			log.Warnf("Invalid Concurrency %d, using default %d", cfg.Concurrency, DefaultConcurrency)
		}
		cfg.Concurrency = DefaultConcurrency
	}
	if cfg.ApiClientTimeoutSec <= 0 {
		cfg.ApiClientTimeoutSec = DefaultApiClientTimeoutSec
	}
	if cfg.RpcTimeoutSec <= 0 {
		cfg.RpcTimeoutSec = DefaultRpcTimeoutSec
	}
}

// HasPinataCredentials reports whether either auth scheme is fully configured.
func HasPinataCredentials(cfg models.Config) bool {
	return cfg.PinataJWT != "" || (cfg.PinataApiKey != "" && cfg.PinataSecretKey != "")
}
