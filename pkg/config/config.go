// Package config loads and validates the prover's configuration from a
// YAML file, an optional .env file, and environment variables, in that
// order of increasing precedence.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Mode selects which proving backend a ProverWorker runs.
type Mode string

const (
	ModeCPUWitness Mode = "cpu_witness"
	ModeGPUProve   Mode = "gpu_prove"
)

// CachePolicy controls when the CacheManager prunes a cached block.
type CachePolicy string

const (
	CachePolicyOff        CachePolicy = "off"
	CachePolicyOnFailure  CachePolicy = "on_failure"
	CachePolicyAlways     CachePolicy = "always"
)

// EthproofsSubmission selects which ethproofs.org environment, if any,
// proving progress is reported to.
type EthproofsSubmission string

const (
	EthproofsOff        EthproofsSubmission = "off"
	EthproofsStaging    EthproofsSubmission = "staging"
	EthproofsProduction EthproofsSubmission = "prod"
)

// Enabled reports whether submission is configured at all.
func (s EthproofsSubmission) Enabled() bool { return s != EthproofsOff && s != "" }

// OnFailure controls what a ProverWorker does when a block fails.
type OnFailure string

const (
	OnFailureExit     OnFailure = "exit"
	OnFailureContinue OnFailure = "continue"
)

// Config is the fully resolved configuration for a single prover
// instance.
type Config struct {
	AppBinPath string `mapstructure:"app_bin_path"`

	Mode                Mode                `mapstructure:"mode"`
	CachePolicy         CachePolicy         `mapstructure:"cache_policy"`
	EthproofsSubmission EthproofsSubmission `mapstructure:"ethproofs_submission"`
	OnFailure           OnFailure           `mapstructure:"on_failure"`

	BlockMod uint64 `mapstructure:"block_mod"`
	ProverID uint64 `mapstructure:"prover_id"`

	RPCURL             string  `mapstructure:"rpc_url"`
	EthproofsToken     string  `mapstructure:"ethproofs_token"`
	EthproofsClusterID *uint64 `mapstructure:"ethproofs_cluster_id"`
	SentryDSN          string  `mapstructure:"sentry_dsn"`

	CacheDir string `mapstructure:"cache_dir"`
}

// defaults mirrors the original prover's field defaults: CPU-witness
// mode, keep cache only for failing blocks, submission off, a single
// non-striped prover, and fail-fast on error.
func defaults() map[string]any {
	return map[string]any{
		"app_bin_path":         "./artifacts/app.bin",
		"mode":                 string(ModeCPUWitness),
		"cache_policy":         string(CachePolicyOnFailure),
		"ethproofs_submission": string(EthproofsOff),
		"on_failure":           string(OnFailureExit),
		"block_mod":            1,
		"prover_id":            0,
		"cache_dir":            ".cache",
	}
}

// Load reads configuration from configPath (YAML), then an optional
// .env file in the current directory, then environment variables
// prefixed ETH_PROVER_ (e.g. ETH_PROVER_RPC_URL), in that order of
// increasing precedence. A variable suffixed __JSON is JSON-decoded
// before being applied, which is how an explicit null is distinguished
// from an unset key for the nullable fields (ethproofs_cluster_id
// chiefly).
func Load(configPath string) (*Config, error) {
	v := viper.New()
	for key, value := range defaults() {
		v.SetDefault(key, value)
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", configPath, err)
		}
	}

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("config: read .env: %w", err)
	}

	v.SetEnvPrefix("eth_prover")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// Unmarshal only sees keys viper already knows of; keys without a
	// default are bound explicitly so their environment variables apply
	// even when the YAML file does not set them.
	for _, key := range []string{"rpc_url", "ethproofs_token", "ethproofs_cluster_id", "sentry_dsn"} {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("config: bind env %s: %w", key, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	if err := applyJSONOverrides(v, &cfg); err != nil {
		return nil, fmt.Errorf("config: apply __JSON overrides: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}
