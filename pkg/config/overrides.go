package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

const jsonEnvSuffix = "__JSON"

// applyJSONOverrides scans the process environment for variables named
// ETH_PROVER_<FIELD>__JSON and JSON-decodes their value onto the
// matching field, overriding whatever Unmarshal already set. This is
// how an explicit `null` is distinguished from an unset key: a plain
// ETH_PROVER_ETHPROOFS_CLUSTER_ID is always a non-empty string (or
// absent), but ETH_PROVER_ETHPROOFS_CLUSTER_ID__JSON=null can express
// "cluster ID is not set" even when some other layer (the YAML file)
// set a value.
func applyJSONOverrides(v *viper.Viper, cfg *Config) error {
	prefix := strings.ToUpper(v.GetEnvPrefix()) + "_"

	for _, kv := range os.Environ() {
		name, value, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		if !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, jsonEnvSuffix) {
			continue
		}
		field := strings.TrimSuffix(strings.TrimPrefix(name, prefix), jsonEnvSuffix)

		if err := setJSONField(cfg, field, value); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}

	return nil
}

func setJSONField(cfg *Config, field, value string) error {
	switch strings.ToLower(field) {
	case "ethproofs_cluster_id":
		var id *uint64
		if err := json.Unmarshal([]byte(value), &id); err != nil {
			return fmt.Errorf("decode uint64-or-null: %w", err)
		}
		cfg.EthproofsClusterID = id
		return nil
	case "block_mod":
		var n uint64
		if err := json.Unmarshal([]byte(value), &n); err != nil {
			return fmt.Errorf("decode uint64: %w", err)
		}
		cfg.BlockMod = n
		return nil
	case "prover_id":
		var n uint64
		if err := json.Unmarshal([]byte(value), &n); err != nil {
			return fmt.Errorf("decode uint64: %w", err)
		}
		cfg.ProverID = n
		return nil
	default:
		return fmt.Errorf("no __JSON override is defined for field %q", field)
	}
}
