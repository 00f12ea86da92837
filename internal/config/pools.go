package config

import (
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"github.com/stablerotor/rotor/internal/types"
)

// PoolCatalog is the loaded venue catalog plus its id index. Immutable after
// load; PoolByID lookups must never fail for a referenced id.
type PoolCatalog struct {
	Pools    []types.PoolConfig
	PoolByID map[types.PoolID]types.PoolConfig
}

type poolsFile struct {
	Pools []types.PoolConfig `yaml:"pools"`
}

// LoadPools reads the YAML venue catalog and builds the id index.
// Duplicate ids and malformed entries are configuration errors.
func LoadPools(path string) (*PoolCatalog, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read pool catalog %s: %w", path, err)
	}

	var file poolsFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("failed to parse pool catalog %s: %w", path, err)
	}
	if len(file.Pools) == 0 {
		return nil, fmt.Errorf("pool catalog %s contains no pools", path)
	}

	catalog := &PoolCatalog{
		Pools:    file.Pools,
		PoolByID: make(map[types.PoolID]types.PoolConfig, len(file.Pools)),
	}

	for i := range catalog.Pools {
		p := &catalog.Pools[i]
		if p.ID == "" {
			return nil, fmt.Errorf("pool catalog entry %d has no id", i)
		}
		if _, dup := catalog.PoolByID[p.ID]; dup {
			return nil, fmt.Errorf("duplicate pool id %q in catalog", p.ID)
		}
		if p.AdapterID == "" {
			return nil, fmt.Errorf("pool %q has no adapter_id", p.ID)
		}
		if p.Token == "" {
			return nil, fmt.Errorf("pool %q has no token", p.ID)
		}
		p.Token = types.NormalizeSymbol(string(p.Token))
		p.RewardToken = types.NormalizeSymbol(string(p.RewardToken))
		catalog.PoolByID[p.ID] = *p
	}

	enabled := 0
	for _, p := range catalog.Pools {
		if p.Enabled {
			enabled++
		}
	}
	log.Info().
		Int("pools", len(catalog.Pools)).
		Int("enabled", enabled).
		Str("path", path).
		Msg("Pool catalog loaded")

	return catalog, nil
}

// PoolsFilePath returns the configured catalog path for tools that do not
// load the full runtime Config.
func PoolsFilePath() string {
	return getEnvWithDefault("ROTOR_POOLS_FILE", "pools.yaml")
}

// Enabled returns the enabled subset of the catalog, preserving order.
func (c *PoolCatalog) Enabled() []types.PoolConfig {
	out := make([]types.PoolConfig, 0, len(c.Pools))
	for _, p := range c.Pools {
		if p.Enabled {
			out = append(out, p)
		}
	}
	return out
}
