package config

import (
	"os"
	"sync"

	"gopkg.in/yaml.v2"
)

// NetworksConfig holds a map of per-network config overrides, keyed by a
// short network name (e.g. "mainnet", "polygon", "arbitrum").
type NetworksConfig struct {
	Networks map[string]Config `yaml:"networks"`
}

// Manager resolves the effective config for a given network, merging that
// network's overrides on top of the global config. A DeepTrace deployment
// tracing several EVM chains runs one supervisor per network but shares a
// single binary/config file, each pulling its own RPC endpoint, chain ID
// and attack-detector tuning out of the same networks.yaml.
type Manager struct {
	globalConfig   *Config
	networkConfigs map[string]Config
	mu             sync.RWMutex
}

// NewManager loads the master config and the networks overrides file.
func NewManager(masterPath, networksPath string) (*Manager, error) {
	master, err := LoadConfig(masterPath)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(networksPath)
	if err != nil {
		if os.IsNotExist(err) {
			return &Manager{globalConfig: master, networkConfigs: make(map[string]Config)}, nil
		}
		return nil, err
	}
	defer f.Close()

	var nc NetworksConfig
	if err := yaml.NewDecoder(f).Decode(&nc); err != nil {
		return nil, err
	}

	return &Manager{
		globalConfig:   master,
		networkConfigs: nc.Networks,
	}, nil
}

// Get returns the effective config for a network, applying that network's
// overrides (if any) on top of a copy of the global config. Overrides
// apply per section, not per field: the RPC, AttackDetector, Snapshot,
// Pipeline and Simulation sections are each replaced whole when the
// override sets that section's key field(s), so zero-valued fields inside
// a replaced section stay zero; sections the override leaves unset, and
// the Server, Audit, Memory and Live sections, keep the global values.
func (m *Manager) Get(network string) *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()

	effective := *m.globalConfig

	override, ok := m.networkConfigs[network]
	if !ok {
		return &effective
	}

	if override.RPC.Endpoint != "" {
		effective.RPC = override.RPC
	}
	if override.AttackDetector.BaseFeeWei != 0 || override.AttackDetector.EntropyToleranceWindow != 0 {
		effective.AttackDetector = override.AttackDetector
	}
	if override.Snapshot.DBPath != "" {
		effective.Snapshot = override.Snapshot
	}
	if override.Pipeline.TickIntervalMs != 0 || override.Pipeline.LagBlocks != 0 {
		effective.Pipeline = override.Pipeline
	}
	if override.Simulation.Image != "" {
		effective.Simulation = override.Simulation
	}

	return &effective
}

// Networks returns the configured network names.
func (m *Manager) Networks() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.networkConfigs))
	for name := range m.networkConfigs {
		names = append(names, name)
	}
	return names
}
