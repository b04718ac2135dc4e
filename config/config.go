// Package config loads the node configuration file.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/tolelom/qorachain/block"
	"github.com/tolelom/qorachain/consensus"
	"github.com/tolelom/qorachain/crypto"
)

// Config holds all node configuration.
type Config struct {
	DataDir     string `json:"data_dir"`
	LogLevel    string `json:"log_level"`
	MetricsAddr string `json:"metrics_addr"` // empty disables the metrics endpoint
	RPCAddr     string `json:"rpc_addr"`     // empty disables the RPC endpoint
	// RPCRequestsPerSecond limits RPC calls across all clients; 0 is unlimited.
	RPCRequestsPerSecond float64 `json:"rpc_requests_per_second"`

	// Peers are RPC endpoints of nodes to synchronise from.
	Peers          []string `json:"peers"`
	SyncIntervalMs int64    `json:"sync_interval_ms"`

	// ForgingKeys are keystore paths; all share one password.
	ForgingKeys     []string `json:"forging_keys"`
	ForgeIntervalMs int64    `json:"forge_interval_ms"`
	// ClockOffsetMs shifts the forger's view of wall time, as set by an
	// external time source.
	ClockOffsetMs int64 `json:"clock_offset_ms"`

	Params  consensus.Params   `json:"params"`
	Genesis []block.Allocation `json:"genesis"`
}

// DefaultConfig returns a single-node development configuration on the main
// network schedule with an empty genesis.
func DefaultConfig() *Config {
	return &Config{
		DataDir:              "./data",
		LogLevel:             "info",
		MetricsAddr:          "127.0.0.1:9464",
		RPCAddr:              "127.0.0.1:9085",
		RPCRequestsPerSecond: 50,
		SyncIntervalMs:       int64(30 * time.Second / time.Millisecond),
		ForgeIntervalMs:      int64(time.Second / time.Millisecond),
		Params:               consensus.DefaultParams(),
	}
}

// ForgeInterval is the forger tick period.
func (c *Config) ForgeInterval() time.Duration {
	return time.Duration(c.ForgeIntervalMs) * time.Millisecond
}

// SyncInterval is the pause between synchronisation rounds.
func (c *Config) SyncInterval() time.Duration {
	return time.Duration(c.SyncIntervalMs) * time.Millisecond
}

// ClockOffset is ClockOffsetMs as a duration.
func (c *Config) ClockOffset() time.Duration {
	return time.Duration(c.ClockOffsetMs) * time.Millisecond
}

// Validate reports the first problem that would stop a node from starting.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return errors.New("data_dir is required")
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("log_level: %w", err)
	}
	if c.RPCRequestsPerSecond < 0 {
		return errors.New("rpc_requests_per_second must not be negative")
	}
	if len(c.Peers) > 0 && c.SyncIntervalMs <= 0 {
		return fmt.Errorf("sync_interval_ms must be positive, got %d", c.SyncIntervalMs)
	}
	if c.ForgeIntervalMs <= 0 {
		return fmt.Errorf("forge_interval_ms must be positive, got %d", c.ForgeIntervalMs)
	}
	p := c.Params
	if p.MinBlockTime <= 0 || p.MaxBlockTime <= p.MinBlockTime {
		return fmt.Errorf("block time window [%d, %d] is empty", p.MinBlockTime, p.MaxBlockTime)
	}
	if p.MinBalance.Sign() <= 0 || p.MaxBalance.Cmp(p.MinBalance) <= 0 {
		return fmt.Errorf("generating balance range [%s, %s] is invalid", p.MinBalance, p.MaxBalance)
	}
	if p.RetargetInterval <= 0 {
		return errors.New("retarget_interval must be positive")
	}
	if p.MaxATsPerBlock <= 0 || p.MaxATBytes <= 0 {
		return fmt.Errorf("AT limits must be positive, got %d ATs and %d bytes", p.MaxATsPerBlock, p.MaxATBytes)
	}
	if p.NativeAssetName == "" {
		return errors.New("native_asset_name is required")
	}
	if len(c.Genesis) == 0 {
		return errors.New("genesis has no allocations")
	}
	for i, alloc := range c.Genesis {
		if !crypto.IsValidAddress(alloc.Recipient) || crypto.IsATAddress(alloc.Recipient) {
			return fmt.Errorf("genesis[%d]: invalid recipient %q", i, alloc.Recipient)
		}
		if alloc.Amount.Sign() <= 0 {
			return fmt.Errorf("genesis[%d]: amount must be positive", i)
		}
	}
	return nil
}

// Load reads a JSON config file from path over the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes the config to path as formatted JSON.
func Save(cfg *Config, path string) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
