// config.go - Configuration management for the shield daemon
package main

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"shield/internal/merkle"
	"shield/internal/program"
)

// Config represents the daemon configuration
type Config struct {
	// Storage
	DataDir  string `json:"data_dir"`
	InMemory bool   `json:"in_memory"`

	// Circuits: serialized verifying keys plus their published digests
	DepositKeyPath    string `json:"deposit_key_path"`
	DepositKeyDigest  string `json:"deposit_key_digest"`
	WithdrawKeyPath   string `json:"withdraw_key_path"`
	WithdrawKeyDigest string `json:"withdraw_key_digest"`

	// Verification
	Ceiling     uint32 `json:"ceiling"`
	TreeDepth   int    `json:"tree_depth"`
	RootHistory int    `json:"root_history"`

	// HTTP
	ListenAddr string `json:"listen_addr"`

	// Logging
	LogLevel string `json:"log_level"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		DataDir:     "data",
		InMemory:    false,
		Ceiling:     program.DefaultCeiling,
		TreeDepth:   merkle.DefaultDepth,
		RootHistory: merkle.DefaultHistory,
		ListenAddr:  ":8790",
		LogLevel:    "info",
	}
}

// LoadConfig loads configuration from file or creates default
func LoadConfig(configPath string) (*Config, error) {
	if _, err := os.Stat(configPath); err == nil {
		file, err := os.Open(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open config file: %w", err)
		}
		defer file.Close()

		var config Config
		if err := json.NewDecoder(file).Decode(&config); err != nil {
			return nil, fmt.Errorf("failed to decode config file: %w", err)
		}
		return &config, nil
	}

	config := DefaultConfig()
	if err := SaveConfig(config, configPath); err != nil {
		return nil, fmt.Errorf("failed to save default config: %w", err)
	}
	return config, nil
}

// SaveConfig saves configuration to file
func SaveConfig(config *Config, configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	file, err := os.Create(configPath)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(config); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.DepositKeyPath == "" && c.WithdrawKeyPath == "" {
		return fmt.Errorf("at least one of deposit_key_path, withdraw_key_path must be set")
	}
	if c.DepositKeyPath != "" {
		if _, err := c.digest(c.DepositKeyDigest); err != nil {
			return fmt.Errorf("deposit_key_digest: %w", err)
		}
	}
	if c.WithdrawKeyPath != "" {
		if _, err := c.digest(c.WithdrawKeyDigest); err != nil {
			return fmt.Errorf("withdraw_key_digest: %w", err)
		}
	}
	if c.Ceiling == 0 {
		return fmt.Errorf("ceiling must be positive")
	}
	if c.TreeDepth < 1 || c.TreeDepth > merkle.MaxDepth {
		return fmt.Errorf("tree_depth must be in [1, %d]", merkle.MaxDepth)
	}
	if c.RootHistory < 1 {
		return fmt.Errorf("root_history must be positive")
	}
	if c.ListenAddr == "" {
		return fmt.Errorf("listen_addr must be set")
	}
	return nil
}

// digest decodes a hex-encoded SHA-256 digest from the config.
func (c *Config) digest(s string) ([32]byte, error) {
	var out [32]byte
	raw, err := hex.DecodeString(s)
	if err != nil {
		return out, fmt.Errorf("invalid hex: %w", err)
	}
	if len(raw) != 32 {
		return out, fmt.Errorf("digest must be 32 bytes, got %d", len(raw))
	}
	copy(out[:], raw)
	return out, nil
}

// DepositDigest returns the decoded deposit key digest
func (c *Config) DepositDigest() ([32]byte, error) {
	return c.digest(c.DepositKeyDigest)
}

// WithdrawDigest returns the decoded withdraw key digest
func (c *Config) WithdrawDigest() ([32]byte, error) {
	return c.digest(c.WithdrawKeyDigest)
}
