// Package config holds the simulation parameters of a pipeline run.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Masterminds/semver/v3"
	"go.yaml.in/yaml/v3"

	"github.com/sarchlab/rv5sim/emu"
)

// ErrInvalidConfig is returned by Validate for out-of-range values.
var ErrInvalidConfig = errors.New("invalid config")

// CurrentVersion is the schema version written by SaveConfig.
const CurrentVersion = "1.0.0"

// supportedVersions is the range of schema versions this build reads.
const supportedVersions = "^1"

// IllegalPolicy selects how the pipeline treats undecodable words.
type IllegalPolicy string

// Illegal instruction policies.
const (
	// IllegalBubble flows the word through the pipeline as a no-op.
	IllegalBubble IllegalPolicy = "bubble"
	// IllegalAbort stops the run with an error.
	IllegalAbort IllegalPolicy = "abort"
)

// Config holds the parameters of one simulation.
type Config struct {
	// Version is the config schema version. Default: CurrentVersion.
	Version string `json:"version" yaml:"version"`

	// MaxCycles bounds the run. Default: 100000 cycles.
	MaxCycles uint64 `json:"max_cycles" yaml:"max_cycles"`

	// MemorySize is the data memory capacity in bytes.
	// Default: 2000005 bytes.
	MemorySize uint64 `json:"memory_size" yaml:"memory_size"`

	// Forwarding enables operand forwarding from the MEM stage. Without it
	// every dependency stalls until the producer has written back.
	// Default: true.
	Forwarding bool `json:"forwarding" yaml:"forwarding"`

	// IllegalPolicy is "bubble" or "abort". Default: bubble.
	IllegalPolicy IllegalPolicy `json:"illegal_policy" yaml:"illegal_policy"`
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		Version:       CurrentVersion,
		MaxCycles:     100000,
		MemorySize:    emu.DefaultMemorySize,
		Forwarding:    true,
		IllegalPolicy: IllegalBubble,
	}
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

// LoadConfig loads a Config from a JSON or YAML file (chosen by the .yaml or
// .yml extension). Fields missing from the file keep their defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if isYAML(path) {
		err = yaml.Unmarshal(data, config)
	} else {
		err = json.Unmarshal(data, config)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return config, nil
}

// SaveConfig writes a Config to a JSON or YAML file.
func (c *Config) SaveConfig(path string) error {
	var (
		data []byte
		err  error
	)
	if isYAML(path) {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("failed to serialize config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks the version and every value.
func (c *Config) Validate() error {
	version, err := semver.NewVersion(c.Version)
	if err != nil {
		return fmt.Errorf("%w: version %q: %v", ErrInvalidConfig, c.Version, err)
	}

	constraint, err := semver.NewConstraint(supportedVersions)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if !constraint.Check(version) {
		return fmt.Errorf("%w: version %s is not %s", ErrInvalidConfig, version, supportedVersions)
	}

	if c.MaxCycles == 0 {
		return fmt.Errorf("%w: max_cycles must be > 0", ErrInvalidConfig)
	}
	if c.MemorySize == 0 || c.MemorySize > 1<<32 {
		return fmt.Errorf("%w: memory_size must be in (0, 4GiB]", ErrInvalidConfig)
	}

	switch c.IllegalPolicy {
	case IllegalBubble, IllegalAbort:
	default:
		return fmt.Errorf("%w: illegal_policy must be %q or %q, got %q",
			ErrInvalidConfig, IllegalBubble, IllegalAbort, c.IllegalPolicy)
	}

	return nil
}

// Clone returns a copy of the Config.
func (c *Config) Clone() *Config {
	clone := *c
	return &clone
}
