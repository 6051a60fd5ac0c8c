// Package config holds the tunable engine parameters.
//
// Parameters load from environment variables prefixed MELVIN_, optionally
// overridden by a YAML parameter file. The zero configuration path is
// Default(), which carries the design constants; most callers never set
// anything.
//
// Example Usage:
//
//	cfg := config.LoadFromEnv()
//	if err := cfg.Validate(); err != nil {
//		log.Fatalf("invalid config: %v", err)
//	}
//
// Environment Variables:
//   - MELVIN_ALPHA — Hebbian first-bind increment (default 1.0)
//   - MELVIN_GAMMA — context-tag decay factor (default 0.9)
//   - MELVIN_BETA — context-overlap scoring coefficient (default 1.0)
//   - MELVIN_ETA — hierarchy scoring coefficient (default 0.25)
//   - MELVIN_EPSILON — base exploration rate (default 0.1)
//   - MELVIN_LAMBDA — feedback rate (default 0.1)
//   - MELVIN_WAVE_CAP — wave bound W (default 16)
//   - MELVIN_TAG_CAP — context-tag bound K (default 24)
//   - MELVIN_MAX_PAYLOAD — payload bound P (default 256)
//   - MELVIN_HIERARCHY_MIN — promotion threshold floor (default 3)
//   - MELVIN_CLONE_WEIGHT — hierarchy clone weight (default 0.25)
//   - MELVIN_MAX_BYTES — default generation bound (default 256)
//   - MELVIN_SEED — RNG seed (default 1)
//   - MELVIN_DECAY_ENABLED — maintenance decay pass (default false)
//   - MELVIN_DECAY_HALF_LIFE — half-life of the decay pass (default 168h)
//   - MELVIN_DECAY_INTERVAL — background pass interval (default 1h)
//   - MELVIN_ARCHIVE_THRESHOLD — weight below which a decayed edge is
//     archived (default 0.01)
//   - MELVIN_ARCHIVE_DIR — Badger archive directory ("" disables)
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds every tunable parameter of the engine.
type Config struct {
	// Learning
	Alpha float64 `yaml:"alpha"`
	Gamma float64 `yaml:"gamma"`

	// Scoring
	Beta    float64 `yaml:"beta"`
	Eta     float64 `yaml:"eta"`
	Epsilon float64 `yaml:"epsilon"`

	// Feedback
	Lambda float64 `yaml:"lambda"`

	// Bounds
	WaveCap    int `yaml:"wave_cap"`
	TagCap     int `yaml:"tag_cap"`
	MaxPayload int `yaml:"max_payload"`

	// Hierarchy
	HierarchyMin uint64  `yaml:"hierarchy_min"`
	CloneWeight  float64 `yaml:"clone_weight"`

	// Generation
	MaxBytes int    `yaml:"max_bytes"`
	Seed     uint64 `yaml:"seed"`

	// Maintenance
	DecayEnabled     bool          `yaml:"decay_enabled"`
	DecayHalfLife    time.Duration `yaml:"decay_half_life"`
	DecayInterval    time.Duration `yaml:"decay_interval"`
	ArchiveThreshold float64       `yaml:"archive_threshold"`
	ArchiveDir       string        `yaml:"archive_dir"`
}

// Default returns the design constants.
func Default() *Config {
	return &Config{
		Alpha:            1.0,
		Gamma:            0.9,
		Beta:             1.0,
		Eta:              0.25,
		Epsilon:          0.1,
		Lambda:           0.1,
		WaveCap:          16,
		TagCap:           24,
		MaxPayload:       256,
		HierarchyMin:     3,
		CloneWeight:      0.25,
		MaxBytes:         256,
		Seed:             1,
		DecayEnabled:     false,
		DecayHalfLife:    7 * 24 * time.Hour,
		DecayInterval:    time.Hour,
		ArchiveThreshold: 0.01,
	}
}

// LoadFromEnv returns the defaults overridden by any MELVIN_* environment
// variables that are set.
func LoadFromEnv() *Config {
	c := Default()
	c.Alpha = getEnvFloat("MELVIN_ALPHA", c.Alpha)
	c.Gamma = getEnvFloat("MELVIN_GAMMA", c.Gamma)
	c.Beta = getEnvFloat("MELVIN_BETA", c.Beta)
	c.Eta = getEnvFloat("MELVIN_ETA", c.Eta)
	c.Epsilon = getEnvFloat("MELVIN_EPSILON", c.Epsilon)
	c.Lambda = getEnvFloat("MELVIN_LAMBDA", c.Lambda)
	c.WaveCap = getEnvInt("MELVIN_WAVE_CAP", c.WaveCap)
	c.TagCap = getEnvInt("MELVIN_TAG_CAP", c.TagCap)
	c.MaxPayload = getEnvInt("MELVIN_MAX_PAYLOAD", c.MaxPayload)
	c.HierarchyMin = uint64(getEnvInt("MELVIN_HIERARCHY_MIN", int(c.HierarchyMin)))
	c.CloneWeight = getEnvFloat("MELVIN_CLONE_WEIGHT", c.CloneWeight)
	c.MaxBytes = getEnvInt("MELVIN_MAX_BYTES", c.MaxBytes)
	c.Seed = uint64(getEnvInt("MELVIN_SEED", int(c.Seed)))
	c.DecayEnabled = getEnvBool("MELVIN_DECAY_ENABLED", c.DecayEnabled)
	c.DecayHalfLife = getEnvDuration("MELVIN_DECAY_HALF_LIFE", c.DecayHalfLife)
	c.DecayInterval = getEnvDuration("MELVIN_DECAY_INTERVAL", c.DecayInterval)
	c.ArchiveThreshold = getEnvFloat("MELVIN_ARCHIVE_THRESHOLD", c.ArchiveThreshold)
	c.ArchiveDir = getEnv("MELVIN_ARCHIVE_DIR", c.ArchiveDir)
	return c
}

// LoadFile overlays the YAML parameter file at path onto c.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	return nil
}

// Validate rejects parameter values outside their design ranges.
func (c *Config) Validate() error {
	if c.Alpha <= 0 {
		return fmt.Errorf("config: alpha must be positive, got %g", c.Alpha)
	}
	if c.Gamma <= 0 || c.Gamma >= 1 {
		return fmt.Errorf("config: gamma must be in (0,1), got %g", c.Gamma)
	}
	if c.Epsilon < 0 || c.Epsilon > 1 {
		return fmt.Errorf("config: epsilon must be in [0,1], got %g", c.Epsilon)
	}
	if c.Lambda <= 0 || c.Lambda >= 0.5 {
		return fmt.Errorf("config: lambda must be in (0,0.5), got %g", c.Lambda)
	}
	if c.WaveCap < 1 {
		return fmt.Errorf("config: wave_cap must be at least 1, got %d", c.WaveCap)
	}
	if c.TagCap < 1 {
		return fmt.Errorf("config: tag_cap must be at least 1, got %d", c.TagCap)
	}
	if c.MaxPayload < 1 {
		return fmt.Errorf("config: max_payload must be at least 1, got %d", c.MaxPayload)
	}
	if c.HierarchyMin < 1 {
		return fmt.Errorf("config: hierarchy_min must be at least 1, got %d", c.HierarchyMin)
	}
	if c.MaxBytes < 1 {
		return fmt.Errorf("config: max_bytes must be at least 1, got %d", c.MaxBytes)
	}
	if c.DecayEnabled {
		if c.DecayHalfLife <= 0 {
			return fmt.Errorf("config: decay_half_life must be positive, got %s", c.DecayHalfLife)
		}
		if c.DecayInterval <= 0 {
			return fmt.Errorf("config: decay_interval must be positive, got %s", c.DecayInterval)
		}
	}
	return nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		val = strings.ToLower(val)
		return val == "true" || val == "1" || val == "yes" || val == "on"
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
		if secs, err := strconv.Atoi(val); err == nil {
			return time.Duration(secs) * time.Second
		}
	}
	return defaultVal
}
