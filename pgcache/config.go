package pgcache

import (
	"time"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"
)

// Default values from spec.md §6's configuration table.
const (
	DefaultFullUpdateTimeout        = 60 * time.Second
	DefaultIncrementalUpdateTimeout = time.Second
	DefaultUpdateCorrection         = 0
	DefaultChunkSize                = 0
)

// Config is the runtime configuration from spec.md §6. It is loadable
// from YAML (LoadConfig) for service deployment, or built programmatically
// with the Option functions below for tests and examples — the same
// dual path the teacher's Options[K,V] struct offers its callers, plus a
// file-loading path the teacher never needed because it ships as a pure
// library, not a bound service component.
type Config struct {
	// Backend is the name used to resolve the backend component via
	// backend.Registry.Resolve. Required.
	Backend string `yaml:"pgcomponent"`

	// FullUpdateTimeout bounds full-update query execution.
	FullUpdateTimeout time.Duration `yaml:"full-update-op-timeout"`
	// IncrementalUpdateTimeout bounds delta-query execution.
	IncrementalUpdateTimeout time.Duration `yaml:"incremental-update-op-timeout"`
	// UpdateCorrection is subtracted from last-update time to form the
	// delta watermark. Must be >= 0.
	UpdateCorrection time.Duration `yaml:"update-correction"`
	// ChunkSize is the server-side cursor batch size. 0 selects the
	// single-round-trip path.
	ChunkSize int `yaml:"chunk-size"`

	// AllowedUpdateTypes additionally constrains which Kind values the
	// cache accepts, beyond what the policy itself supports. The zero
	// value infers support entirely from the policy (full-only, or
	// full+incremental when the policy enables it). Setting
	// KindIncremental here against a policy with incremental disabled is
	// a construction-time error ("incremental requested but updated-field
	// is empty"), per spec.md §4.1.
	AllowedUpdateTypes Kind `yaml:"-"`
}

// Option mutates a Config during programmatic construction.
type Option func(*Config)

// WithBackend sets the backend component name.
func WithBackend(name string) Option { return func(c *Config) { c.Backend = name } }

// WithFullUpdateTimeout overrides the full-update command timeout.
func WithFullUpdateTimeout(d time.Duration) Option {
	return func(c *Config) { c.FullUpdateTimeout = d }
}

// WithIncrementalUpdateTimeout overrides the delta-query command timeout.
func WithIncrementalUpdateTimeout(d time.Duration) Option {
	return func(c *Config) { c.IncrementalUpdateTimeout = d }
}

// WithUpdateCorrection overrides the delta watermark correction window.
func WithUpdateCorrection(d time.Duration) Option {
	return func(c *Config) { c.UpdateCorrection = d }
}

// WithChunkSize overrides the server-side cursor batch size.
func WithChunkSize(n int) Option { return func(c *Config) { c.ChunkSize = n } }

// WithAllowedUpdateTypes overrides which Kind values are accepted.
func WithAllowedUpdateTypes(k Kind) Option { return func(c *Config) { c.AllowedUpdateTypes = k } }

// NewConfig builds a Config with spec.md §6 defaults, then applies opts
// in order.
func NewConfig(opts ...Option) Config {
	cfg := Config{
		FullUpdateTimeout:        DefaultFullUpdateTimeout,
		IncrementalUpdateTimeout: DefaultIncrementalUpdateTimeout,
		UpdateCorrection:         DefaultUpdateCorrection,
		ChunkSize:                DefaultChunkSize,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// LoadConfig parses YAML bytes into a Config, starting from spec.md §6
// defaults and overlaying whatever keys are present in data.
func LoadConfig(data []byte) (Config, error) {
	cfg := NewConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, errors.Wrap(err, "pgcache: parse configuration")
	}
	return cfg, nil
}

// Validate checks the configuration-time invariants of spec.md §4.1 that
// concern runtime options rather than the policy itself.
func (c Config) Validate() error {
	if c.Backend == "" {
		return errors.New("pgcache config: pgcomponent (backend name) must not be empty")
	}
	if c.UpdateCorrection < 0 {
		return errors.New("pgcache config: update-correction refused (must be >= 0)")
	}
	if c.ChunkSize < 0 {
		return errors.New("pgcache config: chunk-size must be >= 0")
	}
	return nil
}
