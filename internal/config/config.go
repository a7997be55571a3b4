// Package config provides configuration structures and defaults for GravelKV.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

const (
	defaultMaxLevel      = 16
	defaultProbability   = 0.5
	defaultWALFileName   = "wal.log"
	defaultWALBufferSize = 64 * 1024
	defaultBlockSize     = 4096
	defaultLogLevel      = "info"
	defaultLogFormat     = "text"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid config")

var validate = validator.New()

// LoggingConfig selects the log level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level" validate:"omitempty,oneof=debug info warn error"`
	Format string `yaml:"format" validate:"omitempty,oneof=text json"`
}

// Config holds all tunable parameters for GravelKV.
type Config struct {
	// MaxLevel caps the height of memtable skip list nodes.
	MaxLevel int `yaml:"max_level" validate:"min=1,max=64"`
	// Probability is the skip list promotion probability. Zero is valid and
	// yields a flat sorted list, so it is never replaced by a default.
	Probability float64 `yaml:"probability" validate:"gte=0,lte=1"`
	// Seed seeds node height draws. Zero seeds from the clock.
	Seed int64 `yaml:"seed"`

	WALFileName   string `yaml:"wal_file_name" validate:"required"`
	WALBufferSize int    `yaml:"wal_buffer_size" validate:"min=1"`

	BlockSize     int  `yaml:"block_size" validate:"min=1"`
	CheckKeyOrder bool `yaml:"check_key_order"`

	Logging LoggingConfig `yaml:"logging"`
}

// DefaultConfig returns a Config struct populated with default values.
func DefaultConfig() *Config {
	return &Config{
		MaxLevel:      defaultMaxLevel,
		Probability:   defaultProbability,
		WALFileName:   defaultWALFileName,
		WALBufferSize: defaultWALBufferSize,
		BlockSize:     defaultBlockSize,
		Logging: LoggingConfig{
			Level:  defaultLogLevel,
			Format: defaultLogFormat,
		},
	}
}

// FillDefaults sets any zero-value fields in the Config to their default values.
// Probability is left alone.
func (c *Config) FillDefaults() {
	def := DefaultConfig()
	if c.MaxLevel == 0 {
		c.MaxLevel = def.MaxLevel
	}
	if c.WALFileName == "" {
		c.WALFileName = def.WALFileName
	}
	if c.WALBufferSize == 0 {
		c.WALBufferSize = def.WALBufferSize
	}
	if c.BlockSize == 0 {
		c.BlockSize = def.BlockSize
	}
	if c.Logging.Level == "" {
		c.Logging.Level = def.Logging.Level
	}
	if c.Logging.Format == "" {
		c.Logging.Format = def.Logging.Format
	}
}

// Validate checks field ranges.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) || len(validationErrs) == 0 {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	// Report the first failure in a readable form
	e := validationErrs[0]
	switch e.Tag() {
	case "required":
		return fmt.Errorf("%w: %s: field is required", ErrInvalid, e.Namespace())
	case "min", "gte":
		return fmt.Errorf("%w: %s: must be at least %s", ErrInvalid, e.Namespace(), e.Param())
	case "max", "lte":
		return fmt.Errorf("%w: %s: must not exceed %s", ErrInvalid, e.Namespace(), e.Param())
	case "oneof":
		return fmt.Errorf("%w: %s: must be one of [%s]", ErrInvalid, e.Namespace(), e.Param())
	default:
		return fmt.Errorf("%w: %s: failed %s validation", ErrInvalid, e.Namespace(), e.Tag())
	}
}

// Load reads a YAML configuration from r on top of the defaults.
// A nil or empty reader yields the defaults.
func Load(r io.Reader) (*Config, error) {
	cfg := DefaultConfig()
	if r == nil {
		return cfg, nil
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read config data: %w", err)
	}
	if len(data) == 0 {
		return cfg, nil
	}

	// Unmarshal YAML into the config struct, overwriting defaults
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config yaml: %w", err)
	}
	cfg.FillDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile reads configuration from a YAML file by path. A missing file
// yields the defaults.
func LoadFile(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Load(nil)
		}
		return nil, fmt.Errorf("failed to open config file %s: %w", path, err)
	}
	defer file.Close()

	return Load(file)
}
