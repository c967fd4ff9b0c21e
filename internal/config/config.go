// Package config handles ifckit configuration loading and management.
package config

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Faultbox/ifckit/internal/engine/geometry"
	"github.com/Faultbox/ifckit/internal/logger"
	"github.com/Faultbox/ifckit/internal/store"
	"github.com/Faultbox/ifckit/pkg/step"
)

// ErrInvalid is returned by Validate.
var ErrInvalid = errors.New("invalid config")

// Config holds all settings.
type Config struct {
	Extract    ExtractConfig    `yaml:"extract"`
	Geometry   GeometryConfig   `yaml:"geometry"`
	Visibility VisibilityConfig `yaml:"visibility"`
	Store      StoreConfig      `yaml:"store"`
	Metrics    MetricsConfig    `yaml:"metrics"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// ExtractConfig holds STEP extraction settings.
type ExtractConfig struct {
	ChunkSize  int      `yaml:"chunk_size"`  // Read size in bytes
	ExtraTypes []string `yaml:"extra_types"` // Additional element types
}

// GeometryConfig holds consolidation settings.
type GeometryConfig struct {
	SimplifyThreshold int     `yaml:"simplify_threshold"`
	PositionDecimals  int     `yaml:"position_decimals"`
	NormalCosine      float32 `yaml:"normal_cosine"`
	EdgeAngle         float32 `yaml:"edge_angle"`
	Edges             bool    `yaml:"edges"`
	CacheSize         int     `yaml:"cache_size"`
}

// VisibilityConfig holds visibility batching settings.
type VisibilityConfig struct {
	Debounce time.Duration `yaml:"debounce"`
}

// StoreConfig holds export settings.
type StoreConfig struct {
	OutDir        string `yaml:"out_dir"`
	MaxChunkBytes int    `yaml:"max_chunk_bytes"`
}

// MetricsConfig holds metrics export settings.
type MetricsConfig struct {
	Textfile string `yaml:"textfile"` // Prometheus text file written on exit
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogFile string `yaml:"log_file"`
	JSON    bool   `yaml:"json"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	g := geometry.DefaultOptions()
	return &Config{
		Extract: ExtractConfig{
			ChunkSize: step.DefaultChunkSize,
		},
		Geometry: GeometryConfig{
			SimplifyThreshold: g.SimplifyThreshold,
			PositionDecimals:  g.PositionDecimals,
			NormalCosine:      g.NormalCosine,
			EdgeAngle:         g.EdgeAngle,
			Edges:             true,
			CacheSize:         g.CacheSize,
		},
		Visibility: VisibilityConfig{
			Debounce: g.Debounce,
		},
		Store: StoreConfig{
			OutDir:        "out",
			MaxChunkBytes: store.DefaultMaxChunkBytes,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	var errs []error
	if c.Extract.ChunkSize < 1024 {
		errs = append(errs, fmt.Errorf("extract.chunk_size %d below 1024", c.Extract.ChunkSize))
	}
	if c.Geometry.SimplifyThreshold < 0 {
		errs = append(errs, fmt.Errorf("geometry.simplify_threshold %d is negative", c.Geometry.SimplifyThreshold))
	}
	if c.Geometry.PositionDecimals < 1 || c.Geometry.PositionDecimals > 9 {
		errs = append(errs, fmt.Errorf("geometry.position_decimals %d outside 1..9", c.Geometry.PositionDecimals))
	}
	if c.Geometry.NormalCosine <= 0 || c.Geometry.NormalCosine > 1 {
		errs = append(errs, fmt.Errorf("geometry.normal_cosine %v outside (0, 1]", c.Geometry.NormalCosine))
	}
	if c.Geometry.EdgeAngle <= 0 || c.Geometry.EdgeAngle >= 180 {
		errs = append(errs, fmt.Errorf("geometry.edge_angle %v outside (0, 180)", c.Geometry.EdgeAngle))
	}
	if c.Visibility.Debounce <= 0 {
		errs = append(errs, fmt.Errorf("visibility.debounce %v must be positive", c.Visibility.Debounce))
	}
	if c.Store.MaxChunkBytes < 1024 {
		errs = append(errs, fmt.Errorf("store.max_chunk_bytes %d below 1024", c.Store.MaxChunkBytes))
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, fmt.Errorf("logging.level %q unknown", c.Logging.Level))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
	}
	return nil
}

// StepOptions converts the extract section.
func (c *Config) StepOptions(log *zap.Logger) step.Options {
	return step.Options{
		ChunkSize:  c.Extract.ChunkSize,
		ExtraTypes: append([]string(nil), c.Extract.ExtraTypes...),
		Logger:     log,
	}
}

// GeometryOptions converts the geometry and visibility sections.
func (c *Config) GeometryOptions(log *zap.Logger) geometry.Options {
	opts := geometry.DefaultOptions()
	opts.SimplifyThreshold = c.Geometry.SimplifyThreshold
	opts.PositionDecimals = c.Geometry.PositionDecimals
	opts.NormalCosine = c.Geometry.NormalCosine
	opts.EdgeAngle = c.Geometry.EdgeAngle
	opts.DisableEdges = !c.Geometry.Edges
	opts.CacheSize = c.Geometry.CacheSize
	opts.Debounce = c.Visibility.Debounce
	opts.Logger = log
	return opts
}

// StoreOptions converts the store section.
func (c *Config) StoreOptions(log *zap.Logger) store.Options {
	return store.Options{MaxChunkBytes: c.Store.MaxChunkBytes, Logger: log}
}

// InitLogger configures the global logger from the logging section.
func (c *Config) InitLogger() error {
	if c.Logging.LogFile == "" {
		return logger.Init(c.Logging.Level, "")
	}
	fc := logger.DefaultFileConfig(c.Logging.LogFile)
	fc.JSON = c.Logging.JSON
	return logger.InitWithFileConfig(c.Logging.Level, fc, true)
}
