// Package config loads model configurations.
package config

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/unixpickle/anyvec"
	"github.com/unixpickle/anyvec/anyvec32"
	"github.com/unixpickle/anyvec/anyvec64"
	"github.com/unixpickle/bandrnn"
	"github.com/unixpickle/bandrnn/extractors"
	"github.com/unixpickle/essentials"
	"gopkg.in/yaml.v3"
)

// Numeric precisions.
const (
	Float32 = "float32"
	Float64 = "float64"
)

// Config describes a model.
type Config struct {
	Height  int `yaml:"height"`
	Width   int `yaml:"width"`
	Bands   int `yaml:"bands"`
	Classes int `yaml:"classes"`

	// Precision selects the vector implementation, either
	// "float32" or "float64".
	Precision string `yaml:"precision"`

	Extractor ExtractorConfig `yaml:"extractor"`

	// Sequential disables running the forward and backward
	// directions concurrently.
	Sequential bool `yaml:"sequential"`
}

// ExtractorConfig selects the per-gate extractor.
type ExtractorConfig struct {
	Name   string `yaml:"name"`
	Hidden int    `yaml:"hidden,omitempty"`
}

// Default returns the configuration of the 23-band,
// 63-subject experiment.
func Default() *Config {
	return &Config{
		Height:    64,
		Width:     64,
		Bands:     23,
		Classes:   63,
		Precision: Float32,
		Extractor: ExtractorConfig{Name: extractors.DenseName},
	}
}

// Load reads and validates a configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, essentials.AddCtx("load config", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, essentials.AddCtx("load config", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, essentials.AddCtx("load config", err)
	}
	return &cfg, nil
}

// LoadOrDefault loads the file at path if it exists, and
// otherwise returns Default().
func LoadOrDefault(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return Default(), nil
	}
	return Load(path)
}

// Save writes the configuration to a file, creating its
// directory if needed.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return essentials.AddCtx("save config", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return essentials.AddCtx("save config", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return essentials.AddCtx("save config", err)
	}
	return nil
}

// Validate checks that the configuration describes a
// model that can be built.
func (c *Config) Validate() error {
	if c.Height <= 0 || c.Width <= 0 {
		return errors.Errorf("invalid image size: %dx%d", c.Height, c.Width)
	} else if c.Bands <= 0 {
		return errors.Errorf("invalid band count: %d", c.Bands)
	} else if c.Classes <= 0 {
		return errors.Errorf("invalid class count: %d", c.Classes)
	}
	switch c.Precision {
	case Float32, Float64:
	default:
		return errors.Errorf("unknown precision: %q", c.Precision)
	}
	switch c.Extractor.Name {
	case extractors.DenseName:
	case extractors.MLPName:
		if c.Extractor.Hidden <= 0 {
			return errors.Errorf("invalid hidden size: %d", c.Extractor.Hidden)
		}
	default:
		return errors.Errorf("unknown extractor: %q", c.Extractor.Name)
	}
	return nil
}

// Dims returns the model dimensions.
func (c *Config) Dims() bandrnn.Dims {
	return bandrnn.Dims{
		Steps:   c.Bands,
		Height:  c.Height,
		Width:   c.Width,
		Classes: c.Classes,
	}
}

// Creator returns the vector creator for the precision.
func (c *Config) Creator() anyvec.Creator {
	if c.Precision == Float64 {
		return anyvec64.DefaultCreator{}
	}
	return anyvec32.DefaultCreator{}
}

// NewModel validates the configuration and builds a
// randomly initialized model from it.
func (c *Config) NewModel() (*bandrnn.Model, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	creator := c.Creator()
	dims := c.Dims()
	factory, err := extractors.New(creator, c.Extractor.Name, dims.ImageSize(),
		dims.Classes, c.Extractor.Hidden)
	if err != nil {
		return nil, err
	}
	model := bandrnn.NewModel(creator, dims, factory)
	model.Bidir.Sequential = c.Sequential
	return model, nil
}
