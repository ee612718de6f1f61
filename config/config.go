/*
Package config loads the settings shared by the morgul commands from a YAML
file.

Any setting missing from the file keeps its default and a missing file is not
an error. Command line flags are applied on top by the caller.
*/
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/bodgit/morgul/correct"
	"github.com/bodgit/morgul/output"
	"github.com/bodgit/morgul/preview"
	"gopkg.in/yaml.v3"
)

// Defaults
const (
	DefaultSkip     = 2000
	DefaultDatabase = "morgul.db"
	DefaultPrefix   = "frame_"
)

// Geometry names the layout of written frames
const (
	Expanded = "expanded"
	Compact  = "compact"
)

var errGeometry = errors.New("config: geometry must be expanded or compact")

// Config holds every setting
type Config struct {
	// Energy is the photon energy in keV
	Energy float64 `yaml:"energy"`

	// Gains is the path of the gain table
	Gains string `yaml:"gains"`

	// Skip is the number of frames skipped at the start of the first data
	// file, normally the dark runs recorded ahead of the data
	Skip int `yaml:"skip"`

	Workers  int    `yaml:"workers"`
	Overflow string `yaml:"overflow"`
	Database string `yaml:"database"`

	Output struct {
		Directory string `yaml:"directory"`
		Prefix    string `yaml:"prefix"`
		Format    string `yaml:"format"`
		Geometry  string `yaml:"geometry"`
	} `yaml:"output"`

	Mask struct {
		Threshold float64 `yaml:"threshold"`
	} `yaml:"mask"`

	Preview struct {
		Format string `yaml:"format"`
	} `yaml:"preview"`
}

// DefaultConfig returns a Config with every setting at its default
func DefaultConfig() *Config {
	cfg := &Config{
		Skip:     DefaultSkip,
		Workers:  runtime.NumCPU(),
		Overflow: correct.Wrap.String(),
		Database: DefaultDatabase,
	}
	cfg.Output.Directory = "."
	cfg.Output.Prefix = DefaultPrefix
	cfg.Output.Format = output.Raw.String()
	cfg.Output.Geometry = Expanded
	cfg.Mask.Threshold = correct.DefaultThreshold
	cfg.Preview.Format = "png"
	return cfg
}

// LoadConfig reads the Config in file, returning the defaults if it does not
// exist
func LoadConfig(file string) (*Config, error) {
	cfg := DefaultConfig()

	b, err := os.ReadFile(file)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}

	if err := yaml.Unmarshal(b, cfg); err != nil {
		return nil, fmt.Errorf("config: %s: %w", file, err)
	}

	return cfg, nil
}

// SaveConfig writes cfg to file
func SaveConfig(cfg *Config, file string) error {
	if err := os.MkdirAll(filepath.Dir(file), 0777); err != nil {
		return err
	}

	b, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	return os.WriteFile(file, b, 0666)
}

// Validate checks every enumerated setting and the photon energy. An energy
// of zero is accepted as not yet set.
func (cfg *Config) Validate() error {
	if cfg.Energy < 0 {
		return correct.ErrInvalidEnergy
	}
	if _, err := correct.ParsePolicy(cfg.Overflow); err != nil {
		return err
	}
	if _, err := output.ParseFormat(cfg.Output.Format); err != nil {
		return err
	}
	if _, err := preview.ParseFormat(cfg.Preview.Format); err != nil {
		return err
	}
	switch cfg.Output.Geometry {
	case Expanded, Compact:
	default:
		return errGeometry
	}
	return nil
}

// IsCompact returns true if frames should be written without expanding them
func (cfg *Config) IsCompact() bool {
	return cfg.Output.Geometry == Compact
}
