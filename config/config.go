// Package config holds the settings of a pixelization run. They come from an
// optional YAML or JSON file, overridden by command line flags.
package config

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/pdok/skypix/mathhelp"
	"github.com/pdok/skypix/pixel"
	"github.com/pdok/skypix/processing"
	"github.com/pdok/skypix/region"
	"github.com/perimeterx/marshmallow"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

type Config struct {
	// Output is the map file written at the end. A .gz or .zst extension compresses it.
	Output string `yaml:"output" json:"output" validate:"required"`
	// Inputs are region files, processed in order into one map.
	Inputs []string `yaml:"inputs" json:"inputs" validate:"required,min=1,dive,required"`
	// SeedMap is an existing map (text or .gpkg) the regions are merged into.
	SeedMap string `yaml:"seedMap" json:"seedMap"`

	MaxResolution int `yaml:"maxResolution" json:"maxResolution" default:"2048" validate:"pow2"`
	// MaxLevel overrides MaxResolution when not negative.
	MaxLevel int `yaml:"maxLevel" json:"maxLevel" default:"-1" validate:"min=-1,max=30"`

	StartIndex  int64 `yaml:"startIndex" json:"startIndex" default:"0" validate:"min=0"`
	FinishIndex int64 `yaml:"finishIndex" json:"finishIndex" default:"-1" validate:"min=-1"`

	DefaultWeight float64 `yaml:"defaultWeight" json:"defaultWeight" default:"1" validate:"gte=0"`
	AddMaps       bool    `yaml:"addMaps" json:"addMaps"`
	Verbose       bool    `yaml:"verbose" json:"verbose"`

	// Workers defaults to the number of CPUs.
	Workers        int `yaml:"workers" json:"workers" validate:"min=0"`
	StatusInterval int `yaml:"statusInterval" json:"statusInterval" default:"1000" validate:"min=1"`

	GeopackageOutput string `yaml:"geopackageOutput" json:"geopackageOutput"`
	// Overwrite removes an existing GeopackageOutput first.
	Overwrite       bool   `yaml:"overwrite" json:"overwrite"`
	GeopackageTable string `yaml:"geopackageTable" json:"geopackageTable" default:"coverage" validate:"required"`
	WktOutput       string `yaml:"wktOutput" json:"wktOutput"`
	MetricsOutput   string `yaml:"metricsOutput" json:"metricsOutput"`
}

// Default returns a config with every default applied.
func Default() *Config {
	c := &Config{}
	if err := defaults.Set(c); err != nil {
		panic(err)
	}
	return c
}

// Load reads a config file on top of the defaults. The format follows the
// extension: .yaml, .yml or .json. Unknown keys are an error.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "could not read config")
	}
	c := Default()
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		err = c.unmarshalYAML(data)
	case ".json":
		err = c.unmarshalJSON(data)
	default:
		err = fmt.Errorf("unsupported config format %q", ext)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "could not load config %s", path)
	}
	return c, nil
}

func (c *Config) unmarshalYAML(data []byte) error {
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func (c *Config) unmarshalJSON(data []byte) error {
	unknown, err := marshmallow.Unmarshal(data, c, marshmallow.WithExcludeKnownFieldsFromMap(true))
	if err != nil {
		return err
	}
	if len(unknown) > 0 {
		keys := make([]string, 0, len(unknown))
		for k := range unknown {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		return fmt.Errorf("unknown keys %s", strings.Join(keys, ", "))
	}
	return nil
}

func (c *Config) Validate() error {
	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.RegisterValidation("pow2", func(fl validator.FieldLevel) bool {
		return mathhelp.IsPow2(int(fl.Field().Int()))
	}); err != nil {
		return err
	}
	if err := validate.Struct(c); err != nil {
		return err
	}
	if c.FinishIndex >= 0 && c.FinishIndex <= c.StartIndex {
		return fmt.Errorf("finish index %d should be above start index %d", c.FinishIndex, c.StartIndex)
	}
	return nil
}

// Level is the maximum pixelization level: MaxLevel if set, otherwise the
// level matching MaxResolution.
func (c *Config) Level() (pixel.Level, error) {
	if c.MaxLevel >= 0 {
		return c.MaxLevel, nil
	}
	return pixel.LevelFromResolution(c.MaxResolution)
}

func (c *Config) Range() region.Range {
	return region.Range{Start: c.StartIndex, Finish: c.FinishIndex}
}

// StatusFile is where progress is reported, next to the output.
func (c *Config) StatusFile() string {
	return c.Output + "_status"
}

func (c *Config) MergeMode() processing.MergeMode {
	if c.AddMaps {
		return processing.Add
	}
	return processing.Ingest
}

func (c *Config) Options() (processing.Options, error) {
	level, err := c.Level()
	if err != nil {
		return processing.Options{}, err
	}
	return processing.Options{
		MaxLevel:       level,
		DefaultWeight:  c.DefaultWeight,
		Range:          c.Range(),
		Mode:           c.MergeMode(),
		Workers:        c.Workers,
		StatusFile:     c.StatusFile(),
		StatusInterval: c.StatusInterval,
	}, nil
}
