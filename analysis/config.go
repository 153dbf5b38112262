package analysis

import (
	"bytes"
	"io"
	"os"
	"runtime"

	"gopkg.in/yaml.v3"

	"github.com/wippyai/wasm-effects/effects"
	"github.com/wippyai/wasm-effects/errors"
)

// Config controls a module analysis.
type Config struct {
	effects.Options `yaml:",inline"`

	// Validate compiles the module with wazero before decoding it.
	Validate bool `yaml:"validate"`
	// Workers bounds the functions analyzed concurrently. Zero means
	// GOMAXPROCS.
	Workers int `yaml:"workers"`
}

func (c Config) workers() int {
	if c.Workers > 0 {
		return c.Workers
	}
	return runtime.GOMAXPROCS(0)
}

// LoadConfig reads a YAML configuration file. Unknown keys are rejected.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrap(errors.PhaseConfig, errors.KindNotFound, err, "read "+path)
	}
	return ParseConfig(data)
}

// ParseConfig decodes a YAML configuration. An empty document yields the
// zero Config.
func ParseConfig(data []byte) (Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && err != io.EOF {
		return Config{}, errors.Wrap(errors.PhaseConfig, errors.KindInvalidData, err, "parse yaml")
	}
	if cfg.Workers < 0 {
		return Config{}, errors.New(errors.PhaseConfig, errors.KindInvalidInput).
			Path("workers").
			Value(cfg.Workers).
			Detail("must not be negative").
			Build()
	}
	return cfg, nil
}
