package config

import (
	"bytes"
	"errors"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/vyrodovalexey/incidentgw/internal/util"
)

// loadYAMLFile overlays the YAML file at path onto cfg. Unknown keys
// are rejected so a typo in an overlay fails loudly instead of being
// silently ignored.
func loadYAMLFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return util.NewConfigErrorWithCause("configPath", "failed to read config file", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	if err := dec.Decode(cfg); err != nil {
		// An empty overlay file is not an error.
		if errors.Is(err, io.EOF) {
			return nil
		}
		return util.NewConfigErrorWithCause("configPath", "failed to parse config file", err)
	}

	return nil
}
