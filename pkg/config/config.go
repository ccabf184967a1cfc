// Package config loads YAML configuration files on top of in-code
// defaults, expanding environment variables first.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Validator is an interface for configuration validation.
type Validator interface {
	Validate() error
}

// Load builds a config from defaults and overlays the YAML file at
// filename. Keys absent from the file keep their default; unknown keys
// are rejected. A missing file leaves the defaults in place. The result
// is validated when T implements Validator.
func Load[T any](filename string, defaults func() *T) (*T, error) {
	target := defaults()

	data, err := os.ReadFile(filename)
	switch {
	case errors.Is(err, os.ErrNotExist):
		data = nil
	case err != nil:
		return nil, fmt.Errorf("failed to read config file %s: %w", filename, err)
	}

	if len(bytes.TrimSpace(data)) > 0 {
		dec := yaml.NewDecoder(bytes.NewReader([]byte(os.ExpandEnv(string(data)))))
		dec.KnownFields(true)
		if err := dec.Decode(target); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("failed to parse config file %s: %w", filename, err)
		}
	}

	if validator, ok := any(target).(Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("config validation failed: %w", err)
		}
	}

	return target, nil
}
