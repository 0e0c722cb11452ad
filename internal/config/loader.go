package config

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadRaw reads path, expands ${VAR} references against the process
// environment the way the teacher's loader.go does before parsing, and
// decodes it into a raw map. Unlike the teacher's loader this does not
// resolve $include directives or accept json5 — one YAML file is enough
// for this module's scope.
func LoadRaw(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	expanded := os.ExpandEnv(string(data))

	decoder := yaml.NewDecoder(bytes.NewReader([]byte(expanded)))
	var raw map[string]any
	if err := decoder.Decode(&raw); err != nil {
		if err == io.EOF {
			return map[string]any{}, nil
		}
		return nil, err
	}
	if err := decoder.Decode(new(struct{})); err != io.EOF {
		return nil, fmt.Errorf("config: %s: expected a single YAML document", path)
	}
	if raw == nil {
		raw = map[string]any{}
	}
	return raw, nil
}

// decodeRawConfig overlays raw onto an already-defaulted cfg: re-marshal
// the raw map to YAML and decode it with KnownFields so a typo in the file
// fails loudly instead of silently being ignored, matching the teacher's
// decodeRawConfig.
func decodeRawConfig(raw map[string]any, cfg *Config) error {
	payload, err := yaml.Marshal(raw)
	if err != nil {
		return fmt.Errorf("config: re-marshal overlay: %w", err)
	}
	decoder := yaml.NewDecoder(bytes.NewReader(payload))
	decoder.KnownFields(true)
	if err := decoder.Decode(cfg); err != nil && err != io.EOF {
		return fmt.Errorf("config: decode overlay: %w", err)
	}
	return nil
}
