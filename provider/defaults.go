package provider

import (
	"errors"
	"io/fs"

	"gopkg.in/yaml.v3"
)

// DefaultsSource locates a packaged default cluster config.
type DefaultsSource struct {
	FS   fs.FS
	Path string
}

// Load reads and decodes the document. Failures are *ConfigParseError.
func (s DefaultsSource) Load(typ string) (ClusterConfig, error) {
	if s.FS == nil {
		return nil, &ConfigParseError{Type: typ, Path: s.Path, Err: errors.New("no file system")}
	}

	buf, err := fs.ReadFile(s.FS, s.Path)
	if err != nil {
		return nil, &ConfigParseError{Type: typ, Path: s.Path, Err: err}
	}

	var doc map[string]any
	if err := yaml.Unmarshal(buf, &doc); err != nil {
		return nil, &ConfigParseError{Type: typ, Path: s.Path, Err: err}
	}
	if doc == nil {
		return nil, &ConfigParseError{Type: typ, Path: s.Path, Err: errors.New("empty document")}
	}
	return ClusterConfig(doc), nil
}

// Defaults returns the default cluster config of the provider type of cfg.
// Only the `type` field of cfg is consulted. External providers describe
// themselves fully and get an empty document.
func (c *Catalog) Defaults(cfg Config) (ClusterConfig, error) {
	typ := cfg.Type()
	if typ == ExternalType {
		return ClusterConfig{}, nil
	}

	entry, ok := c.entries[typ]
	if !ok || entry.Defaults == nil {
		return nil, &UnsupportedProviderError{Type: typ}
	}
	return entry.Defaults.Load(typ)
}
