package provider

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

const (
	KeyClusterName = "cluster_name"
	KeyProvider    = "provider"
	KeyAuth        = "auth"
)

// ClusterConfig is a whole cluster configuration document, of which the
// provider config is the `provider` section.
type ClusterConfig map[string]any

func (c ClusterConfig) ClusterName() string {
	s, _ := c[KeyClusterName].(string)
	return s
}

// Provider returns the provider section of the document.
func (c ClusterConfig) Provider() (Config, error) {
	switch section := c[KeyProvider].(type) {
	case map[string]any:
		return Config(section), nil
	case Config:
		return section, nil
	case nil:
		return nil, fmt.Errorf("%w: missing '%s' section", ErrInvalidConfig, KeyProvider)
	default:
		return nil, fmt.Errorf("%w: '%s' must be a mapping, got %T", ErrInvalidConfig, KeyProvider, section)
	}
}

// LoadClusterConfig reads a YAML cluster configuration file.
func LoadClusterConfig(path string) (ClusterConfig, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	var doc map[string]any
	if err := yaml.Unmarshal(buf, &doc); err != nil {
		return nil, fmt.Errorf("%w: unmarshal '%s': %w", ErrInvalidConfig, path, err)
	}
	if doc == nil {
		return nil, fmt.Errorf("%w: '%s' is empty", ErrInvalidConfig, path)
	}
	return ClusterConfig(doc), nil
}

// MergeDefaults lays cfg over defaults: every top-level key of cfg replaces
// the one of defaults. The result always has an `auth` section. Neither
// input is modified.
func MergeDefaults(defaults, cfg ClusterConfig) ClusterConfig {
	merged := make(ClusterConfig, len(defaults)+len(cfg)+1)
	for k, v := range defaults {
		merged[k] = cloneValue(v)
	}
	for k, v := range cfg {
		merged[k] = cloneValue(v)
	}
	if _, ok := merged[KeyAuth]; !ok {
		merged[KeyAuth] = map[string]any{}
	}
	return merged
}
