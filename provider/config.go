package provider

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Well-known keys of a provider config.
const (
	KeyType               = "type"
	KeyModule             = "module"
	KeyCoordinatorAddress = "coordinator_address"
)

const (
	LocalType    = "local"
	ExternalType = "external"
)

// Config is the provider section of a cluster configuration. It is handled
// as a value: resolution never modifies it.
type Config map[string]any

// Type returns the provider type tag, or "" when it is missing.
func (c Config) Type() string {
	return c.String(KeyType)
}

// String returns the value of key if it is a string, "" otherwise.
func (c Config) String(key string) string {
	s, _ := c[key].(string)
	return s
}

func (c Config) Has(key string) bool {
	_, ok := c[key]
	return ok
}

// Clone returns a deep copy of the config.
func (c Config) Clone() Config {
	if c == nil {
		return nil
	}
	return Config(cloneValue(map[string]any(c)).(map[string]any))
}

// Canonical returns a deterministic serialization of the config: two configs
// holding the same values produce the same string whatever their key order.
// Floats always carry a fraction or exponent, so `1` and `1.0` differ.
func (c Config) Canonical() (string, error) {
	buf, err := json.Marshal(normalize(map[string]any(c)))
	if err != nil {
		return "", fmt.Errorf("%w: failed to serialize provider config: %w", ErrInvalidConfig, err)
	}
	return string(buf), nil
}

func cloneValue(v any) any {
	switch v := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, e := range v {
			out[k] = cloneValue(e)
		}
		return out
	case Config:
		return Config(cloneValue(map[string]any(v)).(map[string]any))
	case []any:
		out := make([]any, len(v))
		for i, e := range v {
			out[i] = cloneValue(e)
		}
		return out
	default:
		return v
	}
}

// normalize turns the map[any]any values some YAML decoders produce into
// string-keyed maps so they can be serialized, and floats into numbers
// that cannot be mistaken for integers.
func normalize(v any) any {
	switch v := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, e := range v {
			out[k] = normalize(e)
		}
		return out
	case Config:
		return normalize(map[string]any(v))
	case map[any]any:
		out := make(map[string]any, len(v))
		for k, e := range v {
			out[fmt.Sprint(k)] = normalize(e)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, e := range v {
			out[i] = normalize(e)
		}
		return out
	case float32:
		return floatNumber(float64(v), 32)
	case float64:
		return floatNumber(v, 64)
	default:
		return v
	}
}

func floatNumber(f float64, bitSize int) any {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return f
	}
	s := strconv.FormatFloat(f, 'g', -1, bitSize)
	if !strings.ContainsAny(s, ".e") {
		s += ".0"
	}
	return json.Number(s)
}
