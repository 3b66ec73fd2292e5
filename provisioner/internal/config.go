package internal

import (
	"fmt"

	"github.com/gammadia/nodeprovider/provider"
	"github.com/go-viper/mapstructure/v2"
)

// Decode decodes a provider or node config into out, a pointer to a struct
// with mapstructure tags. Scalars are converted weakly since configs come
// from YAML written by hand.
func Decode(input map[string]any, out any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	})
	if err != nil {
		return err
	}

	if err := decoder.Decode(input); err != nil {
		return fmt.Errorf("%w: %w", provider.ErrInvalidConfig, err)
	}
	return nil
}

// DecodeProvider decodes cfg into out and fails if any of required is
// missing or empty.
func DecodeProvider(cfg provider.Config, out any, required ...string) error {
	for _, key := range required {
		if v, ok := cfg[key]; !ok || v == nil || v == "" {
			return fmt.Errorf("%w: '%s' node provider requires a '%s' field", provider.ErrInvalidConfig, cfg.Type(), key)
		}
	}
	return Decode(cfg, out)
}
