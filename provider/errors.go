package provider

import (
	"errors"
	"fmt"
)

var (
	ErrUnsupportedProvider = errors.New("unsupported node provider")
	ErrInvalidPath         = errors.New("invalid plugin path")
	ErrExternalLoad        = errors.New("failed to load external node provider")
	ErrContainerNotFound   = errors.New("plugin container not found")
	ErrSymbolNotFound      = errors.New("plugin symbol not found")
	ErrConfigParse         = errors.New("failed to parse default config")
	ErrInvalidConfig       = errors.New("invalid config")
	ErrNodeNotFound        = errors.New("node not found")
)

// UnsupportedProviderError is returned for a provider type that is not in
// the catalog. It matches ErrUnsupportedProvider.
type UnsupportedProviderError struct {
	Type string
}

func (e *UnsupportedProviderError) Error() string {
	return fmt.Sprintf("unsupported node provider: '%s'", e.Type)
}

func (e *UnsupportedProviderError) Is(target error) bool {
	return target == ErrUnsupportedProvider
}

// ExternalLoadError is returned when a plugin path is well formed but does
// not resolve to a registered constructor. It matches ErrExternalLoad and
// unwraps to ErrContainerNotFound or ErrSymbolNotFound.
type ExternalLoadError struct {
	Path string
	Err  error
}

func (e *ExternalLoadError) Error() string {
	return fmt.Sprintf("failed to load external node provider '%s': %v", e.Path, e.Err)
}

func (e *ExternalLoadError) Is(target error) bool {
	return target == ErrExternalLoad
}

func (e *ExternalLoadError) Unwrap() error {
	return e.Err
}

// ConfigParseError means a packaged default config could not be read or
// decoded. It points at a broken installation and is never retried.
type ConfigParseError struct {
	Type string
	Path string
	Err  error
}

func (e *ConfigParseError) Error() string {
	return fmt.Sprintf("failed to parse default config '%s' of node provider '%s': %v", e.Path, e.Type, e.Err)
}

func (e *ConfigParseError) Is(target error) bool {
	return target == ErrConfigParse
}

func (e *ConfigParseError) Unwrap() error {
	return e.Err
}
