package provider

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// PluginLoader resolves the dotted path of an external node provider, as
// found in the `module` field of its config, into a constructor.
type PluginLoader interface {
	Load(path string) (Constructor, error)
}

// Plugins is a PluginLoader backed by registration: external providers
// register their constructor under a dotted path (e.g. "acme.cloud.Provider")
// at startup, and Load looks it up. The part before the last dot is the
// container, the part after it the symbol.
type Plugins struct {
	mu         sync.RWMutex
	containers map[string]map[string]Constructor
}

// Plugins implements PluginLoader
var _ PluginLoader = (*Plugins)(nil)

func NewPlugins() *Plugins {
	return &Plugins{containers: make(map[string]map[string]Constructor)}
}

// SplitPath splits a dotted path into its container and symbol.
func SplitPath(path string) (container, symbol string, err error) {
	i := strings.LastIndex(path, ".")
	if i < 0 {
		return "", "", fmt.Errorf("%w '%s': expected a path like 'mymodule.ProviderType'", ErrInvalidPath, path)
	}
	container, symbol = path[:i], path[i+1:]
	if container == "" || symbol == "" {
		return "", "", fmt.Errorf("%w '%s': container and symbol must not be empty", ErrInvalidPath, path)
	}
	return container, symbol, nil
}

// Register makes ctor loadable under path.
func (p *Plugins) Register(path string, ctor Constructor) error {
	if ctor == nil {
		return fmt.Errorf("plugin '%s' has a nil constructor", path)
	}
	container, symbol, err := SplitPath(path)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	symbols, ok := p.containers[container]
	if !ok {
		symbols = make(map[string]Constructor)
		p.containers[container] = symbols
	}
	if _, exists := symbols[symbol]; exists {
		return fmt.Errorf("plugin '%s' is already registered", path)
	}
	symbols[symbol] = ctor
	return nil
}

// MustRegister is like Register but panics on error. It is meant for init().
func (p *Plugins) MustRegister(path string, ctor Constructor) {
	if err := p.Register(path, ctor); err != nil {
		panic(err)
	}
}

func (p *Plugins) Load(path string) (Constructor, error) {
	container, symbol, err := SplitPath(path)
	if err != nil {
		return nil, err
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	symbols, ok := p.containers[container]
	if !ok {
		return nil, &ExternalLoadError{Path: path, Err: fmt.Errorf("%w: '%s'", ErrContainerNotFound, container)}
	}
	ctor, ok := symbols[symbol]
	if !ok {
		return nil, &ExternalLoadError{Path: path, Err: fmt.Errorf("%w: '%s' in '%s'", ErrSymbolNotFound, symbol, container)}
	}
	return ctor, nil
}

// Paths returns every registered path, sorted.
func (p *Plugins) Paths() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()

	var paths []string
	for container, symbols := range p.containers {
		for symbol := range symbols {
			paths = append(paths, container+"."+symbol)
		}
	}
	sort.Strings(paths)
	return paths
}

// DefaultPlugins is the loader used by external providers registering from
// their init function.
var DefaultPlugins = NewPlugins()

// RegisterPlugin registers ctor under path in DefaultPlugins and panics if
// the path is invalid or taken.
func RegisterPlugin(path string, ctor Constructor) {
	DefaultPlugins.MustRegister(path, ctor)
}
