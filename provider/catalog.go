package provider

import (
	"fmt"
	"sort"
)

// Entry describes a provider type known to a Catalog.
type Entry struct {
	// Type is the tag found in the `type` field of a provider config.
	Type string
	// Name is the human readable name of the provider.
	Name string
	// Constructor picks the constructor to use for cfg. It runs on every
	// lookup so that it may depend on the content of cfg.
	Constructor func(cfg Config) (Constructor, error)
	// Defaults locates the packaged default cluster config, if any.
	Defaults *DefaultsSource
}

// StaticEntry returns an entry that always resolves to ctor.
func StaticEntry(typ, name string, ctor Constructor, defaults *DefaultsSource) Entry {
	return Entry{
		Type:        typ,
		Name:        name,
		Constructor: func(Config) (Constructor, error) { return ctor, nil },
		Defaults:    defaults,
	}
}

// LocalVariant is the implementation behind the "local" provider type.
type LocalVariant int

const (
	// LocalDirect manages a fixed list of hosts itself.
	LocalDirect LocalVariant = iota
	// LocalCoordinator delegates every operation to a coordinator server.
	LocalCoordinator
)

func (v LocalVariant) String() string {
	switch v {
	case LocalDirect:
		return "direct"
	case LocalCoordinator:
		return "coordinator"
	default:
		return fmt.Sprintf("LocalVariant(%d)", int(v))
	}
}

// SelectLocalVariant returns LocalCoordinator when cfg names a coordinator
// address and LocalDirect otherwise.
func SelectLocalVariant(cfg Config) LocalVariant {
	if cfg.Has(KeyCoordinatorAddress) {
		return LocalCoordinator
	}
	return LocalDirect
}

// LocalEntry returns the "local" entry, dispatching on SelectLocalVariant.
func LocalEntry(direct, coordinator Constructor, defaults *DefaultsSource) Entry {
	variants := map[LocalVariant]Constructor{
		LocalDirect:      direct,
		LocalCoordinator: coordinator,
	}
	return Entry{
		Type: LocalType,
		Name: "Local",
		Constructor: func(cfg Config) (Constructor, error) {
			variant := SelectLocalVariant(cfg)
			ctor := variants[variant]
			if ctor == nil {
				return nil, fmt.Errorf("%w: no %s variant for '%s'", ErrUnsupportedProvider, variant, LocalType)
			}
			return ctor, nil
		},
		Defaults: defaults,
	}
}

// ExternalEntry returns the "external" entry. The constructor is loaded from
// loader using the `module` field of the config on every lookup.
func ExternalEntry(loader PluginLoader) Entry {
	return Entry{
		Type: ExternalType,
		Name: "External",
		Constructor: func(cfg Config) (Constructor, error) {
			path := cfg.String(KeyModule)
			if path == "" {
				return nil, fmt.Errorf("%w: external node provider requires a '%s' field", ErrInvalidPath, KeyModule)
			}
			return loader.Load(path)
		},
	}
}

// Catalog maps provider type tags to their entries. It is immutable once
// built.
type Catalog struct {
	entries map[string]Entry
}

func NewCatalog(entries ...Entry) (*Catalog, error) {
	catalog := &Catalog{entries: make(map[string]Entry, len(entries))}
	for _, entry := range entries {
		if entry.Type == "" {
			return nil, fmt.Errorf("catalog entry '%s' has no type", entry.Name)
		}
		if entry.Constructor == nil {
			return nil, fmt.Errorf("catalog entry '%s' has no constructor", entry.Type)
		}
		if _, exists := catalog.entries[entry.Type]; exists {
			return nil, fmt.Errorf("duplicate catalog entry '%s'", entry.Type)
		}
		catalog.entries[entry.Type] = entry
	}
	return catalog, nil
}

// Lookup returns the constructor to use for cfg.
func (c *Catalog) Lookup(cfg Config) (Constructor, error) {
	entry, ok := c.entries[cfg.Type()]
	if !ok {
		return nil, &UnsupportedProviderError{Type: cfg.Type()}
	}
	ctor, err := entry.Constructor(cfg)
	if err != nil {
		return nil, err
	}
	if ctor == nil {
		return nil, &UnsupportedProviderError{Type: cfg.Type()}
	}
	return ctor, nil
}

func (c *Catalog) Entry(typ string) (Entry, bool) {
	entry, ok := c.entries[typ]
	return entry, ok
}

// Types returns the known provider types, sorted.
func (c *Catalog) Types() []string {
	types := make([]string, 0, len(c.entries))
	for typ := range c.entries {
		types = append(types, typ)
	}
	sort.Strings(types)
	return types
}

// PrettyName returns the human readable name of typ, or typ itself.
func (c *Catalog) PrettyName(typ string) string {
	if entry, ok := c.entries[typ]; ok && entry.Name != "" {
		return entry.Name
	}
	return typ
}
