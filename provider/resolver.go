package provider

import (
	"fmt"
	"log/slog"
)

// Resolver turns provider configs into NodeProvider instances, reusing the
// instance of a config and cluster name pair for as long as its cache lives.
type Resolver struct {
	catalog *Catalog
	cache   *Cache
	log     *slog.Logger
	metrics *Metrics
}

type Option func(*Resolver)

// WithCache makes the resolver use cache instead of a private one.
func WithCache(cache *Cache) Option {
	return func(r *Resolver) {
		r.cache = cache
	}
}

// WithLogger makes the resolver log through logger. It logs nothing by default.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Resolver) {
		r.log = logger
	}
}

// WithMetrics makes the resolver record its activity in metrics.
func WithMetrics(metrics *Metrics) Option {
	return func(r *Resolver) {
		r.metrics = metrics
	}
}

func NewResolver(catalog *Catalog, options ...Option) *Resolver {
	r := &Resolver{
		catalog: catalog,
		cache:   NewCache(),
		log:     slog.New(slog.DiscardHandler),
	}
	for _, option := range options {
		option(r)
	}
	return r
}

type resolveOptions struct {
	useCache bool
}

type ResolveOption func(*resolveOptions)

// WithoutCache constructs a fresh instance and leaves the cache untouched.
func WithoutCache() ResolveOption {
	return func(o *resolveOptions) {
		o.useCache = false
	}
}

// Resolve returns the NodeProvider for cfg and clusterName. Unless
// WithoutCache is given, an instance cached for the same config and cluster
// name is returned as is, and a newly constructed one is cached.
func (r *Resolver) Resolve(cfg Config, clusterName string, options ...ResolveOption) (NodeProvider, error) {
	opts := resolveOptions{useCache: true}
	for _, option := range options {
		option(&opts)
	}

	typ := cfg.Type()
	log := r.log.With("provider", typ, "cluster", clusterName)

	ctor, err := r.catalog.Lookup(cfg)
	if err != nil {
		r.metrics.resolved(typ, ResultError)
		return nil, fmt.Errorf("failed to resolve node provider: %w", err)
	}

	if !opts.useCache {
		instance, err := r.construct(ctor, cfg, clusterName, log)
		if err != nil {
			r.metrics.resolved(typ, ResultError)
			return nil, err
		}
		r.metrics.resolved(typ, ResultUncached)
		return instance, nil
	}

	key, err := CacheKeyOf(cfg, clusterName)
	if err != nil {
		r.metrics.resolved(typ, ResultError)
		return nil, fmt.Errorf("failed to resolve node provider: %w", err)
	}

	instance, cached, err := r.cache.GetOrCreate(key, func() (NodeProvider, error) {
		return r.construct(ctor, cfg, clusterName, log)
	})
	if err != nil {
		r.metrics.resolved(typ, ResultError)
		return nil, err
	}

	if cached {
		log.Debug("Reusing cached node provider")
		r.metrics.resolved(typ, ResultHit)
	} else {
		r.metrics.resolved(typ, ResultMiss)
	}
	return instance, nil
}

func (r *Resolver) construct(ctor Constructor, cfg Config, clusterName string, log *slog.Logger) (NodeProvider, error) {
	log.Info("Creating node provider", "name", r.catalog.PrettyName(cfg.Type()))

	instance, err := ctor(cfg.Clone(), clusterName)
	if err != nil {
		log.Error("Failed to create node provider", "error", err)
		return nil, fmt.Errorf("failed to create node provider '%s' for cluster '%s': %w", cfg.Type(), clusterName, err)
	}
	if instance == nil {
		return nil, fmt.Errorf("failed to create node provider '%s' for cluster '%s': constructor returned nil", cfg.Type(), clusterName)
	}

	r.metrics.constructed(cfg.Type())
	return instance, nil
}

// ClearCache drops every cached instance.
func (r *Resolver) ClearCache() {
	r.cache.Clear()
	r.log.Debug("Node provider cache cleared")
}

// DefaultConfig returns the packaged default cluster config for the type of
// cfg.
func (r *Resolver) DefaultConfig(cfg Config) (ClusterConfig, error) {
	return r.catalog.Defaults(cfg)
}

// FillDefaults returns cluster laid over the default config of its provider.
func (r *Resolver) FillDefaults(cluster ClusterConfig) (ClusterConfig, error) {
	cfg, err := cluster.Provider()
	if err != nil {
		return nil, err
	}

	defaults, err := r.DefaultConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to load default config: %w", err)
	}
	return MergeDefaults(defaults, cluster), nil
}

func (r *Resolver) Catalog() *Catalog {
	return r.catalog
}
