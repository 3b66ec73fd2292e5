package main

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/gammadia/nodeprovider/nodectl/log"
	"github.com/gammadia/nodeprovider/provider"
	"github.com/gammadia/nodeprovider/provisioner"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/samber/do/v2"
)

// newInjector registers the dependencies shared by every command.
func newInjector() do.Injector {
	injector := do.New()
	do.ProvideValue(injector, provider.DefaultPlugins)
	do.Provide(injector, provideRegistry)
	do.Provide(injector, provideResolver)
	return injector
}

func provideRegistry(do.Injector) (*prometheus.Registry, error) {
	return prometheus.NewRegistry(), nil
}

func provideResolver(i do.Injector) (*provider.Resolver, error) {
	plugins, err := do.Invoke[*provider.Plugins](i)
	if err != nil {
		return nil, fmt.Errorf("resolve plugins dependency: %w", err)
	}
	registry, err := do.Invoke[*prometheus.Registry](i)
	if err != nil {
		return nil, fmt.Errorf("resolve registry dependency: %w", err)
	}

	metrics, err := provider.NewMetrics(registry)
	if err != nil {
		return nil, err
	}

	return provider.NewResolver(
		provisioner.NewCatalog(plugins),
		provider.WithLogger(log.With("component", "resolver")),
		provider.WithMetrics(metrics),
	), nil
}

func resolver(injector do.Injector) (*provider.Resolver, error) {
	r, err := do.Invoke[*provider.Resolver](injector)
	if err != nil {
		return nil, fmt.Errorf("resolve resolver dependency: %w", err)
	}
	return r, nil
}

// printMetrics writes every counter of the registry as "name{labels} value".
func printMetrics(w io.Writer, injector do.Injector) error {
	registry, err := do.Invoke[*prometheus.Registry](injector)
	if err != nil {
		return fmt.Errorf("resolve registry dependency: %w", err)
	}

	families, err := registry.Gather()
	if err != nil {
		return fmt.Errorf("failed to gather metrics: %w", err)
	}

	var lines []string
	for _, family := range families {
		for _, metric := range family.GetMetric() {
			labels := make([]string, 0, len(metric.GetLabel()))
			for _, label := range metric.GetLabel() {
				labels = append(labels, fmt.Sprintf("%s=%q", label.GetName(), label.GetValue()))
			}
			lines = append(lines, fmt.Sprintf("%s{%s} %g", family.GetName(), strings.Join(labels, ","), metric.GetCounter().GetValue()))
		}
	}
	sort.Strings(lines)

	for _, line := range lines {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}
