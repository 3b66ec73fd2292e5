package main

import (
	"fmt"
	"io"

	"github.com/gammadia/nodeprovider/nodectl/flags"
	"github.com/gammadia/nodeprovider/provider"
	"github.com/samber/do/v2"
	"github.com/samber/lo"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// loadCluster reads the cluster config at path and returns it with the
// defaults of its provider filled in.
func loadCluster(injector do.Injector, path string) (provider.ClusterConfig, error) {
	r, err := resolver(injector)
	if err != nil {
		return nil, err
	}

	cluster, err := provider.LoadClusterConfig(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load cluster config: %w", err)
	}
	return r.FillDefaults(cluster)
}

// resolveCluster loads the cluster config at path and resolves its node
// provider.
func resolveCluster(injector do.Injector, path string) (provider.ClusterConfig, provider.NodeProvider, error) {
	r, err := resolver(injector)
	if err != nil {
		return nil, nil, err
	}

	cluster, err := loadCluster(injector, path)
	if err != nil {
		return nil, nil, err
	}

	cfg, err := cluster.Provider()
	if err != nil {
		return nil, nil, err
	}

	var options []provider.ResolveOption
	if viper.GetBool(flags.NoCache) {
		options = append(options, provider.WithoutCache())
	}

	clusterName := lo.Ternary(cluster.ClusterName() != "", cluster.ClusterName(), "default")
	p, err := r.Resolve(cfg, clusterName, options...)
	if err != nil {
		return nil, nil, err
	}
	return cluster, p, nil
}

func printYAML(w io.Writer, doc any) error {
	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	if err := encoder.Encode(doc); err != nil {
		return fmt.Errorf("failed to encode yaml: %w", err)
	}
	return encoder.Close()
}
