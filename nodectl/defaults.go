package main

import (
	"github.com/gammadia/nodeprovider/provider"
	"github.com/samber/do/v2"
	"github.com/spf13/cobra"
)

func newDefaultsCmd(injector do.Injector) *cobra.Command {
	return &cobra.Command{
		Use:   "defaults CONFIG",
		Short: "Print the default cluster config of the node provider of a cluster config",
		Args:  cobra.ExactArgs(1),

		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := resolver(injector)
			if err != nil {
				return err
			}

			cluster, err := provider.LoadClusterConfig(args[0])
			if err != nil {
				return err
			}
			cfg, err := cluster.Provider()
			if err != nil {
				return err
			}

			defaults, err := r.DefaultConfig(cfg)
			if err != nil {
				return err
			}
			return printYAML(cmd.OutOrStdout(), defaults)
		},
	}
}

func newConfigCmd(injector do.Injector) *cobra.Command {
	return &cobra.Command{
		Use:   "config CONFIG",
		Short: "Print a cluster config with the defaults of its node provider filled in",
		Args:  cobra.ExactArgs(1),

		RunE: func(cmd *cobra.Command, args []string) error {
			cluster, err := loadCluster(injector, args[0])
			if err != nil {
				return err
			}
			return printYAML(cmd.OutOrStdout(), cluster)
		},
	}
}
