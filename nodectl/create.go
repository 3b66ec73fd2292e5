package main

import (
	"fmt"

	"github.com/gammadia/nodeprovider/nodectl/log"
	"github.com/gammadia/nodeprovider/nodectl/ui"
	"github.com/gammadia/nodeprovider/provider"
	"github.com/samber/do/v2"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
)

// nodeConfig returns the node_config of nodeType in cluster.
func nodeConfig(cluster provider.ClusterConfig, nodeType string) (map[string]any, error) {
	types, _ := cluster["available_node_types"].(map[string]any)
	typ, ok := types[nodeType].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("unknown node type '%s', available: %v", nodeType, lo.Keys(types))
	}
	config, _ := typ["node_config"].(map[string]any)
	return lo.Ternary(config != nil, config, map[string]any{}), nil
}

func newCreateCmd(injector do.Injector) *cobra.Command {
	var kind, nodeType string
	var count int

	cmd := &cobra.Command{
		Use:   "create CONFIG",
		Short: "Create nodes in a cluster",
		Args:  cobra.ExactArgs(1),

		RunE: func(cmd *cobra.Command, args []string) error {
			if kind != provider.NodeKindHead && kind != provider.NodeKindWorker {
				return fmt.Errorf("invalid node kind '%s'", kind)
			}
			if count < 1 {
				return fmt.Errorf("invalid node count %d", count)
			}

			cluster, p, err := resolveCluster(injector, args[0])
			if err != nil {
				return err
			}

			if nodeType == "" {
				nodeType, _ = cluster["head_node_type"].(string)
			}
			config, err := nodeConfig(cluster, nodeType)
			if err != nil {
				return err
			}

			tags := map[string]string{
				provider.TagNodeKind:     kind,
				provider.TagUserNodeType: nodeType,
			}

			spinner := ui.NewSpinner(cmd.ErrOrStderr(), fmt.Sprintf("Creating %d %s node(s) of type '%s'", count, kind, nodeType))
			if err := p.CreateNode(cmd.Context(), config, tags, count); err != nil {
				spinner.Fail()
				return fmt.Errorf("failed to create nodes: %w", err)
			}
			spinner.Success()
			log.Info("Created nodes", "cluster", p.ClusterName(), "kind", kind, "type", nodeType, "count", count)
			return nil
		},
	}

	cmd.Flags().StringVar(&kind, "kind", provider.NodeKindWorker, "kind of the nodes (head, worker)")
	cmd.Flags().StringVar(&nodeType, "node-type", "", "node type from available_node_types (default head_node_type)")
	cmd.Flags().IntVar(&count, "count", 1, "number of nodes to create")
	return cmd
}
