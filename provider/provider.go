package provider

import "context"

// NodeProvider creates, lists and terminates the nodes of a single cluster.
// Implementations are long-lived and shared by every caller resolving the
// same configuration, so they must be safe for concurrent use.
type NodeProvider interface {
	ClusterName() string
	// NonTerminatedNodes returns the IDs of the pending and running nodes
	// of the cluster that carry every tag of tagFilters.
	NonTerminatedNodes(ctx context.Context, tagFilters map[string]string) ([]string, error)
	NodeTags(ctx context.Context, nodeID string) (map[string]string, error)
	InternalIP(ctx context.Context, nodeID string) (string, error)
	CreateNode(ctx context.Context, nodeConfig map[string]any, tags map[string]string, count int) error
	TerminateNode(ctx context.Context, nodeID string) error
}

// Constructor builds the NodeProvider of a cluster from its provider config.
type Constructor func(cfg Config, clusterName string) (NodeProvider, error)
