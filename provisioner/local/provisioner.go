package local

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"

	"github.com/gammadia/nodeprovider/provider"
	"github.com/gammadia/nodeprovider/provisioner/internal"
	"github.com/samber/lo"
)

// NodeProvider manages a fixed set of hosts. Hosts are identified by their
// address, and a node is "created" by marking a free host as running.
type NodeProvider struct {
	clusterName string
	config      Config
	state       *clusterState
	log         *slog.Logger
}

// NodeProvider implements provider.NodeProvider
var _ provider.NodeProvider = (*NodeProvider)(nil)

func New(cfg provider.Config, clusterName string) (*NodeProvider, error) {
	var config Config
	if err := internal.DecodeProvider(cfg, &config, "head_ip"); err != nil {
		return nil, err
	}

	path, err := config.statePath(clusterName)
	if err != nil {
		return nil, err
	}
	state, err := newClusterState(path)
	if err != nil {
		return nil, err
	}

	p := &NodeProvider{
		clusterName: clusterName,
		config:      config,
		state:       state,
		log:         internal.Logger(provider.LocalType, clusterName),
	}
	if err := p.sync(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to initialize cluster state: %w", err)
	}
	return p, nil
}

// sync makes the state file list exactly the configured hosts.
func (p *NodeProvider) sync(ctx context.Context) error {
	kinds := map[string]string{p.config.HeadIP: provider.NodeKindHead}
	for _, ip := range p.config.WorkerIPs {
		if ip != p.config.HeadIP {
			kinds[ip] = provider.NodeKindWorker
		}
	}

	return p.state.Update(ctx, func(nodes map[string]*nodeState) error {
		for ip := range nodes {
			if _, ok := kinds[ip]; !ok {
				p.log.Info("Removing host from cluster state", "node", ip)
				delete(nodes, ip)
			}
		}
		for ip, kind := range kinds {
			if node, ok := nodes[ip]; ok {
				node.Tags[provider.TagNodeKind] = kind
				continue
			}
			nodes[ip] = &nodeState{
				State: stateTerminated,
				Tags:  map[string]string{provider.TagNodeKind: kind},
			}
		}
		return nil
	})
}

func (p *NodeProvider) ClusterName() string {
	return p.clusterName
}

func (p *NodeProvider) NonTerminatedNodes(ctx context.Context, tagFilters map[string]string) ([]string, error) {
	nodes, err := p.state.Read(ctx)
	if err != nil {
		return nil, err
	}

	ids := lo.Filter(lo.Keys(nodes), func(ip string, _ int) bool {
		return nodes[ip].State == stateRunning && provider.MatchTags(nodes[ip].Tags, tagFilters)
	})
	slices.Sort(ids)
	return ids, nil
}

func (p *NodeProvider) node(ctx context.Context, nodeID string) (*nodeState, error) {
	nodes, err := p.state.Read(ctx)
	if err != nil {
		return nil, err
	}
	node, ok := nodes[nodeID]
	if !ok {
		return nil, fmt.Errorf("%w: '%s'", provider.ErrNodeNotFound, nodeID)
	}
	return node, nil
}

func (p *NodeProvider) NodeTags(ctx context.Context, nodeID string) (map[string]string, error) {
	node, err := p.node(ctx, nodeID)
	if err != nil {
		return nil, err
	}
	return node.Tags, nil
}

// InternalIP returns nodeID, which is the address of the host.
func (p *NodeProvider) InternalIP(ctx context.Context, nodeID string) (string, error) {
	if _, err := p.node(ctx, nodeID); err != nil {
		return "", err
	}
	return nodeID, nil
}

// CreateNode marks count free hosts of the requested kind as running.
func (p *NodeProvider) CreateNode(ctx context.Context, _ map[string]any, tags map[string]string, count int) error {
	kind := lo.Ternary(tags[provider.TagNodeKind] != "", tags[provider.TagNodeKind], provider.NodeKindWorker)

	return p.state.Update(ctx, func(nodes map[string]*nodeState) error {
		free := lo.Filter(slices.Sorted(maps.Keys(nodes)), func(ip string, _ int) bool {
			return nodes[ip].State == stateTerminated && nodes[ip].Tags[provider.TagNodeKind] == kind
		})
		if len(free) < count {
			return fmt.Errorf("not enough free %s hosts in cluster '%s': %d requested, %d available", kind, p.clusterName, count, len(free))
		}

		for _, ip := range free[:count] {
			nodeTags := provider.ClusterTags(p.clusterName, tags)
			nodeTags[provider.TagNodeKind] = kind
			nodes[ip].State = stateRunning
			nodes[ip].Tags = nodeTags
			p.log.Info("Host assigned", "node", ip, "kind", kind)
		}
		return nil
	})
}

func (p *NodeProvider) TerminateNode(ctx context.Context, nodeID string) error {
	return p.state.Update(ctx, func(nodes map[string]*nodeState) error {
		node, ok := nodes[nodeID]
		if !ok {
			return fmt.Errorf("%w: '%s'", provider.ErrNodeNotFound, nodeID)
		}
		node.State = stateTerminated
		p.log.Info("Host released", "node", nodeID)
		return nil
	})
}
