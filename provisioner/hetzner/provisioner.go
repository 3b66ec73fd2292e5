package hetzner

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/gammadia/nodeprovider/provider"
	"github.com/gammadia/nodeprovider/provisioner/internal"
	"github.com/hetznercloud/hcloud-go/v2/hcloud"
	"github.com/samber/lo"
)

// ActionTimeout bounds the wait for a server creation to complete.
const ActionTimeout = 5 * time.Minute

var terminatedStatuses = []hcloud.ServerStatus{hcloud.ServerStatusDeleting, hcloud.ServerStatusOff}

type NodeProvider struct {
	clusterName string
	config      Config
	client      *hcloud.Client
	log         *slog.Logger
}

// NodeProvider implements provider.NodeProvider
var _ provider.NodeProvider = (*NodeProvider)(nil)

func New(cfg provider.Config, clusterName string) (*NodeProvider, error) {
	var config Config
	if err := internal.DecodeProvider(cfg, &config); err != nil {
		return nil, err
	}
	if config.token() == "" {
		return nil, fmt.Errorf("%w: hetzner node provider requires 'token' or %s", provider.ErrInvalidConfig, TokenEnv)
	}

	opts := []hcloud.ClientOption{hcloud.WithToken(config.token()), hcloud.WithApplication("nodeprovider", "")}
	if config.Endpoint != "" {
		opts = append(opts, hcloud.WithEndpoint(config.Endpoint))
	}

	return &NodeProvider{
		clusterName: clusterName,
		config:      config,
		client:      hcloud.NewClient(opts...),
		log:         internal.Logger("hetzner", clusterName),
	}, nil
}

func (p *NodeProvider) ClusterName() string {
	return p.clusterName
}

func (p *NodeProvider) NonTerminatedNodes(ctx context.Context, filters map[string]string) ([]string, error) {
	servers, err := p.client.Server.AllWithOpts(ctx, hcloud.ServerListOpts{
		ListOpts: hcloud.ListOpts{
			LabelSelector: internal.Selector(internal.ClusterFilters(p.clusterName, filters)),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list servers: %w", err)
	}

	return lo.FilterMap(servers, func(server *hcloud.Server, _ int) (string, bool) {
		return strconv.FormatInt(server.ID, 10), !lo.Contains(terminatedStatuses, server.Status)
	}), nil
}

func (p *NodeProvider) server(ctx context.Context, nodeID string) (*hcloud.Server, error) {
	id, err := strconv.ParseInt(nodeID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: '%s' is not a server ID", provider.ErrNodeNotFound, nodeID)
	}

	server, _, err := p.client.Server.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get server '%s': %w", nodeID, err)
	}
	if server == nil {
		return nil, fmt.Errorf("%w: '%s'", provider.ErrNodeNotFound, nodeID)
	}
	return server, nil
}

func (p *NodeProvider) NodeTags(ctx context.Context, nodeID string) (map[string]string, error) {
	server, err := p.server(ctx, nodeID)
	if err != nil {
		return nil, err
	}
	return server.Labels, nil
}

// InternalIP returns the private network address of the server, or its
// public IPv4 address when it is not attached to a network.
func (p *NodeProvider) InternalIP(ctx context.Context, nodeID string) (string, error) {
	server, err := p.server(ctx, nodeID)
	if err != nil {
		return "", err
	}
	for _, net := range server.PrivateNet {
		if net.IP != nil {
			return net.IP.String(), nil
		}
	}
	if !server.PublicNet.IPv4.IsUnspecified() {
		return server.PublicNet.IPv4.IP.String(), nil
	}
	return "", fmt.Errorf("server '%s' has no IP address", nodeID)
}

func (p *NodeProvider) CreateNode(ctx context.Context, nodeConfig map[string]any, tags map[string]string, count int) error {
	var node NodeConfig
	if err := internal.Decode(nodeConfig, &node); err != nil {
		return err
	}
	if node.ServerType == "" || node.Image == "" {
		return fmt.Errorf("%w: node_config requires server_type and image", provider.ErrInvalidConfig)
	}

	labels := provider.ClusterTags(p.clusterName, tags)
	for range count {
		name := internal.NodeName(p.clusterName, tags)
		opts := hcloud.ServerCreateOpts{
			Name:       name,
			ServerType: &hcloud.ServerType{Name: node.ServerType},
			Image:      &hcloud.Image{Name: node.Image},
			Labels:     labels,
			UserData:   node.UserData,
			SSHKeys: lo.Map(p.config.SSHKeys, func(key string, _ int) *hcloud.SSHKey {
				return &hcloud.SSHKey{Name: key}
			}),
		}
		if p.config.Location != "" {
			opts.Location = &hcloud.Location{Name: p.config.Location}
		}

		result, _, err := p.client.Server.Create(ctx, opts)
		if err != nil {
			return fmt.Errorf("failed to create server '%s': %w", name, err)
		}
		if err := p.waitForAction(ctx, result.Action); err != nil {
			return fmt.Errorf("failed waiting for server '%s' creation: %w", name, err)
		}
		p.log.Info("Created server", "node", result.Server.ID, "name", name)
	}
	return nil
}

func (p *NodeProvider) waitForAction(ctx context.Context, action *hcloud.Action) error {
	if action == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, ActionTimeout)
	defer cancel()

	_, errChan := p.client.Action.WatchProgress(ctx, action)
	return <-errChan
}

func (p *NodeProvider) TerminateNode(ctx context.Context, nodeID string) error {
	server, err := p.server(ctx, nodeID)
	if err != nil {
		return err
	}

	if _, _, err := p.client.Server.DeleteWithResult(ctx, server); err != nil {
		return fmt.Errorf("failed to delete server '%s': %w", nodeID, err)
	}
	p.log.Info("Deleted server", "node", nodeID, "name", server.Name)
	return nil
}
