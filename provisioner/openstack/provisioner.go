package openstack

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/gammadia/nodeprovider/provider"
	"github.com/gammadia/nodeprovider/provisioner/internal"
	"github.com/gophercloud/gophercloud"
	"github.com/gophercloud/gophercloud/openstack"
	"github.com/gophercloud/gophercloud/openstack/compute/v2/extensions/keypairs"
	"github.com/gophercloud/gophercloud/openstack/compute/v2/servers"
	"github.com/samber/lo"
	"golang.org/x/crypto/ssh"
)

// TagCreatedAt is set on every server in addition to the node tags.
const TagCreatedAt = "nodeprovider-created-at"

var terminatedStatuses = []string{"DELETED", "SOFT_DELETED", "ERROR"}

type NodeProvider struct {
	clusterName string
	config      Config
	client      *gophercloud.ServiceClient
	log         *slog.Logger

	keyName    string
	privateKey ssh.Signer
}

// NodeProvider implements provider.NodeProvider
var _ provider.NodeProvider = (*NodeProvider)(nil)

func New(cfg provider.Config, clusterName string) (*NodeProvider, error) {
	var config Config
	if err := internal.DecodeProvider(cfg, &config); err != nil {
		return nil, err
	}

	opts, err := openstack.AuthOptionsFromEnv()
	if err != nil {
		return nil, fmt.Errorf("failed to get auth options from env: %w", err)
	}

	authenticated, err := openstack.AuthenticatedClient(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to get authenticated client: %w", err)
	}

	client, err := openstack.NewComputeV2(authenticated, gophercloud.EndpointOpts{
		Region: lo.Ternary(config.Region != "", config.Region, os.Getenv("OS_REGION_NAME")),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get compute client: %w", err)
	}

	p := NewWithClient(config, clusterName, client)
	if p.privateKey, err = p.ensureKeypair(); err != nil {
		return nil, err
	}
	return p, nil
}

// NewWithClient returns a node provider using client, without checking the
// cluster keypair.
func NewWithClient(config Config, clusterName string, client *gophercloud.ServiceClient) *NodeProvider {
	return &NodeProvider{
		clusterName: clusterName,
		config:      config,
		client:      client,
		log:         internal.Logger("openstack", clusterName),
		keyName:     fmt.Sprintf("nodeprovider-%s", clusterName),
	}
}

func (p *NodeProvider) ClusterName() string {
	return p.clusterName
}

// Signer returns the private key of the cluster keypair, if available.
func (p *NodeProvider) Signer() ssh.Signer {
	return p.privateKey
}

func (p *NodeProvider) NonTerminatedNodes(ctx context.Context, filters map[string]string) ([]string, error) {
	filters = internal.ClusterFilters(p.clusterName, filters)

	pages, err := servers.List(p.client, servers.ListOpts{}).AllPages()
	if err != nil {
		return nil, fmt.Errorf("failed to list servers: %w", err)
	}
	all, err := servers.ExtractServers(pages)
	if err != nil {
		return nil, fmt.Errorf("failed to extract servers: %w", err)
	}

	return lo.FilterMap(all, func(server servers.Server, _ int) (string, bool) {
		return server.ID, !lo.Contains(terminatedStatuses, server.Status) && provider.MatchTags(server.Metadata, filters)
	}), nil
}

func (p *NodeProvider) NodeTags(ctx context.Context, nodeID string) (map[string]string, error) {
	server, err := servers.Get(p.client, nodeID).Extract()
	if err != nil {
		return nil, fmt.Errorf("failed to get server '%s': %w", nodeID, err)
	}
	return server.Metadata, nil
}

func (p *NodeProvider) InternalIP(ctx context.Context, nodeID string) (string, error) {
	pages, err := servers.ListAddresses(p.client, nodeID).AllPages()
	if err != nil {
		return "", fmt.Errorf("failed to get server addresses for '%s': %w", nodeID, err)
	}

	allAddresses, err := servers.ExtractAddresses(pages)
	if err != nil {
		return "", fmt.Errorf("failed to extract server addresses for '%s': %w", nodeID, err)
	}

	for _, addresses := range allAddresses {
		for _, address := range addresses {
			if address.Version == 4 {
				return address.Address, nil
			}
		}
	}
	return "", fmt.Errorf("failed to find IPv4 address for server '%s'", nodeID)
}

func (p *NodeProvider) CreateNode(ctx context.Context, nodeConfig map[string]any, tags map[string]string, count int) error {
	node := NodeConfig{Image: p.config.Image, Flavor: p.config.Flavor}
	if err := internal.Decode(nodeConfig, &node); err != nil {
		return err
	}
	if node.Image == "" || node.Flavor == "" {
		return fmt.Errorf("%w: openstack nodes require an image and a flavor", provider.ErrInvalidConfig)
	}

	metadata := provider.ClusterTags(p.clusterName, tags)
	metadata[TagCreatedAt] = time.Now().Format(time.RFC3339)

	for range count {
		name := internal.NodeName(p.clusterName, tags)

		server, err := servers.Create(p.client, keypairs.CreateOptsExt{
			CreateOptsBuilder: servers.CreateOpts{
				Name:           name,
				ImageRef:       node.Image,
				FlavorRef:      node.Flavor,
				Networks:       p.config.Networks,
				SecurityGroups: p.config.SecurityGroups,
				Metadata:       metadata,
			},
			KeyName: p.keyName,
		}).Extract()
		if err != nil {
			return fmt.Errorf("failed to create server '%s': %w", name, err)
		}
		p.log.Info("Created server", "node", server.ID, "name", name)
	}
	return nil
}

func (p *NodeProvider) TerminateNode(ctx context.Context, nodeID string) error {
	if err := servers.Delete(p.client, nodeID).ExtractErr(); err != nil {
		return fmt.Errorf("failed to delete server '%s': %w", nodeID, err)
	}
	p.log.Info("Deleted server", "node", nodeID)
	return nil
}
