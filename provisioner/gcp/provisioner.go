package gcp

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/gammadia/nodeprovider/provider"
	"github.com/gammadia/nodeprovider/provisioner/internal"
	"github.com/samber/lo"
	"google.golang.org/api/compute/v1"
	"google.golang.org/api/option"
)

var nonTerminatedStatuses = []string{"PROVISIONING", "STAGING", "RUNNING"}

type NodeProvider struct {
	clusterName string
	config      Config
	compute     *compute.Service
	backoff     internal.Backoff
	log         *slog.Logger
}

// NodeProvider implements provider.NodeProvider
var _ provider.NodeProvider = (*NodeProvider)(nil)

func New(cfg provider.Config, clusterName string) (*NodeProvider, error) {
	return NewWithOptions(cfg, clusterName)
}

// NewWithOptions is New with extra client options, such as a custom
// endpoint.
func NewWithOptions(cfg provider.Config, clusterName string, opts ...option.ClientOption) (*NodeProvider, error) {
	var config Config
	if err := internal.DecodeProvider(cfg, &config, "project_id", "availability_zone"); err != nil {
		return nil, err
	}

	service, err := compute.NewService(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create compute client: %w", err)
	}

	return &NodeProvider{
		clusterName: clusterName,
		config:      config,
		compute:     service,
		backoff:     internal.DefaultBackoff,
		log:         internal.Logger("gcp", clusterName),
	}, nil
}

// Filter returns the instance list filter selecting non terminated nodes
// matching the label filters.
func Filter(labels map[string]string) string {
	keys := lo.Keys(labels)
	slices.Sort(keys)

	clauses := lo.Map(keys, func(k string, _ int) string {
		return fmt.Sprintf("(labels.%s = %s)", k, labels[k])
	})
	clauses = append(clauses, "("+strings.Join(lo.Map(nonTerminatedStatuses, func(s string, _ int) string {
		return fmt.Sprintf("(status = %s)", s)
	}), " OR ")+")")
	return strings.Join(clauses, " AND ")
}

func (p *NodeProvider) ClusterName() string {
	return p.clusterName
}

func (p *NodeProvider) NonTerminatedNodes(ctx context.Context, filters map[string]string) ([]string, error) {
	var nodes []string
	call := p.compute.Instances.List(p.config.ProjectID, p.config.AvailabilityZone).
		Filter(Filter(internal.ClusterFilters(p.clusterName, filters)))
	err := call.Pages(ctx, func(list *compute.InstanceList) error {
		for _, instance := range list.Items {
			nodes = append(nodes, instance.Name)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list instances: %w", err)
	}
	return nodes, nil
}

func (p *NodeProvider) instance(ctx context.Context, nodeID string) (*compute.Instance, error) {
	instance, err := p.compute.Instances.Get(p.config.ProjectID, p.config.AvailabilityZone, nodeID).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to get instance '%s': %w", nodeID, err)
	}
	return instance, nil
}

func (p *NodeProvider) NodeTags(ctx context.Context, nodeID string) (map[string]string, error) {
	instance, err := p.instance(ctx, nodeID)
	if err != nil {
		return nil, err
	}
	return instance.Labels, nil
}

func (p *NodeProvider) InternalIP(ctx context.Context, nodeID string) (string, error) {
	instance, err := p.instance(ctx, nodeID)
	if err != nil {
		return "", err
	}
	for _, nic := range instance.NetworkInterfaces {
		if nic.NetworkIP != "" {
			return nic.NetworkIP, nil
		}
	}
	return "", fmt.Errorf("instance '%s' has no internal IP address", nodeID)
}

func (p *NodeProvider) newInstance(node NodeConfig, name string, labels map[string]string) *compute.Instance {
	zone := p.config.AvailabilityZone
	instance := &compute.Instance{
		Name:        name,
		MachineType: fmt.Sprintf("zones/%s/machineTypes/%s", zone, node.MachineType),
		Labels:      labels,
		Disks: []*compute.AttachedDisk{{
			Boot:       true,
			AutoDelete: true,
			InitializeParams: &compute.AttachedDiskInitializeParams{
				SourceImage: node.SourceImage,
				DiskSizeGb:  node.DiskSizeGb,
			},
		}},
		NetworkInterfaces: []*compute.NetworkInterface{{
			Network:    lo.Ternary(node.Network != "", node.Network, "global/networks/default"),
			Subnetwork: node.Subnetwork,
			AccessConfigs: []*compute.AccessConfig{{
				Name: "External NAT",
				Type: "ONE_TO_ONE_NAT",
			}},
		}},
		Scheduling: &compute.Scheduling{Preemptible: node.Preemptible},
	}
	if node.ServiceAccount != "" {
		instance.ServiceAccounts = []*compute.ServiceAccount{{
			Email:  node.ServiceAccount,
			Scopes: []string{"https://www.googleapis.com/auth/cloud-platform"},
		}}
	}
	return instance
}

func (p *NodeProvider) CreateNode(ctx context.Context, nodeConfig map[string]any, tags map[string]string, count int) error {
	var node NodeConfig
	if err := internal.Decode(nodeConfig, &node); err != nil {
		return err
	}
	if node.MachineType == "" || node.SourceImage == "" {
		return fmt.Errorf("%w: node_config requires machineType and sourceImage", provider.ErrInvalidConfig)
	}

	labels := provider.ClusterTags(p.clusterName, tags)
	for range count {
		instance := p.newInstance(node, internal.NodeName(p.clusterName, tags), labels)

		err := internal.Retry(ctx, p.backoff, func() error {
			_, err := p.compute.Instances.Insert(p.config.ProjectID, p.config.AvailabilityZone, instance).Context(ctx).Do()
			return err
		})
		if err != nil {
			return fmt.Errorf("failed to create instance '%s': %w", instance.Name, err)
		}
		p.log.Info("Created instance", "node", instance.Name)
	}
	return nil
}

func (p *NodeProvider) TerminateNode(ctx context.Context, nodeID string) error {
	_, err := p.compute.Instances.Delete(p.config.ProjectID, p.config.AvailabilityZone, nodeID).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to delete instance '%s': %w", nodeID, err)
	}
	p.log.Info("Deleted instance", "node", nodeID)
	return nil
}
