package docker

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"
	"github.com/gammadia/nodeprovider/provider"
	"github.com/gammadia/nodeprovider/provisioner/internal"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	"github.com/samber/lo"
)

// API is the subset of the Docker client used by the node provider.
type API interface {
	ContainerList(ctx context.Context, options container.ListOptions) ([]container.Summary, error)
	ContainerInspect(ctx context.Context, containerID string) (container.InspectResponse, error)
	ContainerCreate(ctx context.Context, config *container.Config, hostConfig *container.HostConfig, networkingConfig *network.NetworkingConfig, platform *ocispec.Platform, containerName string) (container.CreateResponse, error)
	ContainerStart(ctx context.Context, containerID string, options container.StartOptions) error
	ContainerRemove(ctx context.Context, containerID string, options container.RemoveOptions) error
}

// NodeProvider runs nodes as containers.
type NodeProvider struct {
	clusterName string
	config      Config
	docker      API
	log         *slog.Logger
}

// NodeProvider implements provider.NodeProvider
var _ provider.NodeProvider = (*NodeProvider)(nil)

func New(cfg provider.Config, clusterName string) (*NodeProvider, error) {
	var config Config
	if err := internal.DecodeProvider(cfg, &config); err != nil {
		return nil, err
	}

	opts := []client.Opt{client.FromEnv, client.WithAPIVersionNegotiation()}
	if config.Host != "" {
		opts = append(opts, client.WithHost(config.Host))
	}
	docker, err := client.NewClientWithOpts(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to init docker client: %w", err)
	}
	return NewWithClient(config, clusterName, docker), nil
}

func NewWithClient(config Config, clusterName string, docker API) *NodeProvider {
	return &NodeProvider{
		clusterName: clusterName,
		config:      config,
		docker:      docker,
		log:         internal.Logger("docker", clusterName),
	}
}

func (p *NodeProvider) ClusterName() string {
	return p.clusterName
}

func labelFilters(labels map[string]string) filters.Args {
	args := filters.NewArgs()
	for k, v := range labels {
		args.Add("label", k+"="+v)
	}
	return args
}

func (p *NodeProvider) NonTerminatedNodes(ctx context.Context, tagFilters map[string]string) ([]string, error) {
	containers, err := p.docker.ContainerList(ctx, container.ListOptions{
		Filters: labelFilters(internal.ClusterFilters(p.clusterName, tagFilters)),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list containers: %w", err)
	}
	return lo.Map(containers, func(c container.Summary, _ int) string {
		return c.ID
	}), nil
}

func (p *NodeProvider) inspect(ctx context.Context, nodeID string) (container.InspectResponse, error) {
	inspect, err := p.docker.ContainerInspect(ctx, nodeID)
	if client.IsErrNotFound(err) {
		return inspect, fmt.Errorf("%w: '%s'", provider.ErrNodeNotFound, nodeID)
	} else if err != nil {
		return inspect, fmt.Errorf("failed to inspect container '%s': %w", nodeID, err)
	}
	return inspect, nil
}

func (p *NodeProvider) NodeTags(ctx context.Context, nodeID string) (map[string]string, error) {
	inspect, err := p.inspect(ctx, nodeID)
	if err != nil {
		return nil, err
	}
	if inspect.Config == nil {
		return map[string]string{}, nil
	}
	return inspect.Config.Labels, nil
}

func (p *NodeProvider) InternalIP(ctx context.Context, nodeID string) (string, error) {
	inspect, err := p.inspect(ctx, nodeID)
	if err != nil {
		return "", err
	}
	if inspect.NetworkSettings != nil {
		if endpoint, ok := inspect.NetworkSettings.Networks[p.config.Network]; ok && endpoint != nil && endpoint.IPAddress != "" {
			return endpoint.IPAddress, nil
		}
		for _, endpoint := range inspect.NetworkSettings.Networks {
			if endpoint != nil && endpoint.IPAddress != "" {
				return endpoint.IPAddress, nil
			}
		}
	}
	return "", fmt.Errorf("container '%s' has no IP address", nodeID)
}

func (p *NodeProvider) CreateNode(ctx context.Context, nodeConfig map[string]any, tags map[string]string, count int) error {
	var node NodeConfig
	if err := internal.Decode(nodeConfig, &node); err != nil {
		return err
	}
	if node.Image == "" {
		return fmt.Errorf("%w: node_config requires an image", provider.ErrInvalidConfig)
	}

	labels := provider.ClusterTags(p.clusterName, tags)
	var networking *network.NetworkingConfig
	if p.config.Network != "" {
		networking = &network.NetworkingConfig{
			EndpointsConfig: map[string]*network.EndpointSettings{p.config.Network: {}},
		}
	}

	for range count {
		name := internal.NodeName(p.clusterName, tags)

		resp, err := p.docker.ContainerCreate(ctx,
			&container.Config{Image: node.Image, Cmd: node.Command, Env: node.Env, Labels: labels, Hostname: name},
			&container.HostConfig{Privileged: node.Privileged, Init: lo.ToPtr(true)},
			networking, nil, name,
		)
		if err != nil {
			return fmt.Errorf("failed to create container '%s': %w", name, err)
		}

		if err := p.docker.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
			_ = p.docker.ContainerRemove(context.WithoutCancel(ctx), resp.ID, container.RemoveOptions{Force: true})
			return fmt.Errorf("failed to start container '%s': %w", name, err)
		}
		p.log.Info("Started container", "node", resp.ID, "name", name)
	}
	return nil
}

func (p *NodeProvider) TerminateNode(ctx context.Context, nodeID string) error {
	err := p.docker.ContainerRemove(ctx, nodeID, container.RemoveOptions{Force: true, RemoveVolumes: true})
	if client.IsErrNotFound(err) {
		return nil
	} else if err != nil {
		return fmt.Errorf("failed to remove container '%s': %w", nodeID, err)
	}
	p.log.Info("Removed container", "node", nodeID)
	return nil
}
