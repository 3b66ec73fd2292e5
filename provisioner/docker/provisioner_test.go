package docker

import (
	"context"
	"errors"
	"testing"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/errdefs"
	"github.com/gammadia/nodeprovider/provider"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockAPI struct {
	mock.Mock
}

func (m *mockAPI) ContainerList(ctx context.Context, options container.ListOptions) ([]container.Summary, error) {
	args := m.Called(ctx, options)
	containers, _ := args.Get(0).([]container.Summary)
	return containers, args.Error(1)
}

func (m *mockAPI) ContainerInspect(ctx context.Context, containerID string) (container.InspectResponse, error) {
	args := m.Called(ctx, containerID)
	inspect, _ := args.Get(0).(container.InspectResponse)
	return inspect, args.Error(1)
}

func (m *mockAPI) ContainerCreate(ctx context.Context, config *container.Config, hostConfig *container.HostConfig, networkingConfig *network.NetworkingConfig, platform *ocispec.Platform, containerName string) (container.CreateResponse, error) {
	args := m.Called(ctx, config, hostConfig, networkingConfig, platform, containerName)
	resp, _ := args.Get(0).(container.CreateResponse)
	return resp, args.Error(1)
}

func (m *mockAPI) ContainerStart(ctx context.Context, containerID string, options container.StartOptions) error {
	return m.Called(ctx, containerID, options).Error(0)
}

func (m *mockAPI) ContainerRemove(ctx context.Context, containerID string, options container.RemoveOptions) error {
	return m.Called(ctx, containerID, options).Error(0)
}

func TestNonTerminatedNodes(t *testing.T) {
	docker := &mockAPI{}
	p := NewWithClient(Config{}, "demo", docker)

	docker.On("ContainerList", mock.Anything, mock.MatchedBy(func(options container.ListOptions) bool {
		return options.Filters.ExactMatch("label", provider.TagClusterName+"=demo") &&
			options.Filters.ExactMatch("label", provider.TagNodeKind+"=worker")
	})).Return([]container.Summary{{ID: "c1"}, {ID: "c2"}}, nil)

	nodes, err := p.NonTerminatedNodes(context.Background(), map[string]string{provider.TagNodeKind: provider.NodeKindWorker})
	require.NoError(t, err)
	assert.Equal(t, []string{"c1", "c2"}, nodes)
	docker.AssertExpectations(t)
}

func TestNodeTagsAndInternalIP(t *testing.T) {
	docker := &mockAPI{}
	p := NewWithClient(Config{Network: "nodes"}, "demo", docker)

	inspect := container.InspectResponse{
		Config: &container.Config{Labels: map[string]string{provider.TagClusterName: "demo"}},
		NetworkSettings: &container.NetworkSettings{
			Networks: map[string]*network.EndpointSettings{
				"bridge": {IPAddress: "172.17.0.2"},
				"nodes":  {IPAddress: "10.10.0.2"},
			},
		},
	}
	docker.On("ContainerInspect", mock.Anything, "c1").Return(inspect, nil)
	docker.On("ContainerInspect", mock.Anything, "c404").Return(container.InspectResponse{}, errdefs.NotFound(errors.New("no such container")))

	tags, err := p.NodeTags(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, "demo", tags[provider.TagClusterName])

	ip, err := p.InternalIP(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, "10.10.0.2", ip)

	_, err = p.NodeTags(context.Background(), "c404")
	assert.ErrorIs(t, err, provider.ErrNodeNotFound)
}

func TestCreateNode(t *testing.T) {
	docker := &mockAPI{}
	p := NewWithClient(Config{Network: "nodes"}, "demo", docker)

	docker.On("ContainerCreate", mock.Anything,
		mock.MatchedBy(func(config *container.Config) bool {
			return config.Image == "ubuntu:22.04" && config.Labels[provider.TagClusterName] == "demo"
		}),
		mock.Anything,
		mock.MatchedBy(func(networking *network.NetworkingConfig) bool {
			_, ok := networking.EndpointsConfig["nodes"]
			return ok
		}),
		(*ocispec.Platform)(nil),
		mock.AnythingOfType("string"),
	).Return(container.CreateResponse{ID: "c1"}, nil).Twice()
	docker.On("ContainerStart", mock.Anything, "c1", container.StartOptions{}).Return(nil).Twice()

	err := p.CreateNode(context.Background(), map[string]any{
		"image":   "ubuntu:22.04",
		"command": []any{"sleep", "infinity"},
	}, map[string]string{provider.TagNodeKind: provider.NodeKindWorker}, 2)
	require.NoError(t, err)
	docker.AssertExpectations(t)
}

func TestCreateNodeRemovesContainerThatFailsToStart(t *testing.T) {
	docker := &mockAPI{}
	p := NewWithClient(Config{}, "demo", docker)

	docker.On("ContainerCreate", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(container.CreateResponse{ID: "c1"}, nil)
	docker.On("ContainerStart", mock.Anything, "c1", mock.Anything).Return(errors.New("port already allocated"))
	docker.On("ContainerRemove", mock.Anything, "c1", container.RemoveOptions{Force: true}).Return(nil).Once()

	err := p.CreateNode(context.Background(), map[string]any{"image": "ubuntu:22.04"}, nil, 1)
	assert.ErrorContains(t, err, "port already allocated")
	docker.AssertExpectations(t)
}

func TestTerminateNode(t *testing.T) {
	docker := &mockAPI{}
	p := NewWithClient(Config{}, "demo", docker)

	docker.On("ContainerRemove", mock.Anything, "c1", container.RemoveOptions{Force: true, RemoveVolumes: true}).Return(nil)
	docker.On("ContainerRemove", mock.Anything, "c404", mock.Anything).Return(errdefs.NotFound(errors.New("no such container")))

	require.NoError(t, p.TerminateNode(context.Background(), "c1"))
	require.NoError(t, p.TerminateNode(context.Background(), "c404"))
}
