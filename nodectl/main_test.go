package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/gammadia/nodeprovider/provider"
	"github.com/samber/do/v2"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memoryProvider is an in-memory node provider registered as an external
// plugin.
type memoryProvider struct {
	mu    sync.Mutex
	name  string
	nodes map[string]map[string]string
	next  int
}

var _ provider.NodeProvider = (*memoryProvider)(nil)

func (p *memoryProvider) ClusterName() string { return p.name }

func (p *memoryProvider) NonTerminatedNodes(_ context.Context, filters map[string]string) ([]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	var ids []string
	for i := range p.next {
		id := fmt.Sprintf("mem-%d", i)
		if tags, ok := p.nodes[id]; ok && provider.MatchTags(tags, filters) {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (p *memoryProvider) NodeTags(_ context.Context, id string) (map[string]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	tags, ok := p.nodes[id]
	if !ok {
		return nil, provider.ErrNodeNotFound
	}
	return tags, nil
}

func (p *memoryProvider) InternalIP(ctx context.Context, id string) (string, error) {
	if _, err := p.NodeTags(ctx, id); err != nil {
		return "", err
	}
	return "192.168.0." + id[len("mem-"):], nil
}

func (p *memoryProvider) CreateNode(_ context.Context, _ map[string]any, tags map[string]string, count int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for range count {
		p.nodes[fmt.Sprintf("mem-%d", p.next)] = provider.ClusterTags(p.name, tags)
		p.next++
	}
	return nil
}

func (p *memoryProvider) TerminateNode(_ context.Context, id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.nodes[id]; !ok {
		return provider.ErrNodeNotFound
	}
	delete(p.nodes, id)
	return nil
}

type fixture struct {
	t        *testing.T
	injector do.Injector
	dir      string
}

func newFixture(t *testing.T) *fixture {
	t.Cleanup(viper.Reset)

	plugins := provider.NewPlugins()
	require.NoError(t, plugins.Register("memory.Provider", func(_ provider.Config, clusterName string) (provider.NodeProvider, error) {
		return &memoryProvider{name: clusterName, nodes: map[string]map[string]string{}}, nil
	}))

	injector := do.New()
	do.ProvideValue(injector, plugins)
	do.Provide(injector, provideRegistry)
	do.Provide(injector, provideResolver)

	return &fixture{t: t, injector: injector, dir: t.TempDir()}
}

func (f *fixture) writeConfig(name, content string) string {
	path := filepath.Join(f.dir, name)
	require.NoError(f.t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// run executes nodectl with args, sharing the fixture's injector between
// runs like a long-lived process would.
func (f *fixture) run(args ...string) (string, string, error) {
	var stdout, stderr bytes.Buffer
	cmd := newNodectlCmd(f.injector)
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

const memoryCluster = `
cluster_name: demo
provider:
  type: external
  module: memory.Provider
auth:
  ssh_user: ubuntu
  ssh_private_key: /keys/demo key.pem
available_node_types:
  head:
    node_config: {}
  worker:
    node_config:
      size: small
head_node_type: head
`

func TestProviders(t *testing.T) {
	f := newFixture(t)

	stdout, _, err := f.run("providers")
	require.NoError(t, err)
	assert.Contains(t, stdout, "aws         AWS\n")
	assert.Contains(t, stdout, "openstack   OpenStack\n")
	assert.Contains(t, stdout, "memory.Provider")
}

func TestDefaultsAndConfig(t *testing.T) {
	f := newFixture(t)
	path := f.writeConfig("cluster.yaml", `
cluster_name: mine
provider:
  type: aws
  region: eu-central-1
`)

	stdout, _, err := f.run("defaults", path)
	require.NoError(t, err)
	assert.Contains(t, stdout, "cluster_name: default\n")
	assert.Contains(t, stdout, "type: aws\n")

	stdout, _, err = f.run("config", path)
	require.NoError(t, err)
	assert.Contains(t, stdout, "cluster_name: mine\n")
	assert.Contains(t, stdout, "region: eu-central-1\n")
	assert.Contains(t, stdout, "available_node_types:\n")

	path = f.writeConfig("unknown.yaml", "provider:\n  type: digitalocean\n")
	_, _, err = f.run("defaults", path)
	assert.ErrorIs(t, err, provider.ErrUnsupportedProvider)
}

func TestNodeLifecycle(t *testing.T) {
	f := newFixture(t)
	path := f.writeConfig("cluster.yaml", memoryCluster)

	_, _, err := f.run("create", path, "--kind", "head")
	require.NoError(t, err)
	_, stderr, err := f.run("create", path, "--node-type", "worker", "--count", "2")
	require.NoError(t, err)
	assert.Contains(t, stderr, "Creating 2 worker node(s) of type 'worker'")

	stdout, _, err := f.run("nodes", path)
	require.NoError(t, err)
	assert.Equal(t, ""+
		"ID     IP           KIND    TYPE    STATUS\n"+
		"mem-0  192.168.0.0  head    head\n"+
		"mem-1  192.168.0.1  worker  worker\n"+
		"mem-2  192.168.0.2  worker  worker\n", stdout)

	stdout, _, err = f.run("nodes", path, "--kind", "worker", "--template", `{{ .ID }} {{ .Kind | upper }}`)
	require.NoError(t, err)
	assert.Equal(t, "mem-1 WORKER\nmem-2 WORKER\n", stdout)

	_, stderr, err = f.run("terminate", path, "mem-1", "mem-9")
	assert.ErrorIs(t, err, provider.ErrNodeNotFound)
	assert.Contains(t, stderr, "Terminated node 'mem-1'")
	assert.Contains(t, stderr, "Failed to terminate node 'mem-9'")

	stdout, _, err = f.run("nodes", path, "--template", "{{ .ID }}")
	require.NoError(t, err)
	assert.Equal(t, "mem-0\nmem-2\n", stdout)
}

func TestNoCacheResolvesFreshInstance(t *testing.T) {
	f := newFixture(t)
	path := f.writeConfig("cluster.yaml", memoryCluster)

	_, _, err := f.run("create", path)
	require.NoError(t, err)

	// A fresh in-memory provider has no nodes.
	stdout, _, err := f.run("nodes", path, "--no-cache", "--template", "{{ .ID }}")
	require.NoError(t, err)
	assert.Empty(t, stdout)
}

func TestSsh(t *testing.T) {
	f := newFixture(t)
	path := f.writeConfig("cluster.yaml", memoryCluster)

	_, _, err := f.run("create", path)
	require.NoError(t, err)

	stdout, _, err := f.run("ssh", path, "mem-0", "--", "uptime")
	require.NoError(t, err)
	assert.Equal(t, "ssh -o StrictHostKeyChecking=no -o UserKnownHostsFile=/dev/null -i '/keys/demo key.pem' ubuntu@192.168.0.0 uptime\n", stdout)
}

func TestMetrics(t *testing.T) {
	f := newFixture(t)
	path := f.writeConfig("cluster.yaml", memoryCluster)

	_, _, err := f.run("nodes", path)
	require.NoError(t, err)
	_, stderr, err := f.run("nodes", path, "--metrics")
	require.NoError(t, err)

	assert.Contains(t, stderr, `nodeprovider_constructions_total{provider="external"} 1`)
	assert.Contains(t, stderr, `nodeprovider_resolutions_total{provider="external",result="hit"} 1`)
	assert.Contains(t, stderr, `nodeprovider_resolutions_total{provider="external",result="miss"} 1`)
}

func TestLocalCluster(t *testing.T) {
	f := newFixture(t)
	path := f.writeConfig("cluster.yaml", fmt.Sprintf(`
cluster_name: lab
provider:
  type: local
  head_ip: 10.0.0.1
  worker_ips: [10.0.0.2, 10.0.0.3]
  state_dir: %s
`, f.dir))

	_, _, err := f.run("create", path, "--kind", "head")
	require.NoError(t, err)
	_, _, err = f.run("create", path, "--count", "2")
	require.NoError(t, err)

	_, _, err = f.run("create", path)
	assert.ErrorContains(t, err, "not enough free worker hosts")

	stdout, _, err := f.run("nodes", path, "--template", "{{ .IP }} {{ .Kind }}")
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.1 head\n10.0.0.2 worker\n10.0.0.3 worker\n", stdout)
}

func TestVersion(t *testing.T) {
	f := newFixture(t)

	stdout, _, err := f.run("version")
	require.NoError(t, err)
	assert.Equal(t, "nodectl version dev (n/a)\n", stdout)
}
