package internal

import (
	"strings"
	"testing"
	"time"

	"github.com/gammadia/nodeprovider/provider"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelector(t *testing.T) {
	assert.Equal(t, "", Selector(nil))
	assert.Equal(t, "a=1,b=2,c=3", Selector(map[string]string{"c": "3", "a": "1", "b": "2"}))
}

func TestClusterFilters(t *testing.T) {
	filters := map[string]string{provider.TagNodeKind: provider.NodeKindWorker}

	scoped := ClusterFilters("demo", filters)

	assert.Equal(t, "demo", scoped[provider.TagClusterName])
	assert.Equal(t, provider.NodeKindWorker, scoped[provider.TagNodeKind])
	assert.NotContains(t, filters, provider.TagClusterName)
}

func TestNodeName(t *testing.T) {
	assert.True(t, strings.HasPrefix(NodeName("demo", map[string]string{provider.TagNodeKind: provider.NodeKindHead}), "demo-head-"))
	assert.True(t, strings.HasPrefix(NodeName("demo", nil), "demo-worker-"))
	assert.NotEqual(t, NodeName("demo", nil), NodeName("demo", nil))
}

func TestDecode(t *testing.T) {
	var out struct {
		Region  string        `mapstructure:"region"`
		Count   int           `mapstructure:"count"`
		Timeout time.Duration `mapstructure:"timeout"`
		Groups  []string      `mapstructure:"groups"`
	}

	err := Decode(map[string]any{
		"region":  "eu-west-1",
		"count":   "3",
		"timeout": "90s",
		"groups":  "a,b",
		"unused":  true,
	}, &out)
	require.NoError(t, err)

	assert.Equal(t, "eu-west-1", out.Region)
	assert.Equal(t, 3, out.Count)
	assert.Equal(t, 90*time.Second, out.Timeout)
	assert.Equal(t, []string{"a", "b"}, out.Groups)

	err = Decode(map[string]any{"count": map[string]any{"x": 1}}, &out)
	assert.ErrorIs(t, err, provider.ErrInvalidConfig)
}

func TestDecodeProviderRequiredFields(t *testing.T) {
	var out struct {
		Project string `mapstructure:"project_id"`
	}

	err := DecodeProvider(provider.Config{"type": "gcp"}, &out, "project_id")
	assert.ErrorIs(t, err, provider.ErrInvalidConfig)
	assert.ErrorContains(t, err, "'gcp' node provider requires a 'project_id' field")

	err = DecodeProvider(provider.Config{"type": "gcp", "project_id": "p1"}, &out, "project_id")
	require.NoError(t, err)
	assert.Equal(t, "p1", out.Project)
}
