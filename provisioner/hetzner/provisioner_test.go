package hetzner

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gammadia/nodeprovider/provider"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pagination = map[string]any{
	"pagination": map[string]any{"page": 1, "per_page": 50, "last_page": 1, "total_entries": 2},
}

func testServer(id int, status string, labels map[string]string) map[string]any {
	return map[string]any{
		"id":          id,
		"name":        "server",
		"status":      status,
		"labels":      labels,
		"public_net":  map[string]any{"ipv4": map[string]any{"ip": "203.0.113.7"}},
		"private_net": []any{},
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func newTestProvider(t *testing.T, mux *http.ServeMux) *NodeProvider {
	t.Helper()
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	p, err := New(provider.Config{"type": "hetzner", "token": "test", "endpoint": server.URL}, "demo")
	require.NoError(t, err)
	return p
}

func TestNewRequiresToken(t *testing.T) {
	t.Setenv(TokenEnv, "")

	_, err := New(provider.Config{"type": "hetzner"}, "demo")
	assert.ErrorIs(t, err, provider.ErrInvalidConfig)

	t.Setenv(TokenEnv, "from-env")
	_, err = New(provider.Config{"type": "hetzner"}, "demo")
	assert.NoError(t, err)
}

func TestNonTerminatedNodes(t *testing.T) {
	var selector string
	mux := http.NewServeMux()
	mux.HandleFunc("GET /servers", func(w http.ResponseWriter, r *http.Request) {
		selector = r.URL.Query().Get("label_selector")
		labels := map[string]string{provider.TagClusterName: "demo", provider.TagNodeKind: "worker"}
		writeJSON(w, http.StatusOK, map[string]any{
			"servers": []any{testServer(1, "running", labels), testServer(2, "deleting", labels)},
			"meta":    pagination,
		})
	})
	p := newTestProvider(t, mux)

	nodes, err := p.NonTerminatedNodes(context.Background(), map[string]string{provider.TagNodeKind: provider.NodeKindWorker})
	require.NoError(t, err)
	assert.Equal(t, []string{"1"}, nodes)
	assert.Equal(t, provider.TagClusterName+"=demo,"+provider.TagNodeKind+"=worker", selector)
}

func TestNodeTagsAndInternalIP(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /servers/1", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"server": testServer(1, "running", map[string]string{provider.TagClusterName: "demo"}),
		})
	})
	mux.HandleFunc("GET /servers/2", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]any{
			"error": map[string]any{"code": "not_found", "message": "server not found"},
		})
	})
	p := newTestProvider(t, mux)
	ctx := context.Background()

	tags, err := p.NodeTags(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{provider.TagClusterName: "demo"}, tags)

	ip, err := p.InternalIP(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, "203.0.113.7", ip)

	_, err = p.NodeTags(ctx, "2")
	assert.ErrorIs(t, err, provider.ErrNodeNotFound)

	_, err = p.NodeTags(ctx, "not-a-number")
	assert.ErrorIs(t, err, provider.ErrNodeNotFound)
}

func TestCreateNodeValidatesNodeConfig(t *testing.T) {
	p := newTestProvider(t, http.NewServeMux())

	err := p.CreateNode(context.Background(), map[string]any{"image": "ubuntu-24.04"}, nil, 1)
	assert.ErrorIs(t, err, provider.ErrInvalidConfig)
}
