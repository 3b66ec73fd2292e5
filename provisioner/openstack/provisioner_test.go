package openstack

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"net/http"
	"path/filepath"
	"testing"

	"github.com/gammadia/nodeprovider/provider"
	th "github.com/gophercloud/gophercloud/testhelper"
	fakeclient "github.com/gophercloud/gophercloud/testhelper/client"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"
)

func newTestProvider(t *testing.T) *NodeProvider {
	th.SetupHTTP()
	t.Cleanup(th.TeardownHTTP)
	return NewWithClient(Config{Image: "ubuntu", Flavor: "m1.small", KeyDir: t.TempDir()}, "demo", fakeclient.ServiceClient())
}

func TestNonTerminatedNodes(t *testing.T) {
	p := newTestProvider(t)
	th.Mux.HandleFunc("/servers/detail", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"servers": [
			{"id": "s1", "name": "demo-worker-a", "status": "ACTIVE", "metadata": {%[1]q: "demo", %[2]q: "worker"}},
			{"id": "s2", "name": "demo-worker-b", "status": "DELETED", "metadata": {%[1]q: "demo", %[2]q: "worker"}},
			{"id": "s3", "name": "demo-head-a", "status": "BUILD", "metadata": {%[1]q: "demo", %[2]q: "head"}},
			{"id": "s4", "name": "other-worker-a", "status": "ACTIVE", "metadata": {%[1]q: "other", %[2]q: "worker"}}
		]}`, provider.TagClusterName, provider.TagNodeKind)
	})

	nodes, err := p.NonTerminatedNodes(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"s1", "s3"}, nodes)

	nodes, err = p.NonTerminatedNodes(context.Background(), map[string]string{provider.TagNodeKind: provider.NodeKindWorker})
	require.NoError(t, err)
	assert.Equal(t, []string{"s1"}, nodes)
}

func TestInternalIP(t *testing.T) {
	p := newTestProvider(t)
	th.Mux.HandleFunc("/servers/s1/ips", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"addresses": {"private": [{"version": 6, "addr": "fd00::3"}, {"version": 4, "addr": "10.0.0.3"}]}}`)
	})

	ip, err := p.InternalIP(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.3", ip)
}

func TestCreateAndTerminate(t *testing.T) {
	p := newTestProvider(t)

	var bodies []map[string]any
	th.Mux.HandleFunc("/servers", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		bodies = append(bodies, body)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		fmt.Fprintf(w, `{"server": {"id": "s%d"}}`, len(bodies))
	})
	deleted := 0
	th.Mux.HandleFunc("/servers/s1", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		deleted++
		w.WriteHeader(http.StatusNoContent)
	})

	err := p.CreateNode(context.Background(), map[string]any{"flavor": "m1.large"}, map[string]string{provider.TagNodeKind: provider.NodeKindHead}, 2)
	require.NoError(t, err)
	require.Len(t, bodies, 2)

	server := bodies[0]["server"].(map[string]any)
	assert.Equal(t, "ubuntu", server["imageRef"])
	assert.Equal(t, "m1.large", server["flavorRef"])
	assert.Equal(t, "nodeprovider-demo", server["key_name"])
	metadata := server["metadata"].(map[string]any)
	assert.Equal(t, "demo", metadata[provider.TagClusterName])
	assert.Equal(t, "head", metadata[provider.TagNodeKind])
	assert.Contains(t, metadata, TagCreatedAt)

	require.NoError(t, p.TerminateNode(context.Background(), "s1"))
	assert.Equal(t, 1, deleted)
}

func TestEnsureKeypairCreatesAndSavesKey(t *testing.T) {
	p := newTestProvider(t)

	_, private, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	block, err := ssh.MarshalPrivateKey(private, "")
	require.NoError(t, err)
	privatePEM := string(pem.EncodeToMemory(block))

	th.Mux.HandleFunc("/os-keypairs/nodeprovider-demo", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	th.Mux.HandleFunc("/os-keypairs", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"keypair": map[string]any{"name": "nodeprovider-demo", "private_key": privatePEM},
		})
	})

	signer, err := p.ensureKeypair()
	require.NoError(t, err)
	require.NotNil(t, signer)

	saved, err := loadSigner(filepath.Join(p.config.KeyDir, "nodeprovider-demo.pem"))
	require.NoError(t, err)
	assert.Equal(t, signer.PublicKey().Marshal(), saved.PublicKey().Marshal())
}

func TestEnsureKeypairWithoutLocalKey(t *testing.T) {
	p := newTestProvider(t)
	th.Mux.HandleFunc("/os-keypairs/nodeprovider-demo", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"keypair": {"name": "nodeprovider-demo", "public_key": "ssh-ed25519 AAAA"}}`)
	})

	signer, err := p.ensureKeypair()
	require.NoError(t, err)
	assert.Nil(t, signer)
}

func TestCreateNodeRequiresImage(t *testing.T) {
	p := newTestProvider(t)
	p.config.Image = ""

	err := p.CreateNode(context.Background(), nil, nil, 1)
	assert.ErrorIs(t, err, provider.ErrInvalidConfig)
}
