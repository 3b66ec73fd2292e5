// Package coordinator implements the "local" node provider variant which
// leaves host bookkeeping to a coordinator server shared by several
// clusters.
package coordinator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gammadia/nodeprovider/provider"
	"github.com/gammadia/nodeprovider/provisioner/internal"
	"github.com/hashicorp/go-retryablehttp"
)

type Config struct {
	// host:port of the coordinator server
	Address string `mapstructure:"coordinator_address"`
	// Timeout of a single request
	Timeout time.Duration `mapstructure:"timeout"`
	// Number of retries of a failed request
	Retries int `mapstructure:"retries"`
}

// Request is the body sent to the coordinator for every operation.
type Request struct {
	Type        string `json:"type"`
	ClusterName string `json:"cluster_name"`
	Args        []any  `json:"args"`
}

// Operation names understood by the coordinator.
const (
	OpNonTerminatedNodes = "non_terminated_nodes"
	OpNodeTags           = "node_tags"
	OpInternalIP         = "internal_ip"
	OpCreateNode         = "create_node"
	OpTerminateNode      = "terminate_node"
)

type NodeProvider struct {
	clusterName string
	url         string
	client      *retryablehttp.Client
	log         *slog.Logger
}

// NodeProvider implements provider.NodeProvider
var _ provider.NodeProvider = (*NodeProvider)(nil)

func New(cfg provider.Config, clusterName string) (*NodeProvider, error) {
	config := Config{Timeout: 30 * time.Second, Retries: 3}
	if err := internal.DecodeProvider(cfg, &config, provider.KeyCoordinatorAddress); err != nil {
		return nil, err
	}

	log := internal.Logger(provider.LocalType, clusterName).With("coordinator", config.Address)

	client := retryablehttp.NewClient()
	client.RetryMax = config.Retries
	client.RetryWaitMin = 100 * time.Millisecond
	client.RetryWaitMax = 2 * time.Second
	client.HTTPClient.Timeout = config.Timeout
	client.Logger = log

	url := config.Address
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		url = "http://" + url
	}

	return &NodeProvider{
		clusterName: clusterName,
		url:         strings.TrimRight(url, "/") + "/",
		client:      client,
		log:         log,
	}, nil
}

func (p *NodeProvider) call(ctx context.Context, op string, result any, args ...any) error {
	body, err := json.Marshal(Request{Type: op, ClusterName: p.clusterName, Args: args})
	if err != nil {
		return fmt.Errorf("failed to encode '%s' request: %w", op, err)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create '%s' request: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("coordinator request '%s' failed: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("coordinator request '%s' failed with status %d: %s", op, resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	if result == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("failed to decode '%s' response: %w", op, err)
	}
	return nil
}

func (p *NodeProvider) ClusterName() string {
	return p.clusterName
}

func (p *NodeProvider) NonTerminatedNodes(ctx context.Context, tagFilters map[string]string) ([]string, error) {
	var nodes []string
	if err := p.call(ctx, OpNonTerminatedNodes, &nodes, tagFilters); err != nil {
		return nil, err
	}
	return nodes, nil
}

func (p *NodeProvider) NodeTags(ctx context.Context, nodeID string) (map[string]string, error) {
	var tags map[string]string
	if err := p.call(ctx, OpNodeTags, &tags, nodeID); err != nil {
		return nil, err
	}
	return tags, nil
}

func (p *NodeProvider) InternalIP(ctx context.Context, nodeID string) (string, error) {
	var ip string
	if err := p.call(ctx, OpInternalIP, &ip, nodeID); err != nil {
		return "", err
	}
	return ip, nil
}

func (p *NodeProvider) CreateNode(ctx context.Context, nodeConfig map[string]any, tags map[string]string, count int) error {
	p.log.Debug("Requesting nodes from coordinator", "count", count)
	return p.call(ctx, OpCreateNode, nil, nodeConfig, provider.ClusterTags(p.clusterName, tags), count)
}

func (p *NodeProvider) TerminateNode(ctx context.Context, nodeID string) error {
	return p.call(ctx, OpTerminateNode, nil, nodeID)
}
