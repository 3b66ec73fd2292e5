package provider

import (
	"context"
	"sync/atomic"
)

// --- Fake node provider ---

type fakeProvider struct {
	cfg         Config
	clusterName string
	variant     string
}

func (p *fakeProvider) ClusterName() string { return p.clusterName }

func (p *fakeProvider) NonTerminatedNodes(context.Context, map[string]string) ([]string, error) {
	return nil, nil
}

func (p *fakeProvider) NodeTags(context.Context, string) (map[string]string, error) {
	return nil, nil
}

func (p *fakeProvider) InternalIP(context.Context, string) (string, error) {
	return "", nil
}

func (p *fakeProvider) CreateNode(context.Context, map[string]any, map[string]string, int) error {
	return nil
}

func (p *fakeProvider) TerminateNode(context.Context, string) error {
	return nil
}

// countingConstructor returns a constructor that counts its invocations.
func countingConstructor(variant string, calls *atomic.Int32) Constructor {
	return func(cfg Config, clusterName string) (NodeProvider, error) {
		calls.Add(1)
		return &fakeProvider{cfg: cfg, clusterName: clusterName, variant: variant}, nil
	}
}
