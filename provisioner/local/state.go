package local

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"gopkg.in/yaml.v3"
)

const (
	stateRunning    = "running"
	stateTerminated = "terminated"
)

type nodeState struct {
	State string            `yaml:"state"`
	Tags  map[string]string `yaml:"tags"`
}

// clusterState is the state file shared by every process managing the
// hosts of one cluster. Accesses are serialized by a file lock.
type clusterState struct {
	path string
	lock *flock.Flock

	// flock.Flock is not meant to be shared between goroutines
	mu sync.Mutex
}

func newClusterState(path string) (*clusterState, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}
	return &clusterState{path: path, lock: flock.New(path + ".lock")}, nil
}

func (s *clusterState) locked(ctx context.Context, fn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ok, err := s.lock.TryLockContext(ctx, 50*time.Millisecond)
	if err != nil {
		return fmt.Errorf("failed to lock cluster state '%s': %w", s.path, err)
	}
	if !ok {
		return fmt.Errorf("failed to lock cluster state '%s'", s.path)
	}
	defer func() { _ = s.lock.Unlock() }()

	return fn()
}

func (s *clusterState) load() (map[string]*nodeState, error) {
	buf, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]*nodeState{}, nil
	} else if err != nil {
		return nil, fmt.Errorf("failed to read cluster state: %w", err)
	}

	nodes := map[string]*nodeState{}
	if err := yaml.Unmarshal(buf, &nodes); err != nil {
		return nil, fmt.Errorf("failed to decode cluster state '%s': %w", s.path, err)
	}
	for _, node := range nodes {
		if node.Tags == nil {
			node.Tags = map[string]string{}
		}
	}
	return nodes, nil
}

func (s *clusterState) save(nodes map[string]*nodeState) error {
	buf, err := yaml.Marshal(nodes)
	if err != nil {
		return fmt.Errorf("failed to encode cluster state: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, buf, 0o644); err != nil {
		return fmt.Errorf("failed to write cluster state: %w", err)
	}
	return os.Rename(tmp, s.path)
}

// Read returns a snapshot of the nodes.
func (s *clusterState) Read(ctx context.Context) (nodes map[string]*nodeState, err error) {
	err = s.locked(ctx, func() error {
		nodes, err = s.load()
		return err
	})
	return nodes, err
}

// Update applies fn to the nodes and persists the result unless fn fails.
func (s *clusterState) Update(ctx context.Context, fn func(nodes map[string]*nodeState) error) error {
	return s.locked(ctx, func() error {
		nodes, err := s.load()
		if err != nil {
			return err
		}
		if err := fn(nodes); err != nil {
			return err
		}
		return s.save(nodes)
	})
}
