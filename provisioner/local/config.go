package local

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gammadia/nodeprovider/provider"
)

//go:embed example-full.yaml
var defaultsFS embed.FS

// Defaults is the packaged default cluster config of the local provider.
var Defaults = provider.DefaultsSource{FS: defaultsFS, Path: "example-full.yaml"}

type Config struct {
	// Host of the head node
	HeadIP string `mapstructure:"head_ip"`
	// Hosts available as worker nodes
	WorkerIPs []string `mapstructure:"worker_ips"`
	// Directory holding the cluster state files
	StateDir string `mapstructure:"state_dir"`
}

// statePath returns the state file of clusterName, which must be usable as
// a single file name component.
func (c Config) statePath(clusterName string) (string, error) {
	if clusterName == "" || clusterName == "." || clusterName == ".." ||
		strings.ContainsAny(clusterName, `/\`) {
		return "", fmt.Errorf("%w: invalid cluster name '%s'", provider.ErrInvalidConfig, clusterName)
	}

	dir := c.StateDir
	if dir == "" {
		dir = filepath.Join(os.TempDir(), "nodeprovider")
	}
	return filepath.Join(dir, "cluster-"+clusterName+".state"), nil
}
