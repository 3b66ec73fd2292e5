package openstack

import (
	"embed"
	"os"
	"path/filepath"

	"github.com/gammadia/nodeprovider/provider"
	"github.com/gophercloud/gophercloud/openstack/compute/v2/servers"
)

//go:embed example-full.yaml
var defaultsFS embed.FS

var Defaults = provider.DefaultsSource{FS: defaultsFS, Path: "example-full.yaml"}

type Config struct {
	// Region, OS_REGION_NAME when empty
	Region         string            `mapstructure:"region"`
	Image          string            `mapstructure:"image"`
	Flavor         string            `mapstructure:"flavor"`
	Networks       []servers.Network `mapstructure:"networks"`
	SecurityGroups []string          `mapstructure:"security_groups"`
	// Directory where the private key of the cluster keypair is kept
	KeyDir string `mapstructure:"key_dir"`
}

func (c Config) keyPath(keyName string) string {
	dir := c.KeyDir
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			home = os.TempDir()
		}
		dir = filepath.Join(home, ".ssh")
	}
	return filepath.Join(dir, keyName+".pem")
}

// NodeConfig is the `node_config` of a node type, overriding the provider
// image and flavor.
type NodeConfig struct {
	Image  string `mapstructure:"image"`
	Flavor string `mapstructure:"flavor"`
}
