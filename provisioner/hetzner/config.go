package hetzner

import (
	"embed"
	"os"

	"github.com/gammadia/nodeprovider/provider"
	"github.com/samber/lo"
)

//go:embed example-full.yaml
var defaultsFS embed.FS

var Defaults = provider.DefaultsSource{FS: defaultsFS, Path: "example-full.yaml"}

// TokenEnv is read when the config has no token.
const TokenEnv = "HCLOUD_TOKEN"

type Config struct {
	Token    string `mapstructure:"token"`
	Location string `mapstructure:"location"`
	// Names of SSH keys installed on new servers
	SSHKeys []string `mapstructure:"ssh_keys"`
	// Endpoint of the API, the public one when empty
	Endpoint string `mapstructure:"endpoint"`
}

func (c Config) token() string {
	return lo.Ternary(c.Token != "", c.Token, os.Getenv(TokenEnv))
}

// NodeConfig is the `node_config` of a node type.
type NodeConfig struct {
	ServerType string `mapstructure:"server_type"`
	Image      string `mapstructure:"image"`
	UserData   string `mapstructure:"user_data"`
}
