package docker

import (
	"embed"

	"github.com/gammadia/nodeprovider/provider"
)

//go:embed example-full.yaml
var defaultsFS embed.FS

var Defaults = provider.DefaultsSource{FS: defaultsFS, Path: "example-full.yaml"}

type Config struct {
	// Docker daemon to use, DOCKER_HOST when empty
	Host string `mapstructure:"host"`
	// Network the containers are attached to
	Network string `mapstructure:"network"`
}

// NodeConfig is the `node_config` of a node type.
type NodeConfig struct {
	Image      string   `mapstructure:"image"`
	Command    []string `mapstructure:"command"`
	Env        []string `mapstructure:"env"`
	Privileged bool     `mapstructure:"privileged"`
}
