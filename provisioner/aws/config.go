package aws

import (
	"embed"
	"strings"

	"github.com/gammadia/nodeprovider/provider"
	"github.com/samber/lo"
)

//go:embed example-full.yaml
var defaultsFS embed.FS

var Defaults = provider.DefaultsSource{FS: defaultsFS, Path: "example-full.yaml"}

type Config struct {
	Region string `mapstructure:"region"`
	// Availability zones to launch nodes in, comma separated
	AvailabilityZone string `mapstructure:"availability_zone"`
	// Stop nodes instead of terminating them, and restart stopped nodes
	// before launching new ones
	CacheStoppedNodes bool `mapstructure:"cache_stopped_nodes"`
}

func (c Config) zones() []string {
	zones := lo.Map(strings.Split(c.AvailabilityZone, ","), func(zone string, _ int) string {
		return strings.TrimSpace(zone)
	})
	return lo.Filter(zones, func(zone string, _ int) bool {
		return zone != ""
	})
}

// NodeConfig is the `node_config` of a node type. Field names follow the
// EC2 RunInstances API.
type NodeConfig struct {
	InstanceType     string   `mapstructure:"InstanceType"`
	ImageID          string   `mapstructure:"ImageId"`
	KeyName          string   `mapstructure:"KeyName"`
	SubnetIDs        []string `mapstructure:"SubnetIds"`
	SecurityGroupIDs []string `mapstructure:"SecurityGroupIds"`
	UserData         string   `mapstructure:"UserData"`
}
