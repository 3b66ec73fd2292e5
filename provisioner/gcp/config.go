package gcp

import (
	"embed"

	"github.com/gammadia/nodeprovider/provider"
)

//go:embed example-full.yaml
var defaultsFS embed.FS

var Defaults = provider.DefaultsSource{FS: defaultsFS, Path: "example-full.yaml"}

type Config struct {
	ProjectID        string `mapstructure:"project_id"`
	Region           string `mapstructure:"region"`
	AvailabilityZone string `mapstructure:"availability_zone"`
}

// NodeConfig is the `node_config` of a node type.
type NodeConfig struct {
	MachineType string `mapstructure:"machineType"`
	SourceImage string `mapstructure:"sourceImage"`
	DiskSizeGb  int64  `mapstructure:"diskSizeGb"`
	Network     string `mapstructure:"network"`
	Subnetwork  string `mapstructure:"subnetwork"`
	Preemptible bool   `mapstructure:"preemptible"`
	// Service account email, the default compute account when empty
	ServiceAccount string `mapstructure:"serviceAccount"`
}
