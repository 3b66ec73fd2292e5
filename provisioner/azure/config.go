package azure

import (
	"embed"

	"github.com/gammadia/nodeprovider/provider"
)

//go:embed example-full.yaml
var defaultsFS embed.FS

var Defaults = provider.DefaultsSource{FS: defaultsFS, Path: "example-full.yaml"}

type Config struct {
	SubscriptionID string `mapstructure:"subscription_id"`
	ResourceGroup  string `mapstructure:"resource_group"`
	Location       string `mapstructure:"location"`
}

type ImageReference struct {
	Publisher string `mapstructure:"publisher"`
	Offer     string `mapstructure:"offer"`
	SKU       string `mapstructure:"sku"`
	Version   string `mapstructure:"version"`
}

// NodeConfig is the `node_config` of a node type.
type NodeConfig struct {
	VMSize        string         `mapstructure:"vm_size"`
	Image         ImageReference `mapstructure:"image"`
	AdminUsername string         `mapstructure:"admin_username"`
	SSHPublicKey  string         `mapstructure:"ssh_public_key"`
	SubnetID      string         `mapstructure:"subnet_id"`
	// "Regular" or "Spot"
	Priority string `mapstructure:"priority"`
}
