package kubernetes

import (
	"embed"
	"fmt"

	"github.com/gammadia/nodeprovider/provider"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
)

//go:embed example-full.yaml
var defaultsFS embed.FS

var Defaults = provider.DefaultsSource{FS: defaultsFS, Path: "example-full.yaml"}

type Config struct {
	// Namespace the pods are created in
	Namespace string `mapstructure:"namespace"`
	// Path of the kubeconfig file, the default loading rules apply when empty
	Kubeconfig string `mapstructure:"kubeconfig"`
	// kubeconfig context to use instead of the current one
	Context string `mapstructure:"context"`
}

// RESTConfig loads the client configuration from kubeconfig, or from the
// pod environment when running inside a cluster.
func (c Config) RESTConfig() (*rest.Config, error) {
	rules := clientcmd.NewDefaultClientConfigLoadingRules()
	if c.Kubeconfig != "" {
		rules.ExplicitPath = c.Kubeconfig
	}

	restConfig, err := clientcmd.NewNonInteractiveDeferredLoadingClientConfig(rules, &clientcmd.ConfigOverrides{
		CurrentContext: c.Context,
	}).ClientConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load kubernetes client config: %w", err)
	}
	return restConfig, nil
}
