// Package staroid runs nodes as pods of a Staroid Kubernetes engine (SKE)
// namespace.
package staroid

import (
	"embed"
	"fmt"
	"os"

	"github.com/gammadia/nodeprovider/provider"
	"github.com/gammadia/nodeprovider/provisioner/internal"
	"github.com/gammadia/nodeprovider/provisioner/kubernetes"
	"github.com/samber/lo"
	k8s "k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
)

//go:embed example-full.yaml
var defaultsFS embed.FS

var Defaults = provider.DefaultsSource{FS: defaultsFS, Path: "example-full.yaml"}

// AccessTokenEnv is read when the config has no access token.
const AccessTokenEnv = "STAROID_ACCESS_TOKEN"

type Config struct {
	AccessToken string `mapstructure:"access_token"`
	Account     string `mapstructure:"account"`
	// Name of the Staroid Kubernetes engine
	SKE       string `mapstructure:"ske"`
	SKERegion string `mapstructure:"ske_region"`
	// Kubernetes API server of the SKE
	APIServer string `mapstructure:"api_server"`
	Namespace string `mapstructure:"namespace"`
	// Skip TLS verification of the API server
	Insecure bool `mapstructure:"insecure"`
}

func (c Config) token() string {
	return lo.Ternary(c.AccessToken != "", c.AccessToken, os.Getenv(AccessTokenEnv))
}

// RESTConfig returns the client configuration authenticating with the
// Staroid access token.
func (c Config) RESTConfig() (*rest.Config, error) {
	token := c.token()
	if token == "" {
		return nil, fmt.Errorf("%w: staroid node provider requires 'access_token' or %s", provider.ErrInvalidConfig, AccessTokenEnv)
	}
	return &rest.Config{
		Host:            c.APIServer,
		BearerToken:     token,
		TLSClientConfig: rest.TLSClientConfig{Insecure: c.Insecure},
	}, nil
}

// New returns a kubernetes node provider bound to the SKE namespace.
func New(cfg provider.Config, clusterName string) (*kubernetes.NodeProvider, error) {
	var config Config
	if err := internal.DecodeProvider(cfg, &config, "api_server"); err != nil {
		return nil, err
	}
	config.Namespace = lo.Ternary(config.Namespace != "", config.Namespace, clusterName)

	restConfig, err := config.RESTConfig()
	if err != nil {
		return nil, err
	}

	client, err := k8s.NewForConfig(restConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create kubernetes client for SKE '%s': %w", config.SKE, err)
	}
	return kubernetes.NewWithClient(config.Namespace, clusterName, client), nil
}
