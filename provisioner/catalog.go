// Package provisioner binds the built-in node provider backends into a
// provider.Catalog.
package provisioner

import (
	"github.com/gammadia/nodeprovider/provider"
	"github.com/gammadia/nodeprovider/provisioner/aws"
	"github.com/gammadia/nodeprovider/provisioner/azure"
	"github.com/gammadia/nodeprovider/provisioner/coordinator"
	"github.com/gammadia/nodeprovider/provisioner/docker"
	"github.com/gammadia/nodeprovider/provisioner/gcp"
	"github.com/gammadia/nodeprovider/provisioner/hetzner"
	k8s "github.com/gammadia/nodeprovider/provisioner/kubernetes"
	"github.com/gammadia/nodeprovider/provisioner/local"
	"github.com/gammadia/nodeprovider/provisioner/openstack"
	"github.com/gammadia/nodeprovider/provisioner/staroid"
)

// construct adapts a backend constructor returning its concrete type.
func construct[T provider.NodeProvider](ctor func(provider.Config, string) (T, error)) provider.Constructor {
	return func(cfg provider.Config, clusterName string) (provider.NodeProvider, error) {
		p, err := ctor(cfg, clusterName)
		if err != nil {
			return nil, err
		}
		return p, nil
	}
}

// Entries returns the catalog entries of every built-in backend.
func Entries() []provider.Entry {
	return []provider.Entry{
		provider.LocalEntry(construct(local.New), construct(coordinator.New), &local.Defaults),
		provider.StaticEntry("aws", "AWS", construct(aws.New), &aws.Defaults),
		provider.StaticEntry("gcp", "GCP", construct(gcp.New), &gcp.Defaults),
		provider.StaticEntry("azure", "Azure", construct(azure.New), &azure.Defaults),
		provider.StaticEntry("kubernetes", "Kubernetes", construct(k8s.New), &k8s.Defaults),
		provider.StaticEntry("staroid", "Staroid", construct(staroid.New), &staroid.Defaults),
		provider.StaticEntry("openstack", "OpenStack", construct(openstack.New), &openstack.Defaults),
		provider.StaticEntry("hetzner", "Hetzner", construct(hetzner.New), &hetzner.Defaults),
		provider.StaticEntry("docker", "Docker", construct(docker.New), &docker.Defaults),
	}
}

// NewCatalog returns the built-in catalog, with the "external" type resolved
// through loader.
func NewCatalog(loader provider.PluginLoader) *provider.Catalog {
	entries := append(Entries(), provider.ExternalEntry(loader))
	// Entries are static: a failure here is a programming error.
	catalog, err := provider.NewCatalog(entries...)
	if err != nil {
		panic(err)
	}
	return catalog
}
