package internal

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/gammadia/nodeprovider/namegen"
	"github.com/gammadia/nodeprovider/provider"
	"github.com/samber/lo"
)

// Selector renders filters as a `k1=v1,k2=v2` selector, sorted by key.
func Selector(filters map[string]string) string {
	keys := lo.Keys(filters)
	sort.Strings(keys)
	return strings.Join(lo.Map(keys, func(k string, _ int) string {
		return fmt.Sprintf("%s=%s", k, filters[k])
	}), ",")
}

// ClusterFilters returns filters restricted to the nodes of clusterName.
func ClusterFilters(clusterName string, filters map[string]string) map[string]string {
	return provider.ClusterTags(clusterName, filters)
}

// NodeName returns a fresh node name for a node of the given kind.
func NodeName(clusterName string, tags map[string]string) string {
	kind := lo.Ternary(tags[provider.TagNodeKind] != "", tags[provider.TagNodeKind], provider.NodeKindWorker)
	return fmt.Sprintf("%s-%s-%s", clusterName, kind, namegen.Get())
}

// Logger returns the logger of a node provider.
func Logger(typ, clusterName string) *slog.Logger {
	return slog.Default().With("component", "provisioner", "provider", typ, "cluster", clusterName)
}
