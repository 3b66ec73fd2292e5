package provider

// Tags set on every node created through a NodeProvider.
const (
	TagClusterName  = "nodeprovider-cluster-name"
	TagNodeKind     = "nodeprovider-node-kind"
	TagNodeName     = "nodeprovider-node-name"
	TagNodeStatus   = "nodeprovider-node-status"
	TagUserNodeType = "nodeprovider-user-node-type"
)

const (
	NodeKindHead   = "head"
	NodeKindWorker = "worker"
)

// MatchTags reports whether tags holds every key/value pair of filters.
func MatchTags(tags, filters map[string]string) bool {
	for k, v := range filters {
		if tags[k] != v {
			return false
		}
	}
	return true
}

// ClusterTags returns a copy of tags with the cluster name tag set.
func ClusterTags(clusterName string, tags map[string]string) map[string]string {
	out := make(map[string]string, len(tags)+1)
	for k, v := range tags {
		out[k] = v
	}
	out[TagClusterName] = clusterName
	return out
}
