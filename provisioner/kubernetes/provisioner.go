package kubernetes

import (
	"context"
	"fmt"
	"log/slog"
	"maps"

	"github.com/gammadia/nodeprovider/provider"
	"github.com/gammadia/nodeprovider/provisioner/internal"
	"github.com/samber/lo"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/labels"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/client-go/kubernetes"
)

const nonTerminatedFieldSelector = "status.phase!=Failed,status.phase!=Unknown,status.phase!=Succeeded"

// NodeProvider runs nodes as pods.
type NodeProvider struct {
	clusterName string
	namespace   string
	client      kubernetes.Interface
	log         *slog.Logger
}

// NodeProvider implements provider.NodeProvider
var _ provider.NodeProvider = (*NodeProvider)(nil)

func New(cfg provider.Config, clusterName string) (*NodeProvider, error) {
	var config Config
	if err := internal.DecodeProvider(cfg, &config, "namespace"); err != nil {
		return nil, err
	}

	restConfig, err := config.RESTConfig()
	if err != nil {
		return nil, err
	}

	client, err := kubernetes.NewForConfig(restConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create kubernetes client: %w", err)
	}
	return NewWithClient(config.Namespace, clusterName, client), nil
}

func NewWithClient(namespace, clusterName string, client kubernetes.Interface) *NodeProvider {
	return &NodeProvider{
		clusterName: clusterName,
		namespace:   namespace,
		client:      client,
		log:         internal.Logger("kubernetes", clusterName).With("namespace", namespace),
	}
}

func (p *NodeProvider) ClusterName() string {
	return p.clusterName
}

func isTerminated(pod corev1.Pod) bool {
	switch pod.Status.Phase {
	case corev1.PodFailed, corev1.PodSucceeded, corev1.PodUnknown:
		return true
	}
	return pod.DeletionTimestamp != nil
}

func (p *NodeProvider) NonTerminatedNodes(ctx context.Context, filters map[string]string) ([]string, error) {
	selector := labels.SelectorFromSet(internal.ClusterFilters(p.clusterName, filters))

	pods, err := p.client.CoreV1().Pods(p.namespace).List(ctx, metav1.ListOptions{
		LabelSelector: selector.String(),
		FieldSelector: nonTerminatedFieldSelector,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list pods: %w", err)
	}

	return lo.FilterMap(pods.Items, func(pod corev1.Pod, _ int) (string, bool) {
		return pod.Name, !isTerminated(pod)
	}), nil
}

func (p *NodeProvider) pod(ctx context.Context, nodeID string) (*corev1.Pod, error) {
	pod, err := p.client.CoreV1().Pods(p.namespace).Get(ctx, nodeID, metav1.GetOptions{})
	if apierrors.IsNotFound(err) {
		return nil, fmt.Errorf("%w: '%s'", provider.ErrNodeNotFound, nodeID)
	} else if err != nil {
		return nil, fmt.Errorf("failed to get pod '%s': %w", nodeID, err)
	}
	return pod, nil
}

func (p *NodeProvider) NodeTags(ctx context.Context, nodeID string) (map[string]string, error) {
	pod, err := p.pod(ctx, nodeID)
	if err != nil {
		return nil, err
	}
	return pod.Labels, nil
}

func (p *NodeProvider) InternalIP(ctx context.Context, nodeID string) (string, error) {
	pod, err := p.pod(ctx, nodeID)
	if err != nil {
		return "", err
	}
	if pod.Status.PodIP == "" {
		return "", fmt.Errorf("pod '%s' has no IP address yet", nodeID)
	}
	return pod.Status.PodIP, nil
}

// Pod builds the pod of a new node from its `node_config`, a pod manifest.
func Pod(nodeConfig map[string]any, name string, tags map[string]string) (*corev1.Pod, error) {
	pod := &corev1.Pod{}
	if err := runtime.DefaultUnstructuredConverter.FromUnstructured(nodeConfig, pod); err != nil {
		return nil, fmt.Errorf("%w: node_config is not a valid pod: %w", provider.ErrInvalidConfig, err)
	}

	pod.Name = name
	pod.GenerateName = ""
	pod.Namespace = ""
	if pod.Labels == nil {
		pod.Labels = map[string]string{}
	}
	maps.Copy(pod.Labels, tags)
	return pod, nil
}

func (p *NodeProvider) CreateNode(ctx context.Context, nodeConfig map[string]any, tags map[string]string, count int) error {
	nodeTags := provider.ClusterTags(p.clusterName, tags)

	for range count {
		pod, err := Pod(nodeConfig, internal.NodeName(p.clusterName, tags), nodeTags)
		if err != nil {
			return err
		}

		created, err := p.client.CoreV1().Pods(p.namespace).Create(ctx, pod, metav1.CreateOptions{})
		if err != nil {
			return fmt.Errorf("failed to create pod '%s': %w", pod.Name, err)
		}
		p.log.Info("Created pod", "node", created.Name)
	}
	return nil
}

func (p *NodeProvider) TerminateNode(ctx context.Context, nodeID string) error {
	err := p.client.CoreV1().Pods(p.namespace).Delete(ctx, nodeID, metav1.DeleteOptions{})
	if apierrors.IsNotFound(err) {
		p.log.Warn("Pod already deleted", "node", nodeID)
		return nil
	} else if err != nil {
		return fmt.Errorf("failed to delete pod '%s': %w", nodeID, err)
	}
	p.log.Info("Deleted pod", "node", nodeID)
	return nil
}
