package aws

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"slices"
		"sync/atomic"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/gammadia/nodeprovider/provider"
	"github.com/gammadia/nodeprovider/provisioner/internal"
	"github.com/samber/lo"
)

// EC2API is the subset of the EC2 client used by the node provider.
type EC2API interface {
	DescribeInstances(ctx context.Context, params *ec2.DescribeInstancesInput, optFns ...func(*ec2.Options)) (*ec2.DescribeInstancesOutput, error)
	RunInstances(ctx context.Context, params *ec2.RunInstancesInput, optFns ...func(*ec2.Options)) (*ec2.RunInstancesOutput, error)
	TerminateInstances(ctx context.Context, params *ec2.TerminateInstancesInput, optFns ...func(*ec2.Options)) (*ec2.TerminateInstancesOutput, error)
	StopInstances(ctx context.Context, params *ec2.StopInstancesInput, optFns ...func(*ec2.Options)) (*ec2.StopInstancesOutput, error)
	StartInstances(ctx context.Context, params *ec2.StartInstancesInput, optFns ...func(*ec2.Options)) (*ec2.StartInstancesOutput, error)
	CreateTags(ctx context.Context, params *ec2.CreateTagsInput, optFns ...func(*ec2.Options)) (*ec2.CreateTagsOutput, error)
	DescribeSubnets(ctx context.Context, params *ec2.DescribeSubnetsInput, optFns ...func(*ec2.Options)) (*ec2.DescribeSubnetsOutput, error)
}

var nonTerminatedStates = []string{
	string(types.InstanceStateNamePending),
	string(types.InstanceStateNameRunning),
}

type NodeProvider struct {
	clusterName string
	config      Config
	ec2         EC2API
	backoff     internal.Backoff
	log         *slog.Logger

	// next is the placement the next launch starts from, so that
	// consecutive nodes spread over the subnets and zones.
	next atomic.Uint64
}

// NodeProvider implements provider.NodeProvider
var _ provider.NodeProvider = (*NodeProvider)(nil)

func New(cfg provider.Config, clusterName string) (*NodeProvider, error) {
	var config Config
	if err := internal.DecodeProvider(cfg, &config, "region"); err != nil {
		return nil, err
	}

	awsConfig, err := awsconfig(context.Background(), config.Region)
	if err != nil {
		return nil, err
	}
	return NewWithClient(config, clusterName, ec2.NewFromConfig(awsConfig)), nil
}

func awsconfig(ctx context.Context, region string) (aws.Config, error) {
	awsConfig, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return aws.Config{}, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return awsConfig, nil
}

func NewWithClient(config Config, clusterName string, client EC2API) *NodeProvider {
	return &NodeProvider{
		clusterName: clusterName,
		config:      config,
		ec2:         client,
		backoff:     internal.DefaultBackoff,
		log:         internal.Logger("aws", clusterName),
	}
}

func (p *NodeProvider) ClusterName() string {
	return p.clusterName
}

func (p *NodeProvider) describe(ctx context.Context, input *ec2.DescribeInstancesInput) ([]types.Instance, error) {
	var instances []types.Instance
	paginator := ec2.NewDescribeInstancesPaginator(p.ec2, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to describe instances: %w", err)
		}
		for _, reservation := range page.Reservations {
			instances = append(instances, reservation.Instances...)
		}
	}
	return instances, nil
}

func tagFilters(filters map[string]string) []types.Filter {
	return lo.MapToSlice(filters, func(k, v string) types.Filter {
		return types.Filter{Name: aws.String("tag:" + k), Values: []string{v}}
	})
}

func (p *NodeProvider) NonTerminatedNodes(ctx context.Context, filters map[string]string) ([]string, error) {
	input := &ec2.DescribeInstancesInput{
		Filters: append(
			tagFilters(internal.ClusterFilters(p.clusterName, filters)),
			types.Filter{Name: aws.String("instance-state-name"), Values: nonTerminatedStates},
		),
	}

	instances, err := p.describe(ctx, input)
	if err != nil {
		return nil, err
	}
	return lo.Map(instances, func(instance types.Instance, _ int) string {
		return aws.ToString(instance.InstanceId)
	}), nil
}

func (p *NodeProvider) instance(ctx context.Context, nodeID string) (types.Instance, error) {
	instances, err := p.describe(ctx, &ec2.DescribeInstancesInput{InstanceIds: []string{nodeID}})
	if err != nil {
		return types.Instance{}, err
	}
	if len(instances) == 0 {
		return types.Instance{}, fmt.Errorf("%w: '%s'", provider.ErrNodeNotFound, nodeID)
	}
	return instances[0], nil
}

func (p *NodeProvider) NodeTags(ctx context.Context, nodeID string) (map[string]string, error) {
	instance, err := p.instance(ctx, nodeID)
	if err != nil {
		return nil, err
	}
	return lo.SliceToMap(instance.Tags, func(tag types.Tag) (string, string) {
		return aws.ToString(tag.Key), aws.ToString(tag.Value)
	}), nil
}

func (p *NodeProvider) InternalIP(ctx context.Context, nodeID string) (string, error) {
	instance, err := p.instance(ctx, nodeID)
	if err != nil {
		return "", err
	}
	if instance.PrivateIpAddress == nil {
		return "", fmt.Errorf("instance '%s' has no private IP address", nodeID)
	}
	return *instance.PrivateIpAddress, nil
}

// placement is where an instance is launched. Empty fields are left to EC2.
type placement struct {
	subnet string
	zone   string
}

// placements returns the subnet and zone pairs nodes may be launched in:
// the configured subnets located in one of the configured availability
// zones, or the zones alone when no subnet is configured.
func (p *NodeProvider) placements(ctx context.Context, subnetIDs []string) ([]placement, error) {
	zones := p.config.zones()
	switch {
	case len(subnetIDs) == 0 && len(zones) == 0:
		return []placement{{}}, nil
	case len(subnetIDs) == 0:
		return lo.Map(zones, func(zone string, _ int) placement {
			return placement{zone: zone}
		}), nil
	case len(zones) == 0:
		return lo.Map(subnetIDs, func(subnet string, _ int) placement {
			return placement{subnet: subnet}
		}), nil
	}

	output, err := p.ec2.DescribeSubnets(ctx, &ec2.DescribeSubnetsInput{SubnetIds: subnetIDs})
	if err != nil {
		return nil, fmt.Errorf("failed to describe subnets: %w", err)
	}
	zoneOf := lo.SliceToMap(output.Subnets, func(subnet types.Subnet) (string, string) {
		return aws.ToString(subnet.SubnetId), aws.ToString(subnet.AvailabilityZone)
	})

	var placements []placement
	for _, subnet := range subnetIDs {
		if zone := zoneOf[subnet]; slices.Contains(zones, zone) {
			placements = append(placements, placement{subnet: subnet, zone: zone})
		}
	}
	if len(placements) == 0 {
		return nil, fmt.Errorf("%w: none of the subnets %v is in availability zones %v", provider.ErrInvalidConfig, subnetIDs, zones)
	}
	return placements, nil
}

func runInstancesInput(node NodeConfig, tags map[string]string, at placement) *ec2.RunInstancesInput {
	input := &ec2.RunInstancesInput{
		ImageId:          aws.String(node.ImageID),
		InstanceType:     types.InstanceType(node.InstanceType),
		MinCount:         aws.Int32(1),
		MaxCount:         aws.Int32(1),
		SecurityGroupIds: node.SecurityGroupIDs,
		TagSpecifications: []types.TagSpecification{{
			ResourceType: types.ResourceTypeInstance,
			Tags:         ec2Tags(tags),
		}},
	}
	if node.KeyName != "" {
		input.KeyName = aws.String(node.KeyName)
	}
	if node.UserData != "" {
		input.UserData = aws.String(base64.StdEncoding.EncodeToString([]byte(node.UserData)))
	}
	if at.subnet != "" {
		input.SubnetId = aws.String(at.subnet)
	}
	if at.zone != "" {
		input.Placement = &types.Placement{AvailabilityZone: aws.String(at.zone)}
	}
	return input
}

func ec2Tags(tags map[string]string) []types.Tag {
	return lo.MapToSlice(tags, func(k, v string) types.Tag {
		return types.Tag{Key: aws.String(k), Value: aws.String(v)}
	})
}

// launch runs a single named instance, trying every placement in turn from
// the next one in rotation, since a subnet or zone may be out of capacity.
func (p *NodeProvider) launch(ctx context.Context, node NodeConfig, tags map[string]string, placements []placement) (string, error) {
	nodeTags := provider.ClusterTags(p.clusterName, tags)
	nodeTags["Name"] = internal.NodeName(p.clusterName, tags)

	start := int((p.next.Add(1) - 1) % uint64(len(placements)))
	var errs []error
	for i := range placements {
		at := placements[(start+i)%len(placements)]
		input := runInstancesInput(node, nodeTags, at)

		output, err := internal.RetryResult(ctx, p.backoff, func() (*ec2.RunInstancesOutput, error) {
			return p.ec2.RunInstances(ctx, input)
		})
		if err == nil && len(output.Instances) > 0 {
			id := aws.ToString(output.Instances[0].InstanceId)
			p.log.Info("Launched instance", "node", id, "name", nodeTags["Name"], "subnet", at.subnet, "zone", at.zone)
			return id, nil
		} else if err == nil {
			err = errors.New("no instance in RunInstances response")
		}

		p.log.Warn("Failed to launch instance", "subnet", at.subnet, "zone", at.zone, "error", err)
		errs = append(errs, err)
	}
	return "", errors.Join(errs...)
}

// reuseStopped starts up to count stopped instances of the same kind and
// node type, re-tagged with tags. It returns how many were started.
func (p *NodeProvider) reuseStopped(ctx context.Context, tags map[string]string, count int) (int, error) {
	filters := lo.PickByKeys(tags, []string{provider.TagNodeKind, provider.TagUserNodeType})
	instances, err := p.describe(ctx, &ec2.DescribeInstancesInput{
		Filters: append(
			tagFilters(internal.ClusterFilters(p.clusterName, filters)),
			types.Filter{Name: aws.String("instance-state-name"), Values: []string{string(types.InstanceStateNameStopped)}},
		),
	})
	if err != nil {
		return 0, err
	}

	ids := lo.Map(instances, func(instance types.Instance, _ int) string {
		return aws.ToString(instance.InstanceId)
	})
	slices.Sort(ids)
	if len(ids) > count {
		ids = ids[:count]
	}
	if len(ids) == 0 {
		return 0, nil
	}

	if _, err := p.ec2.StartInstances(ctx, &ec2.StartInstancesInput{InstanceIds: ids}); err != nil {
		return 0, fmt.Errorf("failed to start stopped instances %v: %w", ids, err)
	}
	if _, err := p.ec2.CreateTags(ctx, &ec2.CreateTagsInput{
		Resources: ids,
		Tags:      ec2Tags(provider.ClusterTags(p.clusterName, tags)),
	}); err != nil {
		return 0, fmt.Errorf("failed to tag reused instances %v: %w", ids, err)
	}

	p.log.Info("Reusing stopped instances", "nodes", ids)
	return len(ids), nil
}

// CreateNode launches count instances, each with its own name. With
// cache_stopped_nodes, stopped instances of the cluster are restarted first.
func (p *NodeProvider) CreateNode(ctx context.Context, nodeConfig map[string]any, tags map[string]string, count int) error {
	var node NodeConfig
	if err := internal.Decode(nodeConfig, &node); err != nil {
		return err
	}
	if node.InstanceType == "" || node.ImageID == "" {
		return fmt.Errorf("%w: node_config requires InstanceType and ImageId", provider.ErrInvalidConfig)
	}

	if p.config.CacheStoppedNodes {
		reused, err := p.reuseStopped(ctx, tags, count)
		if err != nil {
			return err
		}
		count -= reused
	}
	if count <= 0 {
		return nil
	}

	placements, err := p.placements(ctx, node.SubnetIDs)
	if err != nil {
		return err
	}

	for i := range count {
		if _, err := p.launch(ctx, node, tags, placements); err != nil {
			return fmt.Errorf("failed to launch instance %d of %d: %w", i+1, count, err)
		}
	}
	return nil
}

// TerminateNode terminates nodeID, or only stops it with cache_stopped_nodes.
func (p *NodeProvider) TerminateNode(ctx context.Context, nodeID string) error {
	if p.config.CacheStoppedNodes {
		if _, err := p.ec2.StopInstances(ctx, &ec2.StopInstancesInput{InstanceIds: []string{nodeID}}); err != nil {
			return fmt.Errorf("failed to stop instance '%s': %w", nodeID, err)
		}
		p.log.Info("Stopped instance", "node", nodeID)
		return nil
	}

	_, err := p.ec2.TerminateInstances(ctx, &ec2.TerminateInstancesInput{InstanceIds: []string{nodeID}})
	if err != nil {
		return fmt.Errorf("failed to terminate instance '%s': %w", nodeID, err)
	}
	p.log.Info("Terminated instance", "node", nodeID)
	return nil
}
