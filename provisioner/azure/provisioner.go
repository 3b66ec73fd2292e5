package azure

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/arm"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/compute/armcompute/v5"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/network/armnetwork/v6"
	"github.com/gammadia/nodeprovider/provider"
	"github.com/gammadia/nodeprovider/provisioner/internal"
	"github.com/samber/lo"
)

// Provisioning states of VMs that are gone or on their way out
var terminatedStates = []string{"Deleting", "Failed"}

type NodeProvider struct {
	clusterName string
	config      Config
	vms         *armcompute.VirtualMachinesClient
	nics        *armnetwork.InterfacesClient
	log         *slog.Logger
}

// NodeProvider implements provider.NodeProvider
var _ provider.NodeProvider = (*NodeProvider)(nil)

func New(cfg provider.Config, clusterName string) (*NodeProvider, error) {
	var config Config
	if err := internal.DecodeProvider(cfg, &config, "subscription_id", "resource_group", "location"); err != nil {
		return nil, err
	}

	credential, err := azidentity.NewDefaultAzureCredential(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get Azure credential: %w", err)
	}

	vms, err := armcompute.NewVirtualMachinesClient(config.SubscriptionID, credential, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create virtual machines client: %w", err)
	}

	nics, err := armnetwork.NewInterfacesClient(config.SubscriptionID, credential, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create network interfaces client: %w", err)
	}

	return &NodeProvider{
		clusterName: clusterName,
		config:      config,
		vms:         vms,
		nics:        nics,
		log:         internal.Logger("azure", clusterName),
	}, nil
}

func (p *NodeProvider) ClusterName() string {
	return p.clusterName
}

func fromAzureTags(tags map[string]*string) map[string]string {
	return lo.MapValues(tags, func(v *string, _ string) string {
		return lo.FromPtr(v)
	})
}

func toAzureTags(tags map[string]string) map[string]*string {
	return lo.MapValues(tags, func(v string, _ string) *string {
		return to.Ptr(v)
	})
}

func isNonTerminated(vm *armcompute.VirtualMachine, filters map[string]string) bool {
	if vm == nil || vm.Name == nil || !provider.MatchTags(fromAzureTags(vm.Tags), filters) {
		return false
	}
	if vm.Properties != nil && vm.Properties.ProvisioningState != nil {
		return !lo.Contains(terminatedStates, *vm.Properties.ProvisioningState)
	}
	return true
}

func (p *NodeProvider) NonTerminatedNodes(ctx context.Context, filters map[string]string) ([]string, error) {
	filters = internal.ClusterFilters(p.clusterName, filters)

	var nodes []string
	pager := p.vms.NewListPager(p.config.ResourceGroup, nil)
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list virtual machines: %w", err)
		}
		for _, vm := range page.Value {
			if isNonTerminated(vm, filters) {
				nodes = append(nodes, *vm.Name)
			}
		}
	}
	return nodes, nil
}

func (p *NodeProvider) vm(ctx context.Context, nodeID string) (armcompute.VirtualMachine, error) {
	resp, err := p.vms.Get(ctx, p.config.ResourceGroup, nodeID, nil)
	if err != nil {
		return armcompute.VirtualMachine{}, fmt.Errorf("failed to get virtual machine '%s': %w", nodeID, err)
	}
	return resp.VirtualMachine, nil
}

func (p *NodeProvider) NodeTags(ctx context.Context, nodeID string) (map[string]string, error) {
	vm, err := p.vm(ctx, nodeID)
	if err != nil {
		return nil, err
	}
	return fromAzureTags(vm.Tags), nil
}

// primaryInterface returns the resource ID of the primary network interface
// of vm.
func primaryInterface(vm armcompute.VirtualMachine) (*arm.ResourceID, error) {
	if vm.Properties == nil || vm.Properties.NetworkProfile == nil {
		return nil, fmt.Errorf("virtual machine '%s' has no network profile", lo.FromPtr(vm.Name))
	}

	var id string
	for _, nic := range vm.Properties.NetworkProfile.NetworkInterfaces {
		if nic == nil || nic.ID == nil {
			continue
		}
		if id == "" || (nic.Properties != nil && lo.FromPtr(nic.Properties.Primary)) {
			id = *nic.ID
		}
	}
	if id == "" {
		return nil, fmt.Errorf("virtual machine '%s' has no network interface", lo.FromPtr(vm.Name))
	}
	return arm.ParseResourceID(id)
}

func (p *NodeProvider) InternalIP(ctx context.Context, nodeID string) (string, error) {
	vm, err := p.vm(ctx, nodeID)
	if err != nil {
		return "", err
	}

	nicID, err := primaryInterface(vm)
	if err != nil {
		return "", err
	}

	resp, err := p.nics.Get(ctx, nicID.ResourceGroupName, nicID.Name, nil)
	if err != nil {
		return "", fmt.Errorf("failed to get network interface '%s': %w", nicID.Name, err)
	}
	if resp.Properties != nil {
		for _, ipConfig := range resp.Properties.IPConfigurations {
			if ipConfig != nil && ipConfig.Properties != nil && ipConfig.Properties.PrivateIPAddress != nil {
				return *ipConfig.Properties.PrivateIPAddress, nil
			}
		}
	}
	return "", fmt.Errorf("virtual machine '%s' has no private IP address", nodeID)
}

// VirtualMachine builds the definition of a new VM.
func VirtualMachine(location, name string, node NodeConfig, tags map[string]string) armcompute.VirtualMachine {
	user := lo.Ternary(node.AdminUsername != "", node.AdminUsername, "ubuntu")

	properties := &armcompute.VirtualMachineProperties{
		HardwareProfile: &armcompute.HardwareProfile{
			VMSize: to.Ptr(armcompute.VirtualMachineSizeTypes(node.VMSize)),
		},
		StorageProfile: &armcompute.StorageProfile{
			ImageReference: &armcompute.ImageReference{
				Publisher: to.Ptr(node.Image.Publisher),
				Offer:     to.Ptr(node.Image.Offer),
				SKU:       to.Ptr(node.Image.SKU),
				Version:   to.Ptr(lo.Ternary(node.Image.Version != "", node.Image.Version, "latest")),
			},
			OSDisk: &armcompute.OSDisk{
				CreateOption: to.Ptr(armcompute.DiskCreateOptionTypesFromImage),
				DeleteOption: to.Ptr(armcompute.DiskDeleteOptionTypesDelete),
			},
		},
		OSProfile: &armcompute.OSProfile{
			ComputerName:  to.Ptr(name),
			AdminUsername: to.Ptr(user),
			LinuxConfiguration: &armcompute.LinuxConfiguration{
				DisablePasswordAuthentication: to.Ptr(true),
				SSH: &armcompute.SSHConfiguration{
					PublicKeys: []*armcompute.SSHPublicKey{{
						Path:    to.Ptr(fmt.Sprintf("/home/%s/.ssh/authorized_keys", user)),
						KeyData: to.Ptr(strings.TrimSpace(node.SSHPublicKey)),
					}},
				},
			},
		},
		NetworkProfile: &armcompute.NetworkProfile{
			NetworkAPIVersion: to.Ptr(armcompute.NetworkAPIVersion("2020-11-01")),
			NetworkInterfaceConfigurations: []*armcompute.VirtualMachineNetworkInterfaceConfiguration{{
				Name: to.Ptr(name + "-nic"),
				Properties: &armcompute.VirtualMachineNetworkInterfaceConfigurationProperties{
					Primary:      to.Ptr(true),
					DeleteOption: to.Ptr(armcompute.DeleteOptionsDelete),
					IPConfigurations: []*armcompute.VirtualMachineNetworkInterfaceIPConfiguration{{
						Name: to.Ptr(name + "-ip"),
						Properties: &armcompute.VirtualMachineNetworkInterfaceIPConfigurationProperties{
							Primary: to.Ptr(true),
							Subnet:  &armcompute.SubResource{ID: to.Ptr(node.SubnetID)},
						},
					}},
				},
			}},
		},
	}
	if node.Priority != "" {
		properties.Priority = to.Ptr(armcompute.VirtualMachinePriorityTypes(node.Priority))
	}

	return armcompute.VirtualMachine{
		Location:   to.Ptr(location),
		Tags:       toAzureTags(tags),
		Properties: properties,
	}
}

func (p *NodeProvider) CreateNode(ctx context.Context, nodeConfig map[string]any, tags map[string]string, count int) error {
	var node NodeConfig
	if err := internal.Decode(nodeConfig, &node); err != nil {
		return err
	}
	if node.VMSize == "" || node.SubnetID == "" {
		return fmt.Errorf("%w: node_config requires vm_size and subnet_id", provider.ErrInvalidConfig)
	}

	nodeTags := provider.ClusterTags(p.clusterName, tags)
	for range count {
		name := internal.NodeName(p.clusterName, tags)

		poller, err := p.vms.BeginCreateOrUpdate(ctx, p.config.ResourceGroup, name, VirtualMachine(p.config.Location, name, node, nodeTags), nil)
		if err != nil {
			return fmt.Errorf("failed to create virtual machine '%s': %w", name, err)
		}
		if _, err := poller.PollUntilDone(ctx, nil); err != nil {
			return fmt.Errorf("failed while waiting for virtual machine '%s': %w", name, err)
		}
		p.log.Info("Created virtual machine", "node", name)
	}
	return nil
}

func (p *NodeProvider) TerminateNode(ctx context.Context, nodeID string) error {
	poller, err := p.vms.BeginDelete(ctx, p.config.ResourceGroup, nodeID, nil)
	if err != nil {
		return fmt.Errorf("failed to delete virtual machine '%s': %w", nodeID, err)
	}
	if _, err := poller.PollUntilDone(ctx, nil); err != nil {
		return fmt.Errorf("failed while deleting virtual machine '%s': %w", nodeID, err)
	}
	p.log.Info("Deleted virtual machine", "node", nodeID)
	return nil
}
