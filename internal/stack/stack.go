// Package stack declares the sakura deployment: a public VPC, a backup
// bucket, an instance role, an EC2 host with a retained elastic IP and an
// optional Route53 record. Build registers everything with the Pulumi engine
// and returns the same topology as plain data in Resources.Graph.
package stack

import (
	"github.com/pulumi/pulumi-aws/sdk/v5/go/aws"
	"github.com/pulumi/pulumi-aws/sdk/v5/go/aws/ec2"
	"github.com/pulumi/pulumi/sdk/v3/go/pulumi"
)

// Resources holds every declared resource plus the data view of the graph.
type Resources struct {
	Provider *aws.Provider
	Network  *NetworkResources
	Storage  *StorageResources
	Identity *IdentityResources
	Key      *KeyResources
	Instance *ec2.Instance
	Address  *AddressResources
	// DNS is nil unless Params.EnableDNS.
	DNS *DNSResources
	// DNSPinned is set when the record targets a literal IP rather than the elastic IP.
	DNSPinned bool

	Graph   *Graph
	Outputs Outputs
}

// Outputs are the operator-facing values exported by the stack.
type Outputs struct {
	SSHKeyCommand    pulumi.StringOutput
	BucketArn        pulumi.StringOutput
	InstancePublicIP pulumi.StringOutput
	ElasticIP        pulumi.StringOutput
	VpcID            pulumi.IDOutput
	// RecordFQDN is only populated when DNS is enabled.
	RecordFQDN pulumi.StringOutput
}

// Export publishes the outputs as stack outputs.
func (o Outputs) Export(ctx *pulumi.Context, dns bool) {
	ctx.Export("getSshKeyCommand", o.SSHKeyCommand)
	ctx.Export("backupBucketArn", o.BucketArn)
	ctx.Export("ec2PublicIp", o.InstancePublicIP)
	ctx.Export("elasticIp", o.ElasticIP)
	ctx.Export("vpcId", o.VpcID)
	if dns {
		ctx.Export("dnsRecord", o.RecordFQDN)
	}
}

type builder struct {
	ctx      *pulumi.Context
	p        Params
	provider *aws.Provider
	graph    *Graph
}

// Build validates p and declares the whole deployment, leaves first.
func Build(ctx *pulumi.Context, p Params) (*Resources, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	b := &builder{ctx: ctx, p: p, graph: &Graph{}}

	// 0. Explicit provider pinned to the configured account and region
	provider, err := aws.NewProvider(ctx, b.name("aws"), &aws.ProviderArgs{
		Region:            pulumi.String(p.Region),
		AllowedAccountIds: pulumi.StringArray{pulumi.String(p.AccountID)},
	})
	if err != nil {
		return nil, provisionErr(b.name("aws"), err)
	}
	b.provider = provider
	b.graph.add(Node{Name: b.name("aws"), Kind: KindProvider})

	// 1. Network
	network, err := b.createNetworkResources()
	if err != nil {
		return nil, err
	}

	// 2. Storage
	storage, err := b.createStorageResources()
	if err != nil {
		return nil, err
	}

	// 3. Identity bound to storage
	identity, err := b.createIdentityResources(storage)
	if err != nil {
		return nil, err
	}

	// 4. Key reference
	key, err := b.createKeyResources()
	if err != nil {
		return nil, err
	}

	// 5. Compute
	instance, err := b.createInstance(network, identity, key)
	if err != nil {
		return nil, err
	}

	// 6. Addressing
	address, err := b.createAddressResources(instance)
	if err != nil {
		return nil, err
	}

	res := &Resources{
		Provider: provider,
		Network:  network,
		Storage:  storage,
		Identity: identity,
		Key:      key,
		Instance: instance,
		Address:  address,
		Graph:    b.graph,
		Outputs: Outputs{
			SSHKeyCommand:    sshKeyCommandOutput(key.KeyPairID, p.Region),
			BucketArn:        storage.Bucket.Arn,
			InstancePublicIP: instance.PublicIp,
			ElasticIP:        address.Eip.PublicIp,
			VpcID:            network.Vpc.ID(),
		},
	}

	// 7. Naming
	if p.EnableDNS {
		dns, err := b.createDNSResources(address)
		if err != nil {
			return nil, err
		}
		res.DNS = dns
		res.DNSPinned = dns.Pinned
		res.Outputs.RecordFQDN = dns.Record.Fqdn
	}

	if err := b.graph.Validate(); err != nil {
		return nil, err
	}

	_ = ctx.Log.Info("sakura descriptor declared", nil)
	return res, nil
}

func (b *builder) name(suffix string) string {
	return b.p.Name + "-" + suffix
}

// opts attaches the stack provider to every resource.
func (b *builder) opts(extra ...pulumi.ResourceOption) []pulumi.ResourceOption {
	return append([]pulumi.ResourceOption{pulumi.Provider(b.provider)}, extra...)
}

func (b *builder) invokeOpts() []pulumi.InvokeOption {
	return []pulumi.InvokeOption{pulumi.Provider(b.provider)}
}

func (b *builder) tags(name string) pulumi.StringMap {
	return pulumi.ToStringMap(b.p.tags(name))
}
