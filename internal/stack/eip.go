package stack

import (
	"github.com/pulumi/pulumi-aws/sdk/v5/go/aws/ec2"
	"github.com/pulumi/pulumi/sdk/v3/go/pulumi"
)

// AddressResources holds the elastic IP and its association
type AddressResources struct {
	Eip         *ec2.Eip
	Association *ec2.EipAssociation
}

// createAddressResources allocates the elastic IP and attaches it to the
// instance. The allocation is always retained on delete so a replaced or
// destroyed instance does not give the address back.
func (b *builder) createAddressResources(instance *ec2.Instance) (*AddressResources, error) {
	eipName := b.name("elastic-ip")
	eip, err := ec2.NewEip(b.ctx, eipName, &ec2.EipArgs{
		Vpc:  pulumi.Bool(true),
		Tags: b.tags(eipName),
	}, b.opts(pulumi.RetainOnDelete(true))...)
	if err != nil {
		return nil, provisionErr(eipName, err)
	}
	b.graph.add(Node{Name: eipName, Kind: KindEip, Retain: true})

	assocName := b.name("eip-association")
	assoc, err := ec2.NewEipAssociation(b.ctx, assocName, &ec2.EipAssociationArgs{
		AllocationId: eip.AllocationId,
		InstanceId:   instance.ID().ToStringOutput(),
	}, b.opts()...)
	if err != nil {
		return nil, provisionErr(assocName, err)
	}
	b.graph.add(Node{Name: assocName, Kind: KindEipAssociation, DependsOn: []string{eipName, b.name("ec2")}})

	return &AddressResources{
		Eip:         eip,
		Association: assoc,
	}, nil
}
