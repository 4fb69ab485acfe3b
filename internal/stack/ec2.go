package stack

import (
	"github.com/pulumi/pulumi-aws/sdk/v5/go/aws/ec2"
	"github.com/pulumi/pulumi/sdk/v3/go/pulumi"
)

// resolveImage returns the pinned AMI or the most recent match of the selector
func (b *builder) resolveImage() (string, error) {
	image := b.p.Instance.Image
	if image.AmiID != "" {
		return image.AmiID, nil
	}

	filters := []ec2.GetAmiFilter{
		{
			Name:   "root-device-type",
			Values: []string{"ebs"},
		},
		{
			Name:   "virtualization-type",
			Values: []string{"hvm"},
		},
	}
	if image.Architecture != "" {
		filters = append(filters, ec2.GetAmiFilter{
			Name:   "architecture",
			Values: []string{image.Architecture},
		})
	}

	ami, err := ec2.LookupAmi(b.ctx, &ec2.LookupAmiArgs{
		Owners:     image.Owners,
		MostRecent: pulumi.BoolRef(true),
		NameRegex:  pulumi.StringRef(image.NameRegex),
		Filters:    filters,
	}, b.invokeOpts()...)
	if err != nil {
		return "", &ReferenceNotFoundError{Kind: "AMI", Name: image.NameRegex, Cause: err}
	}
	return ami.Id, nil
}

// createInstance creates the host in the first public subnet with the
// security group, key pair and instance profile attached
func (b *builder) createInstance(network *NetworkResources, identity *IdentityResources, key *KeyResources) (*ec2.Instance, error) {
	amiID, err := b.resolveImage()
	if err != nil {
		return nil, err
	}

	spec := b.p.Instance
	instanceName := b.name("ec2")
	instance, err := ec2.NewInstance(b.ctx, instanceName, &ec2.InstanceArgs{
		Ami:                      pulumi.String(amiID),
		InstanceType:             pulumi.String(spec.InstanceType),
		SubnetId:                 network.PublicSubnets[0].ID(),
		VpcSecurityGroupIds:      pulumi.StringArray{network.SecurityGroup.ID()},
		AssociatePublicIpAddress: pulumi.Bool(true),
		KeyName:                  key.KeyName,
		IamInstanceProfile:       identity.InstanceProfile.Name,
		UserData:                 pulumi.String(spec.BootScript()),
		Tags:                     b.tags(instanceName),
	}, b.opts()...)
	if err != nil {
		return nil, provisionErr(instanceName, err)
	}

	deps := []string{
		b.name("public-subnet-1"),
		b.name("sg"),
		b.name("instance-profile"),
	}
	if key.node != "" {
		deps = append(deps, key.node)
	}
	b.graph.add(Node{Name: instanceName, Kind: KindInstance, DependsOn: deps})

	return instance, nil
}
