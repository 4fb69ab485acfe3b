package stack

import (
	"fmt"
	"net/netip"
	"strings"

	"github.com/pulumi/pulumi-aws/sdk/v5/go/aws"
	"github.com/pulumi/pulumi-aws/sdk/v5/go/aws/ec2"
	"github.com/pulumi/pulumi/sdk/v3/go/pulumi"
)

// NetworkResources holds all the networking resources
type NetworkResources struct {
	Vpc                *ec2.Vpc
	PublicSubnets      []*ec2.Subnet
	PrivateSubnets     []*ec2.Subnet
	InternetGateway    *ec2.InternetGateway
	PublicRouteTable   *ec2.RouteTable
	PrivateRouteTables []*ec2.RouteTable
	NatGateways        []*ec2.NatGateway
	S3Endpoint         *ec2.VpcEndpoint
	SecurityGroup      *ec2.SecurityGroup
	AvailabilityZones  []string
}

// createNetworkResources creates the VPC, one public subnet per AZ, optional
// private subnets behind NAT gateways, and the instance security group
func (b *builder) createNetworkResources() (*NetworkResources, error) {
	spec := b.p.Network

	// Pick the first MaxAzs availability zones of the region
	zones, err := aws.GetAvailabilityZones(b.ctx, &aws.GetAvailabilityZonesArgs{
		State: pulumi.StringRef("available"),
	}, b.invokeOpts()...)
	if err != nil {
		return nil, &ReferenceNotFoundError{Kind: "availability zones", Name: b.p.Region, Cause: err}
	}
	if len(zones.Names) < spec.MaxAzs {
		return nil, invalid("network.maxAzs", "%d requested but %s has %d availability zones", spec.MaxAzs, b.p.Region, len(zones.Names))
	}
	azs := zones.Names[:spec.MaxAzs]

	// Validate already proved the carve succeeds
	parent := netip.MustParsePrefix(spec.CidrBlock)
	cidrs, err := carveSubnets(parent, spec.SubnetMask, spec.subnetCount())
	if err != nil {
		return nil, invalid("network.subnetMask", "%v", err)
	}

	vpcName := b.name("vpc")
	vpc, err := ec2.NewVpc(b.ctx, vpcName, &ec2.VpcArgs{
		CidrBlock:          pulumi.String(spec.CidrBlock),
		EnableDnsHostnames: pulumi.Bool(true),
		EnableDnsSupport:   pulumi.Bool(true),
		Tags:               b.tags(vpcName),
	}, b.opts()...)
	if err != nil {
		return nil, provisionErr(vpcName, err)
	}
	b.graph.add(Node{Name: vpcName, Kind: KindVpc})

	igwName := b.name("igw")
	igw, err := ec2.NewInternetGateway(b.ctx, igwName, &ec2.InternetGatewayArgs{
		VpcId: vpc.ID(),
		Tags:  b.tags(igwName),
	}, b.opts()...)
	if err != nil {
		return nil, provisionErr(igwName, err)
	}
	b.graph.add(Node{Name: igwName, Kind: KindInternetGateway, DependsOn: []string{vpcName}})

	// Public route table sends everything else to the internet gateway
	publicRtName := b.name("public-rt")
	publicRouteTable, err := ec2.NewRouteTable(b.ctx, publicRtName, &ec2.RouteTableArgs{
		VpcId: vpc.ID(),
		Routes: ec2.RouteTableRouteArray{
			&ec2.RouteTableRouteArgs{
				CidrBlock: pulumi.String(anyIPv4),
				GatewayId: igw.ID(),
			},
		},
		Tags: b.tags(publicRtName),
	}, b.opts()...)
	if err != nil {
		return nil, provisionErr(publicRtName, err)
	}
	b.graph.add(Node{Name: publicRtName, Kind: KindRouteTable, DependsOn: []string{vpcName, igwName}})

	res := &NetworkResources{
		Vpc:               vpc,
		InternetGateway:   igw,
		PublicRouteTable:  publicRouteTable,
		AvailabilityZones: azs,
	}

	for i, az := range azs {
		subnetName := b.name(fmt.Sprintf("public-subnet-%d", i+1))
		subnet, err := ec2.NewSubnet(b.ctx, subnetName, &ec2.SubnetArgs{
			VpcId:               vpc.ID(),
			CidrBlock:           pulumi.String(cidrs[i].String()),
			AvailabilityZone:    pulumi.String(az),
			MapPublicIpOnLaunch: pulumi.Bool(true),
			Tags:                b.tags(subnetName),
		}, b.opts()...)
		if err != nil {
			return nil, provisionErr(subnetName, err)
		}
		b.graph.add(Node{Name: subnetName, Kind: KindSubnet, DependsOn: []string{vpcName}})

		assocName := b.name(fmt.Sprintf("public-rt-assoc-%d", i+1))
		_, err = ec2.NewRouteTableAssociation(b.ctx, assocName, &ec2.RouteTableAssociationArgs{
			SubnetId:     subnet.ID(),
			RouteTableId: publicRouteTable.ID(),
		}, b.opts()...)
		if err != nil {
			return nil, provisionErr(assocName, err)
		}
		b.graph.add(Node{Name: assocName, Kind: KindRouteTableAssociation, DependsOn: []string{subnetName, publicRtName}})

		res.PublicSubnets = append(res.PublicSubnets, subnet)
	}

	if spec.PrivateSubnets {
		if err := b.createPrivateSubnets(res, cidrs[len(azs):]); err != nil {
			return nil, err
		}
	}

	endpoint, err := b.createS3Endpoint(res)
	if err != nil {
		return nil, err
	}
	res.S3Endpoint = endpoint

	sg, err := b.createSecurityGroup(vpc, vpcName)
	if err != nil {
		return nil, err
	}
	res.SecurityGroup = sg

	return res, nil
}

// createPrivateSubnets adds one private subnet per AZ. The first NatGateways
// AZs get their own NAT gateway; the remaining private subnets share the
// last one, or stay isolated when there is none.
func (b *builder) createPrivateSubnets(res *NetworkResources, cidrs []netip.Prefix) error {
	vpcName := b.name("vpc")
	var natName string
	var nat *ec2.NatGateway

	for i, az := range res.AvailabilityZones {
		subnetName := b.name(fmt.Sprintf("private-subnet-%d", i+1))
		subnet, err := ec2.NewSubnet(b.ctx, subnetName, &ec2.SubnetArgs{
			VpcId:            res.Vpc.ID(),
			CidrBlock:        pulumi.String(cidrs[i].String()),
			AvailabilityZone: pulumi.String(az),
			Tags:             b.tags(subnetName),
		}, b.opts()...)
		if err != nil {
			return provisionErr(subnetName, err)
		}
		b.graph.add(Node{Name: subnetName, Kind: KindSubnet, DependsOn: []string{vpcName}})
		res.PrivateSubnets = append(res.PrivateSubnets, subnet)

		if i < b.p.Network.NatGateways {
			eipName := b.name(fmt.Sprintf("nat-eip-%d", i+1))
			eip, err := ec2.NewEip(b.ctx, eipName, &ec2.EipArgs{
				Vpc:  pulumi.Bool(true),
				Tags: b.tags(eipName),
			}, b.opts()...)
			if err != nil {
				return provisionErr(eipName, err)
			}
			b.graph.add(Node{Name: eipName, Kind: KindEip})

			// NAT gateways live in the public subnet of the same AZ
			publicName := b.name(fmt.Sprintf("public-subnet-%d", i+1))
			natName = b.name(fmt.Sprintf("nat-%d", i+1))
			nat, err = ec2.NewNatGateway(b.ctx, natName, &ec2.NatGatewayArgs{
				AllocationId: eip.AllocationId,
				SubnetId:     res.PublicSubnets[i].ID(),
				Tags:         b.tags(natName),
			}, b.opts(pulumi.DependsOn([]pulumi.Resource{res.InternetGateway}))...)
			if err != nil {
				return provisionErr(natName, err)
			}
			b.graph.add(Node{Name: natName, Kind: KindNatGateway, DependsOn: []string{eipName, publicName, b.name("igw")}})
			res.NatGateways = append(res.NatGateways, nat)
		}

		rtName := b.name(fmt.Sprintf("private-rt-%d", i+1))
		rtArgs := &ec2.RouteTableArgs{
			VpcId: res.Vpc.ID(),
			Tags:  b.tags(rtName),
		}
		rtDeps := []string{vpcName}
		if nat != nil {
			rtArgs.Routes = ec2.RouteTableRouteArray{
				&ec2.RouteTableRouteArgs{
					CidrBlock:    pulumi.String(anyIPv4),
					NatGatewayId: nat.ID(),
				},
			}
			rtDeps = append(rtDeps, natName)
		}
		rt, err := ec2.NewRouteTable(b.ctx, rtName, rtArgs, b.opts()...)
		if err != nil {
			return provisionErr(rtName, err)
		}
		b.graph.add(Node{Name: rtName, Kind: KindRouteTable, DependsOn: rtDeps})
		res.PrivateRouteTables = append(res.PrivateRouteTables, rt)

		assocName := b.name(fmt.Sprintf("private-rt-assoc-%d", i+1))
		_, err = ec2.NewRouteTableAssociation(b.ctx, assocName, &ec2.RouteTableAssociationArgs{
			SubnetId:     subnet.ID(),
			RouteTableId: rt.ID(),
		}, b.opts()...)
		if err != nil {
			return provisionErr(assocName, err)
		}
		b.graph.add(Node{Name: assocName, Kind: KindRouteTableAssociation, DependsOn: []string{subnetName, rtName}})
	}
	return nil
}

// createS3Endpoint routes bucket traffic from every subnet through a gateway
// endpoint instead of the internet gateway or a NAT
func (b *builder) createS3Endpoint(res *NetworkResources) (*ec2.VpcEndpoint, error) {
	routeTables := pulumi.StringArray{res.PublicRouteTable.ID().ToStringOutput()}
	deps := []string{b.name("vpc"), b.name("public-rt")}
	for i, rt := range res.PrivateRouteTables {
		routeTables = append(routeTables, rt.ID().ToStringOutput())
		deps = append(deps, b.name(fmt.Sprintf("private-rt-%d", i+1)))
	}

	endpointName := b.name("s3-endpoint")
	endpoint, err := ec2.NewVpcEndpoint(b.ctx, endpointName, &ec2.VpcEndpointArgs{
		VpcId:           res.Vpc.ID(),
		ServiceName:     pulumi.String(fmt.Sprintf("com.amazonaws.%s.s3", b.p.Region)),
		VpcEndpointType: pulumi.String("Gateway"),
		RouteTableIds:   routeTables,
		Tags:            b.tags(endpointName),
	}, b.opts()...)
	if err != nil {
		return nil, provisionErr(endpointName, err)
	}
	b.graph.add(Node{Name: endpointName, Kind: KindVpcEndpoint, DependsOn: deps})
	return endpoint, nil
}

// createSecurityGroup opens exactly the effective ingress rules and all egress
func (b *builder) createSecurityGroup(vpc *ec2.Vpc, vpcName string) (*ec2.SecurityGroup, error) {
	var ingress ec2.SecurityGroupIngressArray
	for _, r := range b.p.IngressRules() {
		rule := &ec2.SecurityGroupIngressArgs{
			Protocol:    pulumi.String(strings.ToLower(r.Protocol)),
			FromPort:    pulumi.Int(r.Port),
			ToPort:      pulumi.Int(r.Port),
			Description: pulumi.String(r.Label),
		}
		// Validate already parsed every source
		if netip.MustParsePrefix(r.SourceCidr).Addr().Is6() {
			rule.Ipv6CidrBlocks = pulumi.StringArray{pulumi.String(r.SourceCidr)}
		} else {
			rule.CidrBlocks = pulumi.StringArray{pulumi.String(r.SourceCidr)}
		}
		ingress = append(ingress, rule)
	}

	sgName := b.name("sg")
	sg, err := ec2.NewSecurityGroup(b.ctx, sgName, &ec2.SecurityGroupArgs{
		VpcId:       vpc.ID(),
		Description: pulumi.String(fmt.Sprintf("Ingress for %s instance", b.p.Name)),
		Ingress:     ingress,
		Egress: ec2.SecurityGroupEgressArray{
			&ec2.SecurityGroupEgressArgs{
				Protocol:    pulumi.String("-1"),
				FromPort:    pulumi.Int(0),
				ToPort:      pulumi.Int(0),
				CidrBlocks:  pulumi.StringArray{pulumi.String(anyIPv4)},
				Description: pulumi.String("Allow all outbound traffic"),
			},
		},
		Tags: b.tags(sgName),
	}, b.opts()...)
	if err != nil {
		return nil, provisionErr(sgName, err)
	}
	b.graph.add(Node{Name: sgName, Kind: KindSecurityGroup, DependsOn: []string{vpcName}})
	return sg, nil
}
