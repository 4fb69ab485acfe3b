package stack

import (
	"fmt"
	"sort"
	"strings"
)

// Pulumi type tokens of every resource kind the descriptor declares.
const (
	KindProvider              = "pulumi:providers:aws"
	KindVpc                   = "aws:ec2/vpc:Vpc"
	KindSubnet                = "aws:ec2/subnet:Subnet"
	KindInternetGateway       = "aws:ec2/internetGateway:InternetGateway"
	KindRouteTable            = "aws:ec2/routeTable:RouteTable"
	KindRouteTableAssociation = "aws:ec2/routeTableAssociation:RouteTableAssociation"
	KindNatGateway            = "aws:ec2/natGateway:NatGateway"
	KindSecurityGroup         = "aws:ec2/securityGroup:SecurityGroup"
	KindVpcEndpoint           = "aws:ec2/vpcEndpoint:VpcEndpoint"
	KindEip                   = "aws:ec2/eip:Eip"
	KindEipAssociation        = "aws:ec2/eipAssociation:EipAssociation"
	KindKeyPair               = "aws:ec2/keyPair:KeyPair"
	KindInstance              = "aws:ec2/instance:Instance"
	KindBucket                = "aws:s3/bucket:Bucket"
	KindBucketAccessBlock     = "aws:s3/bucketPublicAccessBlock:BucketPublicAccessBlock"
	KindRole                  = "aws:iam/role:Role"
	KindRolePolicy            = "aws:iam/rolePolicy:RolePolicy"
	KindRolePolicyAttachment  = "aws:iam/rolePolicyAttachment:RolePolicyAttachment"
	KindInstanceProfile       = "aws:iam/instanceProfile:InstanceProfile"
	KindParameter             = "aws:ssm/parameter:Parameter"
	KindRecord                = "aws:route53/record:Record"
	KindPrivateKey            = "tls:index/privateKey:PrivateKey"
)

// Node is one declared resource. DependsOn names the nodes whose outputs
// this resource consumes.
type Node struct {
	Name      string
	Kind      string
	DependsOn []string
	// Retain leaves the live resource in place when the stack is destroyed.
	Retain bool
	// EmptyOnDelete deletes contained objects before the resource itself.
	EmptyOnDelete bool
}

// Graph is the pure-data view of a descriptor, in declaration order.
type Graph struct {
	Nodes []Node
}

func (g *Graph) add(n Node) {
	g.Nodes = append(g.Nodes, n)
}

// Node returns the node with the given logical name.
func (g *Graph) Node(name string) (Node, bool) {
	for _, n := range g.Nodes {
		if n.Name == name {
			return n, true
		}
	}
	return Node{}, false
}

// NodesOfKind returns every node of the given kind in declaration order.
func (g *Graph) NodesOfKind(kind string) []Node {
	var nodes []Node
	for _, n := range g.Nodes {
		if n.Kind == kind {
			nodes = append(nodes, n)
		}
	}
	return nodes
}

// Validate reports duplicate names and edges to undeclared nodes.
func (g *Graph) Validate() error {
	seen := make(map[string]bool, len(g.Nodes))
	for _, n := range g.Nodes {
		if seen[n.Name] {
			return fmt.Errorf("duplicate node %q", n.Name)
		}
		seen[n.Name] = true
	}

	var dangling []string
	for _, n := range g.Nodes {
		for _, dep := range n.DependsOn {
			if !seen[dep] {
				dangling = append(dangling, n.Name+" -> "+dep)
			}
		}
	}
	if len(dangling) > 0 {
		sort.Strings(dangling)
		return fmt.Errorf("dangling dependencies: %s", strings.Join(dangling, ", "))
	}
	return nil
}

// CreationOrder returns node names with every dependency ahead of its
// dependents. Ties keep declaration order, so the result is stable.
func (g *Graph) CreationOrder() ([]string, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}

	inDegree := make(map[string]int, len(g.Nodes))
	dependents := make(map[string][]string, len(g.Nodes))
	for _, n := range g.Nodes {
		inDegree[n.Name] += 0
		for _, dep := range n.DependsOn {
			inDegree[n.Name]++
			dependents[dep] = append(dependents[dep], n.Name)
		}
	}

	order := make([]string, 0, len(g.Nodes))
	done := make(map[string]bool, len(g.Nodes))
	for len(order) < len(g.Nodes) {
		progressed := false
		for _, n := range g.Nodes {
			if done[n.Name] || inDegree[n.Name] > 0 {
				continue
			}
			done[n.Name] = true
			order = append(order, n.Name)
			for _, d := range dependents[n.Name] {
				inDegree[d]--
			}
			progressed = true
			break
		}
		if !progressed {
			return nil, fmt.Errorf("dependency cycle among %d remaining nodes", len(g.Nodes)-len(order))
		}
	}
	return order, nil
}

// TeardownOrder is CreationOrder reversed.
func (g *Graph) TeardownOrder() ([]string, error) {
	order, err := g.CreationOrder()
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(order)-1; i < j; i, j = i+1, j-1 {
		order[i], order[j] = order[j], order[i]
	}
	return order, nil
}
