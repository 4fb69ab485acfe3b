package stack

import (
	"fmt"
	"strings"
)

// Params is the full input of Build. Every value the descriptor needs is
// carried here; Build reads nothing else.
type Params struct {
	// Name prefixes every logical resource name and Name tag.
	Name      string
	AccountID string
	Region    string

	Network  NetworkSpec
	Firewall []FirewallRule
	Key      KeyReference
	Bucket   BucketSpec
	Role     RoleBinding
	Instance InstanceSpec
	DNS      DNSRecordSpec

	// EnableDNS declares a Route53 A record for the instance.
	EnableDNS bool
	// EnableHTTPFirewall opens tcp/80 and tcp/443 to the world in addition to Firewall.
	EnableHTTPFirewall bool
	// CreateKeyPair generates the key pair in-graph instead of looking up Key.Name.
	CreateKeyPair bool

	Tags map[string]string
}

type NetworkSpec struct {
	CidrBlock string
	// SubnetMask is the prefix length of every carved subnet.
	SubnetMask     int
	MaxAzs         int
	NatGateways    int
	PrivateSubnets bool
}

// FirewallRule is one ingress allow entry.
type FirewallRule struct {
	Protocol   string
	Port       int
	SourceCidr string
	Label      string
}

// KeyReference names the EC2 key pair used for SSH. Private key material
// never passes through Params.
type KeyReference struct {
	Name string
}

type BucketSpec struct {
	Name       string
	Versioning bool
	// Encryption is the default SSE algorithm: "AES256" or "aws:kms".
	Encryption string
	// RetainOnDelete keeps the bucket when the stack is destroyed.
	RetainOnDelete bool
}

type RoleBinding struct {
	TrustedService string
	// BucketActions are granted on the bucket and every object in it.
	BucketActions []string
	// ManagedPolicyArns are attached as-is. Broad S3 policies are reported.
	ManagedPolicyArns []string
}

type ImageSelector struct {
	// AmiID pins an image and skips the lookup when set.
	AmiID        string
	Owners       []string
	NameRegex    string
	Architecture string
}

type InstanceSpec struct {
	InstanceType string
	Image        ImageSelector
	// BootCommands run once at first boot, in order, unmodified.
	BootCommands []string
}

type DNSRecordSpec struct {
	ZoneName   string
	RecordName string
	// TargetIP pins the record to a literal address instead of the elastic IP.
	TargetIP string
	TTL      int
}

var httpRules = []FirewallRule{
	{Protocol: "tcp", Port: 80, SourceCidr: anyIPv4, Label: "Allow HTTP Access"},
	{Protocol: "tcp", Port: 443, SourceCidr: anyIPv4, Label: "Allow HTTPS Access"},
}

const anyIPv4 = "0.0.0.0/0"

// IngressRules returns the effective allow-list: Firewall followed by the
// HTTP rules when enabled. Entries with the same protocol, port and source
// collapse into the first one seen.
func (p Params) IngressRules() []FirewallRule {
	candidates := append([]FirewallRule{}, p.Firewall...)
	if p.EnableHTTPFirewall {
		candidates = append(candidates, httpRules...)
	}

	seen := make(map[string]bool, len(candidates))
	rules := make([]FirewallRule, 0, len(candidates))
	for _, r := range candidates {
		key := fmt.Sprintf("%s/%d/%s", strings.ToLower(r.Protocol), r.Port, r.SourceCidr)
		if seen[key] {
			continue
		}
		seen[key] = true
		rules = append(rules, r)
	}
	return rules
}

// BootScript renders BootCommands as a bash user-data script.
func (s InstanceSpec) BootScript() string {
	return "#!/bin/bash\n" + strings.Join(s.BootCommands, "\n")
}

// FQDN is the fully qualified record name. An empty RecordName targets the zone apex.
func (d DNSRecordSpec) FQDN() string {
	zone := strings.TrimSuffix(d.ZoneName, ".")
	if d.RecordName == "" {
		return zone
	}
	return d.RecordName + "." + zone
}

func (p Params) tags(name string) map[string]string {
	tags := make(map[string]string, len(p.Tags)+1)
	for k, v := range p.Tags {
		tags[k] = v
	}
	tags["Name"] = name
	return tags
}
