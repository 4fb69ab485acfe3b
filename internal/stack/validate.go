package stack

import (
	"errors"
	"net/netip"
	"regexp"
	"strconv"
	"strings"
)

var (
	accountPattern    = regexp.MustCompile(`^\d{12}$`)
	regionPattern     = regexp.MustCompile(`^[a-z]{2}(-gov|-iso[a-z]?)?-[a-z]+-\d+$`)
	namePattern       = regexp.MustCompile(`^[a-z][a-z0-9-]{0,31}$`)
	bucketNamePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9.-]{1,61}[a-z0-9]$`)
)

// Validate checks the parameters structurally. It touches no external system.
func (p Params) Validate() error {
	if !namePattern.MatchString(p.Name) {
		return invalid("name", "%q must be lowercase alphanumeric or '-', starting with a letter", p.Name)
	}
	if !accountPattern.MatchString(p.AccountID) {
		return invalid("accountId", "%q is not a 12 digit AWS account id", p.AccountID)
	}
	if !regionPattern.MatchString(p.Region) {
		return invalid("region", "%q is not an AWS region", p.Region)
	}
	if err := p.Network.validate(); err != nil {
		return err
	}
	// Indexes point at the configured entry; the HTTP rules are fixed and valid
	for i, r := range p.Firewall {
		if err := r.validate(); err != nil {
			var ve *ValidationError
			if errors.As(err, &ve) {
				ve.Field = "firewall[" + strconv.Itoa(i) + "]." + ve.Field
			}
			return err
		}
	}
	if p.Key.Name == "" {
		return invalid("key.name", "must be set")
	}
	if err := ValidateBucketName(p.Bucket.Name); err != nil {
		return err
	}
	switch p.Bucket.Encryption {
	case "AES256", "aws:kms":
	default:
		return invalid("bucket.encryption", "%q must be AES256 or aws:kms", p.Bucket.Encryption)
	}
	if err := p.Role.validate(); err != nil {
		return err
	}
	if err := p.Instance.validate(); err != nil {
		return err
	}
	if p.EnableDNS {
		if err := p.DNS.validate(); err != nil {
			return err
		}
	}
	return nil
}

func (n NetworkSpec) validate() error {
	prefix, err := netip.ParsePrefix(n.CidrBlock)
	if err != nil || !prefix.Addr().Is4() {
		return invalid("network.cidrBlock", "%q is not an IPv4 CIDR", n.CidrBlock)
	}
	if prefix != prefix.Masked() {
		return invalid("network.cidrBlock", "%q has host bits set, use %s", n.CidrBlock, prefix.Masked())
	}
	if prefix.Bits() < 16 || prefix.Bits() > 28 {
		return invalid("network.cidrBlock", "prefix /%d outside the /16-/28 VPC range", prefix.Bits())
	}
	if n.MaxAzs < 1 {
		return invalid("network.maxAzs", "at least one availability zone is required for a public subnet")
	}
	if n.NatGateways < 0 || n.NatGateways > n.MaxAzs {
		return invalid("network.natGateways", "%d must be between 0 and maxAzs (%d)", n.NatGateways, n.MaxAzs)
	}
	if n.NatGateways > 0 && !n.PrivateSubnets {
		return invalid("network.natGateways", "NAT gateways need private subnets")
	}
	if _, err := carveSubnets(prefix, n.SubnetMask, n.subnetCount()); err != nil {
		return invalid("network.subnetMask", "%v", err)
	}
	return nil
}

func (n NetworkSpec) subnetCount() int {
	if n.PrivateSubnets {
		return n.MaxAzs * 2
	}
	return n.MaxAzs
}

func (r FirewallRule) validate() error {
	switch strings.ToLower(r.Protocol) {
	case "tcp", "udp":
	default:
		return invalid("protocol", "%q must be tcp or udp", r.Protocol)
	}
	if r.Port < 1 || r.Port > 65535 {
		return invalid("port", "%d out of range", r.Port)
	}
	prefix, err := netip.ParsePrefix(r.SourceCidr)
	if err != nil {
		return invalid("sourceCidr", "%q is not a CIDR", r.SourceCidr)
	}
	if prefix != prefix.Masked() {
		return invalid("sourceCidr", "%q has host bits set, use %s", r.SourceCidr, prefix.Masked())
	}
	return nil
}

func (r RoleBinding) validate() error {
	if r.TrustedService == "" {
		return invalid("role.trustedService", "must be set")
	}
	if len(r.BucketActions) == 0 {
		return invalid("role.bucketActions", "at least one action is required")
	}
	for _, a := range r.BucketActions {
		if !strings.HasPrefix(a, "s3:") {
			return invalid("role.bucketActions", "%q is not an s3 action", a)
		}
	}
	for _, arn := range r.ManagedPolicyArns {
		if !strings.HasPrefix(arn, "arn:") {
			return invalid("role.managedPolicyArns", "%q is not an ARN", arn)
		}
	}
	return nil
}

func (s InstanceSpec) validate() error {
	if s.InstanceType == "" {
		return invalid("instance.instanceType", "must be set")
	}
	if s.Image.AmiID == "" && (len(s.Image.Owners) == 0 || s.Image.NameRegex == "") {
		return invalid("instance.image", "either amiId or owners and nameRegex are required")
	}
	if s.Image.NameRegex != "" {
		if _, err := regexp.Compile(s.Image.NameRegex); err != nil {
			return invalid("instance.image.nameRegex", "%v", err)
		}
	}
	return nil
}

func (d DNSRecordSpec) validate() error {
	if d.ZoneName == "" {
		return invalid("dns.zoneName", "must be set when DNS is enabled")
	}
	if d.TTL < 1 {
		return invalid("dns.ttl", "%d must be positive", d.TTL)
	}
	if d.TargetIP != "" {
		addr, err := netip.ParseAddr(d.TargetIP)
		if err != nil || !addr.Is4() {
			return invalid("dns.targetIp", "%q is not an IPv4 address", d.TargetIP)
		}
	}
	return nil
}

// ValidateBucketName applies the S3 general purpose bucket naming rules.
// Global uniqueness can only be checked against the provider, see preflight.
func ValidateBucketName(name string) error {
	switch {
	case !bucketNamePattern.MatchString(name):
		return invalid("bucket.name", "%q must be 3-63 lowercase letters, digits, '.' or '-', starting and ending with a letter or digit", name)
	case strings.Contains(name, ".."):
		return invalid("bucket.name", "%q must not contain adjacent periods", name)
	case strings.HasPrefix(name, "xn--"), strings.HasPrefix(name, "sthree-"):
		return invalid("bucket.name", "%q uses a reserved prefix", name)
	case strings.HasSuffix(name, "-s3alias"), strings.HasSuffix(name, "--ol-s3"):
		return invalid("bucket.name", "%q uses a reserved suffix", name)
	}
	if _, err := netip.ParseAddr(name); err == nil {
		return invalid("bucket.name", "%q must not be formatted as an IP address", name)
	}
	return nil
}
