// Package settings turns stack configuration into stack.Params. The same
// loader serves the Pulumi program (reading live stack config) and sakuractl
// (reading the Pulumi.<stack>.yaml file directly).
package settings

import (
	"fmt"
	"strconv"

	"github.com/zhang1980s/sakura-pocketbase-stack/internal/stack"
)

// Namespace is the Pulumi config namespace of every key below.
const Namespace = "sakura"

// Source is satisfied by *github.com/pulumi/pulumi/sdk/v3/go/pulumi/config.Config.
type Source interface {
	Get(key string) string
	GetObject(key string, output interface{}) error
}

type network struct {
	CidrBlock      string `json:"cidrBlock"`
	SubnetMask     int    `json:"subnetMask"`
	MaxAzs         int    `json:"maxAzs"`
	NatGateways    int    `json:"natGateways"`
	PrivateSubnets bool   `json:"privateSubnets"`
}

type firewallRule struct {
	Protocol string `json:"protocol"`
	Port     int    `json:"port"`
	Source   string `json:"source"`
	Label    string `json:"label"`
}

type bucket struct {
	Name           string `json:"name"`
	Versioning     *bool  `json:"versioning"`
	Encryption     string `json:"encryption"`
	RetainOnDelete bool   `json:"retainOnDelete"`
}

type role struct {
	TrustedService    string   `json:"trustedService"`
	BucketActions     []string `json:"bucketActions"`
	ManagedPolicyArns []string `json:"managedPolicyArns"`
}

type image struct {
	AmiID        string   `json:"amiId"`
	Owners       []string `json:"owners"`
	NameRegex    string   `json:"nameRegex"`
	Architecture string   `json:"architecture"`
}

type instance struct {
	InstanceType string   `json:"instanceType"`
	Image        image    `json:"image"`
	BootCommands []string `json:"bootCommands"`
}

type dns struct {
	ZoneName   string `json:"zoneName"`
	RecordName string `json:"recordName"`
	TargetIP   string `json:"targetIp"`
	TTL        int    `json:"ttl"`
}

// DefaultBucketActions mirrors a read/write grant on a single bucket.
var DefaultBucketActions = []string{
	"s3:GetObject*",
	"s3:GetBucket*",
	"s3:List*",
	"s3:DeleteObject*",
	"s3:PutObject",
	"s3:PutObjectLegalHold",
	"s3:PutObjectRetention",
	"s3:PutObjectTagging",
	"s3:PutObjectVersionTagging",
	"s3:Abort*",
}

// Load reads every key, applies the documented defaults and validates the
// result. Missing required keys are reported as *stack.ValidationError.
func Load(src Source) (stack.Params, error) {
	var p stack.Params
	var err error

	p.Name = getOr(src, "name", "sakura")
	if p.AccountID, err = requireKey(src, "accountId"); err != nil {
		return p, err
	}
	if p.Region, err = requireKey(src, "region"); err != nil {
		return p, err
	}

	net := network{CidrBlock: "10.0.0.0/16", SubnetMask: 24, MaxAzs: 2}
	if err := getObject(src, "network", &net); err != nil {
		return p, err
	}
	p.Network = stack.NetworkSpec(net)

	var rules []firewallRule
	if err := getObject(src, "firewall", &rules); err != nil {
		return p, err
	}
	for _, r := range rules {
		rule := stack.FirewallRule{Protocol: "tcp", Port: r.Port, SourceCidr: "0.0.0.0/0", Label: r.Label}
		if r.Protocol != "" {
			rule.Protocol = r.Protocol
		}
		if r.Source != "" {
			rule.SourceCidr = r.Source
		}
		if rule.Label == "" {
			rule.Label = fmt.Sprintf("Allow %s/%d", rule.Protocol, rule.Port)
		}
		p.Firewall = append(p.Firewall, rule)
	}

	if p.Key.Name, err = requireKey(src, "keyName"); err != nil {
		return p, err
	}

	var bkt bucket
	if err := getObject(src, "bucket", &bkt); err != nil {
		return p, err
	}
	p.Bucket = stack.BucketSpec{
		Name:           bkt.Name,
		Versioning:     bkt.Versioning == nil || *bkt.Versioning,
		Encryption:     bkt.Encryption,
		RetainOnDelete: bkt.RetainOnDelete,
	}
	if p.Bucket.Encryption == "" {
		p.Bucket.Encryption = "AES256"
	}

	rl := role{TrustedService: "ec2.amazonaws.com"}
	if err := getObject(src, "role", &rl); err != nil {
		return p, err
	}
	if len(rl.BucketActions) == 0 {
		rl.BucketActions = append([]string(nil), DefaultBucketActions...)
	}
	p.Role = stack.RoleBinding(rl)

	var inst instance
	if err := getObject(src, "instance", &inst); err != nil {
		return p, err
	}
	p.Instance = stack.InstanceSpec{
		InstanceType: inst.InstanceType,
		Image:        stack.ImageSelector(inst.Image),
		BootCommands: inst.BootCommands,
	}

	if p.EnableDNS, err = getBool(src, "enableDns"); err != nil {
		return p, err
	}
	if p.EnableHTTPFirewall, err = getBool(src, "enableHttpFirewall"); err != nil {
		return p, err
	}
	if p.CreateKeyPair, err = getBool(src, "createKeyPair"); err != nil {
		return p, err
	}

	d := dns{TTL: 300}
	if err := getObject(src, "dns", &d); err != nil {
		return p, err
	}
	p.DNS = stack.DNSRecordSpec(d)

	if err := getObject(src, "tags", &p.Tags); err != nil {
		return p, err
	}

	return p, p.Validate()
}

func requireKey(src Source, key string) (string, error) {
	v := src.Get(key)
	if v == "" {
		return "", &stack.ValidationError{Field: key, Reason: fmt.Sprintf("%s:%s is required", Namespace, key)}
	}
	return v, nil
}

func getOr(src Source, key, fallback string) string {
	if v := src.Get(key); v != "" {
		return v
	}
	return fallback
}

func getBool(src Source, key string) (bool, error) {
	v := src.Get(key)
	if v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, &stack.ValidationError{Field: key, Reason: fmt.Sprintf("%q is not a boolean", v)}
	}
	return b, nil
}

// getObject leaves out untouched when the key is absent.
func getObject(src Source, key string, out interface{}) error {
	if src.Get(key) == "" {
		return nil
	}
	if err := src.GetObject(key, out); err != nil {
		return &stack.ValidationError{Field: key, Reason: err.Error()}
	}
	return nil
}
