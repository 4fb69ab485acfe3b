package stack

import (
	"fmt"

	"github.com/pulumi/pulumi-aws/sdk/v5/go/aws/route53"
	"github.com/pulumi/pulumi/sdk/v3/go/pulumi"
)

// DNSResources holds the A record for the instance
type DNSResources struct {
	ZoneID string
	Record *route53.Record
	// Pinned is true when the record targets DNS.TargetIP instead of the elastic IP
	Pinned bool
}

// createDNSResources looks up the parent zone and points the record at the
// elastic IP. A configured literal target is kept as-is but reported, since
// it no longer follows the allocation once the address changes.
func (b *builder) createDNSResources(address *AddressResources) (*DNSResources, error) {
	spec := b.p.DNS

	zone, err := route53.LookupZone(b.ctx, &route53.LookupZoneArgs{
		Name:        pulumi.StringRef(spec.ZoneName),
		PrivateZone: pulumi.BoolRef(false),
	}, b.invokeOpts()...)
	if err != nil {
		return nil, &ReferenceNotFoundError{Kind: "hosted zone", Name: spec.ZoneName, Cause: err}
	}

	eipName := b.name("elastic-ip")
	recordName := b.name("dns-record")

	target := address.Eip.PublicIp
	deps := []string{eipName}
	pinned := spec.TargetIP != ""
	if pinned {
		target = pulumi.String(spec.TargetIP).ToStringOutput()
		deps = nil
		_ = b.ctx.Log.Warn(fmt.Sprintf("%s is pinned to %s instead of the elastic IP; it will drift if the address is reallocated",
			spec.FQDN(), spec.TargetIP), nil)
	}

	record, err := route53.NewRecord(b.ctx, recordName, &route53.RecordArgs{
		ZoneId:  pulumi.String(zone.ZoneId),
		Name:    pulumi.String(spec.FQDN()),
		Type:    pulumi.String("A"),
		Ttl:     pulumi.Int(spec.TTL),
		Records: pulumi.StringArray{target},
	}, b.opts()...)
	if err != nil {
		return nil, provisionErr(recordName, err)
	}
	b.graph.add(Node{Name: recordName, Kind: KindRecord, DependsOn: deps})

	return &DNSResources{
		ZoneID: zone.ZoneId,
		Record: record,
		Pinned: pinned,
	}, nil
}
