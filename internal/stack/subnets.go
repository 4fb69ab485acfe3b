package stack

import (
	"encoding/binary"
	"fmt"
	"net/netip"
)

// carveSubnets splits parent into count consecutive subnets of length mask,
// starting at the parent's network address.
func carveSubnets(parent netip.Prefix, mask, count int) ([]netip.Prefix, error) {
	parent = parent.Masked()
	if mask <= parent.Bits() || mask > 28 {
		return nil, fmt.Errorf("subnet mask /%d must be longer than /%d and at most /28", mask, parent.Bits())
	}
	if available := 1 << (mask - parent.Bits()); count > available {
		return nil, fmt.Errorf("%d subnets of /%d do not fit in %s (room for %d)", count, mask, parent, available)
	}

	base := parent.Addr().As4()
	start := binary.BigEndian.Uint32(base[:])
	size := uint32(1) << (32 - mask)

	subnets := make([]netip.Prefix, count)
	for i := range subnets {
		var next [4]byte
		binary.BigEndian.PutUint32(next[:], start+uint32(i)*size)
		subnets[i] = netip.PrefixFrom(netip.AddrFrom4(next), mask)
	}
	return subnets, nil
}
