// Package netconf converges the host's Docker networks and iptables rules to
// a declared desired state. Every operation is an idempotent check-then-act:
// re-running reconciliation any number of times never grows the rule set.
package netconf

import (
	"fmt"
	"net/netip"
)

// NetworkSpec declares one Docker bridge network with fixed addressing.
// Downstream service tooling hardcodes these addresses, so the CIDRs must
// be stable across redeployments.
type NetworkSpec struct {
	Name    string
	Subnet  netip.Prefix
	Gateway netip.Addr
	IPRange netip.Prefix
}

// DefaultNetworks is the fixed three-network layout for a mesh node:
// proxy fronts ingress, apps hosts services, data holds state stores.
func DefaultNetworks() []NetworkSpec {
	return []NetworkSpec{
		{
			Name:    "proxy",
			Subnet:  netip.MustParsePrefix("172.28.1.0/24"),
			Gateway: netip.MustParseAddr("172.28.1.1"),
			IPRange: netip.MustParsePrefix("172.28.1.128/25"),
		},
		{
			Name:    "apps",
			Subnet:  netip.MustParsePrefix("172.28.2.0/24"),
			Gateway: netip.MustParseAddr("172.28.2.1"),
			IPRange: netip.MustParsePrefix("172.28.2.128/25"),
		},
		{
			Name:    "data",
			Subnet:  netip.MustParsePrefix("172.28.3.0/24"),
			Gateway: netip.MustParseAddr("172.28.3.1"),
			IPRange: netip.MustParsePrefix("172.28.3.128/25"),
		},
	}
}

// Validate rejects overlapping or internally inconsistent specs before any
// host state is touched.
func Validate(specs []NetworkSpec) error {
	seen := make(map[string]bool, len(specs))
	for i, s := range specs {
		if s.Name == "" {
			return fmt.Errorf("network %d: empty name", i)
		}
		if seen[s.Name] {
			return fmt.Errorf("network %q declared twice", s.Name)
		}
		seen[s.Name] = true
		if !s.Subnet.IsValid() {
			return fmt.Errorf("network %q: invalid subnet", s.Name)
		}
		if !s.Gateway.IsValid() || !s.Subnet.Contains(s.Gateway) {
			return fmt.Errorf("network %q: gateway %s outside subnet %s", s.Name, s.Gateway, s.Subnet)
		}
		if s.IPRange.IsValid() && !s.Subnet.Overlaps(s.IPRange) {
			return fmt.Errorf("network %q: ip range %s outside subnet %s", s.Name, s.IPRange, s.Subnet)
		}
		for _, prev := range specs[:i] {
			if prev.Subnet.Overlaps(s.Subnet) {
				return fmt.Errorf("networks %q and %q overlap (%s, %s)", prev.Name, s.Name, prev.Subnet, s.Subnet)
			}
		}
	}
	return nil
}
