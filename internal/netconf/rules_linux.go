//go:build linux

package netconf

import (
	"github.com/docker/docker/libnetwork/iptables"
)

// hostRules implements RuleSet on the real netfilter tables through
// libnetwork's iptables wrapper, the same layer the Docker daemon uses.
type hostRules struct {
	ipt *iptables.IPTable
}

// HostRules returns the IPv4 iptables-backed rule set.
func HostRules() RuleSet {
	return hostRules{ipt: iptables.GetIptable(iptables.IPv4)}
}

func (h hostRules) ChainExists(table, chain string) bool {
	return h.ipt.ExistChain(chain, iptables.Table(table))
}

func (h hostRules) CreateChain(table, chain string) error {
	_, err := h.ipt.Raw("-t", table, "-N", chain)
	return err
}

func (h hostRules) RuleExists(table, chain string, args ...string) bool {
	return h.ipt.Exists(iptables.Table(table), chain, args...)
}

func (h hostRules) AppendRule(table, chain string, args ...string) error {
	return h.ipt.ProgramRule(iptables.Table(table), chain, iptables.Append, args)
}

func (h hostRules) InsertRule(table, chain string, args ...string) error {
	return h.ipt.ProgramRule(iptables.Table(table), chain, iptables.Insert, args)
}
