//go:build !linux

package netconf

import "errors"

var errUnsupported = errors.New("iptables is linux-only")

// HostRules on non-linux platforms reports nothing and refuses mutation.
// Only the linux build ever reconciles real netfilter state.
func HostRules() RuleSet { return stubRules{} }

type stubRules struct{}

func (stubRules) ChainExists(string, string) bool            { return false }
func (stubRules) CreateChain(string, string) error           { return errUnsupported }
func (stubRules) RuleExists(string, string, ...string) bool  { return false }
func (stubRules) AppendRule(string, string, ...string) error { return errUnsupported }
func (stubRules) InsertRule(string, string, ...string) error { return errUnsupported }
