package netconf

import (
	"log/slog"

	"meshboot/internal/check"
)

// Tables the reconciler programs.
const (
	TableFilter = "filter"
	TableNat    = "nat"
)

// RuleSet is the observed/mutated iptables state. The linux implementation
// shells through Docker's libnetwork iptables wrapper; tests inject a fake.
type RuleSet interface {
	ChainExists(table, chain string) bool
	CreateChain(table, chain string) error
	RuleExists(table, chain string, args ...string) bool
	AppendRule(table, chain string, args ...string) error
	InsertRule(table, chain string, args ...string) error
}

type chainSpec struct {
	table string
	chain string
}

type ruleSpec struct {
	table  string
	chain  string
	insert bool
	args   []string
}

// baseChains are the chains Docker expects; recreated here so firewall
// reconciliation can run before the daemon is up (phase1) and repair state
// the daemon lost (phase2).
var baseChains = []chainSpec{
	{TableFilter, "DOCKER"},
	{TableFilter, "DOCKER-ISOLATION-STAGE-1"},
	{TableFilter, "DOCKER-ISOLATION-STAGE-2"},
	{TableFilter, "DOCKER-USER"},
	{TableNat, "DOCKER"},
}

// baseRules wire the Docker chains into the built-in chains plus the RETURN
// defaults. Order matters for the FORWARD inserts: DOCKER-USER must stay
// ahead of isolation.
var baseRules = []ruleSpec{
	{TableNat, "PREROUTING", false, []string{"-m", "addrtype", "--dst-type", "LOCAL", "-j", "DOCKER"}},
	{TableNat, "OUTPUT", false, []string{"!", "-d", "127.0.0.0/8", "-m", "addrtype", "--dst-type", "LOCAL", "-j", "DOCKER"}},
	{TableFilter, "FORWARD", true, []string{"-j", "DOCKER-ISOLATION-STAGE-1"}},
	{TableFilter, "FORWARD", true, []string{"-j", "DOCKER-USER"}},
	{TableFilter, "DOCKER-ISOLATION-STAGE-1", false, []string{"-j", "RETURN"}},
	{TableFilter, "DOCKER-ISOLATION-STAGE-2", false, []string{"-j", "RETURN"}},
	{TableFilter, "DOCKER-USER", false, []string{"-j", "RETURN"}},
}

// Reconciler converges iptables state toward the declared rule set.
// Individual iptables failures are swallowed: existence is re-verified on
// the next run, and a genuinely broken netfilter surfaces when the Docker
// daemon readiness check fails.
type Reconciler struct {
	Rules RuleSet
}

// EnsureChains creates any missing Docker chain.
func (r *Reconciler) EnsureChains() {
	check.Assert(r.Rules != nil, "Reconciler: Rules must not be nil")
	for _, c := range baseChains {
		if r.Rules.ChainExists(c.table, c.chain) {
			continue
		}
		if err := r.Rules.CreateChain(c.table, c.chain); err != nil {
			slog.Warn("create chain", "table", c.table, "chain", c.chain, "err", err)
		}
	}
}

// EnsureWiring adds any missing jump/default rule.
func (r *Reconciler) EnsureWiring() {
	for _, rule := range baseRules {
		r.ensure(rule)
	}
}

// EnsureMeshACL inserts bidirectional ACCEPT rules into DOCKER-USER for
// every unordered pair of networks: N networks yield N·(N−1) rules.
func (r *Reconciler) EnsureMeshACL(specs []NetworkSpec) {
	for _, src := range specs {
		for _, dst := range specs {
			if src.Name == dst.Name {
				continue
			}
			r.ensure(ruleSpec{
				table:  TableFilter,
				chain:  "DOCKER-USER",
				insert: true,
				args:   []string{"-s", src.Subnet.String(), "-d", dst.Subnet.String(), "-j", "ACCEPT"},
			})
		}
	}
}

// Reconcile runs the full pass: chains, wiring, then the cross-network ACL.
func (r *Reconciler) Reconcile(specs []NetworkSpec) {
	r.EnsureChains()
	r.EnsureWiring()
	r.EnsureMeshACL(specs)
}

func (r *Reconciler) ensure(rule ruleSpec) {
	if r.Rules.RuleExists(rule.table, rule.chain, rule.args...) {
		return
	}
	var err error
	if rule.insert {
		err = r.Rules.InsertRule(rule.table, rule.chain, rule.args...)
	} else {
		err = r.Rules.AppendRule(rule.table, rule.chain, rule.args...)
	}
	if err != nil {
		slog.Warn("program rule", "table", rule.table, "chain", rule.chain, "args", rule.args, "err", err)
	}
}
