package tx

import "sync"

// ResolvedProposal is a proposal plus the dereferenced bodies validation
// needs. InputBodies aligns with Proposal.Inputs and ReferenceBodies with
// Proposal.References; rules never perform I/O; resolution happens before
// validation, identically on every party.
type ResolvedProposal struct {
	Proposal        *Proposal
	InputBodies     []StateBody
	ReferenceBodies []StateBody
}

// InputsOfKind returns the resolved input bodies with the given kind, in
// input order.
func (rp *ResolvedProposal) InputsOfKind(kind string) []StateBody {
	var out []StateBody
	for _, s := range rp.InputBodies {
		if s.Kind == kind {
			out = append(out, s)
		}
	}
	return out
}

// OutputsOfKind returns the output bodies with the given kind, in output
// order.
func (rp *ResolvedProposal) OutputsOfKind(kind string) []StateBody {
	var out []StateBody
	for _, s := range rp.Proposal.Outputs {
		if s.Kind == kind {
			out = append(out, s)
		}
	}
	return out
}

// ReferencesOfKind returns the resolved reference bodies with the given
// kind, in reference order.
func (rp *ResolvedProposal) ReferencesOfKind(kind string) []StateBody {
	var out []StateBody
	for _, s := range rp.ReferenceBodies {
		if s.Kind == kind {
			out = append(out, s)
		}
	}
	return out
}

// Rule is an explicit, named contract rule.
//
// ID must be stable across versions. Apply must be deterministic and
// side-effect free: same resolved proposal, same result, on every party.
type Rule struct {
	ID    string
	Apply func(*ResolvedProposal) error
}

func (r Rule) apply(rp *ResolvedProposal) error {
	if r.Apply == nil {
		return NewError(KindInternal, "TXF-INTERNAL-001", "nil rule Apply")
	}
	return r.Apply(rp)
}

// ValidateRules runs rules in order, returning the first failure.
//
// Determinism note: rule order is the evaluation order; keep it stable.
func ValidateRules(rp *ResolvedProposal, rules []Rule) error {
	for _, r := range rules {
		if err := r.apply(rp); err != nil {
			return err
		}
	}
	return nil
}

var (
	contractsMu sync.RWMutex
	contracts   = make(map[string][]Rule)
)

// RegisterContract binds the rule set evaluated for every proposal that
// touches a state of the given kind. Registration typically happens once at
// process start; re-registering a kind replaces its rules.
func RegisterContract(kind string, rules []Rule) {
	contractsMu.Lock()
	defer contractsMu.Unlock()
	contracts[kind] = append([]Rule(nil), rules...)
}

func contractFor(kind string) ([]Rule, bool) {
	contractsMu.RLock()
	defer contractsMu.RUnlock()
	rules, ok := contracts[kind]
	return rules, ok
}
