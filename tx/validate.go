package tx

import "sort"

// Validate runs the deterministic pre-commit check on a resolved proposal:
// structural rules first, then the registered contract rules for every state
// kind the proposal touches, in sorted kind order.
//
// Every failure is KindViolation (KindMalformed for proposal-shape faults
// only detectable after resolution, KindInternal for harness misuse),
// non-retryable, and identical on every party that evaluates the same
// proposal with the same resolved bodies.
func Validate(rp *ResolvedProposal) error {
	if rp == nil || rp.Proposal == nil {
		return NewError(KindInternal, "TXF-VAL-001", "nil proposal")
	}
	p := rp.Proposal
	if len(rp.InputBodies) != len(p.Inputs) {
		return NewError(KindInternal, "TXF-VAL-002", "resolved input bodies do not align with inputs")
	}
	if len(rp.ReferenceBodies) != len(p.References) {
		return NewError(KindInternal, "TXF-VAL-003", "resolved reference bodies do not align with references")
	}

	if p.Command.Action == "" {
		return NewError(KindViolation, "TXF-VAL-011", "proposal has no command")
	}
	if len(p.Inputs) == 0 && len(p.Outputs) == 0 {
		return NewError(KindViolation, "TXF-VAL-012", "proposal has neither inputs nor outputs")
	}

	for i, body := range rp.InputBodies {
		if body.Ref() != p.Inputs[i] {
			return NewError(KindViolation, "TXF-VAL-013", "input body "+body.Ref().String()+" does not match consumed ref "+p.Inputs[i].String())
		}
	}
	for i, body := range rp.ReferenceBodies {
		ref := p.References[i]
		if body.LinearID != ref.ID {
			return NewError(KindViolation, "TXF-VAL-014", "reference body does not match "+ref.String())
		}
		if body.Kind != ref.ExpectedKind {
			return NewError(KindViolation, "TXF-VAL-015", "reference "+ref.String()+" resolved to kind "+body.Kind)
		}
	}

	// Every required signer must be a participant of a consumed input body
	// or of an output. The builder enforces the output side; the input side
	// waits until resolution supplies the consumed bodies.
	participants := make(map[string]bool)
	for _, body := range rp.InputBodies {
		for _, name := range body.Participants {
			participants[name] = true
		}
	}
	for _, out := range p.Outputs {
		for _, name := range out.Participants {
			participants[name] = true
		}
	}
	for _, name := range p.Command.RequiredSigners {
		if !participants[name] {
			return NewError(KindMalformed, "TXF-VAL-017", "required signer "+name+" is not a participant of any input or output")
		}
	}

	// An amended lineage must advance: an output that continues a consumed
	// input keeps the LinearID and increments the version.
	inputVersions := make(map[string]uint64, len(p.Inputs))
	for _, ref := range p.Inputs {
		inputVersions[ref.LinearID.String()] = ref.Version
	}
	for _, out := range p.Outputs {
		if prev, ok := inputVersions[out.LinearID.String()]; ok && out.Version != prev+1 {
			return NewError(KindViolation, "TXF-VAL-016", "output "+out.Ref().String()+" does not advance consumed version")
		}
	}

	for _, kind := range rp.kinds() {
		rules, ok := contractFor(kind)
		if !ok {
			return NewError(KindViolation, "TXF-VAL-021", "no contract registered for state kind "+kind)
		}
		if err := ValidateRules(rp, rules); err != nil {
			return err
		}
	}
	return nil
}

// kinds returns the sorted set of state kinds across resolved inputs and
// outputs. References supply context only and do not select contracts.
func (rp *ResolvedProposal) kinds() []string {
	seen := make(map[string]bool)
	for _, s := range rp.InputBodies {
		seen[s.Kind] = true
	}
	for _, s := range rp.Proposal.Outputs {
		seen[s.Kind] = true
	}
	kinds := make([]string, 0, len(seen))
	for k := range seen {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}
