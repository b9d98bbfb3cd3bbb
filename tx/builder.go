package tx

import (
	"sort"

	"xdao.co/txfin/identity"
)

// Builder assembles an immutable Proposal. Pure construction: no committed
// state is read or written, and Build never has side effects.
//
// The builder canonicalizes ordering (inputs, references, outputs and
// signers are sorted) so that the rendered proposal bytes do not depend on
// the order of Add calls.
type Builder struct {
	notary     string
	inputs     []StateRef
	references []LinkedReference
	outputs    []StateBody
	command    Command
}

// NewBuilder starts a proposal assigned to the given notary.
func NewBuilder(notary string) *Builder {
	return &Builder{notary: notary}
}

// AddInput adds a consumed state reference.
func (b *Builder) AddInput(ref StateRef) *Builder {
	b.inputs = append(b.inputs, ref)
	return b
}

// AddReference adds a non-consumed linked reference used only for
// validation context.
func (b *Builder) AddReference(ref LinkedReference) *Builder {
	b.references = append(b.references, ref)
	return b
}

// AddOutput adds a new state body created by this proposal.
func (b *Builder) AddOutput(s StateBody) *Builder {
	b.outputs = append(b.outputs, s)
	return b
}

// WithCommand sets the proposal's single command.
func (b *Builder) WithCommand(action string, requiredSigners ...string) *Builder {
	b.command = Command{Action: action, RequiredSigners: requiredSigners}
	return b
}

// Build validates shape and returns the immutable proposal. All failures
// are KindMalformed and locally recoverable: fix the inputs and rebuild.
func (b *Builder) Build() (*Proposal, error) {
	if b.notary == "" {
		return nil, NewError(KindMalformed, "TXF-BLD-100", "proposal has no notary")
	}
	if len(b.inputs) == 0 && len(b.outputs) == 0 {
		return nil, NewError(KindMalformed, "TXF-BLD-101", "proposal must have at least one input or output")
	}
	if b.command.Action == "" {
		return nil, NewError(KindMalformed, "TXF-BLD-102", "proposal has no command")
	}
	if len(b.command.RequiredSigners) == 0 {
		return nil, NewError(KindMalformed, "TXF-BLD-103", "command requires no signers")
	}

	seenSigner := make(map[string]bool)
	signers := make([]string, 0, len(b.command.RequiredSigners))
	for _, name := range b.command.RequiredSigners {
		if err := identity.CheckName(name); err != nil {
			return nil, WrapError(KindMalformed, "TXF-BLD-104", "invalid required signer", err)
		}
		if seenSigner[name] {
			continue
		}
		seenSigner[name] = true
		signers = append(signers, name)
	}
	sort.Strings(signers)

	for _, out := range b.outputs {
		if len(out.Participants) == 0 {
			return nil, NewError(KindMalformed, "TXF-BLD-105", "output state "+out.LinearID.String()+" has no participants")
		}
		if out.Kind == "" {
			return nil, NewError(KindMalformed, "TXF-BLD-110", "output state "+out.LinearID.String()+" has no kind")
		}
		if out.Version == 0 {
			return nil, NewError(KindMalformed, "TXF-BLD-111", "output state "+out.LinearID.String()+" has version 0")
		}
	}

	// A required signer must be a participant of at least one output. For
	// consume-only proposals the input participants are unknown until
	// resolution, so the check is deferred to validation.
	if len(b.outputs) > 0 {
		participants := make(map[string]bool)
		for _, out := range b.outputs {
			for _, name := range out.Participants {
				participants[name] = true
			}
		}
		for _, name := range signers {
			if !participants[name] {
				return nil, NewError(KindMalformed, "TXF-BLD-106", "required signer "+name+" is not a participant of any output")
			}
		}
	}

	inputs := append([]StateRef(nil), b.inputs...)
	sort.Slice(inputs, func(i, j int) bool { return inputs[i].String() < inputs[j].String() })
	for i := 1; i < len(inputs); i++ {
		if inputs[i] == inputs[i-1] {
			return nil, NewError(KindMalformed, "TXF-BLD-107", "duplicate consumed input "+inputs[i].String())
		}
	}

	references := append([]LinkedReference(nil), b.references...)
	sort.Slice(references, func(i, j int) bool { return references[i].String() < references[j].String() })
	for i := 1; i < len(references); i++ {
		if references[i] == references[i-1] {
			return nil, NewError(KindMalformed, "TXF-BLD-108", "duplicate reference "+references[i].String())
		}
	}

	outputs := append([]StateBody(nil), b.outputs...)
	sort.Slice(outputs, func(i, j int) bool { return outputs[i].Ref().String() < outputs[j].Ref().String() })
	for i := 1; i < len(outputs); i++ {
		if outputs[i].Ref() == outputs[i-1].Ref() {
			return nil, NewError(KindMalformed, "TXF-BLD-109", "duplicate output state "+outputs[i].Ref().String())
		}
	}

	p := &Proposal{
		Notary:     b.notary,
		Inputs:     inputs,
		References: references,
		Outputs:    outputs,
		Command:    Command{Action: b.command.Action, RequiredSigners: signers},
	}
	// Reject anything the canonical encoding cannot carry (bad field keys,
	// newlines in values) at build time rather than at signing time.
	if _, err := EncodeProposal(p); err != nil {
		return nil, WrapError(KindMalformed, "TXF-BLD-112", "proposal is not canonically encodable", err)
	}
	return p, nil
}
