package tx

import (
	"encoding/base64"
	"sort"
	"strconv"

	"xdao.co/txfin/txwire"
)

// EncodeState renders a state body to canonical wire bytes. The body's
// content identifier is the CIDv1 of these bytes.
func EncodeState(s StateBody) ([]byte, error) {
	meta := map[string]string{
		"Kind":      s.Kind,
		"Linear-ID": s.LinearID.String(),
		"Version":   strconv.FormatUint(s.Version, 10),
	}

	names := append([]string(nil), s.Participants...)
	sort.Strings(names)
	participants := make(map[string]string, len(names))
	prev := ""
	n := 0
	for _, name := range names {
		if name == prev {
			continue
		}
		prev = name
		participants[fmtIndexKey("Party", n)] = name
		n++
	}

	fields := make(map[string]string, len(s.Fields))
	for k, v := range s.Fields {
		fields[k] = v
	}

	doc := txwire.Document{
		Type: txwire.TypeState,
		Sections: map[string]txwire.Section{
			"META":         {Name: "META", Pairs: meta},
			"PARTICIPANTS": {Name: "PARTICIPANTS", Pairs: participants},
			"FIELDS":       {Name: "FIELDS", Pairs: fields},
		},
	}
	b, err := txwire.Render(doc)
	if err != nil {
		return nil, WrapError(KindWire, "TXF-ENC-101", "state body is not canonically encodable", err)
	}
	return b, nil
}

func proposalSections(p *Proposal) (map[string]txwire.Section, error) {
	meta := map[string]string{
		"Command": p.Command.Action,
		"Notary":  p.Notary,
	}
	signers := append([]string(nil), p.Command.RequiredSigners...)
	sort.Strings(signers)
	for i, name := range signers {
		meta[fmtIndexKey("Signer", i)] = name
	}

	inputs := make(map[string]string, len(p.Inputs))
	refs := append([]StateRef(nil), p.Inputs...)
	sort.Slice(refs, func(i, j int) bool { return refs[i].String() < refs[j].String() })
	for i, ref := range refs {
		inputs[fmtIndexKey("Input", i)] = ref.String()
	}

	references := make(map[string]string, len(p.References))
	lrefs := append([]LinkedReference(nil), p.References...)
	sort.Slice(lrefs, func(i, j int) bool { return lrefs[i].String() < lrefs[j].String() })
	for i, ref := range lrefs {
		references[fmtIndexKey("Reference", i)] = ref.String()
	}

	outputs := make(map[string]string, len(p.Outputs))
	outs := append([]StateBody(nil), p.Outputs...)
	sort.Slice(outs, func(i, j int) bool { return outs[i].Ref().String() < outs[j].Ref().String() })
	for i, out := range outs {
		b, err := EncodeState(out)
		if err != nil {
			return nil, err
		}
		outputs[fmtIndexKey("Output", i)] = base64.StdEncoding.EncodeToString(b)
	}

	return map[string]txwire.Section{
		"META":       {Name: "META", Pairs: meta},
		"INPUTS":     {Name: "INPUTS", Pairs: inputs},
		"REFERENCES": {Name: "REFERENCES", Pairs: references},
		"OUTPUTS":    {Name: "OUTPUTS", Pairs: outputs},
	}, nil
}

// EncodeProposal renders a proposal to canonical wire bytes. These bytes are
// the signing scope for every required signer and the preimage of TxID.
func EncodeProposal(p *Proposal) ([]byte, error) {
	sections, err := proposalSections(p)
	if err != nil {
		return nil, err
	}
	b, err := txwire.Render(txwire.Document{Type: txwire.TypeProposal, Sections: sections})
	if err != nil {
		return nil, WrapError(KindWire, "TXF-ENC-102", "proposal is not canonically encodable", err)
	}
	return b, nil
}

func transactionDoc(sp *SignedProposal, cert *Certificate) (txwire.Document, error) {
	sections, err := proposalSections(&sp.Proposal)
	if err != nil {
		return txwire.Document{}, err
	}

	sigs := append([]PartialSignature(nil), sp.Sigs...)
	sort.Slice(sigs, func(i, j int) bool { return sigs[i].Signer < sigs[j].Signer })
	sigPairs := make(map[string]string, len(sigs))
	for i, ps := range sigs {
		sigPairs[fmtIndexKey("Sig", i)] = FormatPartialSignature(ps)
	}
	sections["SIGNATURES"] = txwire.Section{Name: "SIGNATURES", Pairs: sigPairs}

	certPairs := map[string]string{}
	if cert != nil {
		certPairs = map[string]string{
			"Hash-Alg":  cert.Sig.HashAlg,
			"Notary":    cert.Notary,
			"Sig-Alg":   cert.Sig.Alg,
			"Signature": cert.Sig.B64,
			"Tx-ID":     cert.TxID,
		}
	}
	sections["CERTIFICATE"] = txwire.Section{Name: "CERTIFICATE", Pairs: certPairs}

	return txwire.Document{Type: txwire.TypeTransaction, Sections: sections}, nil
}

// EncodeSignedProposal renders a signed-but-unnotarized proposal.
func EncodeSignedProposal(sp *SignedProposal) ([]byte, error) {
	doc, err := transactionDoc(sp, nil)
	if err != nil {
		return nil, err
	}
	b, err := txwire.Render(doc)
	if err != nil {
		return nil, WrapError(KindWire, "TXF-ENC-103", "signed proposal is not canonically encodable", err)
	}
	return b, nil
}

// EncodeFinalized renders a finalized transaction, certificate included.
func EncodeFinalized(f *FinalizedTransaction) ([]byte, error) {
	doc, err := transactionDoc(&f.SignedProposal, &f.Certificate)
	if err != nil {
		return nil, err
	}
	b, err := txwire.Render(doc)
	if err != nil {
		return nil, WrapError(KindWire, "TXF-ENC-104", "finalized transaction is not canonically encodable", err)
	}
	return b, nil
}
