package tx

import (
	"encoding/base64"
	"strconv"

	"xdao.co/txfin/identity"
	"xdao.co/txfin/txid"
	"xdao.co/txfin/txwire"
)

func identitySignature(alg, hashAlg, b64 string) identity.Signature {
	return identity.Signature{Alg: alg, HashAlg: hashAlg, B64: b64}
}

// DecodeState parses canonical state body bytes.
func DecodeState(data []byte) (StateBody, error) {
	doc, err := txwire.Parse(data)
	if err != nil {
		return StateBody{}, WrapError(KindWire, "TXF-ENC-201", "state body does not parse", err)
	}
	if doc.Type != txwire.TypeState {
		return StateBody{}, NewError(KindWire, "TXF-ENC-202", "expected STATE document, got "+doc.Type)
	}
	return stateFromDoc(doc)
}

func stateFromDoc(doc *txwire.Document) (StateBody, error) {
	var s StateBody
	s.Kind = doc.Pair("META", "Kind")
	if s.Kind == "" {
		return StateBody{}, NewError(KindWire, "TXF-ENC-203", "state body missing Kind")
	}
	linear, err := txid.ParseLinear(doc.Pair("META", "Linear-ID"))
	if err != nil {
		return StateBody{}, WrapError(KindWire, "TXF-ENC-204", "state body has invalid Linear-ID", err)
	}
	s.LinearID = linear
	ver, err := strconv.ParseUint(doc.Pair("META", "Version"), 10, 64)
	if err != nil || ver == 0 {
		return StateBody{}, NewError(KindWire, "TXF-ENC-205", "state body has invalid Version")
	}
	s.Version = ver

	names, err := indexedValues(doc, "PARTICIPANTS", "Party")
	if err != nil {
		return StateBody{}, err
	}
	s.Participants = names

	fields := doc.Sections["FIELDS"].Pairs
	s.Fields = make(map[string]string, len(fields))
	for k, v := range fields {
		s.Fields[k] = v
	}
	return s, nil
}

// DecodeProposal parses canonical proposal bytes.
func DecodeProposal(data []byte) (*Proposal, error) {
	doc, err := txwire.Parse(data)
	if err != nil {
		return nil, WrapError(KindWire, "TXF-ENC-211", "proposal does not parse", err)
	}
	if doc.Type != txwire.TypeProposal {
		return nil, NewError(KindWire, "TXF-ENC-212", "expected PROPOSAL document, got "+doc.Type)
	}
	return proposalFromDoc(doc)
}

func proposalFromDoc(doc *txwire.Document) (*Proposal, error) {
	p := &Proposal{
		Notary:  doc.Pair("META", "Notary"),
		Command: Command{Action: doc.Pair("META", "Command")},
	}
	if p.Notary == "" {
		return nil, NewError(KindWire, "TXF-ENC-213", "proposal missing Notary")
	}
	if p.Command.Action == "" {
		return nil, NewError(KindWire, "TXF-ENC-214", "proposal missing Command")
	}
	signers, err := indexedMetaValues(doc, "Signer")
	if err != nil {
		return nil, err
	}
	if len(signers) == 0 {
		return nil, NewError(KindWire, "TXF-ENC-215", "proposal names no required signers")
	}
	p.Command.RequiredSigners = signers

	inputStrs, err := indexedValues(doc, "INPUTS", "Input")
	if err != nil {
		return nil, err
	}
	for _, s := range inputStrs {
		ref, err := ParseStateRef(s)
		if err != nil {
			return nil, err
		}
		p.Inputs = append(p.Inputs, ref)
	}

	refStrs, err := indexedValues(doc, "REFERENCES", "Reference")
	if err != nil {
		return nil, err
	}
	for _, s := range refStrs {
		ref, err := ParseLinkedReference(s)
		if err != nil {
			return nil, err
		}
		p.References = append(p.References, ref)
	}

	outStrs, err := indexedValues(doc, "OUTPUTS", "Output")
	if err != nil {
		return nil, err
	}
	for _, s := range outStrs {
		raw, err := base64.StdEncoding.DecodeString(s)
		if err != nil {
			return nil, WrapError(KindWire, "TXF-ENC-216", "output state is not valid base64", err)
		}
		out, err := DecodeState(raw)
		if err != nil {
			return nil, err
		}
		p.Outputs = append(p.Outputs, out)
	}

	if len(p.Inputs) == 0 && len(p.Outputs) == 0 {
		return nil, NewError(KindWire, "TXF-ENC-217", "proposal has neither inputs nor outputs")
	}
	return p, nil
}

// DecodeSignedProposal parses canonical transaction bytes that must not yet
// carry a certificate.
func DecodeSignedProposal(data []byte) (*SignedProposal, error) {
	sp, cert, err := decodeTransaction(data)
	if err != nil {
		return nil, err
	}
	if cert != nil {
		return nil, NewError(KindWire, "TXF-ENC-221", "unexpected certificate on unnotarized proposal")
	}
	return sp, nil
}

// DecodeFinalized parses canonical transaction bytes carrying a complete
// notarization certificate.
func DecodeFinalized(data []byte) (*FinalizedTransaction, error) {
	sp, cert, err := decodeTransaction(data)
	if err != nil {
		return nil, err
	}
	if cert == nil {
		return nil, NewError(KindWire, "TXF-ENC-222", "transaction carries no certificate")
	}
	return &FinalizedTransaction{SignedProposal: *sp, Certificate: *cert}, nil
}

func decodeTransaction(data []byte) (*SignedProposal, *Certificate, error) {
	doc, err := txwire.Parse(data)
	if err != nil {
		return nil, nil, WrapError(KindWire, "TXF-ENC-223", "transaction does not parse", err)
	}
	if doc.Type != txwire.TypeTransaction {
		return nil, nil, NewError(KindWire, "TXF-ENC-224", "expected TRANSACTION document, got "+doc.Type)
	}
	p, err := proposalFromDoc(doc)
	if err != nil {
		return nil, nil, err
	}

	sigStrs, err := indexedValues(doc, "SIGNATURES", "Sig")
	if err != nil {
		return nil, nil, err
	}
	sp := &SignedProposal{Proposal: *p}
	for _, s := range sigStrs {
		ps, err := ParsePartialSignature(s)
		if err != nil {
			return nil, nil, err
		}
		sp.Sigs = append(sp.Sigs, ps)
	}

	certPairs := doc.Sections["CERTIFICATE"].Pairs
	if len(certPairs) == 0 {
		return sp, nil, nil
	}
	cert := &Certificate{
		TxID:   doc.Pair("CERTIFICATE", "Tx-ID"),
		Notary: doc.Pair("CERTIFICATE", "Notary"),
		Sig: identitySignature(
			doc.Pair("CERTIFICATE", "Sig-Alg"),
			doc.Pair("CERTIFICATE", "Hash-Alg"),
			doc.Pair("CERTIFICATE", "Signature"),
		),
	}
	if cert.TxID == "" || cert.Notary == "" || cert.Sig.Alg == "" || cert.Sig.HashAlg == "" || cert.Sig.B64 == "" {
		return nil, nil, NewError(KindWire, "TXF-ENC-225", "incomplete certificate")
	}
	return sp, cert, nil
}

// indexedValues reads the sequential "<prefix>-0001", "<prefix>-0002", ...
// keys from a section, rejecting gaps and stray keys.
func indexedValues(doc *txwire.Document, section, prefix string) ([]string, error) {
	pairs := doc.Sections[section].Pairs
	var out []string
	for i := 0; ; i++ {
		v := pairs[fmtIndexKey(prefix, i)]
		if v == "" {
			break
		}
		out = append(out, v)
	}
	if len(out) != len(pairs) {
		return nil, NewError(KindWire, "TXF-ENC-231", "section "+section+" has non-sequential or unknown keys")
	}
	return out, nil
}

// indexedMetaValues reads sequential "<prefix>-NNNN" keys from META, where
// other fixed keys also live.
func indexedMetaValues(doc *txwire.Document, prefix string) ([]string, error) {
	pairs := doc.Sections["META"].Pairs
	var out []string
	for i := 0; ; i++ {
		v := pairs[fmtIndexKey(prefix, i)]
		if v == "" {
			break
		}
		out = append(out, v)
	}
	return out, nil
}
