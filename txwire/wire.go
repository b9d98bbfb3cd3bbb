package txwire

// Document types. The type selects the framing and the canonical section
// order; unknown types are rejected by Render and Parse.
const (
	TypeState       = "STATE"
	TypeProposal    = "PROPOSAL"
	TypeTransaction = "TRANSACTION"
)

// sectionOrder defines the canonical section order per document type.
var sectionOrder = map[string][]string{
	TypeState:       {"META", "PARTICIPANTS", "FIELDS"},
	TypeProposal:    {"META", "INPUTS", "REFERENCES", "OUTPUTS"},
	TypeTransaction: {"META", "INPUTS", "REFERENCES", "OUTPUTS", "SIGNATURES", "CERTIFICATE"},
}

// Document is the in-memory representation of a wire-text artifact.
//
// Sections maps section name to its key-value pairs. Every section named in
// the type's canonical order must be present in a parsed document; empty
// sections are represented by empty (or nil) maps when rendering.
type Document struct {
	Type     string
	Sections map[string]Section

	raw []byte // canonical bytes, set by Parse
}

type Section struct {
	Name  string
	Pairs map[string]string
}

// Raw returns the canonical bytes this document was parsed from, or nil for
// documents constructed in memory. Render constructed documents to obtain
// canonical bytes.
func (d *Document) Raw() []byte {
	if d == nil {
		return nil
	}
	return d.raw
}

// Pair returns the value for key in the named section, or "".
func (d *Document) Pair(section, key string) string {
	if d == nil {
		return ""
	}
	sec, ok := d.Sections[section]
	if !ok {
		return ""
	}
	return sec.Pairs[key]
}

func preambleFor(docType string) string {
	return "-----BEGIN TXFIN " + docType + "-----"
}

func postambleFor(docType string) string {
	return "-----END TXFIN " + docType + "-----"
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] > 0x7F {
			return false
		}
	}
	return true
}
