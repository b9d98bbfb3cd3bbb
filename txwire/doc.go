// Package txwire implements the canonical wire-text serialization used for
// every artifact exchanged between parties: state bodies, proposals and
// finalized transactions.
//
// The format is a framed, sectioned key-value text document. Canonical form
// is enforced on both ends: Render only produces canonical bytes, and Parse
// rejects (never repairs) non-canonical input. Content identifiers are
// derived from canonical bytes, so two parties that agree on the content of
// an artifact always agree on its identifier.
//
// Canonical rules (v1):
//   - UTF-8, LF line endings, no BOM, no trailing whitespace on any line
//   - exact preamble/postamble framing, no trailing newline after postamble
//   - fixed section order per document type; every section present
//   - "Key: Value" pairs, ASCII keys sorted lexicographically, no duplicates
//   - values are non-empty single lines with no leading or trailing spaces
package txwire
