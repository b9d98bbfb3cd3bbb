// Package txid provides identifier utilities for txfin artifacts.
//
// Two identifier families are used:
//   - content identifiers: CIDv1 (raw multicodec, sha2-256 multihash) derived
//     from canonical wire bytes; these name transactions and state bodies.
//   - linear identifiers: UUIDs naming a state lineage across versions.
package txid

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"
)

// ForBytes returns the CIDv1 (raw + sha2-256) derived from data.
func ForBytes(data []byte) (cid.Cid, error) {
	sum, err := multihash.Sum(data, multihash.SHA2_256, -1)
	if err != nil {
		return cid.Undef, err
	}
	return cid.NewCidV1(cid.Raw, sum), nil
}

// StringForBytes returns the CIDv1 string for data, or "" on error.
//
// multihash.Sum only errors for invalid inputs; with SHA2_256 and -1 length
// this should be unreachable.
func StringForBytes(data []byte) string {
	id, err := ForBytes(data)
	if err != nil {
		return ""
	}
	return id.String()
}

// NewLinear returns a fresh linear identifier for a new state lineage.
func NewLinear() uuid.UUID {
	return uuid.New()
}

// ParseLinear parses a linear identifier from its canonical string form.
func ParseLinear(s string) (uuid.UUID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, fmt.Errorf("txid: invalid linear identifier %q: %w", s, err)
	}
	return id, nil
}
