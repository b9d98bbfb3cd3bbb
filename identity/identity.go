// Package identity provides party identities, key encoding, signing and the
// network directory consulted when assembling a protocol instance.
package identity

import (
	"crypto/ed25519"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/cloudflare/circl/sign/dilithium/mode3"
)

// Party is a network identity entitled to propose, sign and receive states.
//
// Key is the party's public key in "<alg>:<base64>" form. Supported
// encodings:
//   - ed25519:<base64>
//   - dilithium3:<base64>
type Party struct {
	Name     string
	Key      string
	Endpoint string
}

// KeyFromEd25519Public encodes an Ed25519 public key into the party-key string.
func KeyFromEd25519Public(pub ed25519.PublicKey) (string, error) {
	if l := len(pub); l != ed25519.PublicKeySize {
		return "", fmt.Errorf("ed25519 public key must be %d bytes, got %d", ed25519.PublicKeySize, l)
	}
	return "ed25519:" + base64.StdEncoding.EncodeToString(pub), nil
}

// KeyFromDilithium3Public encodes a Dilithium3 public key into the party-key string.
func KeyFromDilithium3Public(pub *mode3.PublicKey) (string, error) {
	if pub == nil {
		return "", fmt.Errorf("missing dilithium3 public key")
	}
	raw, err := pub.MarshalBinary()
	if err != nil {
		return "", err
	}
	return "dilithium3:" + base64.StdEncoding.EncodeToString(raw), nil
}

// PublicKeyBytes returns the algorithm tag and raw public key bytes for a
// party-key string.
func PublicKeyBytes(key string) (alg string, raw []byte, err error) {
	if key == "" {
		return "", nil, fmt.Errorf("missing party key")
	}
	alg, enc, ok := strings.Cut(key, ":")
	if !ok {
		return "", nil, fmt.Errorf("invalid party key encoding")
	}
	raw, err = decodeBase64(enc)
	if err != nil {
		return "", nil, fmt.Errorf("invalid party key base64: %w", err)
	}
	switch alg {
	case "ed25519":
		if len(raw) != ed25519.PublicKeySize {
			return "", nil, fmt.Errorf("invalid ed25519 public key length")
		}
	case "dilithium3":
		var pk mode3.PublicKey
		if err := pk.UnmarshalBinary(raw); err != nil {
			return "", nil, fmt.Errorf("invalid dilithium3 public key: %w", err)
		}
	default:
		return "", nil, fmt.Errorf("unsupported party key algorithm %q", alg)
	}
	return alg, raw, nil
}

// CheckName validates a party name: lowercase/uppercase letters, digits,
// '-' and '_' only.
func CheckName(name string) error {
	if name == "" {
		return fmt.Errorf("party name cannot be empty")
	}
	for _, char := range name {
		if (char >= 'a' && char <= 'z') || (char >= 'A' && char <= 'Z') || (char >= '0' && char <= '9') || char == '-' || char == '_' {
			continue
		}
		return fmt.Errorf("invalid character %q in party name", char)
	}
	return nil
}

func decodeBase64(s string) ([]byte, error) {
	// Prefer standard padded encoding, but accept raw encoding too.
	if b, err := base64.StdEncoding.DecodeString(s); err == nil {
		return b, nil
	}
	return base64.RawStdEncoding.DecodeString(s)
}
