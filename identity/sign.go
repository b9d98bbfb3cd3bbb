package identity

import (
	"crypto/ed25519"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"fmt"
	"io"

	"github.com/cloudflare/circl/sign/dilithium/mode3"
	"golang.org/x/crypto/sha3"
)

// Signature is a detached signature over the digest of a message.
type Signature struct {
	Alg     string // ed25519 | dilithium3
	HashAlg string // sha256 | sha512 | sha3-256
	B64     string // base64 signature bytes
}

// Signer holds a party's private key material.
type Signer struct {
	party   Party
	hashAlg string

	edPriv  ed25519.PrivateKey
	d3Priv  *mode3.PrivateKey
}

// NewEd25519Signer builds a signer from an Ed25519 seed.
func NewEd25519Signer(name string, seed []byte) (*Signer, error) {
	if err := CheckName(name); err != nil {
		return nil, err
	}
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("ed25519 seed must be %d bytes, got %d", ed25519.SeedSize, len(seed))
	}
	priv := ed25519.NewKeyFromSeed(seed)
	key, err := KeyFromEd25519Public(priv.Public().(ed25519.PublicKey))
	if err != nil {
		return nil, err
	}
	return &Signer{
		party:   Party{Name: name, Key: key},
		hashAlg: "sha256",
		edPriv:  priv,
	}, nil
}

// NewDilithium3Signer builds a post-quantum signer with a fresh keypair.
func NewDilithium3Signer(name string, rand io.Reader) (*Signer, error) {
	if err := CheckName(name); err != nil {
		return nil, err
	}
	pub, priv, err := mode3.GenerateKey(rand)
	if err != nil {
		return nil, err
	}
	key, err := KeyFromDilithium3Public(pub)
	if err != nil {
		return nil, err
	}
	return &Signer{
		party:   Party{Name: name, Key: key},
		hashAlg: "sha256",
		d3Priv:  priv,
	}, nil
}

// WithHashAlg selects the digest algorithm used when signing.
// hashAlg must be one of: sha256, sha512, sha3-256.
func (s *Signer) WithHashAlg(hashAlg string) (*Signer, error) {
	if _, err := digestFor(hashAlg, nil); err != nil {
		return nil, err
	}
	out := *s
	out.hashAlg = hashAlg
	return &out, nil
}

func (s *Signer) Party() Party { return s.party }
func (s *Signer) Name() string { return s.party.Name }

// Sign signs the digest of message with the signer's key.
func (s *Signer) Sign(message []byte) (Signature, error) {
	digest, err := digestFor(s.hashAlg, message)
	if err != nil {
		return Signature{}, err
	}
	switch {
	case s.edPriv != nil:
		sig := ed25519.Sign(s.edPriv, digest)
		return Signature{Alg: "ed25519", HashAlg: s.hashAlg, B64: base64.StdEncoding.EncodeToString(sig)}, nil
	case s.d3Priv != nil:
		sig := make([]byte, mode3.SignatureSize)
		mode3.SignTo(s.d3Priv, digest, sig)
		return Signature{Alg: "dilithium3", HashAlg: s.hashAlg, B64: base64.StdEncoding.EncodeToString(sig)}, nil
	default:
		return Signature{}, fmt.Errorf("signer has no private key")
	}
}

// Verify checks sig against message for the party identified by key.
func Verify(key string, message []byte, sig Signature) error {
	alg, raw, err := PublicKeyBytes(key)
	if err != nil {
		return err
	}
	if alg != sig.Alg {
		return fmt.Errorf("party key algorithm %q does not match signature algorithm %q", alg, sig.Alg)
	}
	digest, err := digestFor(sig.HashAlg, message)
	if err != nil {
		return err
	}
	sigBytes, err := decodeBase64(sig.B64)
	if err != nil {
		return fmt.Errorf("invalid signature base64: %w", err)
	}
	switch alg {
	case "ed25519":
		if len(sigBytes) != ed25519.SignatureSize {
			return fmt.Errorf("invalid ed25519 signature length")
		}
		if !ed25519.Verify(ed25519.PublicKey(raw), digest, sigBytes) {
			return fmt.Errorf("signature invalid")
		}
		return nil
	case "dilithium3":
		if len(sigBytes) != mode3.SignatureSize {
			return fmt.Errorf("invalid dilithium3 signature length")
		}
		var pk mode3.PublicKey
		if err := pk.UnmarshalBinary(raw); err != nil {
			return fmt.Errorf("invalid dilithium3 public key: %w", err)
		}
		if !mode3.Verify(&pk, digest, sigBytes) {
			return fmt.Errorf("signature invalid")
		}
		return nil
	default:
		return fmt.Errorf("unsupported signature algorithm %q", alg)
	}
}

func digestFor(hashAlg string, message []byte) ([]byte, error) {
	switch hashAlg {
	case "sha256":
		s := sha256.Sum256(message)
		return s[:], nil
	case "sha512":
		s := sha512.Sum512(message)
		return s[:], nil
	case "sha3-256":
		s := sha3.Sum256(message)
		return s[:], nil
	default:
		return nil, fmt.Errorf("unsupported hash algorithm: %q", hashAlg)
	}
}
