package signing

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"hash"
)

// Algorithm names the keyed-hash function used for webhook signatures.
type Algorithm string

const (
	SHA256 Algorithm = "sha256"
	SHA1   Algorithm = "sha1"
	SHA512 Algorithm = "sha512"
)

// DefaultAlgorithm is used when the caller does not pick one.
const DefaultAlgorithm = SHA256

var ErrUnsupportedAlgorithm = errors.New("unsupported signature algorithm")

// Signer computes and verifies HMAC signatures over canonicalized payloads.
// Both the sender and the receiver recompute the same canonical form, so
// CanonicalJSON is the contract both sides depend on.
type Signer struct {
	algorithm Algorithm
	newHash   func() hash.Hash
}

func NewSigner(alg Algorithm) (*Signer, error) {
	if alg == "" {
		alg = DefaultAlgorithm
	}
	var fn func() hash.Hash
	switch alg {
	case SHA256:
		fn = sha256.New
	case SHA1:
		fn = sha1.New
	case SHA512:
		fn = sha512.New
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedAlgorithm, alg)
	}
	return &Signer{algorithm: alg, newHash: fn}, nil
}

func (s *Signer) Algorithm() Algorithm {
	return s.algorithm
}

// CanonicalJSON serializes a payload deterministically: keys sorted
// lexicographically at every level, slashes and Unicode left unescaped,
// no trailing newline. Signing and verification MUST both use this form.
func CanonicalJSON(payload map[string]any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(payload); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// Sign returns the hex-encoded HMAC of the canonical payload, keyed by secret.
func (s *Signer) Sign(payload map[string]any, secret string) (string, error) {
	canonical, err := CanonicalJSON(payload)
	if err != nil {
		return "", err
	}
	mac := hmac.New(s.newHash, []byte(secret))
	mac.Write(canonical)
	return hex.EncodeToString(mac.Sum(nil)), nil
}

// Verify recomputes the expected signature and compares in constant time.
func (s *Signer) Verify(signature string, payload map[string]any, secret string) bool {
	expected, err := s.Sign(payload, secret)
	if err != nil {
		return false
	}
	return hmac.Equal([]byte(expected), []byte(signature))
}
