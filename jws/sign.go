package jws

import (
	"crypto/ed25519"
	"fmt"
	"io"

	"github.com/peacframework/receipts/canon"
)

// DefaultReceiptTyp is the typ header PEAC receipts carry: peac-receipt/<wire-version>.
const DefaultReceiptTyp = "peac-receipt/0.1"

// WireTypePrefix is the prefix ValidateHeader checks typ against.
const WireTypePrefix = "peac-receipt/"

// SigningKey is an Ed25519 private key bound to a key identifier. Fields are
// unexported so a SigningKey can't be logged or copied into a plain struct
// by accident; use the accessor methods.
type SigningKey struct {
	privateKey ed25519.PrivateKey
	keyID      string
}

// NewSigningKey builds a SigningKey from a 64-byte Ed25519 private key.
func NewSigningKey(privateKey ed25519.PrivateKey, keyID string) (*SigningKey, error) {
	if len(privateKey) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("jws: invalid private key size: expected %d, got %d",
			ed25519.PrivateKeySize, len(privateKey))
	}
	if keyID == "" {
		return nil, fmt.Errorf("jws: key ID is required")
	}
	return &SigningKey{privateKey: privateKey, keyID: keyID}, nil
}

// NewSigningKeyFromSeed builds a SigningKey from a 32-byte Ed25519 seed.
func NewSigningKeyFromSeed(seed []byte, keyID string) (*SigningKey, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("jws: invalid seed size: expected %d, got %d",
			ed25519.SeedSize, len(seed))
	}
	if keyID == "" {
		return nil, fmt.Errorf("jws: key ID is required")
	}
	return &SigningKey{privateKey: ed25519.NewKeyFromSeed(seed), keyID: keyID}, nil
}

// KeyID returns the key identifier carried in the kid header on every
// receipt this key signs.
func (k *SigningKey) KeyID() string {
	return k.keyID
}

// PublicKey returns the public half of this signing key.
func (k *SigningKey) PublicKey() ed25519.PublicKey {
	return k.privateKey.Public().(ed25519.PublicKey)
}

// Sign signs payload as given, which is assumed already canonical (the
// caller, e.g. SignClaims, is responsible for that), and produces the
// compact serialization using DefaultReceiptTyp.
func (k *SigningKey) Sign(payload []byte) (string, error) {
	return k.SignWithType(payload, DefaultReceiptTyp)
}

// SignWithType signs already-canonical payload bytes with a custom typ.
// The header itself is canonicalised via canon.Marshal, not json.Marshal,
// so the signing input matches what a verifier reconstructs byte for byte.
func (k *SigningKey) SignWithType(payload []byte, typ string) (string, error) {
	header := Header{Algorithm: "EdDSA", Type: typ, KeyID: k.keyID}

	headerBytes, err := canon.Marshal(header)
	if err != nil {
		return "", fmt.Errorf("jws: canonicalising header: %w", err)
	}

	signingInput := Encode(headerBytes) + "." + Encode(payload)
	signature := ed25519.Sign(k.privateKey, []byte(signingInput))

	return signingInput + "." + Encode(signature), nil
}

// SignClaims canonicalises claims with canon.Marshal (C1) before signing, so
// the signed bytes are the same canonical form a verifier recomputes from
// the decoded claim struct.
func (k *SigningKey) SignClaims(claims any) (string, error) {
	payload, err := canon.Marshal(claims)
	if err != nil {
		return "", fmt.Errorf("jws: canonicalising claims: %w", err)
	}
	return k.Sign(payload)
}

// GenerateSigningKey creates a fresh Ed25519 signing key using crypto/rand.
func GenerateSigningKey(keyID string) (*SigningKey, error) {
	return GenerateSigningKeyWithRand(nil, keyID)
}

// GenerateSigningKeyWithRand creates a fresh Ed25519 signing key using rand
// (crypto/rand.Reader if nil). A deterministic reader yields reproducible
// test keys.
func GenerateSigningKeyWithRand(rand io.Reader, keyID string) (*SigningKey, error) {
	if keyID == "" {
		return nil, fmt.Errorf("jws: key ID is required")
	}
	_, privateKey, err := ed25519.GenerateKey(rand)
	if err != nil {
		return nil, fmt.Errorf("jws: generating key pair: %w", err)
	}
	return &SigningKey{privateKey: privateKey, keyID: keyID}, nil
}
