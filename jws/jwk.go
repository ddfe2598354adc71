package jws

import (
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/base64"
	"fmt"

	"github.com/peacframework/receipts/canon"
)

// JWK is an Ed25519 ("OKP"/Ed25519) JSON Web Key. PEAC receipts only ever use
// this shape; RSA/EC fields from the wider JWK spec are intentionally absent.
type JWK struct {
	KeyType string `json:"kty"`
	Curve   string `json:"crv"`
	X       string `json:"x"`
	KeyID   string `json:"kid,omitempty"`
}

// thumbprintView is the canonical JWK form used for RFC 7638 thumbprints:
// exactly {crv, kty, x}, nothing else, in that field set regardless of
// struct tag order (canon.Marshal re-sorts keys byte-lexicographically).
type thumbprintView struct {
	Crv string `json:"crv"`
	Kty string `json:"kty"`
	X   string `json:"x"`
}

// PublicKeyToJWK converts a raw Ed25519 public key to its JWK representation.
func PublicKeyToJWK(pub ed25519.PublicKey, kid string) (*JWK, error) {
	if len(pub) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("jws: invalid public key length %d (expected %d)", len(pub), ed25519.PublicKeySize)
	}
	return &JWK{
		KeyType: "OKP",
		Curve:   "Ed25519",
		X:       base64.RawURLEncoding.EncodeToString(pub),
		KeyID:   kid,
	}, nil
}

// PublicKey decodes the JWK back to a raw Ed25519 public key, validating
// shape (kty=OKP, crv=Ed25519, 32-byte x after decoding).
func (j *JWK) PublicKey() (ed25519.PublicKey, error) {
	if j.KeyType != "OKP" {
		return nil, fmt.Errorf("jws: unsupported kty %q (expected OKP)", j.KeyType)
	}
	if j.Curve != "Ed25519" {
		return nil, fmt.Errorf("jws: unsupported crv %q (expected Ed25519)", j.Curve)
	}
	raw, err := base64.RawURLEncoding.DecodeString(j.X)
	if err != nil {
		return nil, fmt.Errorf("jws: invalid x encoding: %w", err)
	}
	if len(raw) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("jws: invalid x length %d (expected %d)", len(raw), ed25519.PublicKeySize)
	}
	return ed25519.PublicKey(raw), nil
}

// Thumbprint computes the RFC 7638 JWK thumbprint: SHA-256 over the
// canonical JSON of {crv, kty, x}, base64url without padding.
func (j *JWK) Thumbprint() (string, error) {
	view := thumbprintView{Crv: j.Curve, Kty: j.KeyType, X: j.X}
	canonical, err := canon.Marshal(view)
	if err != nil {
		return "", fmt.Errorf("jws: canonicalising thumbprint view: %w", err)
	}
	sum := sha256.Sum256(canonical)
	return base64.RawURLEncoding.EncodeToString(sum[:]), nil
}

// Thumbprint computes the RFC 7638 thumbprint for a raw Ed25519 public key
// without needing a kid (thumbprints never include kid).
func Thumbprint(pub ed25519.PublicKey) (string, error) {
	jwk, err := PublicKeyToJWK(pub, "")
	if err != nil {
		return "", err
	}
	return jwk.Thumbprint()
}
