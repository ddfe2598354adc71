// Package jws implements the PEAC receipt envelope: a compact three-segment
// Ed25519 JWS (base64url(header).base64url(payload).base64url(signature)),
// its canonical signing input, and decode-without-verify parsing.
package jws

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
)

// DefaultMaxReceiptBytes bounds the total compact-serialization length
// (`max_receipt_bytes`, default 16 KiB).
const DefaultMaxReceiptBytes = 16 * 1024

// Header is the JWS protected header carried by every receipt.
type Header struct {
	Algorithm string `json:"alg"`
	Type      string `json:"typ,omitempty"`
	KeyID     string `json:"kid,omitempty"`
}

// ParsedJWS is the result of decoding a compact token without verifying its
// signature. SigningInput is the exact byte sequence that was (or would be)
// signed: header-segment "." payload-segment, reconstructed from the raw
// wire segments, never from re-marshalled structs.
type ParsedJWS struct {
	Header               Header
	HeaderRaw            []byte
	Payload              []byte
	Signature            []byte
	SigningInput         []byte
	CompactSerialization string
}

// Parse decodes a compact token into its three segments without checking the
// signature. It enforces maxBytes on the raw compact string and the
// three-segment shape; callers run ValidateHeader and signature verification
// separately so each failure maps to its own reason code.
func Parse(compact string, maxBytes int) (*ParsedJWS, error) {
	if maxBytes > 0 && len(compact) > maxBytes {
		return nil, fmt.Errorf("jws: compact serialization exceeds %d bytes", maxBytes)
	}
	parts := strings.Split(compact, ".")
	if len(parts) != 3 {
		return nil, fmt.Errorf("jws: malformed token: expected 3 segments, got %d", len(parts))
	}

	headerBytes, err := base64.RawURLEncoding.DecodeString(parts[0])
	if err != nil {
		return nil, fmt.Errorf("jws: decoding header segment: %w", err)
	}
	var header Header
	if err := json.Unmarshal(headerBytes, &header); err != nil {
		return nil, fmt.Errorf("jws: parsing header: %w", err)
	}

	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return nil, fmt.Errorf("jws: decoding payload segment: %w", err)
	}

	signature, err := base64.RawURLEncoding.DecodeString(parts[2])
	if err != nil {
		return nil, fmt.Errorf("jws: decoding signature segment: %w", err)
	}

	return &ParsedJWS{
		Header:               header,
		HeaderRaw:            headerBytes,
		Payload:              payload,
		Signature:            signature,
		SigningInput:         []byte(parts[0] + "." + parts[1]),
		CompactSerialization: compact,
	}, nil
}

// ValidateHeader checks the header shape PEAC receipts require: EdDSA only,
// a typ matching wirePrefix (e.g. "peac-receipt/"), and a present kid.
func ValidateHeader(header Header, wirePrefix string) error {
	if header.Algorithm != "EdDSA" {
		return fmt.Errorf("jws: unsupported algorithm %q (expected EdDSA)", header.Algorithm)
	}
	if header.Type == "" || !strings.HasPrefix(header.Type, wirePrefix) {
		return fmt.Errorf("jws: invalid typ %q (expected prefix %q)", header.Type, wirePrefix)
	}
	if header.KeyID == "" {
		return fmt.Errorf("jws: missing kid in header")
	}
	return nil
}

// Encode is base64url without padding, the encoding used for every segment.
func Encode(data []byte) string {
	return base64.RawURLEncoding.EncodeToString(data)
}

// Decode reverses Encode.
func Decode(s string) ([]byte, error) {
	return base64.RawURLEncoding.DecodeString(s)
}
