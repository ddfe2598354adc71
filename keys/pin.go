// Package keys implements the key resolver and cache (C7): pinned-key
// lookup, JWKS fetch over the SSRF-safe fetch package, a TTL+LRU cache with
// singleflight coalescing, and the trust-on-first-use rotation invariant.
package keys

import "crypto/ed25519"

// PinnedKey anchors a (issuer, kid) pair to a known-good key, either by raw
// public key (offline verification, §4.7 step 1) or by thumbprint alone
// (fetch-and-confirm, §4.7 step 2).
type PinnedKey struct {
	Issuer             string
	KeyID              string
	JWKThumbprintSHA256 string
	PublicKey          ed25519.PublicKey // nil if only the thumbprint is pinned
}

// Source records how a resolved key was obtained, carried into the
// verification report as issuer_key_source.
type Source string

const (
	SourcePinned    Source = "pinned"
	SourceJWKSFetch Source = "jwks_fetch"
)

// Resolved is a key located by Resolve, along with provenance metadata for
// the report builder.
type Resolved struct {
	PublicKey  ed25519.PublicKey
	Source     Source
	Thumbprint string
	// JWKSDigest is set only when this resolution triggered a fresh JWKS
	// fetch (absent on a pinned hit or a cache hit) — the one
	// non-deterministic artifact the report builder must exclude from
	// build_deterministic().
	JWKSDigest string
}
