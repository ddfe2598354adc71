package discovery

import (
	"crypto/ed25519"
	"strings"
)

// Mode mirrors keys.Mode; duplicated here (rather than imported) so
// discovery stays free of a dependency on keys, matching the dependency
// graph in SPEC_FULL.md (§0): discovery and keys are siblings, not a chain.
type Mode string

const (
	ModeOfflineOnly      Mode = "offline_only"
	ModeOfflinePreferred Mode = "offline_preferred"
	ModeNetworkAllowed   Mode = "network_allowed"
)

// Limits mirrors the §6.4 configurable-limits table. NewDefaultLimits returns
// the documented defaults; zero fields of a caller-built Limits are left as
// they are.
type Limits struct {
	MaxReceiptBytes   int
	MaxJWKSBytes      int
	MaxJWKSKeys       int
	MaxRedirects      int
	FetchTimeoutMS    int
	MaxExtensionBytes int
	JWKSCacheTTLMS    int
	ClockSkewS        int
	NegativeCacheMinMS int
	NegativeCacheMaxMS int
}

// NewDefaultLimits returns the §6.4 recommended defaults.
func NewDefaultLimits() Limits {
	return Limits{
		MaxReceiptBytes:    16 * 1024,
		MaxJWKSBytes:       64 * 1024,
		MaxJWKSKeys:        10,
		MaxRedirects:       0,
		FetchTimeoutMS:     5000,
		MaxExtensionBytes:  4 * 1024,
		JWKSCacheTTLMS:     300_000,
		ClockSkewS:         120,
		NegativeCacheMinMS: 300_000,
		NegativeCacheMaxMS: 600_000,
	}
}

// NetworkSecurity carries the SSRF-relevant fetch knobs a VerifierPolicy
// pins down for its collaborators (fetch.Options, keys.CacheOptions).
type NetworkSecurity struct {
	AllowCrossOriginRedirects bool              `validate:"-"`
	DNSFailureBehavior        string            `validate:"omitempty,oneof=block fail"`
	AllowedPorts              map[string]bool
}

// Pin is a policy-level pinned key entry: the (issuer, kid) anchor plus
// either the raw key or its thumbprint (§3.1 "Pinned key").
type Pin struct {
	Issuer              string
	KeyID               string
	JWKThumbprintSHA256 string
	PublicKey           ed25519.PublicKey
}

// VerifierPolicy is the top-level trust configuration a relying party
// supplies to the verification pipeline (§3.1).
type VerifierPolicy struct {
	PolicyVersion   string           `validate:"required"`
	Mode            Mode             `validate:"required,oneof=offline_only offline_preferred network_allowed"`
	IssuerAllowlist []string         `validate:"omitempty,dive,url"`
	PinnedKeys      []Pin
	Limits          Limits
	NetworkSecurity NetworkSecurity
}

// normalizeOrigin strips a trailing slash so "https://issuer.example" and
// "https://issuer.example/" compare equal.
func normalizeOrigin(s string) string {
	return strings.TrimSuffix(s, "/")
}

// IssuerAllowed reports whether issuer passes the policy's allow-list
// (§4.5 "Issuer-trust evaluation"). An empty allow-list permits any issuer;
// a non-empty one requires an exact normalised-origin match.
func (p *VerifierPolicy) IssuerAllowed(issuer string) bool {
	if len(p.IssuerAllowlist) == 0 {
		return true
	}
	target := normalizeOrigin(issuer)
	for _, allowed := range p.IssuerAllowlist {
		if normalizeOrigin(allowed) == target {
			return true
		}
	}
	return false
}

// FindPin returns the pin matching (issuer, kid), if any.
func (p *VerifierPolicy) FindPin(issuer, kid string) *Pin {
	target := normalizeOrigin(issuer)
	for i := range p.PinnedKeys {
		pin := &p.PinnedKeys[i]
		if normalizeOrigin(pin.Issuer) == target && pin.KeyID == kid {
			return pin
		}
	}
	return nil
}
