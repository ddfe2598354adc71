package keys

import (
	"context"
	"errors"
	"fmt"

	"github.com/peacframework/receipts/fetch"
	"github.com/peacframework/receipts/jws"
)

// ErrKeyNotFound is returned when no pin matches and the policy mode
// forbids network fetch (offline_only with no matching pin).
var ErrKeyNotFound = errors.New("key_not_found")

// Resolver implements the §4.7 three-tier resolution order for a
// (issuer, kid) pair, backed by a shared Cache.
type Resolver struct {
	Cache *Cache
}

// NewResolver builds a Resolver over the given Cache.
func NewResolver(cache *Cache) *Resolver {
	return &Resolver{Cache: cache}
}

// Mode mirrors VerifierPolicy.Mode (discovery package) without importing it,
// keeping keys free of a dependency on discovery.
type Mode string

const (
	ModeOfflineOnly      Mode = "offline_only"
	ModeOfflinePreferred Mode = "offline_preferred"
	ModeNetworkAllowed   Mode = "network_allowed"
)

func allowsFetch(mode Mode) bool {
	return mode != ModeOfflineOnly
}

// Resolve locates the verification key for (issuer, kid) following §4.7:
//  1. A pin carrying the raw public key is used directly (key_source=pinned).
//  2. A pin carrying only a thumbprint triggers a fetch-and-confirm.
//  3. With no pin at all, an unpinned fetch selects by kid.
//
// jwksURI is the key-set location resolved by discovery (or a pinned URI);
// it is required whenever step 2 or 3 needs to fetch.
func (r *Resolver) Resolve(ctx context.Context, issuer, kid string, pin *PinnedKey, jwksURI string, mode Mode, previous *KeySet) (*Resolved, error) {
	if pin != nil && pin.PublicKey != nil {
		tp, err := jws.Thumbprint(pin.PublicKey)
		if err != nil {
			return nil, fmt.Errorf("keys: computing pinned thumbprint: %w", err)
		}
		return &Resolved{PublicKey: pin.PublicKey, Source: SourcePinned, Thumbprint: tp}, nil
	}

	if !allowsFetch(mode) {
		return nil, ErrKeyNotFound
	}
	if jwksURI == "" {
		return nil, ErrKeyNotFound
	}

	cacheHit := r.Cache.entries.Has(issuer)
	ks, err := r.Cache.Get(ctx, issuer, jwksURI, previous)
	if err != nil {
		return nil, err
	}

	pub, ok := ks.Keys[kid]
	if !ok {
		return nil, ErrKeyNotFound
	}
	tp := ks.Thumbprints[kid]

	if pin != nil && pin.JWKThumbprintSHA256 != "" {
		if tp != pin.JWKThumbprintSHA256 {
			return nil, fmt.Errorf("keys: fetched thumbprint %s does not match pinned %s", tp, pin.JWKThumbprintSHA256)
		}
	}

	resolved := &Resolved{PublicKey: pub, Source: SourceJWKSFetch, Thumbprint: tp}
	if !cacheHit && (previous == nil || previous.RawDigest != ks.RawDigest) {
		resolved.JWKSDigest = ks.RawDigest
	}
	return resolved, nil
}

// MapFetchError translates a fetch/cache-layer error into the §7 closed
// reason-code family key_fetch_* or key_not_found, the mapping the
// verification pipeline (C9, check 7) applies.
func MapFetchError(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, ErrKeyNotFound) {
		return "key_not_found"
	}
	if errors.Is(err, ErrNegativeCache) {
		return "key_fetch_failed"
	}
	if errors.Is(err, ErrKeysetJump) {
		return "key_fetch_failed"
	}
	var fe *fetch.Error
	if errors.As(err, &fe) {
		switch fe.Reason {
		case fetch.ReasonTimeout:
			return "key_fetch_timeout"
		case fetch.ReasonPrivateIP, fetch.ReasonLoopback, fetch.ReasonLinkLocal,
			fetch.ReasonNotHTTPS, fetch.ReasonSchemeDowngrade, fetch.ReasonCrossOriginRedirect,
			fetch.ReasonDNSFailure, fetch.ReasonInvalidURL:
			return "key_fetch_blocked"
		case fetch.ReasonJWKSTooManyKeys:
			return "jwks_too_many_keys"
		case fetch.ReasonResponseTooLarge:
			return "jwks_too_large"
		default:
			return "key_fetch_failed"
		}
	}
	return "key_fetch_failed"
}
