package keys

import (
	"context"
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/json"
	"fmt"

	"github.com/peacframework/receipts/fetch"
	"github.com/peacframework/receipts/jws"
)

// DefaultMaxJWKSBytes and DefaultMaxJWKSKeys are the §6.4 recommended
// defaults for key-set documents.
const (
	DefaultMaxJWKSBytes = 64 * 1024
	DefaultMaxJWKSKeys  = 10
)

// JWKS is the standard `{keys: [<jwk>...]}` document.
type JWKS struct {
	Keys []jws.JWK `json:"keys"`
}

// KeySet is a fetched-and-parsed set of Ed25519 public keys indexed by kid,
// alongside the conditional-cache headers needed for revalidation.
type KeySet struct {
	Keys         map[string]ed25519.PublicKey
	Thumbprints  map[string]string // kid -> thumbprint, for the rotation invariant
	ETag         string
	LastModified string
	RawDigest    string // sha256 hex of the raw fetched bytes, used as issuer_jwks_digest
}

// FetchJWKS retrieves and parses a key set from uri, enforcing the
// cardinality and byte-size bounds (§6.1). etag/ifModifiedSince carry
// forward a prior cache entry's conditional headers; a 304 response yields
// (nil, nil) so the caller knows to keep its existing entry.
func FetchJWKS(ctx context.Context, uri, etag, ifModifiedSince string, opts fetch.Options) (*KeySet, error) {
	if opts.MaxBytes == 0 {
		opts.MaxBytes = DefaultMaxJWKSBytes
	}
	res, err := fetch.Get(ctx, uri, etag, ifModifiedSince, opts)
	if err != nil {
		return nil, err
	}
	if res.StatusCode == 304 {
		return nil, nil
	}
	if res.StatusCode != 200 {
		return nil, &fetch.Error{Reason: fetch.ReasonNetworkError, URL: uri,
			Err: fmt.Errorf("unexpected status %d", res.StatusCode)}
	}

	var doc JWKS
	if err := json.Unmarshal(res.Bytes, &doc); err != nil {
		return nil, fmt.Errorf("keys: parsing JWKS document: %w", err)
	}
	if len(doc.Keys) > DefaultMaxJWKSKeys {
		return nil, &fetch.Error{Reason: fetch.ReasonJWKSTooManyKeys, URL: uri}
	}

	ks := &KeySet{
		Keys:         make(map[string]ed25519.PublicKey, len(doc.Keys)),
		Thumbprints:  make(map[string]string, len(doc.Keys)),
		ETag:         res.ETag,
		LastModified: res.LastModified,
	}
	digest := sha256.Sum256(res.Bytes)
	ks.RawDigest = fmt.Sprintf("sha256:%x", digest)

	for _, jwk := range doc.Keys {
		if jwk.KeyType != "OKP" || jwk.Curve != "Ed25519" {
			continue
		}
		pub, err := jwk.PublicKey()
		if err != nil {
			continue
		}
		tp, err := jwk.Thumbprint()
		if err != nil {
			continue
		}
		ks.Keys[jwk.KeyID] = pub
		ks.Thumbprints[jwk.KeyID] = tp
	}
	return ks, nil
}

// ThumbprintSet returns the set of thumbprints in ks, used by the rotation
// invariant to test overlap against a previously cached set.
func (ks *KeySet) ThumbprintSet() map[string]bool {
	set := make(map[string]bool, len(ks.Thumbprints))
	for _, tp := range ks.Thumbprints {
		set[tp] = true
	}
	return set
}

// overlaps reports whether a and b share at least one element.
func overlaps(a, b map[string]bool) bool {
	if len(a) == 0 || len(b) == 0 {
		return true // nothing to compare against yet; first observation always accepted
	}
	for k := range a {
		if b[k] {
			return true
		}
	}
	return false
}
