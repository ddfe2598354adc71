package keys

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"golang.org/x/sync/singleflight"

	"github.com/peacframework/receipts/fetch"
)

// DefaultCacheTTL, DefaultCacheCapacity match §6.4 (`jwks_cache_ttl_ms`) and
// §4.7 ("bounded entries, default 1000; LRU eviction").
const (
	DefaultCacheTTL      = 5 * time.Minute
	DefaultCacheCapacity = 1000
)

// DefaultNegativeCacheMin, DefaultNegativeCacheMax bound the jittered
// back-off window installed after a 404, 5xx, or SSRF rejection.
const (
	DefaultNegativeCacheMin = 5 * time.Minute
	DefaultNegativeCacheMax = 10 * time.Minute
)

// ErrNegativeCache is returned while an origin is within its back-off
// window; it carries no further detail, matching the glossary's
// "dir_negative_cache" internal signal. Callers (the verification pipeline)
// map it onto the public key_fetch_failed reason.
var ErrNegativeCache = errors.New("dir_negative_cache")

// ErrKeysetJump is returned when a freshly fetched key set shares no
// thumbprint with the previously cached set for an origin that has already
// been observed once (the TOFU rotation invariant, §4.7).
var ErrKeysetJump = errors.New("dir_keyset_jump")

// Cache is the process-wide JWKS cache: a bounded, TTL-expiring map from
// issuer origin to KeySet, backed by ttlcache.Cache (grounded on
// dc4eu-vc/pkg/trust/cache.go's TrustCache wrapper), plus a singleflight
// group that admits at most one in-flight fetch per origin and a negative
// cache for recently-failed origins.
type Cache struct {
	entries  *ttlcache.Cache[string, *KeySet]
	negative *ttlcache.Cache[string, struct{}]
	group    singleflight.Group
	opts     CacheOptions
}

// CacheOptions configures a Cache.
type CacheOptions struct {
	TTL             time.Duration
	Capacity        uint64
	NegativeMin     time.Duration
	NegativeMax     time.Duration
	FetchOptions    fetch.Options
}

// DefaultCacheOptions returns the §6.4 recommended defaults. FetchOptions.
// Capability is set from fetch.ProbeCapability(), the runtime's one-time
// DNS pre-resolution capability probe (§4.6), rather than left at its
// FullDNSPreresolution zero value — production callers get an explicit
// probed classification, not an accidental iota default.
func DefaultCacheOptions() CacheOptions {
	return CacheOptions{
		TTL:         DefaultCacheTTL,
		Capacity:    DefaultCacheCapacity,
		NegativeMin: DefaultNegativeCacheMin,
		NegativeMax: DefaultNegativeCacheMax,
		FetchOptions: fetch.Options{
			Capability: fetch.ProbeCapability(),
		},
	}
}

// NewCache builds a Cache and starts its background eviction loops. Callers
// should call Close when finished (e.g. at process shutdown) to stop them.
func NewCache(opts CacheOptions) *Cache {
	if opts.TTL == 0 {
		opts.TTL = DefaultCacheTTL
	}
	if opts.Capacity == 0 {
		opts.Capacity = DefaultCacheCapacity
	}
	if opts.NegativeMin == 0 {
		opts.NegativeMin = DefaultNegativeCacheMin
	}
	if opts.NegativeMax == 0 {
		opts.NegativeMax = DefaultNegativeCacheMax
	}

	entries := ttlcache.New[string, *KeySet](
		ttlcache.WithTTL[string, *KeySet](opts.TTL),
		ttlcache.WithCapacity[string, *KeySet](opts.Capacity),
	)
	negative := ttlcache.New[string, struct{}](
		ttlcache.WithCapacity[string, struct{}](opts.Capacity),
	)

	go entries.Start()
	go negative.Start()

	return &Cache{entries: entries, negative: negative, opts: opts}
}

// Close stops the cache's background eviction loops.
func (c *Cache) Close() {
	c.entries.Stop()
	c.negative.Stop()
}

// Get returns the cached KeySet for origin, fetching (with singleflight
// coalescing) if absent or expired. jwksURI is the key-set URI resolved by
// discovery or a pin. previous, if non-nil, is the key set from the last
// successful fetch for this origin (even if since evicted by TTL) and is
// used to evaluate the rotation invariant.
func (c *Cache) Get(ctx context.Context, origin, jwksURI string, previous *KeySet) (*KeySet, error) {
	if item := c.negative.Get(origin); item != nil {
		return nil, ErrNegativeCache
	}

	if item := c.entries.Get(origin); item != nil {
		return item.Value(), nil
	}

	result, err, _ := c.group.Do(origin, func() (any, error) {
		opts := c.opts.FetchOptions
		var etag, lastModified string
		if previous != nil {
			etag, lastModified = previous.ETag, previous.LastModified
		}

		ks, ferr := FetchJWKS(ctx, jwksURI, etag, lastModified, opts)
		if ferr != nil {
			var fe *fetch.Error
			if errors.As(ferr, &fe) {
				if isNegativeCacheable(fe) {
					c.installNegative(origin)
				}
			}
			return nil, ferr
		}
		if ks == nil {
			// 304 Not Modified: refresh the TTL timer on the existing entry.
			if previous != nil {
				c.entries.Set(origin, previous, ttlcache.DefaultTTL)
				return previous, nil
			}
			return nil, fmt.Errorf("keys: 304 received with no prior cached key set for %s", origin)
		}

		if previous != nil && !overlaps(ks.ThumbprintSet(), previous.ThumbprintSet()) {
			return nil, ErrKeysetJump
		}

		c.entries.Set(origin, ks, ttlcache.DefaultTTL)
		return ks, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*KeySet), nil
}

// installNegative records a jittered back-off window for origin.
func (c *Cache) installNegative(origin string) {
	window := c.opts.NegativeMin + time.Duration(rand.Int63n(int64(c.opts.NegativeMax-c.opts.NegativeMin+1)))
	c.negative.Set(origin, struct{}{}, window)
}

func isNegativeCacheable(fe *fetch.Error) bool {
	switch fe.Reason {
	case fetch.ReasonPrivateIP, fetch.ReasonLoopback, fetch.ReasonLinkLocal,
		fetch.ReasonDNSFailure, fetch.ReasonNotHTTPS, fetch.ReasonSchemeDowngrade,
		fetch.ReasonCrossOriginRedirect:
		return true
	case fetch.ReasonNetworkError:
		return true
	}
	return false
}
