// Package pathcache memoizes control-plane path lookups per destination
// AS so the data path never blocks on a daemon RPC more than once per
// destination.
package pathcache

import (
	"context"
	"fmt"
	"net/netip"
	"sync"
	"time"

	"github.com/netsys-lab/scion-ip-translator/internal/daemon"
	"github.com/netsys-lab/scion-ip-translator/internal/scionaddr"
)

// DaemonClient is the subset of *daemon.Client the cache needs. New
// accepts this interface rather than the concrete client so the cache's
// lookup and memoization logic can be exercised against a fake in
// tests, in this package and elsewhere, without a live gRPC server.
type DaemonClient interface {
	AS(ctx context.Context, isdAs uint64) (daemon.ASInfo, error)
	Paths(ctx context.Context, source, destination uint64, refresh, hidden bool) ([]daemon.Path, error)
}

// PathEntry is one resolved path: the raw SCION path-header blob (empty
// for an intra-AS path) and the underlay address of the first-hop
// border router.
type PathEntry struct {
	Raw     []byte
	NextHop netip.AddrPort
}

// IsEmptyPath reports whether the entry represents a same-AS path with
// no SCION path header (scitun.py's EmptyPath()).
func (p PathEntry) IsEmptyPath() bool {
	return len(p.Raw) == 0
}

// Cache is a memoizing map from destination IA to its resolved paths,
// backed by a daemon.Client for cache misses. The zero value is not
// usable; construct with New.
type Cache struct {
	client   DaemonClient
	localIA  scionaddr.IA
	onLookup func(hit bool)
	onRPC    func(seconds float64)

	mu    sync.Mutex
	paths map[uint64][]PathEntry
}

// Option configures optional Cache behavior at construction time.
type Option func(*Cache)

// WithLookupObserver registers a callback invoked on every Lookup with
// whether the result was served from the memoized map (hit) or
// required a daemon RPC (miss). Used to feed path-cache hit/miss
// Prometheus counters without coupling this package to metrics.
func WithLookupObserver(fn func(hit bool)) Option {
	return func(c *Cache) { c.onLookup = fn }
}

// WithLatencyObserver registers a callback invoked with the duration,
// in seconds, of every Paths RPC issued on a cache miss. Used to feed
// the control-plane RPC latency histogram without coupling this
// package to metrics.
func WithLatencyObserver(fn func(seconds float64)) Option {
	return func(c *Cache) { c.onRPC = fn }
}

// New creates a Cache backed by client, resolving the local AS
// immediately (mirroring scitun.py's Daemon.__init__, which fetches
// local_ia eagerly at construction time). client is normally a
// *daemon.Client; tests may pass any other DaemonClient implementation.
func New(ctx context.Context, client DaemonClient, opts ...Option) (*Cache, error) {
	return newCache(ctx, client, opts...)
}

func newCache(ctx context.Context, client DaemonClient, opts ...Option) (*Cache, error) {
	info, err := client.AS(ctx, 0)
	if err != nil {
		return nil, fmt.Errorf("pathcache: resolve local AS: %w", err)
	}
	c := &Cache{
		client:  client,
		localIA: scionaddr.IAFromUint64(info.IsdAs),
		paths:   make(map[uint64][]PathEntry),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// LocalIA returns the translator's own ISD-ASN.
func (c *Cache) LocalIA() scionaddr.IA {
	return c.localIA
}

// Lookup returns the first path to dst, querying the daemon on the
// first lookup for a given destination and memoizing the result
// (including an empty result) for all subsequent lookups. The bool
// return is false only when the daemon returned zero paths for dst;
// it does not distinguish a cache hit from a cache miss.
func (c *Cache) Lookup(ctx context.Context, dst scionaddr.IA) (PathEntry, bool, error) {
	key := dst.Uint64()

	c.mu.Lock()
	entries, cached := c.paths[key]
	c.mu.Unlock()

	if c.onLookup != nil {
		c.onLookup(cached)
	}

	if !cached {
		var err error
		entries, err = c.resolve(ctx, key)
		if err != nil {
			return PathEntry{}, false, err
		}

		c.mu.Lock()
		c.paths[key] = entries
		c.mu.Unlock()
	}

	if len(entries) == 0 {
		return PathEntry{}, false, nil
	}
	return entries[0], true, nil
}

// resolve issues the Paths RPC and decodes each returned path into a
// PathEntry, matching scitun.py's split_addr (host[:port] parsing of
// the daemon's interface.address.address field).
func (c *Cache) resolve(ctx context.Context, dstIA uint64) ([]PathEntry, error) {
	start := time.Now()
	raw, err := c.client.Paths(ctx, c.localIA.Uint64(), dstIA, false, false)
	if c.onRPC != nil {
		c.onRPC(time.Since(start).Seconds())
	}
	if err != nil {
		return nil, fmt.Errorf("pathcache: query paths for %s: %w", scionaddr.IAFromUint64(dstIA), err)
	}

	entries := make([]PathEntry, 0, len(raw))
	for _, p := range raw {
		// An empty-path entry (p.Raw == nil, same-AS delivery) carries no
		// next hop of its own; scitun.py's split_addr never sees a
		// non-empty address string for it. Leave NextHop at its zero
		// value rather than calling netip.ParseAddrPort("").
		if p.Interface.Address == "" {
			entries = append(entries, PathEntry{Raw: p.Raw})
			continue
		}
		addrPort, err := netip.ParseAddrPort(p.Interface.Address)
		if err != nil {
			return nil, fmt.Errorf("pathcache: parse interface address %q: %w", p.Interface.Address, err)
		}
		entries = append(entries, PathEntry{Raw: p.Raw, NextHop: addrPort})
	}
	return entries, nil
}
