package proxy

import (
	"context"
	"fmt"
	"net"
	"net/netip"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultResolveTTL = time.Minute

	resolveTimeout = 10 * time.Second
)

// Resolver resolves CONNECT target hosts on the gateway itself. Answers are
// cached for a TTL and concurrent lookups of one host share a single query.
type Resolver struct {
	cache  *cache.Cache
	group  singleflight.Group
	lookup func(ctx context.Context, host string) ([]netip.Addr, error)
}

func NewResolver(ttl time.Duration) *Resolver {
	if ttl <= 0 {
		ttl = DefaultResolveTTL
	}
	return &Resolver{
		cache: cache.New(ttl, 2*ttl),
		lookup: func(ctx context.Context, host string) ([]netip.Addr, error) {
			return net.DefaultResolver.LookupNetIP(ctx, "ip", host)
		},
	}
}

// Resolve returns one IP address for host as a string. IP literals are
// returned unchanged and IPv4 answers are preferred.
func (r *Resolver) Resolve(ctx context.Context, host string) (string, error) {
	if ip, err := netip.ParseAddr(host); err == nil {
		return ip.String(), nil
	}

	if v, ok := r.cache.Get(host); ok {
		return v.(string), nil
	}

	v, err, _ := r.group.Do(host, func() (any, error) {
		// The lookup is shared, so one caller going away must not fail it
		// for the rest.
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), resolveTimeout)
		defer cancel()

		addrs, err := r.lookup(ctx, host)
		if err != nil {
			return nil, fmt.Errorf("resolve %s: %w", host, err)
		}
		ip, ok := pickAddr(addrs)
		if !ok {
			return nil, fmt.Errorf("resolve %s: no addresses", host)
		}

		r.cache.Set(host, ip, cache.DefaultExpiration)
		return ip, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func pickAddr(addrs []netip.Addr) (string, bool) {
	for _, a := range addrs {
		if a.Unmap().Is4() {
			return a.Unmap().String(), true
		}
	}
	if len(addrs) > 0 {
		return addrs[0].String(), true
	}
	return "", false
}
