// Package pool holds the verified upstream proxies the gateway picks from.
package pool

import (
	"errors"
	"math/rand/v2"
	"slices"
)

// ErrEmptyPool is returned when no verified proxy is available.
var ErrEmptyPool = errors.New("no available proxies")

// Pool is an immutable set of upstream proxy URIs. It is safe for
// concurrent use.
type Pool struct {
	uris []string
}

// New builds a pool from uris, dropping empty strings and duplicates while
// keeping first-seen order.
func New(uris []string) (*Pool, error) {
	seen := make(map[string]struct{}, len(uris))
	kept := make([]string, 0, len(uris))
	for _, u := range uris {
		if u == "" {
			continue
		}
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		kept = append(kept, u)
	}

	if len(kept) == 0 {
		return nil, ErrEmptyPool
	}

	return &Pool{uris: slices.Clip(kept)}, nil
}

// Pick returns a uniformly random member.
func (p *Pool) Pick() string {
	return p.uris[rand.IntN(len(p.uris))]
}

// Len returns the number of members.
func (p *Pool) Len() int {
	return len(p.uris)
}

// URIs returns a copy of the members.
func (p *Pool) URIs() []string {
	return slices.Clone(p.uris)
}
