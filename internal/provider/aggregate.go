package provider

import (
	"context"
	"errors"
	"slices"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// ErrNoCandidates is returned when no provider produced any candidate.
var ErrNoCandidates = errors.New("no proxy candidates found")

// Aggregate runs every provider concurrently and merges their output into a
// sorted, duplicate-free list of proxy URIs. A failing provider is logged
// and does not affect the others.
func Aggregate(ctx context.Context, log zerolog.Logger, providers []Provider) ([]string, error) {
	found := make([][]string, len(providers))

	var g errgroup.Group
	for i, p := range providers {
		g.Go(func() error {
			plog := log.With().Str("provider", p.Name()).Logger()
			plog.Info().Msg("searching")

			start := time.Now()
			uris, err := p.Search(ctx)
			if err != nil {
				plog.Error().Err(err).Int("partial", len(uris)).Msg("search failed")
			}
			found[i] = uris

			plog.Info().Int("count", len(uris)).Dur("elapsed", time.Since(start)).Msg("search finished")
			return nil
		})
	}
	_ = g.Wait()

	seen := make(map[string]struct{})
	var out []string
	for _, uris := range found {
		for _, u := range uris {
			u = Normalize(u)
			if u == "" {
				continue
			}
			if _, ok := seen[u]; ok {
				continue
			}
			seen[u] = struct{}{}
			out = append(out, u)
		}
	}
	slices.Sort(out)

	if len(out) == 0 {
		return nil, ErrNoCandidates
	}

	log.Info().Int("candidates", len(out)).Int("providers", len(providers)).Msg("search complete")
	return out, nil
}

// Normalize trims s and prefixes socks5:// when it has no scheme. It
// returns "" for blank input.
func Normalize(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if !strings.Contains(s, "://") {
		s = "socks5://" + s
	}
	return s
}
