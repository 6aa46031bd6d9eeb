package verify

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"slices"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/die-net/rabbithole/internal/dialer"
)

const (
	// DefaultConcurrency is the number of candidates probed at once.
	DefaultConcurrency = 32

	DefaultGeoURL   = "http://ipinfo.io"
	DefaultDelayURL = "http://httpbin.org/ip"
	DefaultTimeout  = 5 * time.Second

	maxBodySize = 1 << 20
)

// Config controls how candidates are probed.
type Config struct {
	// GeoURL returns a JSON object with string fields ip, city and country
	// describing the requesting address.
	GeoURL string
	// DelayURL is fetched only to prove the proxy relays traffic.
	DelayURL string
	// Timeout bounds each probe request, including the proxy handshake.
	Timeout time.Duration
	Zone    Zone
	// Concurrency caps in-flight candidates; zero means DefaultConcurrency.
	Concurrency int
	Dialer      dialer.Config
	Log         zerolog.Logger
}

// GeoInfo is the geolocation document seen through a candidate.
type GeoInfo struct {
	IP      string
	City    string
	Country string
}

// Result is a candidate that passed both probes.
type Result struct {
	URI     string
	Geo     GeoInfo
	Latency time.Duration
}

// Verifier probes candidate proxies concurrently.
type Verifier struct {
	cfg   Config
	check func(ctx context.Context, uri string) (Result, error)
}

// New returns a Verifier with zero Config fields set to their defaults.
func New(cfg Config) *Verifier {
	if cfg.GeoURL == "" {
		cfg.GeoURL = DefaultGeoURL
	}
	if cfg.DelayURL == "" {
		cfg.DelayURL = DefaultDelayURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	if cfg.Dialer.DialTimeout <= 0 || cfg.Dialer.DialTimeout > cfg.Timeout {
		cfg.Dialer.DialTimeout = cfg.Timeout
	}
	if cfg.Dialer.NegotiationTimeout <= 0 || cfg.Dialer.NegotiationTimeout > cfg.Timeout {
		cfg.Dialer.NegotiationTimeout = cfg.Timeout
	}

	v := &Verifier{cfg: cfg}
	v.check = v.Check
	return v
}

// Run probes every candidate and returns those that passed and satisfy the
// zone, fastest first. Failed candidates are only logged.
func (v *Verifier) Run(ctx context.Context, candidates []string) []Result {
	log := v.cfg.Log
	log.Info().Int("candidates", len(candidates)).Int("concurrency", v.cfg.Concurrency).Stringer("zone", v.cfg.Zone).Msg("verifying candidates")

	// The collector goroutine is the only owner of kept until done closes.
	results := make(chan Result)
	done := make(chan struct{})
	var kept []Result
	go func() {
		defer close(done)
		for r := range results {
			kept = append(kept, r)
		}
	}()

	var g errgroup.Group
	g.SetLimit(v.cfg.Concurrency)
	for _, uri := range candidates {
		g.Go(func() error {
			r, err := v.check(ctx, uri)
			if err != nil {
				log.Debug().Err(err).Str("uri", uri).Msg("candidate failed")
				return nil
			}
			if !v.cfg.Zone.Allows(r.Geo.Country) {
				log.Debug().Str("uri", uri).Str("country", r.Geo.Country).Msg("candidate outside zone")
				return nil
			}
			log.Info().
				Str("uri", r.URI).
				Str("ip", r.Geo.IP).
				Str("city", r.Geo.City).
				Str("country", r.Geo.Country).
				Dur("latency", r.Latency).
				Msg("found available proxy")
			results <- r
			return nil
		})
	}
	_ = g.Wait()
	close(results)
	<-done

	slices.SortStableFunc(kept, func(a, b Result) int {
		return cmp.Compare(a.Latency, b.Latency)
	})

	log.Info().Int("available", len(kept)).Int("candidates", len(candidates)).Msg("verification finished")
	return kept
}

// Check probes one candidate: it fetches GeoURL and then DelayURL through
// it, each within Timeout.
func (v *Verifier) Check(ctx context.Context, uri string) (Result, error) {
	d, err := dialer.New(v.cfg.Dialer, uri)
	if err != nil {
		return Result{}, fmt.Errorf("candidate %q: %w", uri, err)
	}
	client := dialer.NewHTTPClient(d, v.cfg.Timeout)

	geo, err := fetchGeo(ctx, client, v.cfg.GeoURL)
	if err != nil {
		return Result{}, fmt.Errorf("geolocation probe: %w", err)
	}

	start := time.Now()
	if err := fetchDiscard(ctx, client, v.cfg.DelayURL); err != nil {
		return Result{}, fmt.Errorf("delay probe: %w", err)
	}

	return Result{URI: uri, Geo: geo, Latency: time.Since(start)}, nil
}

// URIs returns the URIs of results in order.
func URIs(results []Result) []string {
	uris := make([]string, len(results))
	for i, r := range results {
		uris[i] = r.URI
	}
	return uris
}

type geoResponse struct {
	IP      *string `json:"ip"`
	City    *string `json:"city"`
	Country *string `json:"country"`
}

func fetchGeo(ctx context.Context, client *http.Client, url string) (GeoInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return GeoInfo{}, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return GeoInfo{}, err
	}
	defer resp.Body.Close()

	var gr geoResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodySize)).Decode(&gr); err != nil {
		return GeoInfo{}, fmt.Errorf("decode %s: %w", url, err)
	}

	switch {
	case gr.IP == nil:
		return GeoInfo{}, errors.New("response has no ip")
	case gr.City == nil:
		return GeoInfo{}, errors.New("response has no city")
	case gr.Country == nil:
		return GeoInfo{}, errors.New("response has no country")
	}

	return GeoInfo{IP: *gr.IP, City: *gr.City, Country: *gr.Country}, nil
}

func fetchDiscard(ctx context.Context, client *http.Client, url string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	_, err = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodySize))
	return err
}
