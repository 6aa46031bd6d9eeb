package provider

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// Area selects which free sources are worth querying from the current
// network.
type Area int

const (
	// AreaLimited uses only sources that are reachable from filtered
	// networks.
	AreaLimited Area = iota
	// AreaAll adds the sources that filtered networks commonly block.
	AreaAll
)

const (
	// DetectURL is fetched to tell whether the network is filtered.
	DetectURL = "https://www.google.com"

	detectTimeout = 5 * time.Second
)

func (a Area) String() string {
	if a == AreaAll {
		return "all"
	}
	return "limited"
}

// DetectArea returns AreaAll when probeURL is reachable through client
// within five seconds and AreaLimited otherwise.
func DetectArea(ctx context.Context, log zerolog.Logger, client *http.Client, probeURL string) Area {
	ctx, cancel := context.WithTimeout(ctx, detectTimeout)
	defer cancel()

	req, err := newRequest(ctx, http.MethodGet, probeURL, nil)
	if err != nil {
		log.Warn().Err(err).Msg("network probe failed, using limited free sources")
		return AreaLimited
	}
	resp, err := client.Do(req)
	if err != nil {
		log.Warn().Err(err).Str("url", probeURL).Msg("network is filtered, using limited free sources")
		return AreaLimited
	}
	resp.Body.Close()

	log.Info().Str("url", probeURL).Msg("network is not filtered, using all free sources")
	return AreaAll
}

// Free returns the free list providers for area, all sharing client.
func Free(area Area, client *http.Client) []Provider {
	providers := []Provider{
		NewProxyListDownload(client),
		NewProxyListPlus(client),
		NewProxyDB(client),
	}
	if area == AreaAll {
		providers = append(providers,
			NewSpysOne(client),
			NewProxyDocker(client),
			NewProxyScrape(client),
		)
	}
	return providers
}
