package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"slices"
)

const ProxyScrapeURL = "https://api.proxyscrape.com/proxytable.php?nf=true&country=all"

// ProxyScrape reads the proxyscrape.com proxy table, a JSON object keyed by
// protocol whose socks5 member is keyed by "ip:port".
type ProxyScrape struct {
	Client *http.Client
	URL    string
}

func NewProxyScrape(client *http.Client) *ProxyScrape {
	return &ProxyScrape{Client: client, URL: ProxyScrapeURL}
}

func (p *ProxyScrape) Name() string { return "proxyscrape.com" }

func (p *ProxyScrape) Search(ctx context.Context) ([]string, error) {
	req, err := newRequest(ctx, http.MethodGet, p.URL, nil)
	if err != nil {
		return nil, err
	}

	var resp struct {
		SOCKS5 map[string]json.RawMessage `json:"socks5"`
	}
	if err := fetchJSON(p.Client, req, &resp); err != nil {
		return nil, err
	}

	out := make([]string, 0, len(resp.SOCKS5))
	for k := range resp.SOCKS5 {
		if hp := splitHostPort(k); hp != "" {
			out = append(out, "socks5://"+hp)
		}
	}
	slices.Sort(out)
	return out, nil
}
