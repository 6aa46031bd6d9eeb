package provider

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/sync/errgroup"
)

const (
	// ProxyDBURL is completed with a country code from the index page.
	ProxyDBURL = "http://proxydb.net/?protocol=socks5&country="

	proxyDBConcurrency = 8
)

// ProxyDB scrapes proxydb.net one country page at a time.
type ProxyDB struct {
	Client *http.Client
	URL    string
}

func NewProxyDB(client *http.Client) *ProxyDB {
	return &ProxyDB{Client: client, URL: ProxyDBURL}
}

func (p *ProxyDB) Name() string { return "proxydb.net" }

// Search reads the country list from the index page and fetches every
// country page concurrently. Failed country pages are counted and reported
// in the error while the remaining pages still contribute.
func (p *ProxyDB) Search(ctx context.Context) ([]string, error) {
	countries, err := p.countries(ctx)
	if err != nil {
		return nil, err
	}

	var (
		mu     sync.Mutex
		out    []string
		failed int
		first  error
	)

	var g errgroup.Group
	g.SetLimit(proxyDBConcurrency)
	for _, c := range countries {
		g.Go(func() error {
			found, err := p.countryPage(ctx, c)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if failed == 0 {
					first = err
				}
				failed++
				return nil
			}
			out = append(out, found...)
			return nil
		})
	}
	_ = g.Wait()

	if failed > 0 {
		return out, fmt.Errorf("%d of %d country pages failed: %w", failed, len(countries), first)
	}
	return out, nil
}

func (p *ProxyDB) countries(ctx context.Context) ([]string, error) {
	req, err := newRequest(ctx, http.MethodGet, p.URL, nil)
	if err != nil {
		return nil, err
	}
	doc, err := fetchDocument(p.Client, req)
	if err != nil {
		return nil, err
	}

	var countries []string
	doc.Find("#country > option").Each(func(_ int, o *goquery.Selection) {
		// The empty value is the unfiltered index itself.
		if v := strings.TrimSpace(o.AttrOr("value", "")); v != "" {
			countries = append(countries, v)
		}
	})
	return countries, nil
}

func (p *ProxyDB) countryPage(ctx context.Context, country string) ([]string, error) {
	req, err := newRequest(ctx, http.MethodGet, p.URL+url.QueryEscape(country), nil)
	if err != nil {
		return nil, err
	}
	doc, err := fetchDocument(p.Client, req)
	if err != nil {
		return nil, err
	}

	var out []string
	doc.Find("table tbody tr td a").Each(func(_ int, a *goquery.Selection) {
		if hp := splitHostPort(a.Text()); hp != "" {
			out = append(out, "socks5://"+hp)
		}
	})
	return out, nil
}
