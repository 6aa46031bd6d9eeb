package provider

import (
	"context"
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const ProxyListPlusURL = "https://list.proxylistplus.com/Socks-List-1"

// ProxyListPlus scrapes the SOCKS list of proxylistplus.com, which mixes
// SOCKS4 and SOCKS5 rows.
type ProxyListPlus struct {
	Client *http.Client
	URL    string
}

func NewProxyListPlus(client *http.Client) *ProxyListPlus {
	return &ProxyListPlus{Client: client, URL: ProxyListPlusURL}
}

func (p *ProxyListPlus) Name() string { return "proxylistplus.com" }

func (p *ProxyListPlus) Search(ctx context.Context) ([]string, error) {
	req, err := newRequest(ctx, http.MethodGet, p.URL, nil)
	if err != nil {
		return nil, err
	}
	doc, err := fetchDocument(p.Client, req)
	if err != nil {
		return nil, err
	}

	var out []string
	doc.Find("tr.cells").Each(func(_ int, tr *goquery.Selection) {
		tds := tr.Find("td")
		if !strings.EqualFold(strings.TrimSpace(tds.Eq(3).Text()), "socks5") {
			return
		}
		if hp := hostPort(tds.Eq(1).Text(), tds.Eq(2).Text()); hp != "" {
			out = append(out, "socks5://"+hp)
		}
	})
	return out, nil
}
