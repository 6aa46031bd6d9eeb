package provider

import (
	"context"
	"net/http"

	"github.com/PuerkitoBio/goquery"
)

const ProxyListDownloadURL = "https://www.proxy-list.download/SOCKS5"

// ProxyListDownload scrapes the SOCKS5 table of proxy-list.download.
type ProxyListDownload struct {
	Client *http.Client
	URL    string
}

func NewProxyListDownload(client *http.Client) *ProxyListDownload {
	return &ProxyListDownload{Client: client, URL: ProxyListDownloadURL}
}

func (p *ProxyListDownload) Name() string { return "proxy-list.download" }

func (p *ProxyListDownload) Search(ctx context.Context) ([]string, error) {
	req, err := newRequest(ctx, http.MethodGet, p.URL, nil)
	if err != nil {
		return nil, err
	}
	doc, err := fetchDocument(p.Client, req)
	if err != nil {
		return nil, err
	}

	var out []string
	doc.Find("#tabli > tr").Each(func(_ int, tr *goquery.Selection) {
		tds := tr.Find("td")
		if hp := hostPort(tds.Eq(0).Text(), tds.Eq(1).Text()); hp != "" {
			out = append(out, "socks5://"+hp)
		}
	})
	return out, nil
}
