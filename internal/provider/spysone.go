package provider

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"
)

const SpysOneURL = "https://spys.one/en/socks-proxy-list/"

// SpysOne scrapes the SOCKS list of spys.one. The list is requested with
// the same form post the site's filter controls send.
type SpysOne struct {
	Client *http.Client
	URL    string
}

func NewSpysOne(client *http.Client) *SpysOne {
	return &SpysOne{Client: client, URL: SpysOneURL}
}

func (p *SpysOne) Name() string { return "spys.one" }

func (p *SpysOne) Search(ctx context.Context) ([]string, error) {
	form := url.Values{}
	// xx0 is a per-session nonce of 32 lowercase hex digits.
	form.Set("xx0", strings.ReplaceAll(uuid.NewString(), "-", ""))
	form.Set("xpp", "5")
	form.Set("xf1", "0")
	form.Set("xf2", "0")
	form.Set("xf4", "0")
	form.Set("xf5", "2")

	req, err := newRequest(ctx, http.MethodPost, p.URL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	doc, err := fetchDocument(p.Client, req)
	if err != nil {
		return nil, err
	}

	var out []string
	doc.Find("tr.spy1x, tr.spy1xx").Each(func(_ int, tr *goquery.Selection) {
		tds := tr.Find("td")
		if !strings.Contains(strings.ToLower(tds.Eq(1).Text()), "socks5") {
			return
		}
		if hp := splitHostPort(tds.Eq(0).Text()); hp != "" {
			out = append(out, "socks5://"+hp)
		}
	})
	return out, nil
}
