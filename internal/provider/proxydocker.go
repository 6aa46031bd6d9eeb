package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/gocolly/colly/v2"
)

const (
	ProxyDockerListURL = "https://www.proxydocker.com/en/socks5-list/"
	ProxyDockerAPIURL  = "https://www.proxydocker.com/en/api/proxylist/"

	proxyDockerPages     = 3
	proxyDockerForbidden = "You are forbidden!"
)

// ProxyDocker reads the proxydocker.com list API. The API only answers
// requests that carry the session cookie and the CSRF token issued with
// the list page, so a colly collector keeps both across requests.
type ProxyDocker struct {
	Client  *http.Client
	ListURL string
	APIURL  string
	Pages   int
}

func NewProxyDocker(client *http.Client) *ProxyDocker {
	return &ProxyDocker{
		Client:  client,
		ListURL: ProxyDockerListURL,
		APIURL:  ProxyDockerAPIURL,
		Pages:   proxyDockerPages,
	}
}

func (p *ProxyDocker) Name() string { return "proxydocker.com" }

type proxyDockerResponse struct {
	Proxies []struct {
		IP   string      `json:"ip"`
		Port json.Number `json:"port"`
	} `json:"proxies"`
}

func (p *ProxyDocker) Search(ctx context.Context) ([]string, error) {
	c := colly.NewCollector(
		colly.UserAgent(userAgent),
		colly.StdlibContext(ctx),
		colly.AllowURLRevisit(),
	)
	if p.Client != nil {
		c.WithTransport(p.Client.Transport)
		if p.Client.Timeout > 0 {
			c.SetRequestTimeout(p.Client.Timeout)
		}
	}

	token, err := p.token(c)
	if err != nil {
		return nil, err
	}

	// The clone shares the collector's HTTP backend and so its cookie jar.
	api := c.Clone()

	var (
		out       []string
		decodeErr error
	)
	api.OnResponse(func(r *colly.Response) {
		var resp proxyDockerResponse
		if err := json.Unmarshal(r.Body, &resp); err != nil {
			decodeErr = fmt.Errorf("decode proxy list: %w", err)
			return
		}
		for _, px := range resp.Proxies {
			if hp := hostPort(px.IP, px.Port.String()); hp != "" {
				out = append(out, "socks5://"+hp)
			}
		}
	})

	hdr := http.Header{}
	hdr.Set("X-Requested-With", "XMLHttpRequest")
	hdr.Set("Content-Type", "application/x-www-form-urlencoded; charset=UTF-8")

	for page := 1; page <= p.Pages; page++ {
		form := url.Values{}
		form.Set("token", token)
		form.Set("country", "all")
		form.Set("city", "all")
		form.Set("state", "all")
		form.Set("port", "all")
		form.Set("type", "socks5")
		form.Set("anonymity", "all")
		form.Set("need", "all")
		form.Set("page", strconv.Itoa(page))

		if err := api.Request(http.MethodPost, p.APIURL, strings.NewReader(form.Encode()), nil, hdr.Clone()); err != nil {
			return out, fmt.Errorf("page %d: %w", page, err)
		}
		if decodeErr != nil {
			return out, fmt.Errorf("page %d: %w", page, decodeErr)
		}
	}

	return out, nil
}

// token visits the list page, which sets the session cookie, and returns
// the CSRF token from its meta tag.
func (p *ProxyDocker) token(c *colly.Collector) (string, error) {
	var (
		token     string
		forbidden bool
	)
	c.OnResponse(func(r *colly.Response) {
		forbidden = strings.TrimSpace(string(r.Body)) == proxyDockerForbidden
	})
	c.OnHTML(`meta[name="_token"]`, func(e *colly.HTMLElement) {
		token = e.Attr("content")
	})

	if err := c.Visit(p.ListURL); err != nil {
		return "", fmt.Errorf("list page: %w", err)
	}
	if forbidden {
		return "", errors.New("list page: access forbidden")
	}
	if token == "" {
		return "", errors.New("list page: no _token meta tag")
	}
	return token, nil
}
