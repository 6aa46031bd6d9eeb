package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
)

const (
	ZoomEyeURL = "https://api.zoomeye.org/host/search"

	ZoomEyeQuery = `service:"socks5" +banner:"Version:5 Method:No Authentication(0x00)" +country:"CN"`

	// DefaultZoomEyePages is the number of 20-result pages fetched.
	DefaultZoomEyePages = 5
)

// ZoomEye searches the ZoomEye host search API page by page.
type ZoomEye struct {
	Client *http.Client
	URL    string
	Token  string
	Query  string
	Pages  int
}

func NewZoomEye(client *http.Client, token string, pages int) *ZoomEye {
	if pages <= 0 {
		pages = DefaultZoomEyePages
	}
	return &ZoomEye{Client: client, URL: ZoomEyeURL, Token: token, Query: ZoomEyeQuery, Pages: pages}
}

func (p *ZoomEye) Name() string { return "zoomeye" }

type zoomEyeResponse struct {
	Matches []struct {
		IP       string `json:"ip"`
		PortInfo struct {
			Port json.Number `json:"port"`
		} `json:"portinfo"`
	} `json:"matches"`
}

// Search stops at the first failing page and returns what earlier pages
// produced along with the error.
func (p *ZoomEye) Search(ctx context.Context) ([]string, error) {
	var out []string
	for page := 1; page <= p.Pages; page++ {
		found, err := p.searchPage(ctx, page)
		if err != nil {
			return out, fmt.Errorf("page %d: %w", page, err)
		}
		out = append(out, found...)
	}
	return out, nil
}

func (p *ZoomEye) searchPage(ctx context.Context, page int) ([]string, error) {
	q := url.Values{}
	q.Set("query", p.Query)
	q.Set("page", strconv.Itoa(page))

	req, err := newRequest(ctx, http.MethodGet, p.URL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("API-KEY", p.Token)

	var resp zoomEyeResponse
	if err := fetchJSON(p.Client, req, &resp); err != nil {
		return nil, err
	}

	out := make([]string, 0, len(resp.Matches))
	for _, m := range resp.Matches {
		if hp := hostPort(m.IP, m.PortInfo.Port.String()); hp != "" {
			out = append(out, hp)
		}
	}
	return out, nil
}
