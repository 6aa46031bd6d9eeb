package provider

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
)

const (
	FofaURL = "https://fofa.info/api/v1/search/all"

	// FofaQuery finds mainland SOCKS5 servers accepting no authentication.
	FofaQuery = `protocol="socks5" && "Version:5 Method:No Authentication(0x00)" && country="CN"`

	DefaultFofaSize = 300
)

// Fofa searches the FOFA host search API.
type Fofa struct {
	Client *http.Client
	URL    string
	Email  string
	Token  string
	Query  string
	Size   int
}

func NewFofa(client *http.Client, email, token string, size int) *Fofa {
	if size <= 0 {
		size = DefaultFofaSize
	}
	return &Fofa{Client: client, URL: FofaURL, Email: email, Token: token, Query: FofaQuery, Size: size}
}

func (p *Fofa) Name() string { return "fofa" }

type fofaResponse struct {
	Error   bool     `json:"error"`
	ErrMsg  string   `json:"errmsg"`
	Results []string `json:"results"`
}

func (p *Fofa) Search(ctx context.Context) ([]string, error) {
	q := url.Values{}
	q.Set("email", p.Email)
	q.Set("key", p.Token)
	q.Set("size", strconv.Itoa(p.Size))
	q.Set("fields", "host")
	q.Set("qbase64", base64.URLEncoding.EncodeToString([]byte(p.Query)))

	req, err := newRequest(ctx, http.MethodGet, p.URL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}

	var resp fofaResponse
	if err := fetchJSON(p.Client, req, &resp); err != nil {
		return nil, err
	}
	if resp.Error {
		return nil, fmt.Errorf("fofa: %s", resp.ErrMsg)
	}

	return resp.Results, nil
}
