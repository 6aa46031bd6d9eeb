package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
)

const (
	QuakeURL = "https://quake.360.net/api/v3/search/quake_service"

	QuakeQuery = `service:"socks5" AND response:"Version: 5 Accepted Auth Method: 0x0 (No authentication)" AND country: "China"`

	DefaultQuakeSize = 200
)

// Quake searches the 360 Quake service search API.
type Quake struct {
	Client *http.Client
	URL    string
	Token  string
	Query  string
	Size   int
}

func NewQuake(client *http.Client, token string, size int) *Quake {
	if size <= 0 {
		size = DefaultQuakeSize
	}
	return &Quake{Client: client, URL: QuakeURL, Token: token, Query: QuakeQuery, Size: size}
}

func (p *Quake) Name() string { return "quake" }

type quakeRequest struct {
	Query string `json:"query"`
	Start string `json:"start"`
	Size  string `json:"size"`
}

type quakeResponse struct {
	// Code is 0 on success and a string like "q3005" on some failures.
	Code    json.RawMessage `json:"code"`
	Message string          `json:"message"`
	Data    []struct {
		IP   string      `json:"ip"`
		Port json.Number `json:"port"`
	} `json:"data"`
}

func (p *Quake) Search(ctx context.Context) ([]string, error) {
	body, err := json.Marshal(quakeRequest{Query: p.Query, Start: "0", Size: strconv.Itoa(p.Size)})
	if err != nil {
		return nil, err
	}

	req, err := newRequest(ctx, http.MethodPost, p.URL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-QuakeToken", p.Token)
	req.Header.Set("Content-Type", "application/json")

	var resp quakeResponse
	if err := fetchJSON(p.Client, req, &resp); err != nil {
		return nil, err
	}
	if code := string(bytes.TrimSpace(resp.Code)); code != "0" {
		return nil, fmt.Errorf("quake: code %s: %s", code, resp.Message)
	}

	out := make([]string, 0, len(resp.Data))
	for _, d := range resp.Data {
		if hp := hostPort(d.IP, d.Port.String()); hp != "" {
			out = append(out, hp)
		}
	}
	return out, nil
}
