// Package provider discovers candidate SOCKS5 proxies from search engine
// APIs and free proxy list sites, and merges them into one candidate set.
package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Provider is a source of candidate proxy URIs.
//
// Search may return candidates together with an error when it fails
// partway through; those candidates are still used.
type Provider interface {
	Name() string
	Search(ctx context.Context) ([]string, error)
}

const (
	userAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"

	maxBodySize = 8 << 20
)

func newRequest(ctx context.Context, method, rawURL string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)
	return req, nil
}

// send performs req and fails on any non-2xx status. Errors name only the
// host and path so API keys in the query string stay out of logs.
func send(client *http.Client, req *http.Request) (*http.Response, error) {
	resp, err := client.Do(req)
	if err != nil {
		var ue *url.Error
		if errors.As(err, &ue) {
			err = ue.Err
		}
		return nil, fmt.Errorf("%s %s%s: %w", req.Method, req.URL.Host, req.URL.Path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		return nil, fmt.Errorf("%s %s%s: unexpected status %s", req.Method, req.URL.Host, req.URL.Path, resp.Status)
	}
	return resp, nil
}

func fetchJSON(client *http.Client, req *http.Request, v any) error {
	resp, err := send(client, req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodySize)).Decode(v); err != nil {
		return fmt.Errorf("decode %s%s: %w", req.URL.Host, req.URL.Path, err)
	}
	return nil
}

func fetchDocument(client *http.Client, req *http.Request) (*goquery.Document, error) {
	resp, err := send(client, req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	doc, err := goquery.NewDocumentFromReader(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("parse %s%s: %w", req.URL.Host, req.URL.Path, err)
	}
	return doc, nil
}

// hostPort joins host and port, returning "" unless both look valid.
func hostPort(host, port string) string {
	host = strings.TrimSpace(host)
	port = strings.TrimSpace(port)
	if host == "" || strings.ContainsAny(host, " \t\r\n/") {
		return ""
	}
	n, err := strconv.Atoi(port)
	if err != nil || n < 1 || n > 65535 {
		return ""
	}
	return net.JoinHostPort(host, strconv.Itoa(n))
}

// splitHostPort validates an "ip:port" cell.
func splitHostPort(s string) string {
	host, port, err := net.SplitHostPort(strings.TrimSpace(s))
	if err != nil {
		return ""
	}
	return hostPort(host, port)
}
