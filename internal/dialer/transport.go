package dialer

import (
	"net/http"
	"time"
)

// NewHTTPClient returns an http.Client whose connections go through d.
//
// When d is an HTTP proxy dialer the standard library's proxy support is
// used instead, so plain http:// requests are sent as absolute-URI proxy
// requests rather than tunneled through CONNECT.
//
// Keep-alives are disabled: clients built here are used for a handful of
// requests through short-lived or untrusted proxies.
func NewHTTPClient(d Dialer, timeout time.Duration) *http.Client {
	t := &http.Transport{
		DialContext:         d.DialContext,
		DisableKeepAlives:   true,
		TLSHandshakeTimeout: timeout,
	}

	if up, ok := d.(*HTTPProxyDialer); ok {
		t.Proxy = http.ProxyURL(up.ProxyURL())
		// When using Transport.Proxy, DialContext is used to connect to the proxy itself.
		t.DialContext = up.Direct().DialContext
	}

	return &http.Client{Transport: t, Timeout: timeout}
}
