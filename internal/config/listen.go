package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"

	"github.com/die-net/rabbithole/internal/socks5"
)

// Listen is the parsed --listen flag.
type Listen struct {
	// Addr is the host:port to bind.
	Addr string
	// Auth is the username/password clients must present, if any.
	Auth socks5.Auth
}

// ParseListen parses socks5://[user:pass@]host:port. Host and port are both
// required; credentials are optional but must come as a pair.
func ParseListen(s string) (Listen, error) {
	if !strings.HasPrefix(s, "socks5://") {
		return Listen{}, errors.New("expected socks5://[user:pass@]host:port")
	}

	u, err := url.Parse(s)
	if err != nil {
		return Listen{}, fmt.Errorf("invalid url: %w", err)
	}
	if u.Path != "" && u.Path != "/" {
		return Listen{}, errors.New("invalid url: path should be empty")
	}

	host, port := u.Hostname(), u.Port()
	if host == "" {
		return Listen{}, errors.New("missing host")
	}
	if n, err := strconv.Atoi(port); err != nil || n < 1 || n > 65535 {
		return Listen{}, fmt.Errorf("invalid port %q", port)
	}

	var auth socks5.Auth
	if u.User != nil {
		auth.Username = u.User.Username()
		auth.Password, _ = u.User.Password()
		if auth.Username == "" || auth.Password == "" {
			return Listen{}, errors.New("username and password must be set together")
		}
	}

	return Listen{Addr: net.JoinHostPort(host, port), Auth: auth}, nil
}
