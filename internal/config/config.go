// Package config declares rabbithole's command line and resolves it into a
// validated Config.
//
// Flags are declared on a pflag.FlagSet and mirrored into viper, so every
// flag can also come from a RABBITHOLE_* environment variable or from the
// file named by --config. Explicit flags win over the environment, which
// wins over the file.
package config

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/die-net/rabbithole/internal/dialer"
	"github.com/die-net/rabbithole/internal/logging"
	"github.com/die-net/rabbithole/internal/verify"
)

const envPrefix = "RABBITHOLE"

// Error reports a configuration problem detected before any network
// activity.
type Error struct {
	Key string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("invalid --%s: %v", e.Key, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

type Fofa struct {
	Email string
	Token string
	Size  int
}

// Enabled reports whether both halves of the credential pair are set.
func (f Fofa) Enabled() bool {
	return f.Email != "" && f.Token != ""
}

type ZoomEye struct {
	Token string
	Pages int
}

type Quake struct {
	Token string
	Size  int
}

type Config struct {
	Listen Listen
	Level  zerolog.Level

	Zone verify.Zone

	Fofa    Fofa
	ZoomEye ZoomEye
	Quake   Quake

	SearchProxy string

	GeoURL           string
	DelayTestAddress string
	DelayTestTimeout time.Duration

	DialTimeout        time.Duration
	NegotiationTimeout time.Duration
	KeepAlive          net.KeepAliveConfig

	DebugListen string

	// Warnings collects non-fatal problems for the caller to log once a
	// logger exists.
	Warnings []string
}

// Register declares rabbithole's flags on fs.
func Register(fs *pflag.FlagSet) {
	fs.SortFlags = false

	fs.StringP("listen", "L", "socks5://0.0.0.0:7777", "Gateway listen address: socks5://[user:pass@]host:port")
	fs.StringP("level", "l", "info", "Log level: trace, debug, info, warn, error")
	fs.IntP("zone", "z", int(verify.All), "Proxy zone: [0]inland-CN, [1]outside-CN (HK, MO, TW), [2]all-CN, [3]exclude-CN, [4]all")

	fs.String("fofa-email", "", "FOFA account email (requires --fofa-token)")
	fs.String("fofa-token", "", "FOFA API key (requires --fofa-email)")
	fs.Int("fofa-size", 300, "Number of FOFA results to request")
	fs.String("zoomeye-token", "", "ZoomEye API key")
	fs.Int("zoomeye-page-size", 5, "Number of ZoomEye pages to request, 20 results per page")
	fs.String("quake-token", "", "Quake API token")
	fs.Int("quake-size", 200, "Number of Quake results to request")

	fs.String("search-proxy", "", "Egress proxy for the search phase: socks5:// | http:// | https:// URL. Empty connects directly.")

	fs.String("geo-url", "http://ipinfo.io", "Geolocation endpoint queried through each candidate")
	fs.String("delay-test-address", "http://httpbin.org/ip", "URL fetched through each candidate to test liveness")
	fs.Int("delay-test-timeout", 5000, "Per-probe timeout in milliseconds")

	fs.Duration("dial-timeout", 10*time.Second, "Timeout for outbound DNS lookup and TCP connect")
	fs.Duration("negotiation-timeout", 10*time.Second, "Timeout for SOCKS5 negotiation on inbound and upstream connections")
	fs.String("tcp-keepalive", "45:45:3", "TCP keepalive: on|off|keepidle:keepintvl:keepcnt")

	fs.String("debug-listen", "", "Debug HTTP listen address exposing /debug/pprof (e.g. 127.0.0.1:6060). Empty disables.")
	fs.String("config", "", "Optional config file (yaml, toml, json, ini...)")

	_ = fs.MarkHidden("geo-url")
}

// Load resolves fs (already parsed) through v and validates the result.
func Load(fs *pflag.FlagSet, v *viper.Viper) (Config, error) {
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if err := v.BindPFlags(fs); err != nil {
		return Config{}, fmt.Errorf("bind flags: %w", err)
	}

	if path := v.GetString("config"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, &Error{Key: "config", Err: err}
		}
	}

	var (
		cfg Config
		err error
	)

	if cfg.Listen, err = ParseListen(v.GetString("listen")); err != nil {
		return Config{}, &Error{Key: "listen", Err: err}
	}

	if cfg.Level, err = logging.ParseLevel(v.GetString("level")); err != nil {
		return Config{}, &Error{Key: "level", Err: err}
	}

	zone := v.GetInt("zone")
	if cfg.Zone, err = verify.ParseZone(zone); err != nil {
		cfg.Zone = verify.All
		cfg.Warnings = append(cfg.Warnings, fmt.Sprintf("%v; using zone %d (%s)", err, int(verify.All), verify.All))
	}

	cfg.Fofa = Fofa{Email: v.GetString("fofa-email"), Token: v.GetString("fofa-token"), Size: v.GetInt("fofa-size")}
	if (cfg.Fofa.Email == "") != (cfg.Fofa.Token == "") {
		return Config{}, &Error{Key: "fofa-email", Err: errors.New("--fofa-email and --fofa-token must be set together")}
	}
	cfg.ZoomEye = ZoomEye{Token: v.GetString("zoomeye-token"), Pages: v.GetInt("zoomeye-page-size")}
	cfg.Quake = Quake{Token: v.GetString("quake-token"), Size: v.GetInt("quake-size")}

	for _, c := range []struct {
		key string
		n   int
	}{
		{"fofa-size", cfg.Fofa.Size},
		{"zoomeye-page-size", cfg.ZoomEye.Pages},
		{"quake-size", cfg.Quake.Size},
	} {
		if c.n <= 0 {
			return Config{}, &Error{Key: c.key, Err: errors.New("must be > 0")}
		}
	}

	cfg.SearchProxy = strings.TrimSpace(v.GetString("search-proxy"))
	if cfg.SearchProxy != "" {
		if _, err := dialer.New(dialer.Config{}, cfg.SearchProxy); err != nil {
			return Config{}, &Error{Key: "search-proxy", Err: err}
		}
	}

	cfg.GeoURL = v.GetString("geo-url")
	cfg.DelayTestAddress = v.GetString("delay-test-address")
	ms := v.GetInt("delay-test-timeout")
	if ms <= 0 {
		return Config{}, &Error{Key: "delay-test-timeout", Err: errors.New("must be > 0")}
	}
	cfg.DelayTestTimeout = time.Duration(ms) * time.Millisecond

	cfg.DialTimeout = v.GetDuration("dial-timeout")
	cfg.NegotiationTimeout = v.GetDuration("negotiation-timeout")
	if cfg.KeepAlive, err = ParseTCPKeepAlive(v.GetString("tcp-keepalive")); err != nil {
		return Config{}, &Error{Key: "tcp-keepalive", Err: err}
	}

	cfg.DebugListen = v.GetString("debug-listen")

	return cfg, nil
}
