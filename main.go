package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	_ "net/http/pprof" //nolint:gosec // Intentionally exposed on debug port.
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/die-net/rabbithole/internal/config"
	"github.com/die-net/rabbithole/internal/dialer"
	"github.com/die-net/rabbithole/internal/logging"
	"github.com/die-net/rabbithole/internal/pool"
	"github.com/die-net/rabbithole/internal/provider"
	"github.com/die-net/rabbithole/internal/proxy"
	"github.com/die-net/rabbithole/internal/verify"
)

// searchTimeout bounds each request made to a provider.
const searchTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	config.Register(pflag.CommandLine)
	pflag.Parse()

	cfg, err := config.Load(pflag.CommandLine, viper.New())
	if err != nil {
		return err
	}

	log := logging.New(os.Stderr, cfg.Level)
	for _, w := range cfg.Warnings {
		log.Warn().Msg(w)
	}

	g, ctx := errgroup.WithContext(context.Background())

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.DebugListen != "" {
		debugSrv := &http.Server{Handler: http.DefaultServeMux} //nolint:gosec // Not concerned about timeouts on debug port.
		lc := net.ListenConfig{KeepAliveConfig: cfg.KeepAlive}
		debugLn, err := lc.Listen(ctx, "tcp", cfg.DebugListen)
		if err != nil {
			return fmt.Errorf("debug listen: %w", err)
		}
		context.AfterFunc(ctx, func() {
			_ = debugSrv.Close()
			_ = debugLn.Close()
		})

		g.Go(func() error {
			if err := debugSrv.Serve(debugLn); err != nil {
				return fmt.Errorf("debug serve: %w", err)
			}
			return nil
		})
		log.Info().Str("addr", cfg.DebugListen).Msg("debug listening")
	}

	dialCfg := dialer.Config{
		DialTimeout:        cfg.DialTimeout,
		NegotiationTimeout: cfg.NegotiationTimeout,
		KeepAlive:          cfg.KeepAlive,
	}

	// wait collects the background goroutines, treating a closed debug
	// server as a clean exit.
	wait := func() error {
		err := g.Wait()
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		log.Info().Msg("shutting down")
		return err
	}

	candidates, err := search(ctx, logging.Component(log, "search"), cfg, dialCfg)
	if ctx.Err() != nil {
		return wait()
	}
	if err != nil {
		return err
	}
	log.Info().Int("candidates", len(candidates)).Msg("checking availability")

	v := verify.New(verify.Config{
		GeoURL:   cfg.GeoURL,
		DelayURL: cfg.DelayTestAddress,
		Timeout:  cfg.DelayTestTimeout,
		Zone:     cfg.Zone,
		Dialer:   dialCfg,
		Log:      logging.Component(log, "verify"),
	})
	results := v.Run(ctx, candidates)
	if ctx.Err() != nil {
		return wait()
	}

	p, err := pool.New(verify.URIs(results))
	if err != nil {
		return fmt.Errorf("verify %d candidates in zone %s: %w", len(candidates), cfg.Zone, err)
	}

	ln, err := proxy.ListenTCP(ctx, "tcp", cfg.Listen.Addr, cfg.KeepAlive)
	if err != nil {
		return fmt.Errorf("gateway listen: %w", err)
	}
	gw, err := proxy.NewGateway(proxy.Config{
		NegotiationTimeout: cfg.NegotiationTimeout,
		Auth:               cfg.Listen.Auth,
		Dialer:             dialCfg,
		Resolver:           proxy.NewResolver(proxy.DefaultResolveTTL),
		Log:                logging.Component(log, "gateway"),
	}, p)
	if err != nil {
		_ = ln.Close()
		return err
	}
	context.AfterFunc(ctx, func() {
		_ = ln.Close()
	})

	g.Go(func() error {
		if err := gw.Serve(ln); err != nil && ctx.Err() == nil {
			return fmt.Errorf("gateway serve: %w", err)
		}
		return nil
	})

	err = wait()
	log.Info().Uint64("served", gw.Served()).Int64("active", gw.Active()).Msg("gateway stopped")
	return err
}

// search collects candidates from the free sites reachable from this network
// and from every search API with credentials configured.
func search(ctx context.Context, log zerolog.Logger, cfg config.Config, dialCfg dialer.Config) ([]string, error) {
	egress := cfg.SearchProxy
	if egress == "" {
		egress = "direct://"
	}
	d, err := dialer.New(dialCfg, egress)
	if err != nil {
		return nil, &config.Error{Key: "search-proxy", Err: err}
	}
	client := dialer.NewHTTPClient(d, searchTimeout)

	area := provider.DetectArea(ctx, log, client, provider.DetectURL)
	providers := provider.Free(area, client)

	if cfg.Fofa.Enabled() {
		providers = append(providers, provider.NewFofa(client, cfg.Fofa.Email, cfg.Fofa.Token, cfg.Fofa.Size))
	}
	if cfg.ZoomEye.Token != "" {
		providers = append(providers, provider.NewZoomEye(client, cfg.ZoomEye.Token, cfg.ZoomEye.Pages))
	}
	if cfg.Quake.Token != "" {
		providers = append(providers, provider.NewQuake(client, cfg.Quake.Token, cfg.Quake.Size))
	}

	return provider.Aggregate(ctx, log, providers)
}
