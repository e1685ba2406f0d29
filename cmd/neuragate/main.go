// Command neuragate is the executable gateway process: it wires every
// component described by the control-flow diagram (C1 through C13) into
// one running server and owns the process lifecycle - the same thin-main,
// heavy-library split the gateway's ambient stack was patterned on, except
// here the library is this repository's own internal packages.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v2"

	"github.com/neuragate/neuragate/config"
	"github.com/neuragate/neuragate/internal/admin"
	"github.com/neuragate/neuragate/internal/circuit"
	"github.com/neuragate/neuragate/internal/correlation"
	"github.com/neuragate/neuragate/internal/fallback"
	"github.com/neuragate/neuragate/internal/filterchain"
	"github.com/neuragate/neuragate/internal/gateway"
	"github.com/neuragate/neuragate/internal/health"
	"github.com/neuragate/neuragate/internal/proxy"
	"github.com/neuragate/neuragate/internal/ratelimit"
	"github.com/neuragate/neuragate/internal/retry"
	"github.com/neuragate/neuragate/internal/routestore"
	"github.com/neuragate/neuragate/internal/routing"
	"github.com/neuragate/neuragate/internal/telemetry"
)

func main() {
	cfg := config.New()
	if err := cfg.Parse(); err != nil {
		log.WithError(err).Fatal("failed to parse configuration")
	}

	if lvl, err := log.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(lvl)
	} else {
		log.WithField("log-level", cfg.LogLevel).Warn("unrecognized log level, defaulting to info")
	}

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.StoreAddress})

	store := routestore.New(redisClient, cfg.StoreRouteKey, loadFallbackFile(cfg.FallbackFile))

	registry := filterchain.NewRegistry()
	registry.Add("RequestRateLimiter", ratelimit.NewFactory(ratelimit.NewRedis(redisClient), ratelimitPresets(cfg.RateLimitPresets)...))
	registry.Add("Retry", retry.NewFactory())

	breakerRegistry := circuit.NewRegistry()
	fallbackRouter := fallback.NewRouter()
	registry.Add("CircuitBreaker", circuit.NewFactory(breakerRegistry, fallbackRouter, nil))

	transportOpts := proxy.DefaultTransportOptions()
	transportOpts.ConnectTimeout = cfg.ProxyConnectTimeout
	transportOpts.ReadTimeout = cfg.ProxyReadTimeout
	transportOpts.IdleConnTimeout = cfg.ProxyIdleConnTimeout
	transportOpts.MaxIdleConns = cfg.ProxyMaxIdleConns
	transport := proxy.NewTransport(transportOpts, nil)
	engine := proxy.NewEngine(transport).WithDefaultHeaders(cfg.ProxyDefaultHeaders.Values())

	compiler := routing.NewCompiler(registry, engine.Sink)
	resolver := routing.NewResolver()
	rebuilder := routing.NewRebuilder(compiler, resolver)
	rebuilder.Rebuild(store.LoadAll(context.Background()))
	store.OnChange(func(routing.ChangeEvent) {
		rebuilder.Rebuild(store.LoadAll(context.Background()))
	})

	publisher, err := telemetry.NewPublisher(strings.Split(cfg.TelemetryBusBootstrap, ","))
	if err != nil {
		log.WithError(err).Fatal("failed to start telemetry publisher")
	}
	defer publisher.Close()
	store.OnChange(func(ev routing.ChangeEvent) {
		op := "updated"
		if ev.Deleted {
			op = "deleted"
		}
		publisher.SubmitRouteChanged(telemetry.RouteChanged{RouteID: ev.RouteID, Operation: op})
	})

	capture := telemetry.NewCapture(publisher)
	probe := health.NewProbe(store)
	adminHandler := admin.NewHandler(store)
	corr := correlation.New(cfg.TrustedProxies...).WithSensitiveHeaders(cfg.SensitiveHeaderNames)

	gw := gateway.New(resolver, corr, capture, adminHandler, fallbackRouter, probe)

	server := &http.Server{Addr: cfg.Address, Handler: gw}
	adminServer := &http.Server{Addr: cfg.AdminAddress, Handler: adminHandler}

	go runOrFatal(server, "gateway listener")
	go runOrFatal(adminServer, "admin listener")

	waitForShutdown(cfg.ShutdownDrainTimeout, server, adminServer)
	if err := redisClient.Close(); err != nil {
		log.WithError(err).Warn("error closing route store connection")
	}
}

func runOrFatal(server *http.Server, label string) {
	log.WithField("addr", server.Addr).Infof("%s starting", label)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.WithError(err).Fatalf("%s failed", label)
	}
}

// waitForShutdown implements C13: on SIGINT/SIGTERM, stop accepting new
// connections and let in-flight requests finish within the configured
// drain timeout before the process exits.
func waitForShutdown(drainTimeout time.Duration, servers ...interface{ Shutdown(context.Context) error }) {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	log.WithField("drain-timeout", drainTimeout).Info("shutdown signal received, draining in-flight requests")
	ctx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()

	for _, s := range servers {
		if err := s.Shutdown(ctx); err != nil {
			log.WithError(err).Warn("error during graceful shutdown")
		}
	}
}

// ratelimitPresets adapts the flag-parsed preset list into the type the
// RequestRateLimiter factory expects, keeping config's flag.Value plumbing
// out of the ratelimit package.
func ratelimitPresets(presets []config.RatelimitPreset) []ratelimit.Preset {
	out := make([]ratelimit.Preset, len(presets))
	for i, p := range presets {
		out[i] = ratelimit.Preset{Name: p.Name, ReplenishRate: p.ReplenishRate, BurstCapacity: p.BurstCapacity, Key: p.Key}
	}
	return out
}

func loadFallbackFile(path string) []routing.Definition {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		log.WithError(err).WithField("path", path).Warn("failed to read fallback route file")
		return nil
	}
	var defs []routing.Definition
	if err := yaml.Unmarshal(data, &defs); err != nil {
		log.WithError(err).WithField("path", path).Warn("failed to parse fallback route file")
		return nil
	}
	return defs
}
