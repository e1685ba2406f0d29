// Package config is the ambient configuration layer: command-line flags
// with defaults, optionally overlaid by a YAML config file, with flags
// re-applied afterward so the command line always wins. The two-pass
// pattern (flags set defaults -> YAML overlays -> flags re-parsed) is
// borrowed from the proxy this gateway is descended from.
package config

import (
	"flag"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

// Config holds every recognized option, each with a default applied by
// New() before any flag or file is parsed. The breaker.default.*,
// retry.default.*, rate-limit.default.* and telemetry.queue.capacity options
// are parsed but not read by any component: breakers take their settings
// from circuit.DefaultSettings, injected Retry and RequestRateLimiter
// filters from the route compiler's own defaults, and the telemetry queue
// has a fixed size of 8192.
type Config struct {
	ConfigFile string `yaml:"-"`
	Flags      *flag.FlagSet

	Address      string `yaml:"address"`
	AdminAddress string `yaml:"admin-address"`
	LogLevel     string `yaml:"log-level"`

	StoreAddress  string `yaml:"store.address"`
	StoreRouteKey string `yaml:"store.route-key"`
	FallbackFile  string `yaml:"store.fallback-file"`

	TrustedProxies       multiFlag      `yaml:"trusted-proxies"`
	SensitiveHeaderNames regexpListFlag `yaml:"sensitive-header-names"`

	ProxyConnectTimeout  time.Duration `yaml:"proxy.connect-timeout"`
	ProxyReadTimeout     time.Duration `yaml:"proxy.read-timeout"`
	ProxyIdleConnTimeout time.Duration `yaml:"proxy.idle-conn-timeout"`
	ProxyMaxIdleConns    int           `yaml:"proxy.max-idle-conns"`
	ProxyDefaultHeaders  mapFlags      `yaml:"proxy.default-headers"`

	BreakerDefaultFailureRateThreshold float64       `yaml:"breaker.default.failure-rate-threshold"`
	BreakerDefaultWindow               int           `yaml:"breaker.default.window"`
	BreakerDefaultMinCalls             int           `yaml:"breaker.default.min-calls"`
	BreakerDefaultWaitDurationInOpen   time.Duration `yaml:"breaker.default.wait-duration-in-open"`

	RetryDefaultMaxAttempts int    `yaml:"retry.default.max-attempts"`
	RetryDefaultStatuses    string `yaml:"retry.default.statuses"`
	RetryDefaultMethods     string `yaml:"retry.default.methods"`

	RateLimitDefaultReplenishRate int                  `yaml:"rate-limit.default.replenish-rate"`
	RateLimitDefaultBurstCapacity int                  `yaml:"rate-limit.default.burst-capacity"`
	RateLimitPresets              ratelimitPresetFlags `yaml:"rate-limit.presets"`

	TelemetryBusBootstrap  string `yaml:"telemetry.bus.bootstrap"`
	TelemetryQueueCapacity int    `yaml:"telemetry.queue.capacity"`

	ShutdownDrainTimeout time.Duration `yaml:"shutdown.drain-timeout"`
}

// New returns a Config with every flag registered and defaulted, ready
// for ParseArgs.
func New() *Config {
	cfg := new(Config)

	flags := flag.NewFlagSet("", flag.ExitOnError)
	flags.StringVar(&cfg.ConfigFile, "config-file", "", "yaml file to overlay onto the defaults and flags")

	flags.StringVar(&cfg.Address, "address", ":8080", "address the gateway listens on")
	flags.StringVar(&cfg.AdminAddress, "admin-address", ":9911", "address the admin API listens on")
	flags.StringVar(&cfg.LogLevel, "log-level", "info", "logrus level: debug, info, warn, error")

	flags.StringVar(&cfg.StoreAddress, "store-address", "localhost:6379", "route store backend address")
	flags.StringVar(&cfg.StoreRouteKey, "store-route-key", "routes.hash", "hash key route definitions are stored under")
	flags.StringVar(&cfg.FallbackFile, "store-fallback-file", "", "yaml file of route definitions served when the store is unreachable")

	flags.Var(&cfg.TrustedProxies, "trusted-proxy", "CIDR trusted to set X-Forwarded-For (repeatable)")
	flags.Var(&cfg.SensitiveHeaderNames, "sensitive-header-name", "regexp matching a request header to omit from correlation logging (repeatable)")

	flags.DurationVar(&cfg.ProxyConnectTimeout, "proxy-connect-timeout", 2*time.Second, "upstream dial timeout")
	flags.DurationVar(&cfg.ProxyReadTimeout, "proxy-read-timeout", 10*time.Second, "upstream response header timeout")
	flags.DurationVar(&cfg.ProxyIdleConnTimeout, "proxy-idle-conn-timeout", 90*time.Second, "upstream idle connection timeout")
	flags.IntVar(&cfg.ProxyMaxIdleConns, "proxy-max-idle-conns", 256, "max idle upstream connections")
	cfg.ProxyDefaultHeaders = *newMapFlags()
	flags.Var(&cfg.ProxyDefaultHeaders, "proxy-default-headers", "comma-separated key=value headers stamped onto every outgoing request")

	flags.Float64Var(&cfg.BreakerDefaultFailureRateThreshold, "breaker-default-failure-rate-threshold", 0.5, "fraction of failing calls in the window that trips the breaker")
	flags.IntVar(&cfg.BreakerDefaultWindow, "breaker-default-window", 10, "sliding window size in calls")
	flags.IntVar(&cfg.BreakerDefaultMinCalls, "breaker-default-min-calls", 5, "minimum calls in the window before ReadyToTrip evaluates")
	flags.DurationVar(&cfg.BreakerDefaultWaitDurationInOpen, "breaker-default-wait-duration-in-open", 10*time.Second, "time the breaker stays OPEN before probing HALF_OPEN")

	flags.IntVar(&cfg.RetryDefaultMaxAttempts, "retry-default-max-attempts", 3, "retry attempts after the first try")
	flags.StringVar(&cfg.RetryDefaultStatuses, "retry-default-statuses", "502,503,504", "comma-separated status codes that trigger a retry")
	flags.StringVar(&cfg.RetryDefaultMethods, "retry-default-methods", "GET,HEAD,OPTIONS", "comma-separated HTTP methods eligible for retry")

	flags.IntVar(&cfg.RateLimitDefaultReplenishRate, "rate-limit-default-replenish-rate", 10, "tokens added per second")
	flags.IntVar(&cfg.RateLimitDefaultBurstCapacity, "rate-limit-default-burst-capacity", 20, "bucket capacity")
	flags.Var(&cfg.RateLimitPresets, "rate-limit-preset", "named rate-limit preset, e.g. name=strict,replenish-rate=5,burst-capacity=5 (repeatable)")

	flags.StringVar(&cfg.TelemetryBusBootstrap, "telemetry-bus-bootstrap", "localhost:9092", "comma-separated broker addresses")
	flags.IntVar(&cfg.TelemetryQueueCapacity, "telemetry-queue-capacity", 8192, "bounded in-process queue size before events are dropped")

	flags.DurationVar(&cfg.ShutdownDrainTimeout, "shutdown-drain-timeout", 20*time.Second, "time to let in-flight requests finish during shutdown")

	cfg.Flags = flags
	return cfg
}

// Parse parses os.Args[1:] under the program name in os.Args[0].
func (c *Config) Parse() error {
	return c.ParseArgs(os.Args[0], os.Args[1:])
}

// ParseArgs parses args, then - if a config file was named on the command
// line - overlays the YAML file onto c and re-parses args so that an
// explicit flag always overrides the file.
func (c *Config) ParseArgs(progname string, args []string) error {
	c.Flags.Init(progname, flag.ExitOnError)
	if err := c.Flags.Parse(args); err != nil {
		return err
	}

	if c.ConfigFile == "" {
		return nil
	}

	yamlFile, err := os.ReadFile(c.ConfigFile)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", c.ConfigFile, err)
	}
	if err := yaml.Unmarshal(yamlFile, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", c.ConfigFile, err)
	}

	// Re-parse so a flag given on the command line wins over the file.
	if err := c.Flags.Parse(args); err != nil {
		return err
	}
	return nil
}
