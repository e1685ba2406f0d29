package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaults(t *testing.T) {
	cfg := New()
	require.NoError(t, cfg.ParseArgs("neuragate", nil))

	assert.Equal(t, ":8080", cfg.Address)
	assert.Equal(t, ":9911", cfg.AdminAddress)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "localhost:6379", cfg.StoreAddress)
	assert.Equal(t, "routes.hash", cfg.StoreRouteKey)
	assert.Equal(t, 3, cfg.RetryDefaultMaxAttempts)
	assert.Equal(t, 10, cfg.RateLimitDefaultReplenishRate)
	assert.Equal(t, 20*time.Second, cfg.ShutdownDrainTimeout)
}

func TestParseArgsFlagOverridesDefault(t *testing.T) {
	cfg := New()
	require.NoError(t, cfg.ParseArgs("neuragate", []string{"-address", ":9090", "-retry-default-max-attempts", "5"}))

	assert.Equal(t, ":9090", cfg.Address)
	assert.Equal(t, 5, cfg.RetryDefaultMaxAttempts)
}

func TestParseArgsConfigFileOverlayAndFlagPrecedence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gateway.yaml")
	require.NoError(t, os.WriteFile(path, []byte(""+
		"address: \":7000\"\n"+
		"log-level: debug\n"+
		"retry.default.max-attempts: 7\n"+
		"trusted-proxies: [\"10.0.0.0/8\"]\n"+
		"rate-limit.presets:\n"+
		"  - name: strict\n"+
		"    replenishrate: 1\n"+
		"    burstcapacity: 1\n"), 0o600))

	cfg := New()
	// -address on the command line must win over the file's address, but
	// log-level and retry-default-max-attempts only appear in the file.
	err := cfg.ParseArgs("neuragate", []string{"-config-file", path, "-address", ":9090"})
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Address)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 7, cfg.RetryDefaultMaxAttempts)
	require.Len(t, cfg.TrustedProxies, 1)
	assert.Equal(t, "10.0.0.0/8", cfg.TrustedProxies[0])
}

func TestParseArgsMissingConfigFileFails(t *testing.T) {
	cfg := New()
	err := cfg.ParseArgs("neuragate", []string{"-config-file", "/no/such/file.yaml"})
	assert.Error(t, err)
}

func TestProxyDefaultHeadersFlag(t *testing.T) {
	cfg := New()
	require.NoError(t, cfg.ParseArgs("neuragate", []string{"-proxy-default-headers", "X-Gateway=neuragate,X-Env=prod"}))

	assert.Equal(t, map[string]string{"X-Gateway": "neuragate", "X-Env": "prod"}, cfg.ProxyDefaultHeaders.Values())
}

func TestRateLimitPresetFlagRepeatable(t *testing.T) {
	cfg := New()
	require.NoError(t, cfg.ParseArgs("neuragate", []string{
		"-rate-limit-preset", "name=strict,replenish-rate=1,burst-capacity=1",
		"-rate-limit-preset", "name=relaxed,replenish-rate=100,burst-capacity=200,key=user",
	}))

	require.Len(t, cfg.RateLimitPresets, 2)
	assert.Equal(t, "strict", cfg.RateLimitPresets[0].Name)
	assert.Equal(t, "relaxed", cfg.RateLimitPresets[1].Name)
	assert.Equal(t, "user", cfg.RateLimitPresets[1].Key)
}

func TestSensitiveHeaderNameFlagCompiles(t *testing.T) {
	cfg := New()
	require.NoError(t, cfg.ParseArgs("neuragate", []string{"-sensitive-header-name", "(?i)authorization"}))

	require.Len(t, cfg.SensitiveHeaderNames, 1)
	assert.True(t, cfg.SensitiveHeaderNames[0].MatchString("Authorization"))
}
