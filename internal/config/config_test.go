package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, data string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))
	return path
}

func TestDefaults(t *testing.T) {
	cfg, err := Load([]string{"--env-file", filepath.Join(t.TempDir(), "none.env")})
	require.NoError(t, err)
	assert.Equal(t, "tcp", cfg.Transport)
	assert.Equal(t, ":8080", cfg.ListenAddr())
	assert.Equal(t, "vols.txt", cfg.CatalogPath)
	assert.Equal(t, "histo.txt", cfg.TxLogPath)
	assert.Equal(t, "facture.txt", cfg.InvoicePath)
	assert.Equal(t, 100, cfg.MaxAgencies)
	assert.True(t, cfg.Replay)
	assert.False(t, cfg.Admin.Enabled())
}

func TestLayering(t *testing.T) {
	file := writeFile(t, "server.toml", `
transport = "udp"
udp-addr = ":9000"
catalog = "flights.txt"
max-agencies = 10

[log]
level = "debug"

[events]
backend = "kafka"
kafka-brokers = ["k1:9092"]
`)
	envFile := writeFile(t, "test.env", "TRANSACTION_LOG=from-dotenv.txt\nMAX_AGENCIES=20\n")
	t.Cleanup(func() { os.Unsetenv("TRANSACTION_LOG") })
	t.Setenv("MAX_AGENCIES", "30")
	t.Setenv("REPLAY", "false")

	cfg, err := Load([]string{"-c", file, "--env-file", envFile, "--udp-addr", ":9100", "--log-level", "warn"})
	require.NoError(t, err)

	assert.Equal(t, "udp", cfg.Transport)             // file
	assert.Equal(t, "flights.txt", cfg.CatalogPath)   // file
	assert.Equal(t, "from-dotenv.txt", cfg.TxLogPath) // .env
	assert.Equal(t, 30, cfg.MaxAgencies)              // process env wins over .env
	assert.False(t, cfg.Replay)                       // env
	assert.Equal(t, ":9100", cfg.ListenAddr())        // flag
	assert.Equal(t, "warn", cfg.Log.Level)            // flag
	assert.Equal(t, []string{"k1:9092"}, cfg.Events.KafkaBrokers)
}

func TestRedisHostPort(t *testing.T) {
	t.Setenv("REDIS_ADDR", "ignored:1")
	t.Setenv("REDIS_HOST", "cache")
	t.Setenv("REDIS_PORT", "6380")
	cfg, err := Load([]string{"--env-file", filepath.Join(t.TempDir(), "none.env")})
	require.NoError(t, err)
	assert.Equal(t, "cache:6380", cfg.Redis.Addr)
	assert.Equal(t, "invoices", cfg.Redis.InvoiceKey)
}

func TestTransportIsCaseInsensitive(t *testing.T) {
	cfg, err := Load([]string{"--env-file", filepath.Join(t.TempDir(), "none.env"), "-t", "UDP"})
	require.NoError(t, err)
	assert.Equal(t, "udp", cfg.Transport)
}

func TestValidate(t *testing.T) {
	cases := map[string]func(*Config){
		"transport":    func(c *Config) { c.Transport = "sctp" },
		"catalog":      func(c *Config) { c.CatalogPath = "" },
		"log":          func(c *Config) { c.TxLogPath = "" },
		"agencies":     func(c *Config) { c.MaxAgencies = 0 },
		"events":       func(c *Config) { c.Events.Backend = "nats" },
		"kafka":        func(c *Config) { c.Events.Backend = "kafka" },
		"admin secret": func(c *Config) { c.Admin.Addr = ":8081" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
	assert.NoError(t, Default().Validate())
}

func TestAdminEnabled(t *testing.T) {
	a := AdminConfig{Addr: ":8081", JWTSecret: "s", PasswordHash: "h", TokenTTLMin: 15}
	assert.True(t, a.Enabled())
	assert.Equal(t, 15*time.Minute, a.TokenTTL())
}

func TestRateLimitClamps(t *testing.T) {
	t.Setenv("RATE_LIMIT_CAPACITY", "0")
	t.Setenv("RATE_LIMIT_REFILL_INTERVAL", "10s")
	t.Setenv("RATE_LIMIT_TTL", "1s")
	rl := LoadRateLimitConfig()
	assert.Equal(t, 1, rl.Capacity)
	assert.Equal(t, 50*time.Second, rl.TTL)
	assert.Equal(t, "rl:admin-login", rl.Prefix)
}

func TestNewRedisClientDisabled(t *testing.T) {
	assert.Nil(t, NewRedisClient(RedisConfig{}))
}
