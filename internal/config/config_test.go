package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// clearEnv blanks every variable Load reads so the host cannot leak in.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"EC2SECRETS_CONFIG",
		"EC2SECRETS_ENV_FILE",
		"EC2SECRETS_FIREBASE_CONFIG_FILE",
		"EC2SECRETS_LISTEN_ADDR",
		"EC2SECRETS_WATCH",
		"EC2SECRETS_RELOAD_SCHEDULE",
		"EC2SECRETS_RATE_LIMIT_RPS",
		"EC2SECRETS_RATE_LIMIT_BURST",
		"EC2SECRETS_LOG_LEVEL",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(nil)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.ListenAddr != defaultListenAddr {
		t.Fatalf("expected default listen address %s, got %s", defaultListenAddr, cfg.ListenAddr)
	}
	if !cfg.Watch {
		t.Fatalf("expected watching to be enabled by default")
	}
	if cfg.ShutdownGracePeriod != 10*time.Second {
		t.Fatalf("unexpected shutdown grace period: %s", cfg.ShutdownGracePeriod)
	}
	if cfg.RateLimitRPS != defaultRateLimitRPS || cfg.RateLimitBurst != defaultRateLimitBurst {
		t.Fatalf("unexpected rate limit %v/%d", cfg.RateLimitRPS, cfg.RateLimitBurst)
	}
	if cfg.EnvFile != "" || cfg.FirebaseConfigFile != "" {
		t.Fatalf("expected no explicit files, got %q and %q", cfg.EnvFile, cfg.FirebaseConfigFile)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("EC2SECRETS_ENV_FILE", "/srv/app/.env")
	t.Setenv("EC2SECRETS_LISTEN_ADDR", ":9200")
	t.Setenv("EC2SECRETS_WATCH", "false")
	t.Setenv("EC2SECRETS_RATE_LIMIT_RPS", "2.5")
	t.Setenv("EC2SECRETS_RATE_LIMIT_BURST", "not-a-number")

	cfg, err := Load(nil)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.EnvFile != "/srv/app/.env" {
		t.Fatalf("expected env file override, got %s", cfg.EnvFile)
	}
	if cfg.ListenAddr != ":9200" {
		t.Fatalf("expected overridden address, got %s", cfg.ListenAddr)
	}
	if cfg.Watch {
		t.Fatalf("expected watching to be disabled")
	}
	if cfg.RateLimitRPS != 2.5 {
		t.Fatalf("expected rps 2.5, got %v", cfg.RateLimitRPS)
	}
	if cfg.RateLimitBurst != defaultRateLimitBurst {
		t.Fatalf("invalid burst must be ignored, got %d", cfg.RateLimitBurst)
	}
}

func TestLoadPrecedence(t *testing.T) {
	clearEnv(t)
	t.Setenv("EC2SECRETS_LISTEN_ADDR", ":1111")
	t.Setenv("EC2SECRETS_LOG_LEVEL", "warn")

	path := filepath.Join(t.TempDir(), "ec2secrets.yaml")
	writeConfig(t, path, `
listen_addr: ":2222"
env_file: /from/file/.env
watch: false
watch_debounce: 1s
reload_schedule: "@every 10m"
rate_limit:
  rps: 0
  burst: 0
`)

	cliAddr := ":3333"
	cfg, err := Load(&CLIOverrides{ConfigFile: path, ListenAddr: &cliAddr})
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.ListenAddr != ":3333" {
		t.Fatalf("CLI must win, got %s", cfg.ListenAddr)
	}
	if cfg.EnvFile != "/from/file/.env" {
		t.Fatalf("file must override defaults, got %s", cfg.EnvFile)
	}
	if cfg.LogLevel != "warn" {
		t.Fatalf("env must apply when file is silent, got %s", cfg.LogLevel)
	}
	if cfg.Watch || cfg.WatchDebounce != time.Second || cfg.ReloadSchedule != "@every 10m" {
		t.Fatalf("unexpected watch settings %+v", cfg)
	}
	if cfg.RateLimitRPS != 0 || cfg.RateLimitBurst != 0 {
		t.Fatalf("explicit zero rate limit must be kept, got %v/%d", cfg.RateLimitRPS, cfg.RateLimitBurst)
	}
}

func TestLoadTOML(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "ec2secrets.toml")
	writeConfig(t, path, `
listen_addr = "0.0.0.0:9300"
firebase_config_file = "/etc/dbmigration/sa.json"
enable_request_logging = false
write_timeout = "30s"

[rate_limit]
rps = 5.0
burst = 7

[logging]
level = "debug"
`)
	t.Setenv("EC2SECRETS_CONFIG", path)

	cfg, err := Load(nil)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.ListenAddr != "0.0.0.0:9300" || cfg.FirebaseConfigFile != "/etc/dbmigration/sa.json" {
		t.Fatalf("unexpected TOML values %+v", cfg)
	}
	if cfg.EnableRequestLogging {
		t.Fatalf("expected request logging disabled")
	}
	if cfg.WriteTimeout != 30*time.Second {
		t.Fatalf("unexpected write timeout %s", cfg.WriteTimeout)
	}
	if cfg.RateLimitRPS != 5 || cfg.RateLimitBurst != 7 || cfg.LogLevel != "debug" {
		t.Fatalf("unexpected TOML values %+v", cfg)
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
		invalid bool
	}{
		{name: "missing file", file: "absent.yaml"},
		{name: "bad yaml", file: "bad.yaml", content: "listen_addr: [unterminated"},
		{name: "unknown extension", file: "cfg.ini", content: "x=1"},
		{name: "bad duration", file: "dur.yaml", content: "idle_timeout: soon", invalid: true},
		{name: "bad schedule", file: "cron.yaml", content: "reload_schedule: whenever", invalid: true},
		{name: "bad log level", file: "log.yaml", content: "logging:\n  level: loud", invalid: true},
		{name: "negative burst", file: "burst.yaml", content: "rate_limit:\n  burst: -1", invalid: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			clearEnv(t)
			path := filepath.Join(t.TempDir(), tc.file)
			if tc.content != "" {
				writeConfig(t, path, tc.content)
			}

			_, err := Load(&CLIOverrides{ConfigFile: path})
			if err == nil {
				t.Fatalf("expected error")
			}
			if got := errors.Is(err, ErrInvalidConfig); got != tc.invalid {
				t.Fatalf("errors.Is(ErrInvalidConfig) = %v for %v", got, err)
			}
		})
	}
}

func writeConfig(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
}
