// Package config holds the server settings parsed from flags, environment variables and
// .env files. Settings are read-only once startup completes.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v3"

	"github.com/sammcj/md-server/internal/limits"
	"github.com/sammcj/md-server/internal/security"
)

// EnvPrefix is prepended to every environment variable the server reads
const EnvPrefix = "MD_SERVER_"

// Settings is the resolved server configuration
type Settings struct {
	Host string
	Port int

	Timeout       time.Duration
	MaxFileSizeMB float64
	LimitsFile    string

	AllowLocalhost       bool
	AllowPrivateNetworks bool
	DNSTimeout           time.Duration

	RetryAttempts int
	RetryDelay    time.Duration

	Browser          string
	DisableBrowser   bool
	FetchRPS         float64
	FetchBurst       int
	FetchUserAgent   string
	HTTPWriteTimeout time.Duration
}

func env(name string) cli.ValueSourceChain {
	return cli.EnvVars(EnvPrefix + name)
}

// Flags returns the flags shared by every command that builds the conversion pipeline
func Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "host",
			Value:   "127.0.0.1",
			Usage:   "Address to bind the HTTP server to",
			Sources: env("HOST"),
		},
		&cli.IntFlag{
			Name:    "port",
			Aliases: []string{"p"},
			Value:   8080,
			Usage:   "Port for the HTTP server",
			Sources: env("PORT"),
		},
		&cli.DurationFlag{
			Name:    "timeout",
			Value:   30 * time.Second,
			Usage:   "Default and maximum conversion timeout",
			Sources: env("TIMEOUT"),
		},
		&cli.FloatFlag{
			Name:    "max-file-size",
			Usage:   "Fallback size ceiling in MB for types without a specific limit (default 50)",
			Sources: env("MAX_FILE_SIZE_MB"),
		},
		&cli.StringFlag{
			Name:    "limits-file",
			Usage:   "YAML file with per content type size limits",
			Sources: env("LIMITS_FILE"),
		},
		&cli.BoolFlag{
			Name:    "allow-localhost",
			Value:   true,
			Usage:   "Allow URLs that point at localhost",
			Sources: env("ALLOW_LOCALHOST"),
		},
		&cli.BoolFlag{
			Name:    "allow-private-networks",
			Usage:   "Allow URLs that resolve to private or link-local addresses",
			Sources: env("ALLOW_PRIVATE_NETWORKS"),
		},
		&cli.DurationFlag{
			Name:    "dns-timeout",
			Value:   security.DefaultDNSTimeout,
			Usage:   "Timeout for resolving hostnames during URL validation",
			Sources: env("DNS_TIMEOUT"),
		},
		&cli.IntFlag{
			Name:    "retries",
			Value:   3,
			Usage:   "Maximum conversion attempts for transient failures",
			Sources: env("RETRY_ATTEMPTS"),
		},
		&cli.DurationFlag{
			Name:    "retry-delay",
			Value:   time.Second,
			Usage:   "Base delay between retries, doubled on each attempt",
			Sources: env("RETRY_DELAY"),
		},
		&cli.StringFlag{
			Name:    "browser",
			Usage:   "Path or name of a Chromium based browser for JavaScript rendering (default: search PATH)",
			Sources: env("BROWSER"),
		},
		&cli.BoolFlag{
			Name:    "disable-browser",
			Usage:   "Never use a browser, render_js requests fall back to a plain fetch",
			Sources: env("DISABLE_BROWSER"),
		},
		&cli.FloatFlag{
			Name:    "fetch-rps",
			Usage:   "Throttle outbound fetches to this many requests per second (0 disables)",
			Sources: env("FETCH_RPS"),
		},
		&cli.IntFlag{
			Name:    "fetch-burst",
			Value:   5,
			Usage:   "Burst size for the outbound fetch throttle",
			Sources: env("FETCH_BURST"),
		},
		&cli.StringFlag{
			Name:    "user-agent",
			Usage:   "User-Agent header for outbound fetches",
			Sources: env("USER_AGENT"),
		},
	}
}

// FromCommand reads Settings from parsed flags
func FromCommand(cmd *cli.Command) (Settings, error) {
	s := Settings{
		Host:                 cmd.String("host"),
		Port:                 int(cmd.Int("port")),
		Timeout:              cmd.Duration("timeout"),
		MaxFileSizeMB:        cmd.Float("max-file-size"),
		LimitsFile:           cmd.String("limits-file"),
		AllowLocalhost:       cmd.Bool("allow-localhost"),
		AllowPrivateNetworks: cmd.Bool("allow-private-networks"),
		DNSTimeout:           cmd.Duration("dns-timeout"),
		RetryAttempts:        int(cmd.Int("retries")),
		RetryDelay:           cmd.Duration("retry-delay"),
		Browser:              cmd.String("browser"),
		DisableBrowser:       cmd.Bool("disable-browser"),
		FetchRPS:             cmd.Float("fetch-rps"),
		FetchBurst:           int(cmd.Int("fetch-burst")),
		FetchUserAgent:       cmd.String("user-agent"),
	}
	s.HTTPWriteTimeout = s.Timeout + 10*time.Second
	return s, s.Validate()
}

// Validate checks values that flag parsing cannot
func (s Settings) Validate() error {
	var errs []error
	if s.Port < 0 || s.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range", s.Port))
	}
	if s.Timeout <= 0 {
		errs = append(errs, errors.New("timeout must be positive"))
	}
	if s.MaxFileSizeMB < 0 {
		errs = append(errs, errors.New("max-file-size must not be negative"))
	}
	if s.DNSTimeout <= 0 {
		errs = append(errs, errors.New("dns-timeout must be positive"))
	}
	if s.RetryAttempts < 1 {
		errs = append(errs, errors.New("retries must be at least 1"))
	}
	if s.FetchRPS < 0 {
		errs = append(errs, errors.New("fetch-rps must not be negative"))
	}
	return errors.Join(errs...)
}

// GuardOptions returns the URL policy
func (s Settings) GuardOptions() security.Options {
	return security.Options{
		AllowLocalhost:       s.AllowLocalhost,
		AllowPrivateNetworks: s.AllowPrivateNetworks,
	}
}

// Policy builds the size policy from the defaults, the limits file and --max-file-size
func (s Settings) Policy() (*limits.Policy, error) {
	policy := limits.DefaultPolicy()
	if s.LimitsFile != "" {
		loaded, err := limits.LoadFile(s.LimitsFile, policy)
		if err != nil {
			return nil, err
		}
		policy = loaded
	}
	if s.MaxFileSizeMB > 0 {
		policy = policy.WithOverrides(map[string]int64{"default": int64(s.MaxFileSizeMB * float64(limits.MB))})
	}
	return policy, nil
}

// Addr is the listen address of the HTTP server
func (s Settings) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// LoadEnvFiles loads .env from the working directory and ~/.md-server/.env. Variables
// already set in the environment win, and missing files are ignored.
func LoadEnvFiles() []string {
	candidates := []string{".env"}
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".md-server", ".env"))
	}

	var loaded []string
	for _, path := range candidates {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := godotenv.Load(path); err == nil {
			loaded = append(loaded, path)
		}
	}
	return loaded
}
