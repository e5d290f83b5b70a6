// Package config provides functionality for managing configuration options
// for the server and the client using command-line flags, an optional JSON
// config file and environment variables.
//
// Precedence, lowest to highest: defaults, config file, environment
// (including a local .env file), explicitly set flags.
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

// ServerOptions holds the configuration values for the backend server.
type ServerOptions struct {
	// Port defines the server's listening address (ip:port).
	Port string `json:"address" env:"SERVER_ADDRESS" env-default:"localhost:8080"`

	// DatabaseDSN holds the database connection string for the application.
	DatabaseDSN string `json:"database_dsn" env:"DATABASE_DSN"`

	// JWTSecret signs access tokens and signed object URLs.
	JWTSecret string `json:"jwt_secret" env:"JWT_SECRET"`
	// JWTIssuer is written into and required from every access token.
	JWTIssuer string `json:"jwt_issuer" env:"JWT_ISSUER" env-default:"maintenance"`

	AccessTokenTTL  time.Duration `json:"access_token_ttl" env:"ACCESS_TOKEN_TTL" env-default:"1h"`
	RefreshTokenTTL time.Duration `json:"refresh_token_ttl" env:"REFRESH_TOKEN_TTL" env-default:"720h"`
	// LinkTokenTTL bounds sign-up, recovery and invite links.
	LinkTokenTTL time.Duration `json:"link_token_ttl" env:"LINK_TOKEN_TTL" env-default:"24h"`

	// SiteURL is the redirect used when a request names none.
	SiteURL string `json:"site_url" env:"SITE_URL" env-default:"maintenanceapp://"`
	// PublicURL is the externally reachable base of this server, used in e-mailed links.
	PublicURL string `json:"public_url" env:"PUBLIC_URL" env-default:"https://localhost:8080"`

	TLSCert string `json:"tls_cert" env:"TLS_CERT"`
	TLSKey  string `json:"tls_key" env:"TLS_KEY"`

	// CleanupInterval is the period of the expired token cleaner.
	CleanupInterval time.Duration `json:"cleanup_interval" env:"CLEANUP_INTERVAL" env-default:"1h"`

	LogLevel string `json:"log_level" env:"LOG_LEVEL" env-default:"info"`

	// Config is the path to the Config file.
	Config string `json:"-"`
}

// Validate reports missing or unsafe settings.
func (o *ServerOptions) Validate() error {
	var errs []error
	if o.DatabaseDSN == "" {
		errs = append(errs, errors.New("database dsn is required"))
	}
	if len(o.JWTSecret) < 32 {
		errs = append(errs, errors.New("jwt secret must be at least 32 characters"))
	}
	if (o.TLSCert == "") != (o.TLSKey == "") {
		errs = append(errs, errors.New("tls cert and key must be set together"))
	}
	if o.AccessTokenTTL <= 0 || o.RefreshTokenTTL <= 0 || o.LinkTokenTTL <= 0 {
		errs = append(errs, errors.New("token lifetimes must be positive"))
	}
	return errors.Join(errs...)
}

// ClientOptions holds the configuration values for the terminal client.
type ClientOptions struct {
	// BaseURL is the backend root, e.g. https://localhost:8080.
	BaseURL string `json:"base_url" env:"BACKEND_URL" env-default:"https://localhost:8080"`
	// CAFile is an optional PEM bundle trusted in addition to the system roots.
	CAFile string `json:"ca_file" env:"CA_FILE" env-default:"certs/ca.crt"`

	// CredentialsFile stores the remembered login.
	CredentialsFile string `json:"credentials_file" env:"CREDENTIALS_FILE" env-default:"credentials.json"`
	// DeviceKeyFile holds the key sealing the remembered login.
	DeviceKeyFile string `json:"device_key_file" env:"DEVICE_KEY_FILE" env-default:"device.key"`

	// RedirectURL is the app link the backend sends recovery and sign-up links to.
	RedirectURL string `json:"redirect_url" env:"REDIRECT_URL" env-default:"maintenanceapp://"`

	SplashDelay time.Duration `json:"splash_delay" env:"SPLASH_DELAY" env-default:"2s"`
	Timeout     time.Duration `json:"timeout" env:"HTTP_TIMEOUT" env-default:"30s"`

	LogLevel string `json:"log_level" env:"LOG_LEVEL" env-default:"warn"`

	// Link is the launch deep link, if the client was started from one.
	Link string `json:"-"`

	// Config is the path to the Config file.
	Config string `json:"-"`
}

// ParseServer parses args, the config file and the environment into
// ServerOptions and validates the result.
func ParseServer(args []string) (*ServerOptions, error) {
	fs := flag.NewFlagSet("server", flag.ContinueOnError)

	var (
		port     string
		dsn      string
		logLevel string
		cfgPath  string
	)
	fs.StringVar(&port, "a", "localhost:8080", "run on ip:port server")
	fs.StringVar(&dsn, "d", "", "db address")
	fs.StringVar(&logLevel, "log-level", "info", "log level")
	fs.StringVar(&cfgPath, "config", "config.json", "path to config file")
	fs.StringVar(&cfgPath, "c", "config.json", "path to config file (shorthand)")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	options := &ServerOptions{Config: cfgPath}
	if err := load(options.configPath(), options); err != nil {
		return nil, err
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "a":
			options.Port = port
		case "d":
			options.DatabaseDSN = dsn
		case "log-level":
			options.LogLevel = logLevel
		}
	})

	if err := options.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return options, nil
}

// ParseClient parses args, the config file and the environment into
// ClientOptions.
func ParseClient(args []string) (*ClientOptions, error) {
	fs := flag.NewFlagSet("client", flag.ContinueOnError)

	var (
		baseURL  string
		caFile   string
		logLevel string
		cfgPath  string
	)
	fs.StringVar(&baseURL, "url", "https://localhost:8080", "backend base URL")
	fs.StringVar(&caFile, "ca", "certs/ca.crt", "path to CA cert")
	fs.StringVar(&logLevel, "log-level", "warn", "log level")
	fs.StringVar(&cfgPath, "config", "client.json", "path to config file")
	fs.StringVar(&cfgPath, "c", "client.json", "path to config file (shorthand)")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	options := &ClientOptions{Config: cfgPath}
	if err := load(options.configPath(), options); err != nil {
		return nil, err
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "url":
			options.BaseURL = baseURL
		case "ca":
			options.CAFile = caFile
		case "log-level":
			options.LogLevel = logLevel
		}
	})

	// A single positional argument is the launch link.
	if fs.NArg() > 0 {
		options.Link = fs.Arg(0)
	}
	return options, nil
}

func (o *ServerOptions) configPath() string { return configOverride(o.Config) }

func (o *ClientOptions) configPath() string { return configOverride(o.Config) }

// configOverride lets the CONFIG environment variable replace the flag value.
func configOverride(path string) string {
	if p := os.Getenv("CONFIG"); p != "" {
		return p
	}
	return path
}

// load fills cfg from the JSON file at path when it exists, and from the
// environment otherwise. A .env file in the working directory is merged
// into the environment first without overriding variables already set.
func load(path string, cfg any) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("config: load .env: %w", err)
	}

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := cleanenv.ReadConfig(path, cfg); err != nil {
				return fmt.Errorf("config: read %s: %w", path, err)
			}
			return nil
		}
	}

	if err := cleanenv.ReadEnv(cfg); err != nil {
		return fmt.Errorf("config: read env: %w", err)
	}
	return nil
}
