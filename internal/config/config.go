// Package config provides functionality for managing configuration options
// for the application using command-line flags, a JSON config file and
// environment variables, applied in that order.
package config

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
)

// Backend kinds.
const (
	BackendKeyring = "keyring"
	BackendPlugin  = "plugin"
	BackendNone    = "none"
)

// Bridge generations a backend can be published under.
const (
	GenerationModern = "modern"
	GenerationLegacy = "legacy"
)

// Duration is a time.Duration that reads "90s" style text from flags,
// JSON strings and environment variables.
type Duration time.Duration

func (d Duration) String() string { return time.Duration(d).String() }

// Set implements flag.Value.
func (d *Duration) Set(s string) error { return d.UnmarshalText([]byte(s)) }

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// Options holds the configuration values for the application.
type Options struct {
	// Port defines the diagnostics server's listening address (ip:port).
	Port string `json:"address" env:"SERVER_ADDRESS"`

	// DatabaseDSN holds the audit journal connection string. Empty disables the journal.
	DatabaseDSN string `json:"database_dsn" env:"DATABASE_DSN"`

	// Config is the path to the Config file.
	Config string `json:"-" env:"CONFIG"`

	// LogLevel is a zap level name.
	LogLevel string `json:"log_level" env:"LOG_LEVEL"`

	// Backend selects the credential backend: keyring, plugin or none.
	Backend string `json:"backend" env:"SHARED_PASSWORDS_BACKEND"`

	// Generation selects where the backend is published: modern or legacy.
	Generation string `json:"bridge_generation" env:"SHARED_PASSWORDS_BRIDGE"`

	// HelperPath is the credential helper binary used by the plugin backend.
	HelperPath string `json:"helper_path" env:"SHARED_PASSWORDS_HELPER"`

	// KeyringService prefixes keyring service names.
	KeyringService string `json:"keyring_service" env:"SHARED_PASSWORDS_KEYRING_SERVICE"`

	// DefaultDomain is used when a call leaves the domain empty.
	DefaultDomain string `json:"default_domain" env:"SHARED_PASSWORDS_DEFAULT_DOMAIN"`

	// HostConfig is the host descriptor path. Empty falls back to
	// $SHARED_PASSWORDS_HOST_CONFIG.
	HostConfig string `json:"host_config" env:"SHARED_PASSWORDS_HOST_CONFIG"`

	// AdminToken guards the audit endpoints. Empty leaves them open.
	AdminToken string `json:"admin_token" env:"SHARED_PASSWORDS_ADMIN_TOKEN"`

	// TLSCert and TLSKey are the server's PEM pair. Both empty serves plain HTTP.
	TLSCert string `json:"tls_cert" env:"SHARED_PASSWORDS_TLS_CERT"`
	TLSKey  string `json:"tls_key" env:"SHARED_PASSWORDS_TLS_KEY"`

	// TLSClientCA verifies client certificates when set.
	TLSClientCA string `json:"tls_client_ca" env:"SHARED_PASSWORDS_TLS_CLIENT_CA"`

	// AuditRetention is how long audit events are kept.
	AuditRetention Duration `json:"audit_retention" env:"AUDIT_RETENTION"`

	// CleanupInterval is how often expired audit events are purged.
	CleanupInterval Duration `json:"cleanup_interval" env:"AUDIT_CLEANUP_INTERVAL"`
}

// Default returns the built-in defaults.
func Default() *Options {
	return &Options{
		Port:            "localhost:8080",
		Config:          "config.json",
		LogLevel:        "info",
		Backend:         BackendKeyring,
		Generation:      GenerationModern,
		KeyringService:  "sharedpasswords",
		AuditRetention:  Duration(30 * 24 * time.Hour),
		CleanupInterval: Duration(time.Hour),
	}
}

// RegisterFlags binds o to fs.
func (o *Options) RegisterFlags(fs *flag.FlagSet) {
	fs.StringVar(&o.Port, "a", o.Port, "run on ip:port server")
	fs.StringVar(&o.DatabaseDSN, "d", o.DatabaseDSN, "db address")
	fs.StringVar(&o.Config, "config", o.Config, "path to config file")
	fs.StringVar(&o.Config, "c", o.Config, "path to config file (shorthand)")
	fs.StringVar(&o.LogLevel, "l", o.LogLevel, "log level")
	fs.StringVar(&o.Backend, "backend", o.Backend, "credential backend: keyring, plugin or none")
	fs.StringVar(&o.Generation, "bridge", o.Generation, "bridge generation: modern or legacy")
	fs.StringVar(&o.HelperPath, "helper", o.HelperPath, "credential helper binary")
	fs.StringVar(&o.DefaultDomain, "domain", o.DefaultDomain, "default credential domain")
	fs.StringVar(&o.HostConfig, "host-config", o.HostConfig, "host descriptor file")
	fs.Var(&o.AuditRetention, "retention", "audit event retention")
	fs.StringVar(&o.TLSCert, "tls-cert", o.TLSCert, "server certificate (PEM)")
	fs.StringVar(&o.TLSKey, "tls-key", o.TLSKey, "server private key (PEM)")
	fs.StringVar(&o.TLSClientCA, "tls-client-ca", o.TLSClientCA, "CA for client certificates (PEM)")
}

// ParseArgs builds Options from defaults, args, the config file and the
// environment.
func ParseArgs(args []string) (*Options, error) {
	o := Default()
	fs := flag.NewFlagSet("sharedpasswords", flag.ContinueOnError)
	o.RegisterFlags(fs)
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if err := o.overlay(); err != nil {
		return nil, err
	}
	return o, nil
}

// Load builds Options from defaults, the config file at path and the
// environment. It is used where flags are parsed elsewhere.
func Load(path string) (*Options, error) {
	o := Default()
	if path != "" {
		o.Config = path
	}
	if err := o.overlay(); err != nil {
		return nil, err
	}
	return o, nil
}

func (o *Options) overlay() error {
	if configPath := os.Getenv("CONFIG"); configPath != "" {
		o.Config = configPath
	}
	if o.Config != "" {
		data, err := os.ReadFile(o.Config)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return fmt.Errorf("error while reading config file: %w", err)
		default:
			if err := json.Unmarshal(data, o); err != nil {
				return fmt.Errorf("error while parsing config file: %w", err)
			}
		}
	}

	if err := env.Parse(o); err != nil {
		return fmt.Errorf("error while parsing environment: %w", err)
	}
	return o.validate()
}

func (o *Options) validate() error {
	switch o.Backend {
	case BackendKeyring, BackendNone:
	case BackendPlugin:
		if o.HelperPath == "" {
			return errors.New("plugin backend requires a helper path")
		}
	default:
		return fmt.Errorf("unknown backend %q", o.Backend)
	}
	switch o.Generation {
	case GenerationModern, GenerationLegacy:
	default:
		return fmt.Errorf("unknown bridge generation %q", o.Generation)
	}
	if o.AuditRetention <= 0 {
		return fmt.Errorf("audit retention must be positive, got %s", o.AuditRetention)
	}
	if o.CleanupInterval <= 0 {
		return fmt.Errorf("audit cleanup interval must be positive, got %s", o.CleanupInterval)
	}
	if (o.TLSCert == "") != (o.TLSKey == "") {
		return errors.New("tls cert and key must be set together")
	}
	if o.TLSClientCA != "" && o.TLSCert == "" {
		return errors.New("tls client ca requires a server certificate")
	}
	return nil
}

// TLSEnabled reports whether the server should terminate TLS.
func (o *Options) TLSEnabled() bool {
	return o.TLSCert != "" && o.TLSKey != ""
}

// Parse parses the process command line and environment. It exits on error.
func Parse() *Options {
	o, err := ParseArgs(os.Args[1:])
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	return o
}
