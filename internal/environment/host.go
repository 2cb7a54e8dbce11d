package environment

import (
	"errors"
	"fmt"
	"os"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// HostConfigEnv names the variable holding the path of the host descriptor file.
const HostConfigEnv = "SHARED_PASSWORDS_HOST_CONFIG"

// ErrNoHostConfig means the host did not provide a configuration descriptor.
// That is a normal outcome: bare hosts never do.
var ErrNoHostConfig = errors.New("host configuration is not available")

// HostConfig is the optional descriptor a packaging shell hands to the process.
type HostConfig struct {
	// ExecutionEnvironment is the primary discriminant:
	// "storeClient", "standalone" or "bare".
	ExecutionEnvironment string `yaml:"executionEnvironment" env:"SHARED_PASSWORDS_EXECUTION_ENVIRONMENT"`
	// AppOwnership is the legacy discriminant: "expo" or "standalone".
	AppOwnership string `yaml:"appOwnership" env:"SHARED_PASSWORDS_APP_OWNERSHIP"`
	// Platform is the host OS family, e.g. "ios" or "android".
	Platform string `yaml:"platform" env:"SHARED_PASSWORDS_PLATFORM"`
	// OSVersion is the host OS version string.
	OSVersion string `yaml:"osVersion" env:"SHARED_PASSWORDS_OS_VERSION"`
}

// HostConfigurationProvider supplies the host descriptor. Implementations
// return ErrNoHostConfig (or any error) when there is none.
type HostConfigurationProvider interface {
	HostConfig() (*HostConfig, error)
}

// StaticProvider returns a fixed descriptor or error. Tests use it in place
// of the ambient provider.
type StaticProvider struct {
	Config *HostConfig
	Err    error
}

// HostConfig implements HostConfigurationProvider.
func (p StaticProvider) HostConfig() (*HostConfig, error) {
	if p.Err != nil {
		return nil, p.Err
	}
	if p.Config == nil {
		return nil, ErrNoHostConfig
	}
	return p.Config, nil
}

// AmbientProvider reads the descriptor from the real process environment:
// a YAML file at Path (or at $SHARED_PASSWORDS_HOST_CONFIG), overlaid with
// SHARED_PASSWORDS_* variables.
type AmbientProvider struct {
	Path string
}

// HostConfig implements HostConfigurationProvider.
func (p AmbientProvider) HostConfig() (*HostConfig, error) {
	var cfg HostConfig
	loaded := false

	path := p.Path
	if path == "" {
		path = os.Getenv(HostConfigEnv)
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read host config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse host config: %w", err)
		}
		loaded = true
	}

	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse host env: %w", err)
	}
	if !loaded && cfg == (HostConfig{}) {
		return nil, ErrNoHostConfig
	}
	return &cfg, nil
}
