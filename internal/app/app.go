// Package app wires configuration to a credential backend and builds the
// shared passwords facade on top of it.
package app

import (
	"fmt"
	"sync"

	"github.com/atinyakov/sharedpasswords/internal/bridge"
	"github.com/atinyakov/sharedpasswords/internal/bridge/keyring"
	"github.com/atinyakov/sharedpasswords/internal/bridge/pluginrpc"
	"github.com/atinyakov/sharedpasswords/internal/config"
	"github.com/atinyakov/sharedpasswords/internal/environment"
	"github.com/atinyakov/sharedpasswords/internal/service"
	"go.uber.org/zap"
)

// Publisher decides where backends are published and looked up.
type Publisher struct {
	Registry *bridge.Registry
	Modules  *bridge.ModuleTable
}

// DefaultPublisher publishes into the process-wide registry and module table.
func DefaultPublisher() Publisher {
	return Publisher{Registry: bridge.DefaultRegistry, Modules: bridge.DefaultModules}
}

// Resolver returns a resolver over the publisher's stores.
func (p Publisher) Resolver() *bridge.Resolver {
	return &bridge.Resolver{Name: bridge.ModuleName, Registry: p.Registry, Modules: p.Modules}
}

// InstallBackend publishes the backend selected by o. The modern generation
// registers a lazy factory; the legacy one needs a constructed backend, so a
// plugin helper is launched immediately. The returned func stops any helper
// that was started.
func (p Publisher) InstallBackend(o *config.Options) (func(), error) {
	var (
		mu     sync.Mutex
		helper *pluginrpc.Helper
	)
	cleanup := func() {
		mu.Lock()
		defer mu.Unlock()
		if helper != nil {
			helper.Close()
			helper = nil
		}
	}

	var factory bridge.Factory
	switch o.Backend {
	case config.BackendNone:
		return cleanup, nil
	case config.BackendKeyring:
		cfg := keyring.Config{Service: o.KeyringService, DefaultDomain: o.DefaultDomain}
		factory = func() (bridge.Backend, error) { return keyring.New(cfg), nil }
	case config.BackendPlugin:
		path, args := o.HelperPath, helperArgs(o)
		factory = func() (bridge.Backend, error) {
			h, err := pluginrpc.Launch(path, args...)
			if err != nil {
				return nil, err
			}
			mu.Lock()
			helper = h
			mu.Unlock()
			return h, nil
		}
	default:
		return nil, fmt.Errorf("unknown backend %q", o.Backend)
	}

	if o.Generation == config.GenerationLegacy {
		if p.Modules == nil {
			return nil, fmt.Errorf("no module table to publish into")
		}
		b, err := factory()
		if err != nil {
			return nil, fmt.Errorf("install %s backend: %w", o.Backend, err)
		}
		p.Modules.Set(bridge.ModuleName, b)
		return cleanup, nil
	}

	if p.Registry == nil {
		return nil, fmt.Errorf("no registry to publish into")
	}
	p.Registry.Register(bridge.ModuleName, factory)
	return cleanup, nil
}

// helperArgs passes the keyring settings on to the credential helper so both
// backends read and write the same entries.
func helperArgs(o *config.Options) []string {
	return []string{"-service", o.KeyringService, "-domain", o.DefaultDomain}
}

// NewFacade installs the configured backend and returns a facade that
// resolves it on first use.
func (p Publisher) NewFacade(o *config.Options, log *zap.Logger, opts ...service.Option) (*service.SharedPasswords, func(), error) {
	cleanup, err := p.InstallBackend(o)
	if err != nil {
		return nil, nil, err
	}

	resolver := p.Resolver()
	detector := environment.NewDetector(environment.AmbientProvider{Path: o.HostConfig}, resolver)

	log.Info("environment detected",
		zap.String("environment", string(detector.Environment())),
		zap.String("backend", o.Backend),
		zap.String("bridge", o.Generation),
	)

	facade := service.New(detector, resolver, append([]service.Option{service.WithLogger(log)}, opts...)...)
	return facade, cleanup, nil
}
