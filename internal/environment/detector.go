// Package environment works out which runtime context the process runs in
// and whether a native credential backend can be reached from it.
package environment

import (
	"strings"
	"sync"

	"github.com/atinyakov/sharedpasswords/internal/bridge"
)

// Environment is the detection verdict.
type Environment string

const (
	// RestrictedSandbox is a generic store-distributed shell that cannot load native modules.
	RestrictedSandbox Environment = "restricted-sandbox"
	// NativeDevelopmentBuild is a standalone or managed build with native modules.
	NativeDevelopmentBuild Environment = "native-development-build"
	// NativeBare is a host with no descriptor at all.
	NativeBare Environment = "native-bare"
)

// Descriptor discriminant values.
const (
	execStoreClient = "storeclient"
	execStandalone  = "standalone"
	execBare        = "bare"
	ownershipExpo   = "expo"
)

// BackendResolver resolves a backend handle. *bridge.Resolver satisfies it.
type BackendResolver interface {
	Resolve() (bridge.Backend, bridge.Generation, error)
}

// Detect classifies the host from provider. It never panics and never fails:
// a missing or unreadable descriptor means NativeBare.
func Detect(provider HostConfigurationProvider) Environment {
	env, _ := detect(provider)
	return env
}

func detect(provider HostConfigurationProvider) (env Environment, host *HostConfig) {
	defer func() {
		if recover() != nil {
			env, host = NativeBare, nil
		}
	}()
	if provider == nil {
		return NativeBare, nil
	}
	cfg, err := provider.HostConfig()
	if err != nil || cfg == nil {
		return NativeBare, nil
	}
	return classify(cfg), cfg
}

func classify(cfg *HostConfig) Environment {
	switch strings.ToLower(strings.TrimSpace(cfg.ExecutionEnvironment)) {
	case execStoreClient:
		return RestrictedSandbox
	case execStandalone:
		return NativeDevelopmentBuild
	case execBare:
		return NativeBare
	}
	switch strings.ToLower(strings.TrimSpace(cfg.AppOwnership)) {
	case ownershipExpo:
		return RestrictedSandbox
	case execStandalone:
		return NativeDevelopmentBuild
	}
	return NativeBare
}

// Detector caches the verdict for the life of the process.
type Detector struct {
	provider HostConfigurationProvider
	resolver BackendResolver

	once sync.Once
	env  Environment
	host *HostConfig
}

// NewDetector returns a detector over provider. resolver may be nil, in which
// case HasUsableBackend always reports false.
func NewDetector(provider HostConfigurationProvider, resolver BackendResolver) *Detector {
	return &Detector{provider: provider, resolver: resolver}
}

func (d *Detector) load() {
	d.once.Do(func() {
		d.env, d.host = detect(d.provider)
	})
}

// Environment returns the cached verdict, computing it on first use.
func (d *Detector) Environment() Environment {
	d.load()
	return d.env
}

// Host returns the descriptor seen during detection, or nil.
func (d *Detector) Host() *HostConfig {
	d.load()
	return d.host
}

// IsRestricted reports whether the verdict is RestrictedSandbox.
func (d *Detector) IsRestricted() bool {
	return d.Environment() == RestrictedSandbox
}

// HasUsableBackend reports whether a backend can be resolved. It is always
// false in the restricted sandbox.
func (d *Detector) HasUsableBackend() bool {
	if d.IsRestricted() || d.resolver == nil {
		return false
	}
	b, _, err := safeResolve(d.resolver)
	return err == nil && b != nil
}

func safeResolve(resolver BackendResolver) (b bridge.Backend, gen bridge.Generation, err error) {
	defer func() {
		if recover() != nil {
			b, gen, err = nil, "", bridge.ErrNotLinked
		}
	}()
	return resolver.Resolve()
}

// Describe returns a short fixed label for the verdict.
func (d *Detector) Describe() string {
	return Describe(d.Environment())
}

// Info returns guidance text for the verdict.
func (d *Detector) Info() string {
	return Info(d.Environment())
}

// Describe returns a short fixed label for env.
func Describe(env Environment) string {
	switch env {
	case RestrictedSandbox:
		return "Store client sandbox"
	case NativeDevelopmentBuild:
		return "Development build"
	default:
		return "Bare native host"
	}
}

// Info returns guidance text for env.
func Info(env Environment) string {
	switch env {
	case RestrictedSandbox:
		return "Running in a store client sandbox. Native password/passkey features require a development build. " +
			"Run `npx expo run:ios` or `npx expo run:android` to use native features."
	case NativeDevelopmentBuild:
		return "Running in a development build with native modules."
	default:
		return "Running in a bare native host with native modules."
	}
}
