package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/atinyakov/sharedpasswords/internal/bridge"
	"github.com/atinyakov/sharedpasswords/internal/environment"
	"github.com/atinyakov/sharedpasswords/internal/models"
)

// mockBackend implements bridge.Backend with per-method funcs. Unset
// methods fail loudly so tests notice unexpected calls.
type mockBackend struct {
	RequestPasswordAutoFillFunc func(ctx context.Context) (*bridge.RawCredential, error)
	SavePasswordFunc            func(ctx context.Context, username, password, domain string) (*bridge.RawOperationResult, error)
	HasStoredCredentialsFunc    func(ctx context.Context, domain string) (bool, error)
	DeleteCredentialFunc        func(ctx context.Context, username, domain string) (*bridge.RawOperationResult, error)
	CreatePasskeyFunc           func(ctx context.Context, req bridge.CreatePasskeyRequest) (*bridge.RawPasskeyCredential, error)
	AuthenticateWithPasskeyFunc func(ctx context.Context, req bridge.AuthenticatePasskeyRequest) (*bridge.RawPasskeyCredential, error)
	GetPlatformSupportFunc      func(ctx context.Context) (*models.PlatformSupport, error)
}

var errUnexpectedCall = errors.New("unexpected backend call")

func (m *mockBackend) RequestPasswordAutoFill(ctx context.Context) (*bridge.RawCredential, error) {
	if m.RequestPasswordAutoFillFunc == nil {
		return nil, errUnexpectedCall
	}
	return m.RequestPasswordAutoFillFunc(ctx)
}

func (m *mockBackend) SavePassword(ctx context.Context, username, password, domain string) (*bridge.RawOperationResult, error) {
	if m.SavePasswordFunc == nil {
		return nil, errUnexpectedCall
	}
	return m.SavePasswordFunc(ctx, username, password, domain)
}

func (m *mockBackend) HasStoredCredentials(ctx context.Context, domain string) (bool, error) {
	if m.HasStoredCredentialsFunc == nil {
		return false, errUnexpectedCall
	}
	return m.HasStoredCredentialsFunc(ctx, domain)
}

func (m *mockBackend) DeleteCredential(ctx context.Context, username, domain string) (*bridge.RawOperationResult, error) {
	if m.DeleteCredentialFunc == nil {
		return nil, errUnexpectedCall
	}
	return m.DeleteCredentialFunc(ctx, username, domain)
}

func (m *mockBackend) CreatePasskey(ctx context.Context, req bridge.CreatePasskeyRequest) (*bridge.RawPasskeyCredential, error) {
	if m.CreatePasskeyFunc == nil {
		return nil, errUnexpectedCall
	}
	return m.CreatePasskeyFunc(ctx, req)
}

func (m *mockBackend) AuthenticateWithPasskey(ctx context.Context, req bridge.AuthenticatePasskeyRequest) (*bridge.RawPasskeyCredential, error) {
	if m.AuthenticateWithPasskeyFunc == nil {
		return nil, errUnexpectedCall
	}
	return m.AuthenticateWithPasskeyFunc(ctx, req)
}

func (m *mockBackend) GetPlatformSupport(ctx context.Context) (*models.PlatformSupport, error) {
	if m.GetPlatformSupportFunc == nil {
		return nil, errUnexpectedCall
	}
	return m.GetPlatformSupportFunc(ctx)
}

// fakeResolver resolves to backend, or to nothing when backend is nil.
type fakeResolver struct {
	backend bridge.Backend
	calls   int
}

func (p *fakeResolver) Resolve() (bridge.Backend, bridge.Generation, error) {
	p.calls++
	if p.backend == nil {
		return nil, "", bridge.ErrNotLinked
	}
	return p.backend, bridge.GenerationModern, nil
}

type fakeAudit struct {
	mu     sync.Mutex
	events []models.AuditEvent
	err    error
}

func (f *fakeAudit) Record(_ context.Context, event models.AuditEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
	return f.err
}

type observation struct {
	operation string
	code      string
}

type fakeRecorder struct {
	seen []observation
}

func (f *fakeRecorder) ObserveOperation(operation, code string, _ time.Duration) {
	f.seen = append(f.seen, observation{operation, code})
}

func hostFor(env environment.Environment) *environment.HostConfig {
	switch env {
	case environment.RestrictedSandbox:
		return &environment.HostConfig{ExecutionEnvironment: "storeClient", Platform: "ios", OSVersion: "17.4"}
	case environment.NativeDevelopmentBuild:
		return &environment.HostConfig{ExecutionEnvironment: "standalone", Platform: "android", OSVersion: "14"}
	default:
		return nil
	}
}

func newFacade(env environment.Environment, backend bridge.Backend, opts ...Option) (*SharedPasswords, *fakeResolver) {
	resolver := &fakeResolver{backend: backend}
	detector := environment.NewDetector(environment.StaticProvider{Config: hostFor(env)}, resolver)
	return New(detector, resolver, opts...), resolver
}

var allEnvironments = []environment.Environment{
	environment.RestrictedSandbox,
	environment.NativeDevelopmentBuild,
	environment.NativeBare,
}
