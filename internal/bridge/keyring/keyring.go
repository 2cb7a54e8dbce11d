// Package keyring implements bridge.Backend on top of the desktop OS
// credential store (macOS Keychain, Secret Service, Windows Credential Manager).
//
// Every domain gets its own keyring service. The store cannot enumerate
// entries, so each service also carries an index of saved usernames,
// most recent last.
package keyring

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"runtime"
	"slices"
	"sync"

	"github.com/atinyakov/sharedpasswords/internal/bridge"
	"github.com/atinyakov/sharedpasswords/internal/models"
	gokeyring "github.com/zalando/go-keyring"
)

// DefaultService prefixes every keyring service this backend writes.
const DefaultService = "sharedpasswords"

const indexAccount = "sharedpasswords.index"

// Store is the subset of the OS keyring used by the backend.
type Store interface {
	Get(service, user string) (string, error)
	Set(service, user, secret string) error
	Delete(service, user string) error
}

type osStore struct{}

func (osStore) Get(service, user string) (string, error) { return gokeyring.Get(service, user) }
func (osStore) Set(service, user, secret string) error   { return gokeyring.Set(service, user, secret) }
func (osStore) Delete(service, user string) error        { return gokeyring.Delete(service, user) }

// Config describes where the backend keeps credentials.
type Config struct {
	// Service prefixes keyring service names. Empty means DefaultService.
	Service string
	// DefaultDomain is used when a call leaves the domain empty.
	DefaultDomain string
}

// Backend stores passwords in the OS keyring. Passkeys are not supported.
type Backend struct {
	store         Store
	service       string
	defaultDomain string

	mu sync.Mutex
}

var _ bridge.Backend = (*Backend)(nil)

// New returns a backend over the OS keyring.
func New(cfg Config) *Backend {
	return NewWithStore(cfg, osStore{})
}

// NewWithStore returns a backend over an arbitrary store.
func NewWithStore(cfg Config, store Store) *Backend {
	service := cfg.Service
	if service == "" {
		service = DefaultService
	}
	return &Backend{store: store, service: service, defaultDomain: cfg.DefaultDomain}
}

func (b *Backend) domain(domain string) (string, error) {
	if domain != "" {
		return domain, nil
	}
	if b.defaultDomain != "" {
		return b.defaultDomain, nil
	}
	return "", bridge.Reject(models.CodeDomainNotConfigured, "No domain provided and no associated domain configured")
}

func (b *Backend) serviceFor(domain string) string {
	return b.service + ":" + domain
}

func (b *Backend) index(service string) ([]string, error) {
	raw, err := b.store.Get(service, indexAccount)
	if errors.Is(err, gokeyring.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read index: %w", err)
	}
	var users []string
	if err := json.Unmarshal([]byte(raw), &users); err != nil {
		return nil, fmt.Errorf("decode index: %w", err)
	}
	return users, nil
}

func (b *Backend) writeIndex(service string, users []string) error {
	if len(users) == 0 {
		err := b.store.Delete(service, indexAccount)
		if err != nil && !errors.Is(err, gokeyring.ErrNotFound) {
			return fmt.Errorf("clear index: %w", err)
		}
		return nil
	}
	raw, err := json.Marshal(users)
	if err != nil {
		return fmt.Errorf("encode index: %w", err)
	}
	if err := b.store.Set(service, indexAccount, string(raw)); err != nil {
		return fmt.Errorf("write index: %w", err)
	}
	return nil
}

// RequestPasswordAutoFill returns the most recently saved credential for the
// default domain.
func (b *Backend) RequestPasswordAutoFill(ctx context.Context) (*bridge.RawCredential, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	domain, err := b.domain("")
	if err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	service := b.serviceFor(domain)
	users, err := b.index(service)
	if err != nil {
		return nil, err
	}
	if len(users) == 0 {
		return nil, bridge.Reject(models.CodeNoCredentials, "No credentials available")
	}
	user := users[len(users)-1]
	password, err := b.store.Get(service, user)
	if errors.Is(err, gokeyring.ErrNotFound) {
		return nil, bridge.Reject(models.CodeNoCredentials, "No credentials available")
	}
	if err != nil {
		return nil, fmt.Errorf("read credential: %w", err)
	}
	return &bridge.RawCredential{Username: user, Password: password}, nil
}

// SavePassword writes the credential and moves username to the end of the
// domain index. Keyring write failures are reported, not returned.
func (b *Backend) SavePassword(ctx context.Context, username, password, domain string) (*bridge.RawOperationResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	domain, err := b.domain(domain)
	if err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	service := b.serviceFor(domain)
	if err := b.store.Set(service, username, password); err != nil {
		return &bridge.RawOperationResult{Success: false, Error: err.Error()}, nil
	}
	users, err := b.index(service)
	if err != nil {
		return &bridge.RawOperationResult{Success: false, Error: err.Error()}, nil
	}
	users = append(slices.DeleteFunc(users, func(u string) bool { return u == username }), username)
	if err := b.writeIndex(service, users); err != nil {
		return &bridge.RawOperationResult{Success: false, Error: err.Error()}, nil
	}
	return &bridge.RawOperationResult{Success: true}, nil
}

// HasStoredCredentials reports whether the domain index lists anyone.
func (b *Backend) HasStoredCredentials(ctx context.Context, domain string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	domain, err := b.domain(domain)
	if err != nil {
		return false, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	users, err := b.index(b.serviceFor(domain))
	if err != nil {
		return false, err
	}
	return len(users) > 0, nil
}

// DeleteCredential removes username from the domain.
func (b *Backend) DeleteCredential(ctx context.Context, username, domain string) (*bridge.RawOperationResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	domain, err := b.domain(domain)
	if err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	service := b.serviceFor(domain)
	err = b.store.Delete(service, username)
	if errors.Is(err, gokeyring.ErrNotFound) {
		return &bridge.RawOperationResult{Success: false, Error: "No credential stored for " + username}, nil
	}
	if err != nil {
		return &bridge.RawOperationResult{Success: false, Error: err.Error()}, nil
	}

	users, err := b.index(service)
	if err != nil {
		return &bridge.RawOperationResult{Success: false, Error: err.Error()}, nil
	}
	users = slices.DeleteFunc(users, func(u string) bool { return u == username })
	if err := b.writeIndex(service, users); err != nil {
		return &bridge.RawOperationResult{Success: false, Error: err.Error()}, nil
	}
	return &bridge.RawOperationResult{Success: true}, nil
}

func (b *Backend) CreatePasskey(context.Context, bridge.CreatePasskeyRequest) (*bridge.RawPasskeyCredential, error) {
	return nil, bridge.Reject(models.CodeNotSupported, "Passkeys are not supported by the OS keyring")
}

func (b *Backend) AuthenticateWithPasskey(context.Context, bridge.AuthenticatePasskeyRequest) (*bridge.RawPasskeyCredential, error) {
	return nil, bridge.Reject(models.CodeNotSupported, "Passkeys are not supported by the OS keyring")
}

// GetPlatformSupport reports password features only.
func (b *Backend) GetPlatformSupport(context.Context) (*models.PlatformSupport, error) {
	return &models.PlatformSupport{
		PasswordAutoFill: true,
		Passkeys:         false,
		SavePassword:     true,
		MinOSVersion:     "Unknown",
		CurrentOSVersion: runtime.GOOS + "/" + runtime.GOARCH,
	}, nil
}
