// Package service provides the shared passwords facade: it routes every
// operation to a native credential backend or to the restricted-sandbox
// stub and reports backend failures through a closed error taxonomy.
package service

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/atinyakov/sharedpasswords/internal/bridge"
	"github.com/atinyakov/sharedpasswords/internal/environment"
	"github.com/atinyakov/sharedpasswords/internal/models"
	"github.com/go-webauthn/webauthn/protocol"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Operation names used for logging, metrics and audit events.
const (
	OpRequestPasswordAutoFill = "requestPasswordAutoFill"
	OpSavePassword            = "savePassword"
	OpHasStoredCredentials    = "hasStoredCredentials"
	OpDeleteCredential        = "deleteCredential"
	OpCreatePasskey           = "createPasskey"
	OpAuthenticateWithPasskey = "authenticateWithPasskey"
	OpGetPlatformSupport      = "getPlatformSupport"
)

// CodeOK is recorded for calls that succeed.
const CodeOK = "OK"

// Passkey defaults applied when the caller leaves a field empty.
const (
	DefaultPasskeyTimeout          = 60 * time.Second
	DefaultAuthenticatorAttachment = protocol.Platform
	DefaultResidentKey             = protocol.ResidentKeyRequirementPreferred
	DefaultUserVerification        = protocol.VerificationPreferred
	DefaultAttestation             = protocol.PreferNoAttestation
)

// AuditSink persists audit events.
type AuditSink interface {
	// Record stores one event.
	Record(ctx context.Context, event models.AuditEvent) error
}

// Recorder receives per-operation metrics.
type Recorder interface {
	ObserveOperation(operation, code string, elapsed time.Duration)
}

// Option configures a SharedPasswords facade.
type Option func(*SharedPasswords)

// WithLogger sets the logger. The default discards everything.
func WithLogger(log *zap.Logger) Option {
	return func(s *SharedPasswords) {
		if log != nil {
			s.log = log
		}
	}
}

// WithAuditSink records one event per call to sink.
func WithAuditSink(sink AuditSink) Option {
	return func(s *SharedPasswords) { s.audit = sink }
}

// WithRecorder reports per-call metrics to r.
func WithRecorder(r Recorder) Option {
	return func(s *SharedPasswords) { s.metrics = r }
}

// SharedPasswords is the single entry point for password and passkey
// operations. It is safe for concurrent use.
type SharedPasswords struct {
	detector *environment.Detector
	resolver environment.BackendResolver
	log      *zap.Logger
	audit    AuditSink
	metrics  Recorder
	now      func() time.Time

	mu      sync.Mutex
	backend bridge.Backend

	stubOnce sync.Once
	stub     *Stub
}

// New builds the facade. detector decides between the stub and a native
// backend; resolver resolves that backend on first use.
func New(detector *environment.Detector, resolver environment.BackendResolver, opts ...Option) *SharedPasswords {
	s := &SharedPasswords{
		detector: detector,
		resolver: resolver,
		log:      zap.NewNop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Environment returns the cached detection verdict.
func (s *SharedPasswords) Environment() environment.Environment {
	return s.detector.Environment()
}

// IsRestrictedEnvironment reports whether calls are served by the sandbox stub.
func (s *SharedPasswords) IsRestrictedEnvironment() bool {
	return s.detector.IsRestricted()
}

// HasUsableBackend reports whether a native backend can be resolved.
func (s *SharedPasswords) HasUsableBackend() bool {
	return s.detector.HasUsableBackend()
}

// DescribeEnvironment returns a short label for the detected environment.
func (s *SharedPasswords) DescribeEnvironment() string {
	return s.detector.Describe()
}

// GetEnvironmentInfo returns guidance text for the detected environment.
func (s *SharedPasswords) GetEnvironmentInfo() string {
	return s.detector.Info()
}

func (s *SharedPasswords) sandbox() *Stub {
	s.stubOnce.Do(func() {
		s.stub = NewStub(s.detector.Host())
	})
	return s.stub
}

// resolve returns the memoized backend. Failed lookups are not cached, but
// each one yields the same linking error.
func (s *SharedPasswords) resolve() (bridge.Backend, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.backend != nil {
		return s.backend, nil
	}
	b, gen, err := resolveSafely(s.resolver)
	if err != nil || b == nil {
		return nil, models.WrapError(models.CodeUnknown, linkingError(hostPlatform(s.detector.Host())), bridge.ErrNotLinked)
	}
	s.log.Info("resolved credential backend",
		zap.String("generation", string(gen)),
		zap.String("environment", string(s.detector.Environment())),
	)
	s.backend = b
	return b, nil
}

func resolveSafely(resolver environment.BackendResolver) (b bridge.Backend, gen bridge.Generation, err error) {
	if resolver == nil {
		return nil, "", bridge.ErrNotLinked
	}
	defer func() {
		if recover() != nil {
			b, gen, err = nil, "", bridge.ErrNotLinked
		}
	}()
	return resolver.Resolve()
}

func linkingError(platform string) string {
	msg := "The package 'sharedpasswords' doesn't seem to be linked. Make sure: \n\n"
	if platform == "ios" {
		msg += "- You have run 'pod install'\n"
	}
	return msg +
		"- You rebuilt the app after installing the package\n" +
		"- You are not using the store client sandbox (use a development build instead)"
}

// dispatch runs one of the five throwing operations: the stub in the
// sandbox, the resolved backend everywhere else.
func dispatch[T any](
	ctx context.Context,
	s *SharedPasswords,
	op, subject string,
	sandboxed func(*Stub) (T, error),
	native func(bridge.Backend) (T, error),
) (T, error) {
	start := s.now()

	var (
		out T
		err error
	)
	if s.detector.IsRestricted() {
		out, err = sandboxed(s.sandbox())
	} else if b, rerr := s.resolve(); rerr != nil {
		err = rerr
	} else {
		out, err = native(b)
	}

	if err != nil {
		normalized := Normalize(err)
		s.log.Debug("shared passwords operation failed",
			zap.String("operation", op),
			zap.String("code", string(normalized.Code)),
			zap.String("message", normalized.Message),
		)
		s.observe(ctx, op, subject, start, string(normalized.Code))
		var zero T
		return zero, normalized
	}
	s.observe(ctx, op, subject, start, CodeOK)
	return out, nil
}

func (s *SharedPasswords) observe(ctx context.Context, op, subject string, start time.Time, code string) {
	finished := s.now()
	elapsed := finished.Sub(start)

	if s.metrics != nil {
		s.metrics.ObserveOperation(op, code, elapsed)
	}
	if s.audit == nil {
		return
	}
	event := models.AuditEvent{
		ID:             uuid.NewString(),
		Operation:      op,
		Environment:    string(s.detector.Environment()),
		Code:           code,
		Subject:        subject,
		DurationMillis: elapsed.Milliseconds(),
		CreatedAt:      finished.UTC(),
	}
	if err := s.audit.Record(context.WithoutCancel(ctx), event); err != nil {
		s.log.Warn("failed to record audit event", zap.String("operation", op), zap.Error(err))
	}
}

// RequestPasswordAutoFill shows the system credential picker and returns the
// credential the user selected.
func (s *SharedPasswords) RequestPasswordAutoFill(ctx context.Context) (*models.Credential, error) {
	return dispatch(ctx, s, OpRequestPasswordAutoFill, "",
		func(st *Stub) (*models.Credential, error) { return st.RequestPasswordAutoFill(ctx) },
		func(b bridge.Backend) (*models.Credential, error) {
			raw, err := b.RequestPasswordAutoFill(ctx)
			if err != nil {
				return nil, err
			}
			if raw == nil {
				return nil, errors.New("backend returned no credential")
			}
			return &models.Credential{Username: raw.Username, Password: raw.Password}, nil
		})
}

// SavePassword stores a credential in the system credential store. A
// backend that accepts the call but cannot store the credential reports
// Success=false instead of an error.
func (s *SharedPasswords) SavePassword(ctx context.Context, opts models.SavePasswordOptions) (*models.OperationResult, error) {
	return dispatch(ctx, s, OpSavePassword, opts.Domain,
		func(st *Stub) (*models.OperationResult, error) { return st.SavePassword(ctx, opts) },
		func(b bridge.Backend) (*models.OperationResult, error) {
			if opts.Username == "" || opts.Password == "" {
				return nil, bridge.Reject(models.CodeInvalidParameters, "Missing username or password")
			}
			raw, err := b.SavePassword(ctx, opts.Username, opts.Password, opts.Domain)
			if err != nil {
				return nil, err
			}
			return operationResult(raw), nil
		})
}

// HasStoredCredentials reports whether credentials exist for domain. It never
// fails: any failure, including a missing backend, reads as false.
func (s *SharedPasswords) HasStoredCredentials(ctx context.Context, domain string) bool {
	start := s.now()

	if s.detector.IsRestricted() {
		found := s.sandbox().HasStoredCredentials(ctx, domain)
		s.observe(ctx, OpHasStoredCredentials, domain, start, CodeOK)
		return found
	}

	b, err := s.resolve()
	if err == nil {
		var found bool
		found, err = b.HasStoredCredentials(ctx, domain)
		if err == nil {
			s.observe(ctx, OpHasStoredCredentials, domain, start, CodeOK)
			return found
		}
	}

	normalized := Normalize(err)
	s.log.Debug("credential lookup failed, reporting none",
		zap.String("code", string(normalized.Code)),
		zap.String("message", normalized.Message),
	)
	s.observe(ctx, OpHasStoredCredentials, domain, start, string(normalized.Code))
	return false
}

// DeleteCredential removes the credential for the given username and domain.
func (s *SharedPasswords) DeleteCredential(ctx context.Context, opts models.DeleteCredentialOptions) (*models.OperationResult, error) {
	return dispatch(ctx, s, OpDeleteCredential, opts.Domain,
		func(st *Stub) (*models.OperationResult, error) { return st.DeleteCredential(ctx, opts) },
		func(b bridge.Backend) (*models.OperationResult, error) {
			if opts.Username == "" {
				return nil, bridge.Reject(models.CodeInvalidParameters, "Missing username")
			}
			raw, err := b.DeleteCredential(ctx, opts.Username, opts.Domain)
			if err != nil {
				return nil, err
			}
			return operationResult(raw), nil
		})
}

// CreatePasskey registers a new passkey. The returned attestation is meant to
// be verified by the relying party.
func (s *SharedPasswords) CreatePasskey(ctx context.Context, opts models.CreatePasskeyOptions) (*models.PasskeyCredential, error) {
	return dispatch(ctx, s, OpCreatePasskey, opts.RPID,
		func(st *Stub) (*models.PasskeyCredential, error) { return st.CreatePasskey(ctx, opts) },
		func(b bridge.Backend) (*models.PasskeyCredential, error) {
			if err := validateCreatePasskey(opts); err != nil {
				return nil, err
			}
			raw, err := b.CreatePasskey(ctx, CreatePasskeyRequest(opts))
			if err != nil {
				return nil, err
			}
			if raw == nil {
				return nil, errors.New("backend returned no passkey")
			}
			return &models.PasskeyCredential{
				CredentialID:      raw.CredentialID,
				RawID:             raw.RawID,
				Type:              raw.Type,
				ClientDataJSON:    raw.ClientDataJSON,
				AuthenticatorData: raw.AuthenticatorData,
				AttestationObject: raw.AttestationObject,
			}, nil
		})
}

// AuthenticateWithPasskey produces an assertion for the given challenge.
func (s *SharedPasswords) AuthenticateWithPasskey(ctx context.Context, opts models.AuthenticatePasskeyOptions) (*models.PasskeyCredential, error) {
	return dispatch(ctx, s, OpAuthenticateWithPasskey, opts.RPID,
		func(st *Stub) (*models.PasskeyCredential, error) { return st.AuthenticateWithPasskey(ctx, opts) },
		func(b bridge.Backend) (*models.PasskeyCredential, error) {
			if err := validateAuthenticatePasskey(opts); err != nil {
				return nil, err
			}
			raw, err := b.AuthenticateWithPasskey(ctx, AuthenticatePasskeyRequest(opts))
			if err != nil {
				return nil, err
			}
			if raw == nil {
				return nil, errors.New("backend returned no assertion")
			}
			return &models.PasskeyCredential{
				CredentialID:      raw.CredentialID,
				RawID:             raw.RawID,
				Type:              raw.Type,
				ClientDataJSON:    raw.ClientDataJSON,
				AuthenticatorData: raw.AuthenticatorData,
				Signature:         raw.Signature,
				UserHandle:        raw.UserHandle,
			}, nil
		})
}

// GetPlatformSupport reports what the host supports. It never fails; when
// the backend cannot be asked it returns models.UnknownPlatformSupport.
func (s *SharedPasswords) GetPlatformSupport(ctx context.Context) models.PlatformSupport {
	start := s.now()

	if s.detector.IsRestricted() {
		support := s.sandbox().GetPlatformSupport(ctx)
		s.observe(ctx, OpGetPlatformSupport, "", start, CodeOK)
		return support
	}

	support, err := s.platformSupport(ctx)
	if err != nil {
		normalized := Normalize(err)
		s.log.Debug("platform support unavailable, using defaults",
			zap.String("code", string(normalized.Code)),
			zap.String("message", normalized.Message),
		)
		s.observe(ctx, OpGetPlatformSupport, "", start, string(normalized.Code))
		return models.UnknownPlatformSupport
	}
	s.observe(ctx, OpGetPlatformSupport, "", start, CodeOK)
	return support
}

func (s *SharedPasswords) platformSupport(ctx context.Context) (support models.PlatformSupport, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("platform support: %v", r)
		}
	}()
	b, err := s.resolve()
	if err != nil {
		return support, err
	}
	raw, err := b.GetPlatformSupport(ctx)
	if err != nil {
		return support, err
	}
	if raw == nil {
		return support, errors.New("backend returned no platform support")
	}
	return *raw, nil
}

func operationResult(raw *bridge.RawOperationResult) *models.OperationResult {
	if raw == nil {
		return &models.OperationResult{}
	}
	return &models.OperationResult{Success: raw.Success, Error: raw.Error}
}

// CreatePasskeyRequest fills every unset option with its default.
func CreatePasskeyRequest(opts models.CreatePasskeyOptions) bridge.CreatePasskeyRequest {
	return bridge.CreatePasskeyRequest{
		RPID:                    opts.RPID,
		RPName:                  orDefault(opts.RPName, opts.RPID),
		Challenge:               opts.Challenge,
		UserID:                  opts.UserID,
		UserName:                opts.UserName,
		UserDisplayName:         orDefault(opts.UserDisplayName, opts.UserName),
		TimeoutMillis:           timeoutMillis(opts.Timeout),
		AuthenticatorAttachment: string(orDefault(opts.AuthenticatorAttachment, DefaultAuthenticatorAttachment)),
		ResidentKey:             string(orDefault(opts.ResidentKey, DefaultResidentKey)),
		UserVerification:        string(orDefault(opts.UserVerification, DefaultUserVerification)),
		Attestation:             string(orDefault(opts.Attestation, DefaultAttestation)),
		ExcludeCredentials:      descriptors(opts.ExcludeCredentials),
	}
}

// AuthenticatePasskeyRequest fills every unset option with its default.
func AuthenticatePasskeyRequest(opts models.AuthenticatePasskeyOptions) bridge.AuthenticatePasskeyRequest {
	return bridge.AuthenticatePasskeyRequest{
		RPID:             opts.RPID,
		Challenge:        opts.Challenge,
		TimeoutMillis:    timeoutMillis(opts.Timeout),
		UserVerification: string(orDefault(opts.UserVerification, DefaultUserVerification)),
		AllowCredentials: descriptors(opts.AllowCredentials),
	}
}

func orDefault[T ~string](v, fallback T) T {
	if v == "" {
		return fallback
	}
	return v
}

func timeoutMillis(d time.Duration) int64 {
	if d <= 0 {
		d = DefaultPasskeyTimeout
	}
	return d.Milliseconds()
}

func descriptors(in []models.CredentialDescriptor) []models.CredentialDescriptor {
	if len(in) == 0 {
		return nil
	}
	out := make([]models.CredentialDescriptor, len(in))
	for i, d := range in {
		out[i] = d
		out[i].Type = orDefault(d.Type, protocol.PublicKeyCredentialType)
	}
	return out
}

func validateCreatePasskey(opts models.CreatePasskeyOptions) error {
	switch {
	case opts.RPID == "":
		return bridge.Reject(models.CodeInvalidParameters, "Missing rpId")
	case opts.Challenge == "":
		return bridge.Reject(models.CodeInvalidParameters, "Missing challenge")
	case opts.UserID == "":
		return bridge.Reject(models.CodeInvalidParameters, "Missing userId")
	case opts.UserName == "":
		return bridge.Reject(models.CodeInvalidParameters, "Missing userName")
	}
	return validateChallenge(opts.Challenge)
}

func validateAuthenticatePasskey(opts models.AuthenticatePasskeyOptions) error {
	switch {
	case opts.RPID == "":
		return bridge.Reject(models.CodeInvalidParameters, "Missing rpId")
	case opts.Challenge == "":
		return bridge.Reject(models.CodeInvalidParameters, "Missing challenge")
	}
	return validateChallenge(opts.Challenge)
}

// validateChallenge accepts standard base64 and URL-safe base64, padded or not.
func validateChallenge(challenge string) error {
	for _, enc := range []*base64.Encoding{base64.StdEncoding, base64.URLEncoding, base64.RawURLEncoding} {
		if _, err := enc.DecodeString(challenge); err == nil {
			return nil
		}
	}
	return bridge.Reject(models.CodeInvalidParameters, "Invalid challenge format")
}
