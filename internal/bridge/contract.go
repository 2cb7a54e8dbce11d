// Package bridge defines the contract a native credential backend must satisfy
// and the two lookup strategies used to find one: a modern capability registry
// and a legacy named-module table.
package bridge

import (
	"context"
	"errors"

	"github.com/atinyakov/sharedpasswords/internal/models"
)

// ModuleName is the name every backend is registered and looked up under.
const ModuleName = "SharedPasswords"

// ErrNotLinked is returned by a Resolver when neither lookup strategy finds a backend.
var ErrNotLinked = errors.New("shared passwords backend is not linked")

// Backend is the fixed method contract implemented by platform credential code.
// Calls may block on system UI for as long as the user leaves it open.
type Backend interface {
	// RequestPasswordAutoFill shows the system credential picker.
	RequestPasswordAutoFill(ctx context.Context) (*RawCredential, error)
	// SavePassword stores a credential. An empty domain selects the configured default.
	SavePassword(ctx context.Context, username, password, domain string) (*RawOperationResult, error)
	// HasStoredCredentials reports whether anything is stored for domain.
	HasStoredCredentials(ctx context.Context, domain string) (bool, error)
	// DeleteCredential removes the credential for username at domain.
	DeleteCredential(ctx context.Context, username, domain string) (*RawOperationResult, error)
	// CreatePasskey registers a new passkey.
	CreatePasskey(ctx context.Context, req CreatePasskeyRequest) (*RawPasskeyCredential, error)
	// AuthenticateWithPasskey produces an assertion with an existing passkey.
	AuthenticateWithPasskey(ctx context.Context, req AuthenticatePasskeyRequest) (*RawPasskeyCredential, error)
	// GetPlatformSupport reports the live capabilities of the host.
	GetPlatformSupport(ctx context.Context) (*models.PlatformSupport, error)
}

// RawCredential is the backend response to an autofill request.
type RawCredential struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// RawOperationResult is the backend response to save and delete.
type RawOperationResult struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// CreatePasskeyRequest is the fully defaulted registration request sent to a backend.
type CreatePasskeyRequest struct {
	RPID                    string                        `json:"rpId"`
	RPName                  string                        `json:"rpName"`
	Challenge               string                        `json:"challenge"`
	UserID                  string                        `json:"userId"`
	UserName                string                        `json:"userName"`
	UserDisplayName         string                        `json:"userDisplayName"`
	TimeoutMillis           int64                         `json:"timeout"`
	AuthenticatorAttachment string                        `json:"authenticatorAttachment"`
	ResidentKey             string                        `json:"residentKey"`
	UserVerification        string                        `json:"userVerification"`
	Attestation             string                        `json:"attestation"`
	ExcludeCredentials      []models.CredentialDescriptor `json:"excludeCredentials,omitempty"`
}

// AuthenticatePasskeyRequest is the fully defaulted assertion request sent to a backend.
type AuthenticatePasskeyRequest struct {
	RPID             string                        `json:"rpId"`
	Challenge        string                        `json:"challenge"`
	TimeoutMillis    int64                         `json:"timeout"`
	UserVerification string                        `json:"userVerification"`
	AllowCredentials []models.CredentialDescriptor `json:"allowCredentials,omitempty"`
}

// RawPasskeyCredential carries every field either passkey flow can return.
// The facade keeps only the fields that belong to the flow that produced it.
type RawPasskeyCredential struct {
	CredentialID      string `json:"credentialId"`
	RawID             string `json:"rawId"`
	Type              string `json:"type"`
	ClientDataJSON    string `json:"clientDataJSON"`
	AuthenticatorData string `json:"authenticatorData,omitempty"`
	Signature         string `json:"signature,omitempty"`
	UserHandle        string `json:"userHandle,omitempty"`
	AttestationObject string `json:"attestationObject,omitempty"`
}

// RawError is a backend rejection carrying an optional taxonomy code.
// Backends are free to return any error; this one lets them be precise.
type RawError struct {
	Code    string
	Message string
}

// Reject builds a RawError with the given code.
func Reject(code models.ErrorCode, message string) *RawError {
	return &RawError{Code: string(code), Message: message}
}

func (e *RawError) Error() string {
	return e.Message
}

// ErrorCode returns the code supplied by the backend, possibly empty.
func (e *RawError) ErrorCode() string {
	return e.Code
}
