// Package models defines the value types exchanged with callers of the
// shared passwords facade: credentials, passkey payloads, platform support
// descriptors and per-call options.
package models

import (
	"time"

	"github.com/go-webauthn/webauthn/protocol"
)

// Credential is a username/password pair returned by a password autofill request.
type Credential struct {
	// Username is the login name or email.
	Username string `json:"username"`
	// Password is the stored password.
	Password string `json:"password"`
}

// PasskeyCredential holds the result of a passkey registration or authentication.
// Binary values are base64 text and are forwarded to a relying party as-is.
type PasskeyCredential struct {
	// CredentialID is the base64 credential identifier.
	CredentialID string `json:"credentialId"`
	// RawID is the base64 raw identifier.
	RawID string `json:"rawId"`
	// Type is the credential type, usually "public-key".
	Type string `json:"type"`
	// ClientDataJSON is the base64 client data.
	ClientDataJSON string `json:"clientDataJSON"`
	// AuthenticatorData is the base64 authenticator data.
	AuthenticatorData string `json:"authenticatorData,omitempty"`
	// Signature is set for authentication results.
	Signature string `json:"signature,omitempty"`
	// UserHandle is set for authentication results.
	UserHandle string `json:"userHandle,omitempty"`
	// AttestationObject is set for registration results.
	AttestationObject string `json:"attestationObject,omitempty"`
}

// PlatformSupport describes which credential features the host can serve.
type PlatformSupport struct {
	PasswordAutoFill bool   `json:"passwordAutoFill"`
	Passkeys         bool   `json:"passkeys"`
	SavePassword     bool   `json:"savePassword"`
	MinOSVersion     string `json:"minOSVersion"`
	CurrentOSVersion string `json:"currentOSVersion"`
}

// UnknownPlatformSupport is returned when the backend cannot be queried.
var UnknownPlatformSupport = PlatformSupport{
	MinOSVersion:     "Unknown",
	CurrentOSVersion: "Unknown",
}

// OperationResult reports the logical outcome of a save or delete call.
// A backend may accept the call and still report Success=false.
type OperationResult struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// SavePasswordOptions are the inputs for saving a password.
type SavePasswordOptions struct {
	Username string
	Password string
	// Domain is optional; empty means the app's configured default domain.
	Domain string
}

// DeleteCredentialOptions are the inputs for deleting a stored credential.
type DeleteCredentialOptions struct {
	Username string
	Domain   string
}

// CredentialDescriptor references an existing passkey to include or exclude.
type CredentialDescriptor struct {
	// ID is the base64 credential identifier.
	ID         string                            `json:"id"`
	Type       protocol.CredentialType           `json:"type"`
	Transports []protocol.AuthenticatorTransport `json:"transports,omitempty"`
}

// CreatePasskeyOptions are the inputs for a passkey registration.
// Zero values of optional fields are replaced with defaults before the
// request reaches a backend.
type CreatePasskeyOptions struct {
	RPID                    string
	RPName                  string
	Challenge               string
	UserID                  string
	UserName                string
	UserDisplayName         string
	Timeout                 time.Duration
	AuthenticatorAttachment protocol.AuthenticatorAttachment
	ResidentKey             protocol.ResidentKeyRequirement
	UserVerification        protocol.UserVerificationRequirement
	Attestation             protocol.ConveyancePreference
	ExcludeCredentials      []CredentialDescriptor
}

// AuthenticatePasskeyOptions are the inputs for a passkey assertion.
type AuthenticatePasskeyOptions struct {
	RPID             string
	Challenge        string
	Timeout          time.Duration
	UserVerification protocol.UserVerificationRequirement
	// AllowCredentials limits the assertion to the listed passkeys; empty allows any.
	AllowCredentials []CredentialDescriptor
}

// AuditEvent records the outcome of one facade call. It never carries
// secret material.
type AuditEvent struct {
	// ID is the unique identifier for the event.
	ID string `json:"id"`
	// Operation is the facade operation name, e.g. "savePassword".
	Operation string `json:"operation"`
	// Environment is the detection verdict at the time of the call.
	Environment string `json:"environment"`
	// Code is "OK" on success or the error code otherwise.
	Code string `json:"code"`
	// Subject is the domain or relying party the call targeted, if any.
	Subject string `json:"subject,omitempty"`
	// DurationMillis is how long the call took.
	DurationMillis int64 `json:"durationMs"`
	// CreatedAt is when the call finished.
	CreatedAt time.Time `json:"createdAt"`
}
