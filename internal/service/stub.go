package service

import (
	"context"
	"fmt"
	"runtime"
	"strings"

	"github.com/atinyakov/sharedpasswords/internal/environment"
	"github.com/atinyakov/sharedpasswords/internal/models"
)

const restrictedRemediation = "Native password/passkey features are not available in the store client sandbox. " +
	"To use this feature, please create a development build:\n\n" +
	"  npx expo run:ios\n" +
	"  npx expo run:android\n\n" +
	"Or create a production build with EAS Build."

// Stub serves the full operation set inside the restricted sandbox, where
// no native backend can be loaded.
type Stub struct {
	host *environment.HostConfig
}

// NewStub returns a stub that reports OS identifiers from host. host may be nil.
func NewStub(host *environment.HostConfig) *Stub {
	return &Stub{host: host}
}

func notInSandbox(feature string) error {
	return models.NewError(models.CodeNotSupported,
		fmt.Sprintf("%s is not available in the store client sandbox. %s", feature, restrictedRemediation))
}

// RequestPasswordAutoFill always fails with NOT_SUPPORTED.
func (s *Stub) RequestPasswordAutoFill(context.Context) (*models.Credential, error) {
	return nil, notInSandbox("Password autofill")
}

// SavePassword always fails with NOT_SUPPORTED.
func (s *Stub) SavePassword(context.Context, models.SavePasswordOptions) (*models.OperationResult, error) {
	return nil, notInSandbox("Password saving")
}

// HasStoredCredentials reports false so callers can hide password affordances.
func (s *Stub) HasStoredCredentials(context.Context, string) bool {
	return false
}

// DeleteCredential always fails with NOT_SUPPORTED.
func (s *Stub) DeleteCredential(context.Context, models.DeleteCredentialOptions) (*models.OperationResult, error) {
	return nil, notInSandbox("Credential deletion")
}

// CreatePasskey always fails with NOT_SUPPORTED.
func (s *Stub) CreatePasskey(context.Context, models.CreatePasskeyOptions) (*models.PasskeyCredential, error) {
	return nil, notInSandbox("Passkey creation")
}

// AuthenticateWithPasskey always fails with NOT_SUPPORTED.
func (s *Stub) AuthenticateWithPasskey(context.Context, models.AuthenticatePasskeyOptions) (*models.PasskeyCredential, error) {
	return nil, notInSandbox("Passkey authentication")
}

// GetPlatformSupport reports every feature as unavailable.
func (s *Stub) GetPlatformSupport(context.Context) models.PlatformSupport {
	platform := hostPlatform(s.host)

	var minOS string
	switch platform {
	case "ios":
		minOS = "iOS 12+"
	case "android":
		minOS = "Android 9+"
	default:
		minOS = "Unknown"
	}

	version := "unknown"
	if s.host != nil && s.host.OSVersion != "" {
		version = s.host.OSVersion
	}

	return models.PlatformSupport{
		MinOSVersion:     minOS,
		CurrentOSVersion: platform + " " + version,
	}
}

func hostPlatform(host *environment.HostConfig) string {
	if host != nil && host.Platform != "" {
		return strings.ToLower(host.Platform)
	}
	return runtime.GOOS
}
