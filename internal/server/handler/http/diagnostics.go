// Package http provides the diagnostics API: environment detection,
// platform support, credential lookups and the audit journal.
package http

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/atinyakov/sharedpasswords/internal/environment"
	"github.com/atinyakov/sharedpasswords/internal/models"
)

// Facade is the part of the shared passwords facade the diagnostics API reads.
// None of these calls can fail.
type Facade interface {
	Environment() environment.Environment
	IsRestrictedEnvironment() bool
	HasUsableBackend() bool
	DescribeEnvironment() string
	GetEnvironmentInfo() string
	HasStoredCredentials(ctx context.Context, domain string) bool
	GetPlatformSupport(ctx context.Context) models.PlatformSupport
}

// DiagnosticsHandler serves read-only facade state.
type DiagnosticsHandler struct {
	Facade Facade
}

// EnvironmentResponse is the body of GET /api/environment.
type EnvironmentResponse struct {
	Environment environment.Environment `json:"environment"`
	Restricted  bool                    `json:"restricted"`
	Backend     bool                    `json:"backendAvailable"`
	Description string                  `json:"description"`
	Info        string                  `json:"info"`
}

// CredentialsResponse is the body of GET /api/credentials.
type CredentialsResponse struct {
	Domain string `json:"domain"`
	Found  bool   `json:"found"`
}

// Environment handles GET /api/environment.
func (h *DiagnosticsHandler) Environment(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, EnvironmentResponse{
		Environment: h.Facade.Environment(),
		Restricted:  h.Facade.IsRestrictedEnvironment(),
		Backend:     h.Facade.HasUsableBackend(),
		Description: h.Facade.DescribeEnvironment(),
		Info:        h.Facade.GetEnvironmentInfo(),
	})
}

// Support handles GET /api/support.
func (h *DiagnosticsHandler) Support(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Facade.GetPlatformSupport(r.Context()))
}

// Credentials handles GET /api/credentials?domain=example.com. An empty
// domain asks about the configured default domain.
func (h *DiagnosticsHandler) Credentials(w http.ResponseWriter, r *http.Request) {
	domain := r.URL.Query().Get("domain")
	writeJSON(w, http.StatusOK, CredentialsResponse{
		Domain: domain,
		Found:  h.Facade.HasStoredCredentials(r.Context(), domain),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
