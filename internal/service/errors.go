package service

import (
	"errors"
	"strings"

	"github.com/atinyakov/sharedpasswords/internal/models"
)

const unknownErrorMessage = "Unknown error occurred"

// coder is implemented by errors that carry a taxonomy code of their own,
// such as *bridge.RawError and *models.SharedPasswordsError.
type coder interface {
	ErrorCode() string
}

// Normalize maps any backend failure onto the closed error taxonomy.
// A valid code supplied by the backend is kept; otherwise the message is
// matched against known phrases; everything else becomes UNKNOWN. The
// message is always kept verbatim.
func Normalize(err error) *models.SharedPasswordsError {
	if err == nil {
		return models.NewError(models.CodeUnknown, unknownErrorMessage)
	}

	// Only an unwrapped error is returned as is; a wrapper's text is part of
	// the message.
	if normalized, ok := err.(*models.SharedPasswordsError); ok && normalized.Code.Valid() {
		return normalized
	}

	message := err.Error()
	if message == "" {
		message = unknownErrorMessage
	}

	var c coder
	if errors.As(err, &c) {
		if code := models.ErrorCode(c.ErrorCode()); code.Valid() {
			return models.WrapError(code, message, err)
		}
	}

	// Best effort only: localized or reworded backend messages slip through to UNKNOWN.
	lower := strings.ToLower(message)
	switch {
	case strings.Contains(lower, "cancel"):
		return models.WrapError(models.CodeCancelled, message, err)
	case strings.Contains(lower, "not supported"):
		return models.WrapError(models.CodeNotSupported, message, err)
	}
	return models.WrapError(models.CodeUnknown, message, err)
}
