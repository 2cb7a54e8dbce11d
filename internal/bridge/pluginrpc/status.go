package pluginrpc

import (
	"context"
	"errors"

	"github.com/atinyakov/sharedpasswords/internal/bridge"
	"github.com/atinyakov/sharedpasswords/internal/models"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var codeToStatus = map[models.ErrorCode]codes.Code{
	models.CodeCancelled:           codes.Canceled,
	models.CodeNotSupported:        codes.Unimplemented,
	models.CodeInvalidParameters:   codes.InvalidArgument,
	models.CodeNoCredentials:       codes.NotFound,
	models.CodeDomainNotConfigured: codes.FailedPrecondition,
	models.CodeFailed:              codes.Aborted,
	models.CodeUnknown:             codes.Unknown,
}

var statusToCode = map[codes.Code]models.ErrorCode{
	codes.Canceled:           models.CodeCancelled,
	codes.Unimplemented:      models.CodeNotSupported,
	codes.InvalidArgument:    models.CodeInvalidParameters,
	codes.NotFound:           models.CodeNoCredentials,
	codes.FailedPrecondition: models.CodeDomainNotConfigured,
	codes.Aborted:            models.CodeFailed,
}

// toStatus converts a backend error to a gRPC status. Errors without a
// taxonomy code travel as codes.Unknown with their message intact.
func toStatus(err error) error {
	var coded interface{ ErrorCode() string }
	if errors.As(err, &coded) {
		if c, ok := codeToStatus[models.ErrorCode(coded.ErrorCode())]; ok {
			return status.Error(c, err.Error())
		}
	}
	if errors.Is(err, context.Canceled) {
		return status.Error(codes.Canceled, err.Error())
	}
	return status.Error(codes.Unknown, err.Error())
}

// fromStatus converts a gRPC error back to a bridge.RawError. Codes outside
// the mapping keep only their message so the facade can classify it.
func fromStatus(err error) error {
	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	code, known := statusToCode[st.Code()]
	if !known {
		return &bridge.RawError{Message: st.Message()}
	}
	return bridge.Reject(code, st.Message())
}
