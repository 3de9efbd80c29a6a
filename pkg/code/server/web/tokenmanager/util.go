package tokenmanager

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	tokenmanager_service "github.com/code-payments/token-manager-server/pkg/code/server/tokenmanager"
)

const (
	successJsonKey = "success"
	errorJsonKey   = "error"
)

type GenericApiResponseBody map[string]any

func NewGenericApiSuccessResponseBody() GenericApiResponseBody {
	return map[string]any{
		successJsonKey: true,
	}
}

func NewGenericApiFailureResponseBody(err error) GenericApiResponseBody {
	return map[string]any{
		successJsonKey: false,
		errorJsonKey:   err.Error(),
	}
}

func (b *GenericApiResponseBody) ToString() string {
	marshalled, _ := json.Marshal(b)
	return string(marshalled)
}

// HandleServiceErrorInWebContext maps a token manager service error to an HTTP
// status code and the error that is safe to return to the caller.
func HandleServiceErrorInWebContext(err error) (int, error) {
	switch {
	case err == nil:
		return http.StatusOK, nil
	case errors.Is(err, tokenmanager_service.ErrInvalidRequest):
		return http.StatusBadRequest, err
	case errors.Is(err, tokenmanager_service.ErrManagerNotFound):
		return http.StatusNotFound, err
	case errors.Is(err, tokenmanager_service.ErrUnauthorized):
		return http.StatusForbidden, errors.New("permission denied")
	case errors.Is(err, tokenmanager_service.ErrAlreadyInitialized),
		errors.Is(err, tokenmanager_service.ErrOwnershipConstraint),
		errors.Is(err, tokenmanager_service.ErrMintMismatch),
		errors.Is(err, tokenmanager_service.ErrDerivationMismatch):
		return http.StatusConflict, err
	case errors.Is(err, tokenmanager_service.ErrRateLimited):
		return http.StatusTooManyRequests, err
	case errors.Is(err, tokenmanager_service.ErrTransientUnavailable):
		return http.StatusServiceUnavailable, err
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusRequestTimeout, errors.New("request timed out")
	default:
		return http.StatusInternalServerError, errors.New("internal server error")
	}
}
