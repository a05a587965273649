package handlers

import (
	"errors"
	"net/http"

	"github.com/educhainverify/credential-service/api"
	"github.com/educhainverify/credential-service/credentials"
	"github.com/educhainverify/credential-service/cryptoutils"
	"github.com/educhainverify/credential-service/interfaces"
)

// RequestError pairs an error with the HTTP status code it should be reported with.
type RequestError struct {
	StatusCode int
	Err        error
}

func (e *RequestError) Error() string {
	return e.Err.Error()
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

func badRequest(err error) error {
	return &RequestError{StatusCode: http.StatusBadRequest, Err: err}
}

// statusFor maps service errors to HTTP status codes.
func statusFor(err error) int {
	var reqErr *RequestError
	if errors.As(err, &reqErr) {
		return reqErr.StatusCode
	}

	switch {
	case errors.Is(err, interfaces.ErrCredentialNotFound), errors.Is(err, interfaces.ErrAccountNotFound):
		return http.StatusNotFound
	case errors.Is(err, interfaces.ErrCredentialExists), errors.Is(err, interfaces.ErrAlreadyRevoked),
		errors.Is(err, interfaces.ErrAccountExists), errors.Is(err, interfaces.ErrStatusConflict):
		return http.StatusConflict
	case errors.Is(err, interfaces.ErrNotAuthorized):
		return http.StatusForbidden
	case errors.Is(err, cryptoutils.ErrInvalidSignature):
		return http.StatusUnauthorized
	case errors.Is(err, interfaces.ErrInvalidRequest), errors.Is(err, interfaces.ErrInvalidCredential),
		errors.Is(err, interfaces.ErrUnknownAnchor):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	resp := api.ErrorResponse{Error: err.Error()}

	var verr *credentials.ValidationError
	if errors.As(err, &verr) {
		resp.Fields = verr.Fields
	}

	if status >= http.StatusInternalServerError {
		h.log.Error("Request failed", "err", err)
		resp.Error = "internal server error"
	}

	h.writeJSON(w, status, resp)
}
