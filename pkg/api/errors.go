package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/codeready-toolchain/recall/pkg/llm"
	"github.com/codeready-toolchain/recall/pkg/services"
)

// mapServiceError maps service-layer errors to an HTTP status and message.
func mapServiceError(err error) (int, string) {
	var validErr *services.ValidationError
	if errors.As(err, &validErr) {
		return http.StatusBadRequest, validErr.Error()
	}
	if errors.Is(err, services.ErrInvalidInput) {
		return http.StatusBadRequest, err.Error()
	}
	if errors.Is(err, services.ErrSignatureInvalid) {
		return http.StatusBadRequest, "package signature invalid"
	}
	if errors.Is(err, services.ErrPackageExpired) {
		return http.StatusBadRequest, "package expired"
	}
	if errors.Is(err, services.ErrNotFound) {
		return http.StatusNotFound, "resource not found"
	}
	if errors.Is(err, services.ErrAlreadyExists) {
		return http.StatusConflict, "resource already exists"
	}
	if errors.Is(err, llm.ErrBreakerOpen) {
		return http.StatusServiceUnavailable, "llm temporarily unavailable"
	}

	// Unexpected error
	slog.Error("Unexpected service error", "error", err)
	return http.StatusInternalServerError, "internal server error"
}
