package handlers

import (
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/donaldgifford/ebay-connector/internal/publish"
	"github.com/donaldgifford/ebay-connector/internal/store"
)

// StatusResponse is a generic status response body.
type StatusResponse struct {
	Status string `json:"status" example:"ok"`
}

// ErrorDetail is the machine-readable part of a domain error.
type ErrorDetail struct {
	Key    string `json:"key"    example:"price.too_low" doc:"Stable error key"`
	Detail any    `json:"detail"                         doc:"Human readable message or per-key messages"`
}

// DomainError is the `{"error": {"key", "detail"}}` body returned for
// business rule violations.
type DomainError struct {
	status int
	Err    ErrorDetail `json:"error"`
}

// NewDomainError creates a DomainError answered with status.
func NewDomainError(status int, key string, detail any) *DomainError {
	return &DomainError{status: status, Err: ErrorDetail{Key: key, Detail: detail}}
}

func (e *DomainError) Error() string {
	return e.Err.Key
}

// GetStatus implements huma.StatusError.
func (e *DomainError) GetStatus() int {
	return e.status
}

// KeyMultipleErrors reports per-product failures of a batch request.
const KeyMultipleErrors = "multiple.errors"

// validationError maps validation failures of one listing. A missing or
// unknown category cannot be resolved and is answered with 404.
func validationError(verrs publish.ValidationErrors) error {
	if len(verrs) == 0 {
		return nil
	}
	first := verrs[0]
	status := http.StatusBadRequest
	if first.Key == publish.KeyCategoryUnknown {
		status = http.StatusNotFound
	}
	if len(verrs) == 1 {
		return NewDomainError(status, first.Key, first.Message)
	}
	return NewDomainError(status, KeyMultipleErrors, verrs.Messages())
}

// lifecycleError maps publish lifecycle errors to HTTP errors.
func lifecycleError(err error, action string) error {
	switch {
	case errors.Is(err, publish.ErrTokenExpired):
		return huma.Error403Forbidden(err.Error())
	case errors.Is(err, publish.ErrWrongAccount), errors.Is(err, store.ErrNotFound):
		return huma.Error404NotFound("listing not found")
	case errors.Is(err, publish.ErrNotSubmittable),
		errors.Is(err, publish.ErrNotPublished),
		errors.Is(err, publish.ErrBusy):
		return huma.Error409Conflict(err.Error())
	default:
		return huma.Error500InternalServerError(action + " failed: " + err.Error())
	}
}
