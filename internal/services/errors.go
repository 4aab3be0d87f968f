package services

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/Lllllllleong/bonafideflow/internal/approval"
	"github.com/Lllllllleong/bonafideflow/internal/audit"
	"github.com/Lllllllleong/bonafideflow/internal/directory"
	"github.com/Lllllllleong/bonafideflow/internal/extract"
	"github.com/Lllllllleong/bonafideflow/internal/lock"
	"github.com/Lllllllleong/bonafideflow/internal/store"
)

var (
	ErrNotFound      = errors.New("NOT_FOUND")
	ErrUnauthorized  = errors.New("UNAUTHORIZED")
	ErrInvalidStage  = errors.New("INVALID_STAGE")
	ErrInvalidAction = errors.New("INVALID_ACTION")
	ErrInvalidInput  = errors.New("INVALID_INPUT")
	ErrDocumentRead  = errors.New("DOCUMENT_READ_FAILED")
	ErrExtraction    = errors.New("EXTRACTION_FAILED")
	ErrConflict      = errors.New("CONFLICT")
)

// translate wraps errors from the lower layers in the service taxonomy. The
// original error stays in the chain.
func translate(err error) error {
	if err == nil {
		return nil
	}
	var sentinel error
	switch {
	case errors.Is(err, store.ErrNotFound):
		sentinel = ErrNotFound
	case errors.Is(err, directory.ErrUnknownUser), errors.Is(err, approval.ErrUnauthorized):
		sentinel = ErrUnauthorized
	case errors.Is(err, approval.ErrInvalidStage):
		sentinel = ErrInvalidStage
	case errors.Is(err, approval.ErrInvalidAction):
		sentinel = ErrInvalidAction
	case errors.Is(err, store.ErrConflict), errors.Is(err, lock.ErrBusy):
		sentinel = ErrConflict
	case errors.Is(err, audit.ErrExtraction):
		sentinel = ErrExtraction
	default:
		return err
	}
	if errors.Is(err, sentinel) {
		return err
	}
	return fmt.Errorf("%w: %w", sentinel, err)
}

// HTTPStatus maps an error returned by a service to a response status.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, ErrInvalidStage), errors.Is(err, ErrInvalidAction), errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrDocumentRead):
		if errors.Is(err, extract.ErrUnreadable) {
			return http.StatusBadRequest
		}
		return http.StatusInternalServerError
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ErrExtraction):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// errorCode is the machine-readable code written in error responses.
func errorCode(err error) string {
	for _, s := range []error{
		ErrNotFound, ErrUnauthorized, ErrInvalidStage, ErrInvalidAction,
		ErrInvalidInput, ErrDocumentRead, ErrExtraction, ErrConflict,
	} {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "INTERNAL"
}
