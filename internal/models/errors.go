package models

import (
	"errors"
	"net/http"
)

type ErrorKind string

const (
	KindAuthentication ErrorKind = "authentication"
	KindAuthorization  ErrorKind = "authorization"
	KindNotFound       ErrorKind = "not_found"
	KindValidation     ErrorKind = "validation"
	KindRejection      ErrorKind = "rejection"
	KindIntegrity      ErrorKind = "integrity"
	KindTransient      ErrorKind = "transient"
)

// AppError is a classified failure. The sentinel values below are compared
// with errors.Is; callers add detail by wrapping them with fmt.Errorf("%w").
type AppError struct {
	Kind    ErrorKind
	Code    string
	Message string
	Status  int
}

func (e *AppError) Error() string {
	return e.Message
}

func newError(kind ErrorKind, status int, code, message string) *AppError {
	return &AppError{Kind: kind, Code: code, Message: message, Status: status}
}

var (
	ErrUnauthenticated = newError(KindAuthentication, http.StatusUnauthorized, "unauthenticated", "missing or invalid staff credential")
	ErrForbidden       = newError(KindAuthorization, http.StatusForbidden, "forbidden", "caller lacks the required staff role")
)

var (
	ErrTicketNotFound     = newError(KindNotFound, http.StatusNotFound, "ticket_not_found", "ticket not found")
	ErrTicketTypeNotFound = newError(KindNotFound, http.StatusNotFound, "ticket_type_not_found", "ticket type not found")
	ErrEventNotFound      = newError(KindNotFound, http.StatusNotFound, "event_not_found", "event not found")
)

var (
	ErrValidation = newError(KindValidation, http.StatusBadRequest, "invalid_input", "invalid input")
)

var (
	ErrSoldOut          = newError(KindRejection, http.StatusBadRequest, "sold_out", "ticket type is sold out")
	ErrSalesNotOpen     = newError(KindRejection, http.StatusBadRequest, "sales_not_open", "ticket sales have not opened yet")
	ErrSalesClosed      = newError(KindRejection, http.StatusBadRequest, "sales_closed", "ticket sales have closed")
	ErrTicketNotValid   = newError(KindRejection, http.StatusBadRequest, "ticket_not_valid", "ticket is no longer valid")
	ErrCheckinRejected  = newError(KindRejection, http.StatusBadRequest, "checkin_rejected", "check-in rejected")
	ErrRedemptionRaced  = newError(KindTransient, http.StatusConflict, "redemption_raced", "ticket changed during check-in, retry")
	ErrDuplicateSession = newError(KindRejection, http.StatusConflict, "duplicate_session", "a ticket already exists for this session")
)

var (
	ErrMalformedMetadata       = newError(KindIntegrity, http.StatusBadRequest, "malformed_metadata", "checkout session metadata is incomplete")
	ErrCodeGenerationExhausted = newError(KindIntegrity, http.StatusInternalServerError, "code_generation_exhausted", "could not generate a unique ticket code")
)

var (
	ErrStoreUnavailable     = newError(KindTransient, http.StatusInternalServerError, "store_unavailable", "ticket store unavailable")
	ErrProcessorUnavailable = newError(KindTransient, http.StatusBadGateway, "processor_unavailable", "payment processor unavailable")
)

// AsAppError returns the classified error in err's chain, if any.
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// KindOf classifies err. Unclassified errors are transient store faults.
func KindOf(err error) ErrorKind {
	if appErr, ok := AsAppError(err); ok {
		return appErr.Kind
	}
	return KindTransient
}

// HTTPStatus maps err to the status code returned at the HTTP boundary.
func HTTPStatus(err error) int {
	if appErr, ok := AsAppError(err); ok && appErr.Status != 0 {
		return appErr.Status
	}
	return http.StatusInternalServerError
}

// ErrorCode returns the machine-readable code for err.
func ErrorCode(err error) string {
	if appErr, ok := AsAppError(err); ok {
		return appErr.Code
	}
	return "internal_error"
}

// PublicMessage is safe to show to API callers. Transient and unclassified
// failures never leak their internal detail.
func PublicMessage(err error) string {
	appErr, ok := AsAppError(err)
	if !ok {
		return "internal error"
	}
	if appErr.Kind == KindTransient {
		return appErr.Message
	}
	return err.Error()
}
