package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
)

type Code string

const (
	CodeValidation  Code = "VALIDATION_ERROR"
	CodeNotFound    Code = "NOT_FOUND"
	CodeConflict    Code = "CONFLICT"
	CodeIdempotency Code = "IDEMPOTENCY_KEY_REUSED"
	CodeInternal    Code = "INTERNAL_ERROR"
	CodeDependency  Code = "DEPENDENCY_ERROR"
	CodeRateLimit   Code = "RATE_LIMITED"

	// planning computation failures
	CodeCircularBOM Code = "CIRCULAR_BOM"
	CodeUnknownItem Code = "UNKNOWN_ITEM"

	// order lifecycle failures
	CodeInvalidTransition Code = "INVALID_TRANSITION"
	CodeOverReceipt       Code = "OVER_RECEIPT"
	CodeExpired           Code = "QUOTE_EXPIRED"
	CodeAlreadyConverted  Code = "ALREADY_CONVERTED"
	CodeAlreadyLinked     Code = "ALREADY_LINKED"
)

type Metadata struct {
	HTTPStatus     int
	Retryable      bool
	PublicMessage  string
	DetailsAllowed bool
}

var metadataByCode = map[Code]Metadata{
	CodeValidation: {
		HTTPStatus:     http.StatusBadRequest,
		PublicMessage:  "validation failed",
		DetailsAllowed: true,
	},
	CodeNotFound: {
		HTTPStatus:    http.StatusNotFound,
		PublicMessage: "resource not found",
	},
	CodeConflict: {
		HTTPStatus:    http.StatusConflict,
		PublicMessage: "conflict detected",
	},
	CodeIdempotency: {
		HTTPStatus:     http.StatusConflict,
		PublicMessage:  "idempotency key reused",
		DetailsAllowed: true,
	},
	CodeInternal: {
		HTTPStatus:    http.StatusInternalServerError,
		Retryable:     true,
		PublicMessage: "internal server error",
	},
	CodeDependency: {
		HTTPStatus:     http.StatusServiceUnavailable,
		Retryable:      true,
		PublicMessage:  "dependency unavailable",
		DetailsAllowed: true,
	},
	CodeRateLimit: {
		HTTPStatus:    http.StatusTooManyRequests,
		Retryable:     true,
		PublicMessage: "too many requests",
	},
	CodeCircularBOM: {
		HTTPStatus:     http.StatusUnprocessableEntity,
		PublicMessage:  "bill of materials contains a cycle",
		DetailsAllowed: true,
	},
	CodeUnknownItem: {
		HTTPStatus:     http.StatusUnprocessableEntity,
		PublicMessage:  "bill of materials references an unknown item",
		DetailsAllowed: true,
	},
	CodeInvalidTransition: {
		HTTPStatus:     http.StatusUnprocessableEntity,
		PublicMessage:  "state transition disallowed",
		DetailsAllowed: true,
	},
	CodeOverReceipt: {
		HTTPStatus:     http.StatusUnprocessableEntity,
		PublicMessage:  "received quantity exceeds ordered quantity",
		DetailsAllowed: true,
	},
	CodeExpired: {
		HTTPStatus:     http.StatusUnprocessableEntity,
		PublicMessage:  "quote has expired",
		DetailsAllowed: true,
	},
	CodeAlreadyConverted: {
		HTTPStatus:     http.StatusConflict,
		PublicMessage:  "quote already converted",
		DetailsAllowed: true,
	},
	CodeAlreadyLinked: {
		HTTPStatus:     http.StatusConflict,
		PublicMessage:  "quote already linked to a sales order",
		DetailsAllowed: true,
	},
}

func MetadataFor(code Code) Metadata {
	if meta, ok := metadataByCode[code]; ok {
		return meta
	}
	return metadataByCode[CodeInternal]
}

type Error struct {
	code    Code
	message string
	details any
	cause   error
}

func New(code Code, message string) *Error {
	return &Error{code: code, message: message}
}

func Newf(code Code, format string, args ...any) *Error {
	return New(code, fmt.Sprintf(format, args...))
}

func Wrap(code Code, err error, message string) *Error {
	if err == nil {
		return New(code, message)
	}
	return &Error{code: code, message: message, cause: err}
}

func (e *Error) Code() Code {
	if e == nil {
		return CodeInternal
	}
	return e.code
}

func (e *Error) Message() string {
	if e == nil {
		return ""
	}
	return e.message
}

func (e *Error) Details() any {
	if e == nil {
		return nil
	}
	return e.details
}

func (e *Error) WithDetails(details any) *Error {
	if e == nil {
		return nil
	}
	e.details = details
	return e
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.code, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.code, e.message)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

func As(err error) *Error {
	if err == nil {
		return nil
	}
	var typed *Error
	if stdErrors.As(err, &typed) {
		return typed
	}
	return nil
}

// IsCode reports whether any typed error in err's chain carries code.
func IsCode(err error, code Code) bool {
	for err != nil {
		typed := As(err)
		if typed == nil {
			return false
		}
		if typed.code == code {
			return true
		}
		err = typed.cause
	}
	return false
}

// InvalidTransition reports an action that the entity's current state does not allow.
func InvalidTransition(entity, current, action string) *Error {
	return Newf(CodeInvalidTransition, "%s cannot %s from %s", entity, action, current).
		WithDetails(map[string]any{
			"entity":  entity,
			"current": current,
			"action":  action,
		})
}
