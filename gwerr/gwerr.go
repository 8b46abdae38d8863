// Package gwerr defines the gateway's GraphQL error taxonomy (spec §7): a
// small Code enum attached to extensions.code in the JSON envelope, plus a
// SanitizedError contract so internal failure detail never leaks to a
// client by accident.
package gwerr

import (
	"encoding/json"
	"fmt"
)

// SanitizedError mirrors thunder's graphql.SanitizedError: an error that
// knows how to describe itself safely to an external caller, as opposed to
// its full (possibly sensitive) internal Error() string.
type SanitizedError interface {
	error
	SanitizedError() string
}

// Code is the extensions.code taxonomy spec §7 names.
type Code string

const (
	BadRequest               Code = "BAD_REQUEST"
	Unauthorized             Code = "UNAUTHORIZED"
	Forbidden                Code = "FORBIDDEN"
	OperationParsingError    Code = "OPERATION_PARSING_ERROR"
	OperationValidationError Code = "OPERATION_VALIDATION_ERROR"
	InvalidSubgraphResponse  Code = "INVALID_SUBGRAPH_RESPONSE"
	SubgraphError            Code = "SUBGRAPH_ERROR"
	HookError                Code = "HOOK_ERROR"
	GatewayTimeout           Code = "GATEWAY_TIMEOUT"
	InternalServerError      Code = "INTERNAL_SERVER_ERROR"
)

// Error is a GraphQL-response-facing error: a message, an optional
// response path, and a Code. Its Error() string is the same message a
// client sees — construction sites are expected to pass an already-safe
// message, never a wrapped internal cause — so SanitizedError simply
// returns Message unchanged.
type Error struct {
	Message string
	Path    []interface{}
	Code    Code
	cause   error
}

func (e *Error) Error() string          { return e.Message }
func (e *Error) SanitizedError() string { return e.Message }
func (e *Error) Unwrap() error          { return e.cause }

// MarshalJSON renders the error in the GraphQL-over-HTTP envelope shape
// (spec §6): message, optional path, extensions.code — never the wrapped
// internal cause.
func (e *Error) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Message    string                 `json:"message"`
		Path       []interface{}          `json:"path,omitempty"`
		Extensions map[string]interface{} `json:"extensions,omitempty"`
	}{
		Message:    e.Message,
		Path:       e.Path,
		Extensions: map[string]interface{}{"code": string(e.Code)},
	})
}

// New builds a gwerr.Error with no wrapped cause.
func New(code Code, format string, a ...interface{}) *Error {
	return &Error{Message: fmt.Sprintf(format, a...), Code: code}
}

// Wrap builds a gwerr.Error whose Error()/SanitizedError() stay client-safe
// (format/a only) while still chaining cause for internal logging via
// errors.Unwrap, the same split thunder's SafeError/ClientError draw
// between a safe client message and the real failure.
func Wrap(cause error, code Code, format string, a ...interface{}) *Error {
	return &Error{Message: fmt.Sprintf(format, a...), Code: code, cause: cause}
}

// Sanitize renders any error as a client-safe string: its SanitizedError()
// if it implements one, else a generic fallback — mirroring thunder's
// graphql.sanitizeError.
func Sanitize(err error) string {
	if err == nil {
		return ""
	}
	if sanitized, ok := err.(SanitizedError); ok {
		return sanitized.SanitizedError()
	}
	return "Internal server error"
}
