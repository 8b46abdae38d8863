package operation

import "fmt"

// ParseErrorCode distinguishes the two error classes spec §4.2 defines.
type ParseErrorCode string

const (
	// Parsing covers GraphQL grammar errors: the document does not parse.
	Parsing ParseErrorCode = "Parsing"
	// Validation covers a well-formed document that violates schema shape
	// or a configured query limit.
	Validation ParseErrorCode = "Validation"
)

// Location is a source position, included on Validation errors so clients
// can point at the offending selection (spec §8 scenario 6).
type Location struct {
	Line   int
	Column int
}

// ParseError is returned by Parse. Message is safe to surface to clients
// directly (both parse and validation errors are about the client's own
// request, never internal state).
type ParseError struct {
	Code       ParseErrorCode
	Message    string
	Locations  []Location
	Attributes *Attributes
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func newParseError(msg string, locs ...Location) *ParseError {
	return &ParseError{Code: Parsing, Message: msg, Locations: locs}
}

func newValidationError(attrs *Attributes, msg string, locs ...Location) *ParseError {
	return &ParseError{Code: Validation, Message: msg, Locations: locs, Attributes: attrs}
}

// MethodNotAllowedError is returned by Parse when a mutation is attempted
// over GET (spec §4.2, "mutations only via non-safe HTTP methods").
type MethodNotAllowedError struct{}

func (e *MethodNotAllowedError) Error() string {
	return "MethodNotAllowed: mutations must be sent with a non-safe HTTP method"
}
