package schema

import (
	"fmt"

	"github.com/samsarahq/go/oops"
)

// BuildErrorCode enumerates the schema-build failure taxonomy from spec
// §4.1. Every Build failure carries exactly one of these.
type BuildErrorCode string

const (
	GraphQLParse                                       BuildErrorCode = "GraphQLParse"
	GraphQLValidation                                   BuildErrorCode = "GraphQLValidation"
	InvalidURL                                          BuildErrorCode = "InvalidUrl"
	InvalidFieldSet                                     BuildErrorCode = "InvalidFieldSet"
	UnsupportedExtension                                BuildErrorCode = "UnsupportedExtension"
	UnknownExtensionDirective                           BuildErrorCode = "UnknownExtensionDirective"
	UnknownExtensionDirectiveArgument                   BuildErrorCode = "UnknownExtensionDirectiveArgument"
	ExtensionDirectiveLocationError                     BuildErrorCode = "ExtensionDirectiveLocationError"
	DefaultValueCoercionError                           BuildErrorCode = "DefaultValueCoercionError"
	SelectionSetResolverExtensionCannotBeMixedWithOther BuildErrorCode = "SelectionSetResolverExtensionCannotBeMixedWithOtherResolvers"
	ResolverExtensionOnNonVirtualGraph                  BuildErrorCode = "ResolverExtensionOnNonVirtualGraph"
)

// BuildError is the error type returned by Build. It is deliberately not a
// SanitizedError: schema build failures are operator-facing (they happen
// when composing/deploying a supergraph, never per-request), so the full
// message is safe to surface directly, unlike a resolver-time error.
type BuildError struct {
	Code     BuildErrorCode
	Location string
	cause    error
}

func (e *BuildError) Error() string {
	if e.Location != "" {
		return fmt.Sprintf("%s at %s: %s", e.Code, e.Location, e.causeMessage())
	}
	return fmt.Sprintf("%s: %s", e.Code, e.causeMessage())
}

func (e *BuildError) Unwrap() error { return e.cause }

func (e *BuildError) causeMessage() string {
	if e.cause == nil {
		return "(no detail)"
	}
	return e.cause.Error()
}

func newBuildError(code BuildErrorCode, location string, cause error) *BuildError {
	return &BuildError{Code: code, Location: location, cause: cause}
}

func wrapBuildErrorf(code BuildErrorCode, location string, format string, args ...interface{}) *BuildError {
	return newBuildError(code, location, oops.Errorf(format, args...))
}
