package errors

import (
	stderrors "errors"
	"fmt"
)

// WrapWithOperation wraps an error with an operation context
func WrapWithOperation(operation, item string, cause error) *BaseError {
	message := fmt.Sprintf("failed to %s %s", operation, item)
	return Wrap(UnknownErrorCode, message, cause)
}

// WrapParseError wraps an error with a "failed to parse" message
func WrapParseError(item string, cause error) *SyntaxError {
	message := fmt.Sprintf("failed to parse %s", item)
	return &SyntaxError{
		BaseError: Wrap(SyntaxErrorCode, message, cause),
	}
}

// WrapGenerateError wraps a callback failure for a target
func WrapGenerateError(target string, cause error) *GenerationError {
	// Keep the location of a located cause so diagnostics still point at source.
	var located AspectError
	loc := SourceLocation{}
	if stderrors.As(cause, &located) {
		loc = located.Location()
	}

	message := fmt.Sprintf("failed to generate %s", target)
	err := &GenerationError{
		BaseError: Wrap(GenerationErrorCode, message, cause),
		Target:    target,
	}
	err.Loc = loc
	return err
}

// WrapFileSystemError wraps file system related errors
func WrapFileSystemError(operation, path string, cause error) *BaseError {
	message := fmt.Sprintf("failed to %s file '%s'", operation, path)
	return Wrap(FileSystemErrorCode, message, cause).
		WithContext("operation", operation).
		WithContext("path", path)
}

// WrapConfigurationError wraps configuration-related errors
func WrapConfigurationError(configType, operation string, cause error) *BaseError {
	message := fmt.Sprintf("failed to %s configuration '%s'", operation, configType)
	return Wrap(ConfigurationErrorCode, message, cause).
		WithContext("config_type", configType).
		WithContext("operation", operation)
}

// Code returns the ErrorCode of the first AspectError in err's chain
func Code(err error) ErrorCode {
	var aspectErr AspectError
	if stderrors.As(err, &aspectErr) {
		return aspectErr.ErrorCode()
	}
	return UnknownErrorCode
}

// LocationOfError returns the location of the first located error in err's chain
func LocationOfError(err error) (SourceLocation, bool) {
	var aspectErr AspectError
	if stderrors.As(err, &aspectErr) && !aspectErr.Location().IsEmpty() {
		return aspectErr.Location(), true
	}
	return SourceLocation{}, false
}

// LocateError sets loc on the first AspectError in err's chain when no error
// in the chain is located yet. A column already set on the unlocated error is
// an offset from loc, as left by parsers that were given no location.
func LocateError(err error, loc SourceLocation) error {
	if loc.IsEmpty() {
		return err
	}
	if _, ok := LocationOfError(err); ok {
		return err
	}

	var target interface{ base() *BaseError }
	if stderrors.As(err, &target) {
		b := target.base()
		b.Loc = loc.Shift(b.Loc.Column)
	}
	return err
}
