package storage

import "errors"

// Sentinel errors forming the storage error taxonomy. Backends wrap these
// with operation context (path, chunk index, route) via fmt.Errorf("%w").
var (
	// ErrNotFound indicates the path does not exist.
	ErrNotFound = errors.New("path not found")

	// ErrInvalidArgument indicates a caller error, e.g. a recursive put on a
	// path that is not a directory.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrTooManyParts indicates the file exceeds the part-count ceiling at
	// the configured chunk size. Raised before any chunk is sent.
	ErrTooManyParts = errors.New("file exceeds maximum multipart chunk count")

	// ErrUnsupported indicates an operation that is not meaningful for the
	// selected backend.
	ErrUnsupported = errors.New("operation not supported by backend")

	// ErrAuthFailed indicates an invalid or expired token.
	ErrAuthFailed = errors.New("authentication failed")

	// ErrExhaustedRetries indicates that all retry attempts failed.
	ErrExhaustedRetries = errors.New("exhausted retries")

	// ErrDecode indicates a response that did not match the expected schema.
	ErrDecode = errors.New("failed to decode response")
)

// IsNotFound reports whether err is (or wraps) ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
