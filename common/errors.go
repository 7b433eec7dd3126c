package common

import (
	"github.com/cockroachdb/errors"
)

// Error categories shared by every allocator, store and the staging pipeline. Callers match them with errors.Is;
// the concrete errors returned wrap one of these with call-site detail.
var (
	// ErrOutOfMemory is returned when an allocator cannot satisfy a request within its configured capacity.
	// It signals misconfiguration and must not be retried.
	ErrOutOfMemory = errors.New("out of memory")

	// ErrNotFound is returned when a key or a loader pattern has no match.
	ErrNotFound = errors.New("not found")

	// ErrUnsupported is returned by operations that are deliberately not implemented (arena remove, heap free,
	// asset unload). They fail loudly instead of silently doing nothing.
	ErrUnsupported = errors.New("unsupported operation")

	// ErrLoadFailure tags errors produced by asset loaders.
	ErrLoadFailure = errors.New("load failure")

	// ErrInvalidArgument is returned for malformed requests: oversized writes, double frees, zero-size allocations.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrCapacity is returned when a store exhausts a fixed index space (e.g. the 16-bit camera index range).
	// Errors carrying it are also marked as ErrOutOfMemory.
	ErrCapacity = errors.New("capacity exceeded")
)

// OutOfMemory builds an ErrOutOfMemory error with a formatted detail message.
//
// Parameters:
//   - format: printf-style format for the detail
//   - args: format arguments
//
// Returns:
//   - error: an error for which errors.Is(err, ErrOutOfMemory) holds
func OutOfMemory(format string, args ...any) error {
	return errors.Wrapf(ErrOutOfMemory, format, args...)
}

// Unsupported builds an ErrUnsupported error naming the rejected operation.
//
// Parameters:
//   - op: the operation name, e.g. "arena remove"
//
// Returns:
//   - error: an error for which errors.Is(err, ErrUnsupported) holds
func Unsupported(op string) error {
	return errors.Wrapf(ErrUnsupported, "%s", op)
}

// InvalidArgument builds an ErrInvalidArgument error with a formatted detail message.
func InvalidArgument(format string, args ...any) error {
	return errors.Wrapf(ErrInvalidArgument, format, args...)
}

// NotFound builds an ErrNotFound error with a formatted detail message.
func NotFound(format string, args ...any) error {
	return errors.Wrapf(ErrNotFound, format, args...)
}

// CapacityExceeded builds an ErrCapacity error that is additionally marked as ErrOutOfMemory, so callers that only
// check for allocator exhaustion still see it.
//
// Parameters:
//   - format: printf-style format for the detail
//   - args: format arguments
//
// Returns:
//   - error: an error matching both ErrCapacity and ErrOutOfMemory
func CapacityExceeded(format string, args ...any) error {
	return Categorize(errors.Wrapf(ErrCapacity, format, args...), ErrOutOfMemory)
}

// LoadFailed wraps a loader error so it matches ErrLoadFailure while keeping the original cause.
//
// Parameters:
//   - err: the error returned by the loader
//   - locator: the locator that was being loaded
//   - lod: the requested level of detail
//
// Returns:
//   - error: the wrapped error, or nil if err is nil
func LoadFailed(err error, locator string, lod int) error {
	if err == nil {
		return nil
	}
	return Categorize(errors.Wrapf(err, "load %q lod %d", locator, lod), ErrLoadFailure)
}

// Categorize makes err additionally match category under errors.Is while keeping its own chain and message.
//
// Parameters:
//   - err: the error to tag
//   - category: one of the Err* categories
//
// Returns:
//   - error: the tagged error, or nil if err is nil
func Categorize(err, category error) error {
	if err == nil {
		return nil
	}
	return &categorized{cause: err, category: category}
}

// categorized adds a second category to an error chain. Unwrap keeps the cause reachable and Is matches the
// category, so both the standard library and cockroachdb errors.Is see each of them.
type categorized struct {
	cause    error
	category error
}

func (e *categorized) Error() string { return e.cause.Error() }
func (e *categorized) Unwrap() error { return e.cause }

func (e *categorized) Is(target error) bool {
	return target == e.category
}
