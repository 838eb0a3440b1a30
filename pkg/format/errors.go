package format

import (
	"errors"
	"fmt"
)

var (
	// ErrFormat matches every *FormatError.
	ErrFormat = errors.New("invalid container format")
	// ErrIntegrity matches every *IntegrityError.
	ErrIntegrity = errors.New("integrity check failed")
	// ErrConfiguration matches every *ConfigurationError.
	ErrConfiguration = errors.New("invalid codec configuration")
	// ErrEmpty indicates a load from a container without any buffers.
	ErrEmpty = errors.New("empty container has no objects")
	// ErrClosed indicates use of a closed reader or writer, or of a view
	// whose backing mapping is no longer accessible.
	ErrClosed = errors.New("container closed")
	// ErrIndexTooLarge indicates an index blob that does not fit the trailer's
	// 32-bit length field.
	ErrIndexTooLarge = errors.New("index too large")
)

// FormatError reports a structurally invalid container: bad magic,
// unsupported version, unknown flags, a short file or a missing length.
type FormatError struct {
	Msg string
	Err error
}

// NewFormatError returns a *FormatError with a formatted message.
func NewFormatError(format string, args ...any) error {
	return &FormatError{Msg: fmt.Sprintf(format, args...)}
}

func (e *FormatError) Error() string {
	if e.Err != nil {
		return "format error: " + e.Msg + ": " + e.Err.Error()
	}
	return "format error: " + e.Msg
}

// Is reports ErrFormat as a match.
func (e *FormatError) Is(target error) bool { return target == ErrFormat }

func (e *FormatError) Unwrap() error { return e.Err }

// IntegrityError reports a content hash that does not match the bytes it
// covers. Callers must not trust the bytes in question.
type IntegrityError struct {
	Msg string
}

// NewIntegrityError returns an *IntegrityError with a formatted message.
func NewIntegrityError(format string, args ...any) error {
	return &IntegrityError{Msg: fmt.Sprintf(format, args...)}
}

func (e *IntegrityError) Error() string { return "integrity error: " + e.Msg }

// Is reports ErrIntegrity as a match.
func (e *IntegrityError) Is(target error) bool { return target == ErrIntegrity }

// ConfigurationError reports an unknown or unavailable codec. It is raised
// while resolving codecs, before any buffer bytes are touched.
type ConfigurationError struct {
	Msg string
	Err error
}

// NewConfigurationError returns a *ConfigurationError with a formatted message.
func NewConfigurationError(format string, args ...any) error {
	return &ConfigurationError{Msg: fmt.Sprintf(format, args...)}
}

func (e *ConfigurationError) Error() string {
	if e.Err != nil {
		return "configuration error: " + e.Msg + ": " + e.Err.Error()
	}
	return "configuration error: " + e.Msg
}

// Is reports ErrConfiguration as a match.
func (e *ConfigurationError) Is(target error) bool { return target == ErrConfiguration }

func (e *ConfigurationError) Unwrap() error { return e.Err }
