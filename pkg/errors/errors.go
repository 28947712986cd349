package errors

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// ErrorCode represents a unique error code for categorizing errors
type ErrorCode string

const (
	// Connection errors (1xxx)
	ErrCodeConnectionFailed     ErrorCode = "FLD1001"
	ErrCodeAuthenticationFailed ErrorCode = "FLD1002"
	ErrCodeSessionClosed        ErrorCode = "FLD1003"

	// Configuration errors (2xxx)
	ErrCodeConfigMissing    ErrorCode = "FLD2001"
	ErrCodeConfigInvalid    ErrorCode = "FLD2002"
	ErrCodeConfigUnreadable ErrorCode = "FLD2003"
	ErrCodePrivateKey       ErrorCode = "FLD2004"

	// Provisioning errors (3xxx)
	ErrCodeProvisioningFailed ErrorCode = "FLD3001"
	ErrCodeInvalidIdentifier  ErrorCode = "FLD3002"

	// Load errors (4xxx)
	ErrCodeLoadFailed     ErrorCode = "FLD4001"
	ErrCodeStagingFailed  ErrorCode = "FLD4002"
	ErrCodeFileFormat     ErrorCode = "FLD4003"
	ErrCodeCopyFailed     ErrorCode = "FLD4004"
	ErrCodeRowMismatch    ErrorCode = "FLD4005"
	ErrCodeRollbackFailed ErrorCode = "FLD4006"
	ErrCodeCommitFailed   ErrorCode = "FLD4007"

	// Streaming errors (5xxx)
	ErrCodeStreamFailed  ErrorCode = "FLD5001"
	ErrCodeProduceFailed ErrorCode = "FLD5002"
	ErrCodeConsumeFailed ErrorCode = "FLD5003"

	// Generation errors (6xxx)
	ErrCodeUnsupportedLocale ErrorCode = "FLD6001"
	ErrCodeInvalidRecord     ErrorCode = "FLD6002"
	ErrCodeSerialization     ErrorCode = "FLD6003"

	// System errors (9xxx)
	ErrCodeInternal ErrorCode = "FLD9001"
)

// ErrorSeverity represents the severity level of an error
type ErrorSeverity string

const (
	SeverityCritical ErrorSeverity = "CRITICAL"
	SeverityError    ErrorSeverity = "ERROR"
	SeverityWarning  ErrorSeverity = "WARNING"
)

// AppError represents a structured application error with context
type AppError struct {
	Code        ErrorCode
	Message     string
	Severity    ErrorSeverity
	Context     map[string]interface{}
	Cause       error
	Timestamp   time.Time
	Suggestions []string
}

// Error implements the error interface
func (e *AppError) Error() string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("[%s] %s", e.Code, e.Message))

	if e.Cause != nil {
		b.WriteString(fmt.Sprintf(": %v", e.Cause))
	}

	return b.String()
}

// Unwrap returns the cause of the error
func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is matches another AppError by code.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// New creates a new AppError
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:      code,
		Message:   message,
		Severity:  SeverityError,
		Context:   make(map[string]interface{}),
		Timestamp: time.Now(),
	}
}

// Newf creates a new AppError with a formatted message
func Newf(code ErrorCode, format string, args ...interface{}) *AppError {
	return New(code, fmt.Sprintf(format, args...))
}

// Wrap wraps an existing error with AppError
func Wrap(err error, code ErrorCode, message string) *AppError {
	if err == nil {
		return nil
	}

	appErr := New(code, message)
	appErr.Cause = err

	// Inherit context from a wrapped AppError so nothing is lost on the way up.
	var inner *AppError
	if errors.As(err, &inner) {
		for k, v := range inner.Context {
			appErr.Context[k] = v
		}
	}

	return appErr
}

// WithContext adds context to the error
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// WithSeverity sets the error severity
func (e *AppError) WithSeverity(severity ErrorSeverity) *AppError {
	e.Severity = severity
	return e
}

// WithSuggestions adds recovery suggestions
func (e *AppError) WithSuggestions(suggestions ...string) *AppError {
	e.Suggestions = append(e.Suggestions, suggestions...)
	return e
}

// ContextKeys returns the context keys in a stable order.
func (e *AppError) ContextKeys() []string {
	keys := make([]string, 0, len(e.Context))
	for k := range e.Context {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Common error constructors

// ConfigMissing reports a required configuration value that no source provided.
// The message names the key and every location that was searched.
func ConfigMissing(key string, searched ...string) *AppError {
	msg := fmt.Sprintf("missing required configuration value %s", key)
	if len(searched) > 0 {
		msg = fmt.Sprintf("%s (searched %s)", msg, strings.Join(searched, ", "))
	}
	return New(ErrCodeConfigMissing, msg).
		WithSeverity(SeverityCritical).
		WithContext("key", key).
		WithContext("searched", searched).
		WithSuggestions(
			fmt.Sprintf("Export %s or mount it as a secret file", key),
			fmt.Sprintf("Set %s_FILE to the path of a file holding the value", key),
		)
}

// ConfigInvalid reports a configuration value that could not be used.
func ConfigInvalid(key string, reason string) *AppError {
	return New(ErrCodeConfigInvalid, fmt.Sprintf("invalid configuration value %s: %s", key, reason)).
		WithSeverity(SeverityCritical).
		WithContext("key", key)
}

// ConnectionError creates a connection-related error
func ConnectionError(message string, cause error) *AppError {
	return Wrap(cause, ErrCodeConnectionFailed, message).
		WithSeverity(SeverityCritical).
		WithSuggestions(
			"Check the account identifier and network access to Snowflake",
			"Verify the public key registered for the user matches the private key",
		)
}

// ProvisioningError wraps a failed DDL or grant statement.
func ProvisioningError(statement string, cause error) *AppError {
	return Wrap(cause, ErrCodeProvisioningFailed, "provisioning statement failed").
		WithContext("statement", truncateString(statement, 200)).
		WithSuggestions("Every provisioning statement is idempotent; re-run init_job once the cause is fixed")
}

// LoadError wraps a failure during staging, file-format creation or COPY INTO.
func LoadError(code ErrorCode, message string, cause error) *AppError {
	if cause == nil {
		return New(code, message)
	}
	return Wrap(cause, code, message)
}

// GetErrorCode extracts the error code from an error
func GetErrorCode(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrCodeInternal
}

// HasCode reports whether any AppError in err's chain carries code.
func HasCode(err error, code ErrorCode) bool {
	return errors.Is(err, &AppError{Code: code})
}

// truncateString truncates a string to maxLen characters
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

// Is and As forward to the standard library so callers need a single import.

func Is(err, target error) bool { return errors.Is(err, target) }

func As(err error, target interface{}) bool { return errors.As(err, target) }
