package errors

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// ErrorCategory groups errors by the part of the pipeline that produced them
type ErrorCategory string

const (
	CategoryUsage          ErrorCategory = "usage"
	CategoryFile           ErrorCategory = "file"
	CategoryParse          ErrorCategory = "parse"
	CategoryConfiguration  ErrorCategory = "configuration"
	CategoryStorage        ErrorCategory = "storage"
	CategoryReconciliation ErrorCategory = "reconciliation"
	CategoryInternal       ErrorCategory = "internal"
)

// ErrorCode represents specific error codes within categories
type ErrorCode string

const (
	// Usage errors
	CodeMissingFlag  ErrorCode = "missing_flag"
	CodeInvalidFlag  ErrorCode = "invalid_flag"
	CodeMissingInput ErrorCode = "missing_input"

	// File errors
	CodeFileNotFound    ErrorCode = "file_not_found"
	CodeFilePermission  ErrorCode = "file_permission"
	CodeUnsupportedType ErrorCode = "unsupported_type"
	CodeDirectoryError  ErrorCode = "directory_error"

	// Parse errors
	CodeUnreadableDocument ErrorCode = "unreadable_document"
	CodeInvalidAmount      ErrorCode = "invalid_amount"
	CodeInvalidDate        ErrorCode = "invalid_date"

	// Configuration errors
	CodeInvalidConfig ErrorCode = "invalid_config"
	CodeMissingConfig ErrorCode = "missing_config"

	// Storage errors
	CodeStoreUnavailable ErrorCode = "store_unavailable"
	CodeStoreWrite       ErrorCode = "store_write"
	CodeSnapshotNotFound ErrorCode = "snapshot_not_found"

	// Reconciliation errors
	CodeUnreconciled ErrorCode = "unreconciled"

	// Internal errors
	CodeUnexpectedError ErrorCode = "unexpected_error"
)

// LedgerError is the base error type for all application errors
type LedgerError struct {
	Category   ErrorCategory     `json:"category"`
	Code       ErrorCode         `json:"code"`
	Message    string            `json:"message"`
	Suggestion string            `json:"suggestion,omitempty"`
	Context    Context           `json:"context,omitempty"`
	Cause      error             `json:"-"`
	StackTrace errors.StackTrace `json:"-"`
}

// Context provides additional information about the error
type Context map[string]interface{}

// Error implements the error interface
func (e *LedgerError) Error() string {
	if e.Suggestion != "" {
		return fmt.Sprintf("%s (suggestion: %s)", e.Message, e.Suggestion)
	}
	return e.Message
}

// Unwrap returns the underlying cause error
func (e *LedgerError) Unwrap() error {
	return e.Cause
}

// GetExitCode maps the category to a process exit code
func (e *LedgerError) GetExitCode() int {
	switch e.Category {
	case CategoryUsage, CategoryFile:
		return 2
	case CategoryParse:
		return 3
	case CategoryConfiguration:
		return 4
	case CategoryStorage:
		return 5
	case CategoryReconciliation, CategoryInternal:
		return 6
	default:
		return 1
	}
}

// WithContext adds context information to the error
func (e *LedgerError) WithContext(key string, value interface{}) *LedgerError {
	if e.Context == nil {
		e.Context = make(Context)
	}
	e.Context[key] = value
	return e
}

// WithSuggestion adds a suggestion for fixing the error
func (e *LedgerError) WithSuggestion(suggestion string) *LedgerError {
	e.Suggestion = suggestion
	return e
}

// New creates a new LedgerError
func New(category ErrorCategory, code ErrorCode, message string) *LedgerError {
	return &LedgerError{
		Category:   category,
		Code:       code,
		Message:    message,
		StackTrace: errors.New("").(stackTracer).StackTrace(),
	}
}

// Wrap wraps an existing error with LedgerError context
func Wrap(err error, category ErrorCategory, code ErrorCode, message string) *LedgerError {
	if err == nil {
		return nil
	}

	return &LedgerError{
		Category:   category,
		Code:       code,
		Message:    message,
		Cause:      err,
		StackTrace: errors.WithStack(err).(stackTracer).StackTrace(),
	}
}

type stackTracer interface {
	StackTrace() errors.StackTrace
}

func newOrWrap(err error, category ErrorCategory, code ErrorCode, message string) *LedgerError {
	if err != nil {
		return Wrap(err, category, code, message)
	}
	return New(category, code, message)
}

// UsageError reports an invalid command invocation
func UsageError(code ErrorCode, flag string, value interface{}) *LedgerError {
	var message, suggestion string

	switch code {
	case CodeMissingFlag:
		message = fmt.Sprintf("required flag --%s is missing", flag)
		suggestion = fmt.Sprintf("pass --%s or set it in the config file", flag)
	case CodeInvalidFlag:
		message = fmt.Sprintf("invalid value for --%s: %v", flag, value)
		suggestion = "run the command with --help to see accepted values"
	case CodeMissingInput:
		message = "at least one statement document is required"
		suggestion = "pass one or more .txt or .pdf statement paths as arguments"
	default:
		message = fmt.Sprintf("usage error for %s", flag)
		suggestion = "run the command with --help"
	}

	return New(CategoryUsage, code, message).
		WithSuggestion(suggestion).
		WithContext("flag", flag).
		WithContext("value", value)
}

// FileError creates a file-related error
func FileError(code ErrorCode, path string, err error) *LedgerError {
	var message, suggestion string

	switch code {
	case CodeFileNotFound:
		message = fmt.Sprintf("file not found: %s", path)
		suggestion = "check if the file path is correct and the file exists"
	case CodeFilePermission:
		message = fmt.Sprintf("permission denied accessing file: %s", path)
		suggestion = "check file permissions and ensure you have read access"
	case CodeUnsupportedType:
		message = fmt.Sprintf("unsupported document type: %s", path)
		suggestion = "statements must be plain text (.txt) or PDF (.pdf)"
	case CodeDirectoryError:
		message = fmt.Sprintf("directory error: %s", path)
		suggestion = "ensure the directory exists and is writable"
	default:
		message = fmt.Sprintf("file error: %s", path)
		suggestion = "check the file and try again"
	}

	return newOrWrap(err, CategoryFile, code, message).
		WithSuggestion(suggestion).
		WithContext("file_path", path)
}

// ParseError creates a document-level parse error. Line-level problems are
// diagnostics, not errors.
func ParseError(code ErrorCode, file string, err error) *LedgerError {
	var message, suggestion string

	switch code {
	case CodeUnreadableDocument:
		message = fmt.Sprintf("could not extract text from %s", file)
		suggestion = "make sure the PDF is not scanned or encrypted, or supply a text export"
	case CodeInvalidAmount:
		message = fmt.Sprintf("invalid amount in %s", file)
		suggestion = "amounts must be decimal numbers such as 1234.56"
	case CodeInvalidDate:
		message = fmt.Sprintf("invalid date in %s", file)
		suggestion = "dates must use YYYY-MM-DD"
	default:
		message = fmt.Sprintf("parse error in %s", file)
		suggestion = "check the document contents"
	}

	return newOrWrap(err, CategoryParse, code, message).
		WithSuggestion(suggestion).
		WithContext("file", file)
}

// ConfigurationError creates a configuration-related error
func ConfigurationError(code ErrorCode, setting string, value interface{}, err error) *LedgerError {
	var message, suggestion string

	switch code {
	case CodeInvalidConfig:
		message = fmt.Sprintf("invalid configuration for '%s': %v", setting, value)
		suggestion = "check the configuration documentation for valid values"
	case CodeMissingConfig:
		message = fmt.Sprintf("missing required configuration: %s", setting)
		suggestion = "provide this configuration setting or use a config file"
	default:
		message = fmt.Sprintf("configuration error: %s", setting)
		suggestion = "check your configuration and try again"
	}

	return newOrWrap(err, CategoryConfiguration, code, message).
		WithSuggestion(suggestion).
		WithContext("setting", setting).
		WithContext("value", value)
}

// StorageError creates an error for the rule and snapshot store
func StorageError(code ErrorCode, target string, err error) *LedgerError {
	var message, suggestion string

	switch code {
	case CodeStoreUnavailable:
		message = fmt.Sprintf("store unavailable: %s", target)
		suggestion = "check the --store location and that the database is reachable"
	case CodeStoreWrite:
		message = fmt.Sprintf("failed to write %s to the store", target)
		suggestion = "check disk space and database permissions"
	case CodeSnapshotNotFound:
		message = fmt.Sprintf("no statement snapshot stored for %s", target)
		suggestion = "run 'ledger parse' with --store first"
	default:
		message = fmt.Sprintf("storage error: %s", target)
		suggestion = "check the store configuration"
	}

	return newOrWrap(err, CategoryStorage, code, message).
		WithSuggestion(suggestion).
		WithContext("target", target)
}

// InternalError creates an internal error
func InternalError(code ErrorCode, operation string, err error) *LedgerError {
	message := fmt.Sprintf("unexpected error during %s", operation)
	return newOrWrap(err, CategoryInternal, code, message).
		WithSuggestion("this is likely a bug; please report it with the error details").
		WithContext("operation", operation)
}

// ErrorSummary provides a summary of multiple errors
type ErrorSummary struct {
	Total      int                   `json:"total"`
	ByCategory map[ErrorCategory]int `json:"by_category"`
	Errors     []*LedgerError        `json:"errors"`
}

// NewErrorSummary creates a new error summary
func NewErrorSummary(errs []*LedgerError) *ErrorSummary {
	summary := &ErrorSummary{
		Total:      len(errs),
		ByCategory: make(map[ErrorCategory]int),
		Errors:     errs,
	}
	for _, err := range errs {
		summary.ByCategory[err.Category]++
	}
	return summary
}

// Error returns a formatted error message for the summary
func (es *ErrorSummary) Error() string {
	switch es.Total {
	case 0:
		return "no errors"
	case 1:
		return es.Errors[0].Error()
	}

	var categories []string
	for category, count := range es.ByCategory {
		categories = append(categories, fmt.Sprintf("%s: %d", category, count))
	}
	return fmt.Sprintf("%d errors occurred (%s)", es.Total, strings.Join(categories, ", "))
}

// GetExitCode returns the highest exit code across all errors
func (es *ErrorSummary) GetExitCode() int {
	if es.Total == 0 {
		return 0
	}
	maxCode := 1
	for _, err := range es.Errors {
		if code := err.GetExitCode(); code > maxCode {
			maxCode = code
		}
	}
	return maxCode
}

// AsLedgerError extracts a LedgerError from an error chain
func AsLedgerError(err error) (*LedgerError, bool) {
	var ledgerErr *LedgerError
	if errors.As(err, &ledgerErr) {
		return ledgerErr, true
	}
	return nil, false
}

// WrapIfNeeded wraps an error if it's not already a LedgerError
func WrapIfNeeded(err error, category ErrorCategory, code ErrorCode, message string) *LedgerError {
	if err == nil {
		return nil
	}
	if ledgerErr, ok := AsLedgerError(err); ok {
		return ledgerErr
	}
	return Wrap(err, category, code, message)
}
