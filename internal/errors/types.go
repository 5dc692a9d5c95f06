package errors

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrorType represents different categories of errors.
type ErrorType string

const (
	ErrorTypeValidation ErrorType = "validation"
	ErrorTypeSecurity   ErrorType = "security"
	ErrorTypeIO         ErrorType = "io"
	ErrorTypeTemplate   ErrorType = "template"
	ErrorTypeBuild      ErrorType = "build"
	ErrorTypeConfig     ErrorType = "config"
	ErrorTypeInternal   ErrorType = "internal"
)

// TagforgeError is a structured error type with context.
type TagforgeError struct {
	Type        ErrorType
	Code        string
	Message     string
	Cause       error
	Context     map[string]interface{}
	Component   string
	FilePath    string
	Line        int
	Column      int
	Recoverable bool
}

// Error implements the error interface.
func (e *TagforgeError) Error() string {
	var parts []string

	if e.Code != "" {
		parts = append(parts, fmt.Sprintf("[%s]", e.Code))
	}

	if e.Component != "" {
		parts = append(parts, "tag:"+e.Component)
	}

	if e.FilePath != "" {
		location := e.FilePath
		if e.Line > 0 {
			location += fmt.Sprintf(":%d", e.Line)
			if e.Column > 0 {
				location += fmt.Sprintf(":%d", e.Column)
			}
		}
		parts = append(parts, location)
	}

	if e.Message != "" {
		parts = append(parts, e.Message)
	}

	result := strings.Join(parts, " ")

	if e.Cause != nil {
		result += fmt.Sprintf(": %v", e.Cause)
	}

	return result
}

// Unwrap returns the underlying cause error.
func (e *TagforgeError) Unwrap() error {
	return e.Cause
}

// Is implements error comparison. Two errors match when type and code match,
// which lets the package sentinels be used with errors.Is.
func (e *TagforgeError) Is(target error) bool {
	var t *TagforgeError
	if errors.As(target, &t) {
		return e.Type == t.Type && e.Code == t.Code
	}

	return false
}

// WithContext adds context information to the error.
func (e *TagforgeError) WithContext(key string, value interface{}) *TagforgeError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value

	return e
}

// WithLocation adds file location information.
func (e *TagforgeError) WithLocation(filePath string, line, column int) *TagforgeError {
	e.FilePath = filePath
	e.Line = line
	e.Column = column

	return e
}

// WithComponent records the tag whose expansion failed.
func (e *TagforgeError) WithComponent(component string) *TagforgeError {
	e.Component = component

	return e
}

// Common error codes.
const (
	ErrCodeInvalidPath      = "ERR_INVALID_PATH"
	ErrCodePathTraversal    = "ERR_PATH_TRAVERSAL"
	ErrCodeTemplateNotFound = "ERR_TEMPLATE_NOT_FOUND"
	ErrCodeTemplateCompile  = "ERR_TEMPLATE_COMPILE"
	ErrCodeTemplateRender   = "ERR_TEMPLATE_RENDER"
	ErrCodeRecursionLimit   = "ERR_RECURSION_LIMIT"
	ErrCodeBuildFailed      = "ERR_BUILD_FAILED"
	ErrCodeConfigInvalid    = "ERR_CONFIG_INVALID"
	ErrCodeFileNotFound     = "ERR_FILE_NOT_FOUND"
	ErrCodeIO               = "ERR_IO"
	ErrCodeInternalError    = "ERR_INTERNAL"
	ErrCodeValidationFailed = "ERR_VALIDATION_FAILED"
)

// Sentinels for errors.Is. Only Type and Code take part in the comparison.
var (
	ErrTemplateNotFound = &TagforgeError{Type: ErrorTypeTemplate, Code: ErrCodeTemplateNotFound}
	ErrTemplateCompile  = &TagforgeError{Type: ErrorTypeTemplate, Code: ErrCodeTemplateCompile}
	ErrTemplateRender   = &TagforgeError{Type: ErrorTypeTemplate, Code: ErrCodeTemplateRender}
	ErrRecursionLimit   = &TagforgeError{Type: ErrorTypeTemplate, Code: ErrCodeRecursionLimit}
	ErrFileNotFound     = &TagforgeError{Type: ErrorTypeIO, Code: ErrCodeFileNotFound}
	ErrIO               = &TagforgeError{Type: ErrorTypeIO, Code: ErrCodeIO}
	ErrBuild            = &TagforgeError{Type: ErrorTypeBuild, Code: ErrCodeBuildFailed}
)

// Error creation functions

// NewValidationError creates a validation error.
func NewValidationError(code, message string) *TagforgeError {
	return &TagforgeError{
		Type:        ErrorTypeValidation,
		Code:        code,
		Message:     message,
		Recoverable: true,
	}
}

// NewSecurityError creates a security error.
func NewSecurityError(code, message string) *TagforgeError {
	return &TagforgeError{
		Type:        ErrorTypeSecurity,
		Code:        code,
		Message:     message,
		Recoverable: false,
	}
}

// NewBuildError creates a build error.
func NewBuildError(code, message string, cause error) *TagforgeError {
	return &TagforgeError{
		Type:        ErrorTypeBuild,
		Code:        code,
		Message:     message,
		Cause:       cause,
		Recoverable: true,
	}
}

// NewIOError creates an I/O error.
func NewIOError(code, message string, cause error) *TagforgeError {
	return &TagforgeError{
		Type:        ErrorTypeIO,
		Code:        code,
		Message:     message,
		Cause:       cause,
		Recoverable: false,
	}
}

// NewConfigError creates a configuration error.
func NewConfigError(code, message string) *TagforgeError {
	return &TagforgeError{
		Type:        ErrorTypeConfig,
		Code:        code,
		Message:     message,
		Recoverable: false,
	}
}

// NewInternalError creates an internal error.
func NewInternalError(code, message string, cause error) *TagforgeError {
	return &TagforgeError{
		Type:        ErrorTypeInternal,
		Code:        code,
		Message:     message,
		Cause:       cause,
		Recoverable: false,
	}
}

// NewTemplateNotFoundError reports a tag whose template unit is missing.
func NewTemplateNotFoundError(name, typ, path string, cause error) *TagforgeError {
	msg := "template not found"
	if typ != "" {
		msg = fmt.Sprintf("template not found for type %q", typ)
	}

	return &TagforgeError{
		Type:      ErrorTypeTemplate,
		Code:      ErrCodeTemplateNotFound,
		Message:   msg,
		Cause:     cause,
		Component: name,
		FilePath:  path,
		Context:   map[string]interface{}{"type": typ},
	}
}

// NewTemplateCompileError reports a template unit that failed to compile.
func NewTemplateCompileError(name, path string, cause error) *TagforgeError {
	return &TagforgeError{
		Type:      ErrorTypeTemplate,
		Code:      ErrCodeTemplateCompile,
		Message:   "template failed to compile",
		Cause:     cause,
		Component: name,
		FilePath:  path,
	}
}

// NewTemplateRenderError reports a compiled template that failed to execute.
func NewTemplateRenderError(name string, cause error) *TagforgeError {
	return &TagforgeError{
		Type:      ErrorTypeTemplate,
		Code:      ErrCodeTemplateRender,
		Message:   "template failed to render",
		Cause:     cause,
		Component: name,
	}
}

// NewRecursionLimitError reports expansion nesting deeper than the engine allows.
func NewRecursionLimitError(chain []string, limit int) *TagforgeError {
	return &TagforgeError{
		Type:    ErrorTypeTemplate,
		Code:    ErrCodeRecursionLimit,
		Message: fmt.Sprintf("expansion nested deeper than %d levels: %s", limit, strings.Join(chain, " > ")),
		Context: map[string]interface{}{"chain": chain, "limit": limit},
	}
}

// NewFileNotFoundError reports a missing source file or components folder.
func NewFileNotFoundError(path string, cause error) *TagforgeError {
	return &TagforgeError{
		Type:     ErrorTypeIO,
		Code:     ErrCodeFileNotFound,
		Message:  "file not found",
		Cause:    cause,
		FilePath: path,
	}
}

// Error recovery and handling utilities

// IsRecoverable checks if an error is recoverable.
func IsRecoverable(err error) bool {
	var te *TagforgeError
	if errors.As(err, &te) {
		return te.Recoverable
	}

	return false
}

// IsSecurityError checks if an error is security-related.
func IsSecurityError(err error) bool {
	var te *TagforgeError
	if errors.As(err, &te) {
		return te.Type == ErrorTypeSecurity
	}

	return false
}

// IsTemplateError checks if an error came from resolving or rendering a template.
func IsTemplateError(err error) bool {
	var te *TagforgeError
	if errors.As(err, &te) {
		return te.Type == ErrorTypeTemplate
	}

	return false
}

// ErrorHandler provides centralized error handling.
type ErrorHandler struct {
	logger Logger
}

// Logger interface for error logging.
type Logger interface {
	Error(ctx context.Context, err error, msg string, fields ...interface{})
	Warn(ctx context.Context, err error, msg string, fields ...interface{})
}

// NewErrorHandler creates a new error handler.
func NewErrorHandler(logger Logger) *ErrorHandler {
	return &ErrorHandler{logger: logger}
}

// Handle logs an error at a level chosen from its type.
func (h *ErrorHandler) Handle(ctx context.Context, err error) {
	if err == nil || h.logger == nil {
		return
	}

	var te *TagforgeError
	if !errors.As(err, &te) {
		h.logger.Error(ctx, err, "Unhandled error occurred")

		return
	}

	switch te.Type {
	case ErrorTypeTemplate, ErrorTypeBuild:
		h.logger.Error(ctx, err, "Expansion failed",
			"code", te.Code,
			"tag", te.Component,
			"file", te.FilePath)
	case ErrorTypeValidation:
		h.logger.Warn(ctx, err, "Validation error occurred",
			"code", te.Code)
	default:
		h.logger.Error(ctx, err, "Error occurred",
			"type", te.Type,
			"code", te.Code)
	}
}

// ValidationError interface for field-specific validation errors.
type ValidationError interface {
	error
	Field() string
	Value() interface{}
	Suggestions() []string
}

// FieldValidationError implements ValidationError for specific field errors.
type FieldValidationError struct {
	FieldName    string
	FieldValue   interface{}
	ErrorMessage string
	HelpText     []string
}

// Error implements the error interface.
func (fve *FieldValidationError) Error() string {
	return fmt.Sprintf("validation error in field '%s': %s", fve.FieldName, fve.ErrorMessage)
}

// Field returns the field name that failed validation.
func (fve *FieldValidationError) Field() string {
	return fve.FieldName
}

// Value returns the invalid value.
func (fve *FieldValidationError) Value() interface{} {
	return fve.FieldValue
}

// Suggestions returns helpful suggestions for fixing the error.
func (fve *FieldValidationError) Suggestions() []string {
	return fve.HelpText
}

// NewFieldValidationError creates a new field validation error.
func NewFieldValidationError(
	field string,
	value interface{},
	message string,
	suggestions ...string,
) *FieldValidationError {
	return &FieldValidationError{
		FieldName:    field,
		FieldValue:   value,
		ErrorMessage: message,
		HelpText:     suggestions,
	}
}

// Helper functions for common errors

// ErrInvalidPath creates a path validation error.
func ErrInvalidPath(path string) *TagforgeError {
	return NewValidationError(ErrCodeInvalidPath, "invalid path: "+path)
}

// ErrPathTraversal creates a path traversal security error.
func ErrPathTraversal(path string) *TagforgeError {
	return NewSecurityError(ErrCodePathTraversal, "path traversal attempt: "+path)
}

// ErrBuildFailed wraps a per-file processing failure.
func ErrBuildFailed(file string, cause error) *TagforgeError {
	e := NewBuildError(ErrCodeBuildFailed, "processing failed", cause)
	e.FilePath = file

	var te *TagforgeError
	if errors.As(cause, &te) && te.Component != "" {
		e.Component = te.Component
	}

	return e
}
