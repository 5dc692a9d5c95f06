package errors

import (
	"errors"
	"fmt"
	"io/fs"
)

// Wrap wraps an error with additional context, creating a TagforgeError if the input is not already one
func Wrap(err error, errType ErrorType, code, message string) *TagforgeError {
	if err == nil {
		return nil
	}

	var te *TagforgeError
	if errors.As(err, &te) {
		return &TagforgeError{
			Type:        errType,
			Code:        code,
			Message:     message,
			Cause:       te,
			Context:     te.Context,
			Component:   te.Component,
			FilePath:    te.FilePath,
			Line:        te.Line,
			Column:      te.Column,
			Recoverable: te.Recoverable,
		}
	}

	return &TagforgeError{
		Type:        errType,
		Code:        code,
		Message:     message,
		Cause:       err,
		Recoverable: errType == ErrorTypeValidation || errType == ErrorTypeBuild,
	}
}

// WrapIO wraps an error as an I/O error. A wrapped fs.ErrNotExist becomes a
// file-not-found error so callers can match ErrFileNotFound.
func WrapIO(err error, path, message string) *TagforgeError {
	if err == nil {
		return nil
	}
	if isNotExist(err) {
		e := NewFileNotFoundError(path, err)
		if message != "" {
			e.Message = message
		}

		return e
	}

	e := NewIOError(ErrCodeIO, message, err)
	e.FilePath = path

	return e
}

// WrapConfig wraps an error as a configuration error
func WrapConfig(err error, code, message string) *TagforgeError {
	tagErr := Wrap(err, ErrorTypeConfig, code, message)
	if tagErr != nil {
		tagErr.Recoverable = false
	}

	return tagErr
}

// FormatError formats an error for user display
func FormatError(err error) string {
	if err == nil {
		return ""
	}

	return err.Error()
}

// FormatErrorWithSuggestions formats an error with suggestions for ValidationError types
func FormatErrorWithSuggestions(err error) string {
	if err == nil {
		return ""
	}

	var ve ValidationError
	if errors.As(err, &ve) {
		result := ve.Error()
		suggestions := ve.Suggestions()
		if len(suggestions) > 0 {
			result += "\n\nSuggestions:"
			for _, suggestion := range suggestions {
				result += fmt.Sprintf("\n  • %s", suggestion)
			}
		}

		return result
	}

	return FormatError(err)
}

// GetErrorContext extracts context information from a TagforgeError
func GetErrorContext(err error) map[string]interface{} {
	var te *TagforgeError
	if errors.As(err, &te) {
		context := make(map[string]interface{})
		for k, v := range te.Context {
			context[k] = v
		}
		if te.Component != "" {
			context["tag"] = te.Component
		}
		if te.FilePath != "" {
			context["file"] = te.FilePath
		}
		context["type"] = string(te.Type)
		context["code"] = te.Code
		context["recoverable"] = te.Recoverable

		return context
	}

	return map[string]interface{}{
		"message": err.Error(),
		"type":    "unknown",
	}
}

// ExtractCause extracts the root cause from a wrapped error
func ExtractCause(err error) error {
	for err != nil {
		var te *TagforgeError
		if !errors.As(err, &te) {
			return err
		}
		if te.Cause == nil {
			return te
		}
		err = te.Cause
	}

	return nil
}

// CombineErrors combines multiple errors into a single error with context
func CombineErrors(errs ...error) error {
	var nonNil []error
	for _, err := range errs {
		if err != nil {
			nonNil = append(nonNil, err)
		}
	}
	if len(nonNil) == 0 {
		return nil
	}
	if len(nonNil) == 1 {
		return nonNil[0]
	}

	messages := make([]string, 0, len(nonNil))
	for _, err := range nonNil {
		messages = append(messages, err.Error())
	}

	return &TagforgeError{
		Type:    ErrorTypeBuild,
		Code:    "ERR_MULTIPLE_ERRORS",
		Message: fmt.Sprintf("multiple errors occurred: %d errors", len(nonNil)),
		Cause:   errors.Join(nonNil...),
		Context: map[string]interface{}{
			"error_count": len(nonNil),
			"errors":      messages,
		},
	}
}

func isNotExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}
