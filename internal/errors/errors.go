package errors

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/html"
)

// BuildError represents a failure to process one file
type BuildError struct {
	Tag       string
	File      string
	Line      int
	Column    int
	Message   string
	Severity  ErrorSeverity
	Timestamp time.Time
}

// ErrorSeverity represents the severity of an error
type ErrorSeverity int

const (
	ErrorSeverityInfo ErrorSeverity = iota
	ErrorSeverityWarning
	ErrorSeverityError
	ErrorSeverityFatal
)

// String returns the string representation of the severity
func (s ErrorSeverity) String() string {
	switch s {
	case ErrorSeverityInfo:
		return "info"
	case ErrorSeverityWarning:
		return "warning"
	case ErrorSeverityError:
		return "error"
	case ErrorSeverityFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Error implements the error interface
func (be *BuildError) Error() string {
	if be.Tag != "" {
		return fmt.Sprintf("%s: %s: <%s>: %s", be.File, be.Severity, be.Tag, be.Message)
	}

	return fmt.Sprintf("%s: %s: %s", be.File, be.Severity, be.Message)
}

// NewBuildErrorFromError converts a processing failure into a BuildError,
// lifting the tag and file out of a TagforgeError when present.
func NewBuildErrorFromError(file string, err error) BuildError {
	be := BuildError{
		File:     file,
		Message:  err.Error(),
		Severity: ErrorSeverityError,
	}

	var te *TagforgeError
	if errors.As(err, &te) {
		be.Tag = te.Component
		be.Line = te.Line
		be.Column = te.Column
		if cause := ExtractCause(te); cause != nil {
			be.Message = cause.Error()
		}
	}

	return be
}

// ErrorCollector collects and manages build errors and general errors
type ErrorCollector struct {
	buildErrors []BuildError
	errors      []error
	mutex       sync.RWMutex
}

// NewErrorCollector creates a new error collector
func NewErrorCollector() *ErrorCollector {
	return &ErrorCollector{
		buildErrors: make([]BuildError, 0),
		errors:      make([]error, 0),
	}
}

// Add adds a build error to the collector
func (ec *ErrorCollector) Add(err BuildError) {
	ec.mutex.Lock()
	defer ec.mutex.Unlock()
	err.Timestamp = time.Now()
	ec.buildErrors = append(ec.buildErrors, err)
}

// AddError adds a general error to the collector
func (ec *ErrorCollector) AddError(err error) {
	if err == nil {
		return
	}
	ec.mutex.Lock()
	defer ec.mutex.Unlock()
	ec.errors = append(ec.errors, err)
}

// GetErrors returns all collected build errors
func (ec *ErrorCollector) GetErrors() []BuildError {
	ec.mutex.RLock()
	defer ec.mutex.RUnlock()
	result := make([]BuildError, len(ec.buildErrors))
	copy(result, ec.buildErrors)

	return result
}

// GetAllErrors returns all collected errors (build and general)
func (ec *ErrorCollector) GetAllErrors() []error {
	ec.mutex.RLock()
	defer ec.mutex.RUnlock()

	allErrors := make([]error, 0, len(ec.buildErrors)+len(ec.errors))
	for i := range ec.buildErrors {
		be := ec.buildErrors[i]
		allErrors = append(allErrors, &be)
	}
	allErrors = append(allErrors, ec.errors...)

	return allErrors
}

// HasErrors returns true if there are any errors
func (ec *ErrorCollector) HasErrors() bool {
	ec.mutex.RLock()
	defer ec.mutex.RUnlock()

	return len(ec.buildErrors) > 0 || len(ec.errors) > 0
}

// Clear clears all errors
func (ec *ErrorCollector) Clear() {
	ec.mutex.Lock()
	defer ec.mutex.Unlock()
	ec.buildErrors = ec.buildErrors[:0]
	ec.errors = ec.errors[:0]
}

// GetErrorsByFile returns errors for a specific file
func (ec *ErrorCollector) GetErrorsByFile(file string) []BuildError {
	ec.mutex.RLock()
	defer ec.mutex.RUnlock()
	var fileErrors []BuildError
	for _, err := range ec.buildErrors {
		if err.File == file {
			fileErrors = append(fileErrors, err)
		}
	}

	return fileErrors
}

// Files returns the distinct files named by collected errors, in the order
// they were first reported.
func (ec *ErrorCollector) Files() []string {
	ec.mutex.RLock()
	defer ec.mutex.RUnlock()
	seen := make(map[string]bool, len(ec.buildErrors))
	var files []string
	add := func(file string) {
		if file != "" && !seen[file] {
			seen[file] = true
			files = append(files, file)
		}
	}
	for _, err := range ec.buildErrors {
		add(err.File)
	}
	for _, err := range ec.errors {
		var te *TagforgeError
		if errors.As(err, &te) {
			add(te.FilePath)
		}
	}

	return files
}

// Err returns nil when nothing was collected, the single error when exactly
// one was collected, and otherwise an aggregate naming every failed file.
func (ec *ErrorCollector) Err() error {
	all := ec.GetAllErrors()
	switch len(all) {
	case 0:
		return nil
	case 1:
		return all[0]
	}

	files := ec.Files()
	e := NewBuildError(
		ErrCodeBuildFailed,
		fmt.Sprintf("%d files failed: %s", len(files), strings.Join(files, ", ")),
		errors.Join(all...),
	)
	e.Context = map[string]interface{}{"files": files, "error_count": len(all)}

	return e
}

// ErrorOverlay generates HTML for error overlay
func (ec *ErrorCollector) ErrorOverlay() string {
	if !ec.HasErrors() {
		return ""
	}

	var b strings.Builder
	b.WriteString(`
<div id="tagforge-error-overlay" style="
	position: fixed;
	top: 0;
	left: 0;
	width: 100%;
	height: 100%;
	background: rgba(0, 0, 0, 0.8);
	color: white;
	font-family: 'Monaco', 'Menlo', monospace;
	font-size: 14px;
	z-index: 9999;
	padding: 20px;
	box-sizing: border-box;
	overflow: auto;
">
	<div style="max-width: 1000px; margin: 0 auto;">
		<div style="display: flex; justify-content: space-between; align-items: center; margin-bottom: 20px;">
			<h2 style="margin: 0; color: #ff6b6b;">Expansion Errors</h2>
			<button onclick="document.getElementById('tagforge-error-overlay').style.display='none'"
					style="background: none; border: 1px solid #ccc; color: white; padding: 5px 10px; cursor: pointer;">
				Close
			</button>
		</div>
		<div>`)

	ec.mutex.RLock()
	for _, err := range ec.buildErrors {
		severityColor := "#ff6b6b"
		switch err.Severity {
		case ErrorSeverityWarning:
			severityColor = "#feca57"
		case ErrorSeverityInfo:
			severityColor = "#48dbfb"
		}

		location := html.EscapeString(err.File)
		if err.Tag != "" {
			location += " &lt;" + html.EscapeString(err.Tag) + "&gt;"
		}

		fmt.Fprintf(&b, `
			<div style="
				background: #2d3748;
				padding: 15px;
				margin-bottom: 15px;
				border-radius: 4px;
				border-left: 4px solid %s;
			">
				<div style="display: flex; justify-content: space-between; align-items: center; margin-bottom: 10px;">
					<span style="color: %s; font-weight: bold;">%s</span>
					<span style="color: #a0aec0; font-size: 12px;">%s</span>
				</div>
				<div style="color: #e2e8f0; margin-bottom: 5px;">
					<strong>%s</strong>
				</div>
				<div style="color: #a0aec0; font-size: 12px;">
					%s
				</div>
			</div>
		`, severityColor, severityColor, err.Severity.String(), err.Timestamp.Format("15:04:05"),
			html.EscapeString(err.Message), location)
	}
	for _, err := range ec.errors {
		fmt.Fprintf(&b, `
			<div style="background: #2d3748; padding: 15px; margin-bottom: 15px; border-left: 4px solid #ff6b6b;">
				<strong style="color: #e2e8f0;">%s</strong>
			</div>
		`, html.EscapeString(err.Error()))
	}
	ec.mutex.RUnlock()

	b.WriteString(`
		</div>
	</div>
</div>`)

	return b.String()
}
