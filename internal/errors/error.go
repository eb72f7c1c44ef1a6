package errors

import (
	"bufio"
	"fmt"
	"os"
	"regexp"
	"strconv"
)

// Category represents the type of error.
type Category string

const (
	CategoryRuntime Category = "runtime"
	CategoryConfig  Category = "config"
	CategoryCLI     Category = "cli"
)

// Location represents a source location, usually inside a config file.
type Location struct {
	File   string
	Line   int
	Column int
}

// String returns the location as a formatted string.
func (l *Location) String() string {
	if l == nil {
		return ""
	}
	if l.Column > 0 {
		return fmt.Sprintf("%s:%d:%d", l.File, l.Line, l.Column)
	}
	return fmt.Sprintf("%s:%d", l.File, l.Line)
}

// CtrlError is a structured error with location, suggestions, and documentation.
type CtrlError struct {
	// Code is a unique error identifier (e.g., "C101").
	Code string

	// Category is the error type (runtime, config, cli).
	Category Category

	// Message is a short description of the error.
	Message string

	// Detail is a longer explanation of the error.
	Detail string

	// Location is where the error occurred, if known.
	Location *Location

	// Context contains surrounding source lines.
	Context []string

	// Suggestion is a hint on how to fix the error.
	Suggestion string

	// DocURL is a link to documentation about this error.
	DocURL string

	// Wrapped is the underlying error, if any.
	Wrapped error
}

// Error implements the error interface.
func (e *CtrlError) Error() string {
	msg := e.Message
	if e.Code != "" {
		msg = fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	if e.Wrapped != nil {
		msg += ": " + e.Wrapped.Error()
	}
	return msg
}

// Unwrap returns the wrapped error for errors.Is/As support.
func (e *CtrlError) Unwrap() error {
	return e.Wrapped
}

// WithLocation adds a source location to the error and reads the
// surrounding lines when the file is readable.
func (e *CtrlError) WithLocation(file string, line, column int) *CtrlError {
	e.Location = &Location{File: file, Line: line, Column: column}
	e.Context = readContextLines(file, line, 5)
	return e
}

// yamlLine matches the position prefix yaml.v3 puts on its errors.
var yamlLine = regexp.MustCompile(`line (\d+)`)

// WithLocationFromError extracts a line number from a parser error such as
// "yaml: line 3: mapping values are not allowed in this context".
func (e *CtrlError) WithLocationFromError(file string, err error) *CtrlError {
	if err == nil {
		return e
	}
	m := yamlLine.FindStringSubmatch(err.Error())
	if m == nil {
		return e
	}
	line, convErr := strconv.Atoi(m[1])
	if convErr != nil || line <= 0 {
		return e
	}
	return e.WithLocation(file, line, 0)
}

// WithSuggestion adds a fix suggestion to the error.
func (e *CtrlError) WithSuggestion(s string) *CtrlError {
	e.Suggestion = s
	return e
}

// WithDetail adds a detailed explanation to the error.
func (e *CtrlError) WithDetail(d string) *CtrlError {
	e.Detail = d
	return e
}

// Wrap wraps another error.
func (e *CtrlError) Wrap(err error) *CtrlError {
	e.Wrapped = err
	return e
}

// readContextLines reads lines around the specified line number from a file.
func readContextLines(filename string, targetLine, contextSize int) []string {
	file, err := os.Open(filename)
	if err != nil {
		return nil
	}
	defer file.Close()

	var lines []string
	scanner := bufio.NewScanner(file)
	lineNum := 0
	startLine := targetLine - contextSize/2
	endLine := targetLine + contextSize/2

	for scanner.Scan() {
		lineNum++
		if lineNum >= startLine && lineNum <= endLine {
			lines = append(lines, scanner.Text())
		}
		if lineNum > endLine {
			break
		}
	}

	return lines
}

// New creates a CtrlError from a registered error code.
func New(code string) *CtrlError {
	template, ok := registry[code]
	if !ok {
		return &CtrlError{
			Code:    code,
			Message: "Unknown error",
		}
	}
	return &CtrlError{
		Code:     code,
		Category: template.Category,
		Message:  template.Message,
		Detail:   template.Detail,
		DocURL:   template.DocURL,
	}
}

// Newf creates a new CtrlError with a formatted message (no code).
func Newf(category Category, format string, args ...any) *CtrlError {
	return &CtrlError{
		Category: category,
		Message:  fmt.Sprintf(format, args...),
	}
}

// FromError wraps a standard error in a CtrlError.
func FromError(err error, code string) *CtrlError {
	if err == nil {
		return nil
	}
	if ce, ok := err.(*CtrlError); ok {
		return ce
	}
	return New(code).Wrap(err)
}
