package errors

import (
	"bufio"
	stderrors "errors"
	"fmt"
	"os"
)

// Category groups error codes by the part of the tool that raises them.
type Category string

const (
	CategoryConfig Category = "config"
	CategoryCLI    Category = "cli"
	CategoryBuild  Category = "build"
	CategoryDeploy Category = "deploy"
	CategoryServe  Category = "serve"
)

// excerptRadius is the number of lines shown on each side of a location.
const excerptRadius = 2

// Location points into a source file. Line and Column are 1-based; a zero
// Column means the column is unknown.
type Location struct {
	File   string `json:"file"`
	Line   int    `json:"line"`
	Column int    `json:"column,omitempty"`
}

func (l *Location) String() string {
	if l == nil {
		return ""
	}
	if l.Column > 0 {
		return fmt.Sprintf("%s:%d:%d", l.File, l.Line, l.Column)
	}
	return fmt.Sprintf("%s:%d", l.File, l.Line)
}

// ShipError is a coded failure reported to the user. The underlying library
// error, when there is one, is kept in Wrapped and reachable through
// errors.Is and errors.As.
type ShipError struct {
	Code     string
	Category Category
	Message  string
	Detail   string

	// Stage names the pipeline stage that failed, if any.
	Stage string

	Location *Location

	// Excerpt holds the source lines around Location, starting at
	// ExcerptStart.
	Excerpt      []string
	ExcerptStart int

	Suggestion string
	Wrapped    error
}

func (e *ShipError) Error() string {
	msg := e.Message
	if e.Code != "" {
		msg = e.Code + ": " + msg
	}
	if e.Wrapped != nil {
		msg += ": " + e.Wrapped.Error()
	}
	return msg
}

func (e *ShipError) Unwrap() error {
	return e.Wrapped
}

// WithLocation records a source position and reads the surrounding lines
// when the file is readable.
func (e *ShipError) WithLocation(file string, line, column int) *ShipError {
	e.Location = &Location{File: file, Line: line, Column: column}
	e.ExcerptStart, e.Excerpt = readExcerpt(file, line)
	return e
}

func (e *ShipError) WithSuggestion(s string) *ShipError {
	e.Suggestion = s
	return e
}

func (e *ShipError) WithDetail(d string) *ShipError {
	e.Detail = d
	return e
}

// WithStage records the failing pipeline stage. An existing stage is kept.
func (e *ShipError) WithStage(name string) *ShipError {
	if e.Stage == "" {
		e.Stage = name
	}
	return e
}

func (e *ShipError) Wrap(err error) *ShipError {
	e.Wrapped = err
	return e
}

func readExcerpt(file string, line int) (int, []string) {
	f, err := os.Open(file)
	if err != nil {
		return 0, nil
	}
	defer f.Close()

	first := max(line-excerptRadius, 1)
	last := line + excerptRadius

	var lines []string
	scanner := bufio.NewScanner(f)
	for n := 1; n <= last && scanner.Scan(); n++ {
		if n >= first {
			lines = append(lines, scanner.Text())
		}
	}
	if len(lines) == 0 {
		return 0, nil
	}
	return first, lines
}

// New returns an error for a registered code. Unregistered codes produce an
// "Unknown error" so a typo never hides the failure.
func New(code string) *ShipError {
	t, ok := registry[code]
	if !ok {
		return &ShipError{Code: code, Message: "Unknown error"}
	}
	return &ShipError{
		Code:     code,
		Category: t.Category,
		Message:  t.Message,
		Detail:   t.Detail,
	}
}

// Newf returns an uncoded error.
func Newf(category Category, format string, args ...any) *ShipError {
	return &ShipError{
		Category: category,
		Message:  fmt.Sprintf(format, args...),
	}
}

// FromError returns the ShipError already in err's chain, or wraps err in a
// new error with the given code.
func FromError(err error, code string) *ShipError {
	if err == nil {
		return nil
	}
	if se, ok := As(err); ok {
		return se
	}
	return New(code).Wrap(err)
}

// As finds the first ShipError in err's chain.
func As(err error) (*ShipError, bool) {
	var se *ShipError
	if stderrors.As(err, &se) {
		return se, true
	}
	return nil, false
}
