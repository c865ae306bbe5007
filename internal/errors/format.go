package errors

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
)

var colors = true

// SetColors turns ANSI styling of Format and Print on or off.
func SetColors(enabled bool) {
	colors = enabled
}

type style string

const (
	styleBold   style = "\033[1m"
	styleRed    style = "\033[31m"
	styleYellow style = "\033[33m"
	styleCyan   style = "\033[36m"
	styleDim    style = "\033[90m"
)

func (s style) paint(text string) string {
	if !colors {
		return text
	}
	return string(s) + text + "\033[0m"
}

// Format renders the error for a terminal:
//
//	error[E200]: CSS minification failed
//	  --> src/css/site.css:5:3
//	   |
//	 5 |   color: red
//	   |   ^
//	  stage: clean-css
//	  cause: unexpected token
//	  hint: Check for an unclosed block
func (e *ShipError) Format() string {
	var b strings.Builder

	b.WriteString("\n")
	head := "error"
	if e.Code != "" {
		head += "[" + e.Code + "]"
	}
	b.WriteString(styleRed.paint(styleBold.paint(head)))
	b.WriteString(styleBold.paint(": " + e.Message))
	b.WriteString("\n")

	if e.Location != nil {
		b.WriteString("  " + styleCyan.paint("--> "+e.Location.String()) + "\n")
		e.writeExcerpt(&b)
	}

	field := func(label, value string, s style) {
		if value != "" {
			b.WriteString("  " + s.paint(label+":") + " " + value + "\n")
		}
	}
	if e.Detail != "" {
		b.WriteString("  " + e.Detail + "\n")
	}
	field("stage", e.Stage, styleDim)
	if e.Wrapped != nil {
		field("cause", e.Wrapped.Error(), styleYellow)
	}
	field("hint", e.Suggestion, styleCyan)

	b.WriteString("\n")
	return b.String()
}

func (e *ShipError) writeExcerpt(b *strings.Builder) {
	if len(e.Excerpt) == 0 {
		return
	}
	last := e.ExcerptStart + len(e.Excerpt) - 1
	width := len(strconv.Itoa(last))
	gutter := strings.Repeat(" ", width+1) + styleDim.paint("|")

	b.WriteString(gutter + "\n")
	for i, line := range e.Excerpt {
		n := e.ExcerptStart + i
		num := fmt.Sprintf("%*d", width, n)
		if n == e.Location.Line {
			num = styleBold.paint(num)
		}
		fmt.Fprintf(b, "%s %s %s\n", num, styleDim.paint("|"), line)
		if n == e.Location.Line && e.Location.Column > 0 {
			b.WriteString(gutter + " " + strings.Repeat(" ", e.Location.Column-1) + styleRed.paint("^") + "\n")
		}
	}
	b.WriteString(gutter + "\n")
}

// FormatCompact renders the error on one line, compiler style.
func (e *ShipError) FormatCompact() string {
	var b strings.Builder
	if e.Location != nil {
		b.WriteString(e.Location.String() + ": ")
	}
	if e.Code != "" {
		b.WriteString(e.Code + ": ")
	}
	b.WriteString(e.Message)
	if e.Stage != "" {
		b.WriteString(" (" + e.Stage + ")")
	}
	return b.String()
}

type jsonError struct {
	Code       string    `json:"code,omitempty"`
	Category   Category  `json:"category,omitempty"`
	Message    string    `json:"message"`
	Detail     string    `json:"detail,omitempty"`
	Stage      string    `json:"stage,omitempty"`
	Location   *Location `json:"location,omitempty"`
	Cause      string    `json:"cause,omitempty"`
	Suggestion string    `json:"suggestion,omitempty"`
}

// MarshalJSON encodes the error for machine-readable output.
func (e *ShipError) MarshalJSON() ([]byte, error) {
	j := jsonError{
		Code:       e.Code,
		Category:   e.Category,
		Message:    e.Message,
		Detail:     e.Detail,
		Stage:      e.Stage,
		Location:   e.Location,
		Suggestion: e.Suggestion,
	}
	if e.Wrapped != nil {
		j.Cause = e.Wrapped.Error()
	}
	return json.Marshal(j)
}

// Print writes err to w. With asJSON the error is one JSON object per line,
// matching --log-format=json; otherwise it is Format's terminal rendering.
// Errors that carry no code are printed with their full message.
func Print(w io.Writer, err error, asJSON bool) {
	se, ok := As(err)
	if !ok {
		se = &ShipError{Message: err.Error()}
	}
	if asJSON {
		data, merr := json.Marshal(se)
		if merr != nil {
			fmt.Fprintln(w, err.Error())
			return
		}
		fmt.Fprintln(w, string(data))
		return
	}
	fmt.Fprint(w, se.Format())
}
