// Package errors provides structured, actionable error messages for shipsite.
//
// Every failure the tool reports to the user carries a code (e.g. "E200")
// that maps to a short message and a longer explanation. Library errors are
// never replaced: they are attached with Wrap so errors.Is and errors.As keep
// working on the original value.
//
// # Error Categories
//
//   - config: shipsite.json and environment problems
//   - cli: command invocation problems (missing source directory, bad flags)
//   - build: asset pipeline stage failures (minify, gzip, file selection)
//   - deploy: bucket upload failures
//   - serve: preview server failures
//
// # Usage
//
//	err := errors.New("E200").
//	    WithLocation("src/css/site.css", 12, 4).
//	    WithSuggestion("Check for an unclosed block above this line").
//	    Wrap(parseErr)
//
//	errors.Print(os.Stderr, err, false)
package errors
