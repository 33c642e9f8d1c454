// Package issue implements the diagnostics collector shared by the schema
// collector and the typer (spec §4.7/§4.8): a severity-tagged, span-tagged
// message sink that both packages accumulate into rather than returning
// hard errors, so that recovery can continue past one bad statement or
// expression.
package issue

import "fmt"

// Span is a byte range into the original source text, used for
// diagnostics (spec §4.6 "span-sliced").
type Span struct {
	Start, End int
}

// Severity distinguishes a hard error (forces the enclosing statement's
// type to Invalid) from a warning (recorded but non-fatal).
type Severity int

const (
	Warning Severity = iota
	Error
)

func (s Severity) String() string {
	if s == Error {
		return "error"
	}
	return "warning"
}

// Issue is one diagnostic.
type Issue struct {
	Severity Severity
	Span     Span
	Message  string
}

func (i Issue) String() string {
	return fmt.Sprintf("%s at [%d,%d): %s", i.Severity, i.Span.Start, i.Span.End, i.Message)
}

// Collector accumulates Issues across a parse/type pass.
type Collector struct {
	issues []Issue
}

// Errorf records an Error-severity issue.
func (c *Collector) Errorf(span Span, format string, args ...any) {
	c.issues = append(c.issues, Issue{Severity: Error, Span: span, Message: fmt.Sprintf(format, args...)})
}

// Warnf records a Warning-severity issue.
func (c *Collector) Warnf(span Span, format string, args ...any) {
	c.issues = append(c.issues, Issue{Severity: Warning, Span: span, Message: fmt.Sprintf(format, args...)})
}

// Issues returns every recorded diagnostic, in recording order.
func (c *Collector) Issues() []Issue { return c.issues }

// HasErrors reports whether any Error-severity issue was recorded.
func (c *Collector) HasErrors() bool {
	for _, i := range c.issues {
		if i.Severity == Error {
			return true
		}
	}
	return false
}
