package consumption

import "fmt"

// NotFoundError reports a required anchor (section header, unit token,
// value line, average line, month/year pattern) missing from the input
// text. The element and section names make portal format changes easy to
// diagnose from logs.
type NotFoundError struct {
	Element string
	Section string
}

func (e *NotFoundError) Error() string {
	if e.Section != "" {
		return fmt.Sprintf("could not find %s for %s", e.Element, e.Section)
	}
	return fmt.Sprintf("could not find %s in message", e.Element)
}

// ValidationError reports a located value that violates a domain
// constraint (negative consumption value, implausible year).
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}
