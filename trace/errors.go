package trace

import "fmt"

// A MalformedRecordError reports a record whose address cannot be read.
type MalformedRecordError struct {
	Line   int
	Record string
	Reason string
}

func (e *MalformedRecordError) Error() string {
	return fmt.Sprintf("malformed record at line %d (%q): %s",
		e.Line, e.Record, e.Reason)
}

// A TraceUnavailableError reports a trace that cannot be opened.
type TraceUnavailableError struct {
	Name string
	Err  error
}

func (e *TraceUnavailableError) Error() string {
	return fmt.Sprintf("trace %s unavailable: %v", e.Name, e.Err)
}

func (e *TraceUnavailableError) Unwrap() error {
	return e.Err
}
