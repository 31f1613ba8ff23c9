// Package logging provides the gateway's bare *log.Logger factory. Every
// subsystem that owns a stdio transport must log elsewhere than stdout, or
// it will corrupt the framed protocol sharing that stream.
package logging

import (
	"fmt"
	"io"
	"log"
)

// New returns a logger prefixed with the component name, writing to w with
// standard date/time flags. Passing io.Discard silences it without callers
// needing a nil check.
func New(component string, w io.Writer) *log.Logger {
	if w == nil {
		w = io.Discard
	}
	return log.New(w, fmt.Sprintf("[%s] ", component), log.LstdFlags)
}

// Discard returns a logger that drops everything, used by tests and by
// callers that never configured a log sink.
func Discard(component string) *log.Logger {
	return New(component, io.Discard)
}
