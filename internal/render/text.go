// Package render turns analysis results into output formats: plain text
// for terminals and DOT for graphical tooling. The engine exposes the
// data; everything about presentation lives here.
package render

import (
	"fmt"
	"io"

	"github.com/teflow/teflow/internal/infoflow"
)

// TextWriter writes flows as numbered text, one summary line per flow,
// or full blocks with every contributing rule when Full is set.
type TextWriter struct {
	Full bool

	w io.Writer
	n int
}

func NewTextWriter(w io.Writer, full bool) *TextWriter {
	return &TextWriter{Full: full, w: w}
}

// WriteFlow renders one flow and advances the flow counter.
func (tw *TextWriter) WriteFlow(flow *infoflow.Flow) error {
	tw.n++
	if tw.Full {
		_, err := fmt.Fprintf(tw.w, "Flow %d: %s\n\n", tw.n, flow.Full())
		return err
	}
	_, err := fmt.Fprintf(tw.w, "Flow %d: %s\n", tw.n, flow)
	return err
}

// Flows returns how many flows have been written.
func (tw *TextWriter) Flows() int { return tw.n }

// WriteStats renders graph counters.
func WriteStats(w io.Writer, s infoflow.Stats) error {
	_, err := fmt.Fprintln(w, s)
	return err
}
