// Package report writes harvest results to the process output streams.
package report

import (
	"fmt"
	"io"
	"sync"

	"github.com/JakeFAU/realtime-weather-crawler/internal/weather"
)

// DoneMarker is written once after every task has settled.
const DoneMarker = "Done"

// Reporter receives task results as they complete.
type Reporter interface {
	Success(reading weather.Reading)
	Failure(url weather.DetailURL, err error)
	Done()
}

// Writer prints one line per event. Successes and the completion marker go
// to out; failures go to errOut. Lines from concurrent tasks never interleave.
type Writer struct {
	mu     sync.Mutex
	out    io.Writer
	errOut io.Writer
}

// NewWriter creates a Writer.
func NewWriter(out, errOut io.Writer) *Writer {
	return &Writer{out: out, errOut: errOut}
}

// Success writes "<areaName> <temperature>".
func (w *Writer) Success(reading weather.Reading) {
	w.println(w.out, reading.String())
}

// Failure writes "Task failed: <url> <cause>".
func (w *Writer) Failure(url weather.DetailURL, err error) {
	w.println(w.errOut, fmt.Sprintf("Task failed: %s %v", url, err))
}

// Done writes the completion marker.
func (w *Writer) Done() {
	w.println(w.out, DoneMarker)
}

func (w *Writer) println(dst io.Writer, line string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	// Output is best-effort; a closed stdout must not fail the harvest.
	_, _ = fmt.Fprintln(dst, line)
}
