package console

import (
	"fmt"
	"io"
	"strconv"
	"sync"
)

// Output receives everything a session prints
type Output interface {
	Prompt(marker string)
	Result(marker string, value float64)
	Error(err error)
	Help(text string)
	Done()
}

// FormatValue renders a result the way the console prints it
func FormatValue(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// StreamOutput writes prompts and results to one writer and diagnostics to another
type StreamOutput struct {
	out         io.Writer
	errOut      io.Writer
	errorPrefix string
	mu          sync.Mutex
}

// NewStreamOutput creates an Output over out and errOut.
// Diagnostics are prefixed with errorPrefix.
func NewStreamOutput(out, errOut io.Writer, errorPrefix string) *StreamOutput {
	return &StreamOutput{out: out, errOut: errOut, errorPrefix: errorPrefix}
}

func (o *StreamOutput) Prompt(marker string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	io.WriteString(o.out, marker)
}

func (o *StreamOutput) Result(marker string, value float64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	fmt.Fprintf(o.out, "%s%s\n", marker, FormatValue(value))
}

func (o *StreamOutput) Error(err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	fmt.Fprintf(o.errOut, "%s%v\n", o.errorPrefix, err)
}

func (o *StreamOutput) Help(text string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	fmt.Fprintln(o.out, text)
}

// Done ends the last prompt line
func (o *StreamOutput) Done() {
	o.mu.Lock()
	defer o.mu.Unlock()
	io.WriteString(o.out, "\n")
}
