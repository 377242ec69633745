// Package cli implements the vclock-replay command line tool.
//
// Commands are built by factory functions (NewReplayCmd, NewValidateCmd)
// that take an outputFn closure, so the Output is created after the root
// command has parsed its persistent flags. Data goes to stdout, as a table
// or as JSON with --json; messages go to stderr.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
)

// Output formats command results.
type Output struct {
	jsonMode bool
	w        io.Writer
	errW     io.Writer
}

// NewOutput returns an Output writing data to w and messages to errW.
func NewOutput(jsonMode bool, w, errW io.Writer) *Output {
	return &Output{
		jsonMode: jsonMode,
		w:        w,
		errW:     errW,
	}
}

// Print writes rows as a table, or jsonData as JSON in JSON mode.
func (o *Output) Print(headers []string, rows [][]string, jsonData any) error {
	if o.jsonMode {
		return o.JSON(jsonData)
	}
	return o.Table(headers, rows)
}

// Table writes an aligned table with a dashed rule under the headers.
func (o *Output) Table(headers []string, rows [][]string) error {
	tw := tabwriter.NewWriter(o.w, 0, 0, 2, ' ', 0)

	fmt.Fprintln(tw, strings.Join(headers, "\t"))
	dashes := make([]string, len(headers))
	for i, h := range headers {
		dashes[i] = strings.Repeat("-", len(h))
	}
	fmt.Fprintln(tw, strings.Join(dashes, "\t"))
	for _, row := range rows {
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}

	return tw.Flush()
}

// JSON writes v indented.
func (o *Output) JSON(v any) error {
	enc := json.NewEncoder(o.w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// Writer returns the data writer.
func (o *Output) Writer() io.Writer {
	return o.w
}

// Success writes msg to the message stream.
func (o *Output) Success(msg string) {
	fmt.Fprintln(o.errW, msg)
}
