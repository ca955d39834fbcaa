package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
)

// DebugSink is an Uploader that pretty-prints payloads instead of sending
// them, for dry runs.
type DebugSink[T any] struct {
	out io.Writer
}

// NewDebugSink creates a debug sink writing to out.
func NewDebugSink[T any](out io.Writer) *DebugSink[T] {
	return &DebugSink[T]{out: out}
}

// Upload prints the payload as indented JSON and reports it created.
func (d *DebugSink[T]) Upload(_ context.Context, payload *T) (Result, error) {
	encoded, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return Failed, fmt.Errorf("pipeline: failed to encode payload: %w", err)
	}
	fmt.Fprintln(d.out, string(encoded))
	return Created, nil
}
