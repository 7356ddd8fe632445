// Package readers implements the source half of the acquisition pipeline
// (spec.md §1/§4.2): components that produce raw text lines for a
// internal/parser.Parser to turn into Records. A Reader knows nothing about
// field parsing or device definitions -- it only knows how to get bytes off
// the wire.
package readers

import "context"

// Reader is the common interface every source implements. Read blocks until
// a line is available, ctx is cancelled, or the underlying source is
// exhausted (io.EOF-like sources return an error wrapping that condition).
// A Reader is not safe for concurrent use by multiple goroutines calling
// Read simultaneously -- each reader is owned by exactly one pipeline node.
type Reader interface {
	// Read returns the next raw line (without its trailing newline).
	Read(ctx context.Context) (string, error)

	// Close releases any resources (file handles, sockets, serial ports)
	// held by the reader. Read must not be called after Close.
	Close() error
}
