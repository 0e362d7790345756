// Package blob is the content-addressable store for uploaded resumes and
// generated reports. Handles are opaque object keys; events carry handles,
// never bytes.
package blob

import "context"

type Store interface {
	Fetch(ctx context.Context, handle string) ([]byte, error)
	// Put stores data and returns its handle. Storing the same bytes twice
	// returns the same handle.
	Put(ctx context.Context, data []byte) (string, error)
}
