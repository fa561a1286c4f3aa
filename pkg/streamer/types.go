// Package streamer implements spec.md §4.4: an append-only chunked
// byte-stream store with ordered, live delivery to readers. PostgreSQL
// gets a LISTEN/NOTIFY fast path; MySQL/SQLite fall back to polling the
// same stream_chunks table.
package streamer

import (
	"context"
)

// Chunk is one row of the stream_chunks table.
type Chunk struct {
	StreamID    string
	ChunkID     string
	ChunkData   []byte
	ContentType string
	EOF         bool
}

// Streamer is the contract both back-end implementations satisfy.
type Streamer interface {
	// Write appends a non-EOF chunk and returns its assigned chunkId.
	Write(ctx context.Context, streamID string, data []byte, contentType string) (string, error)
	// Close appends a zero-length EOF chunk, marking the stream finished.
	Close(ctx context.Context, streamID string) error
	// Read returns a channel of chunks for streamID starting after the
	// startIndex'th logical chunk (0 = from the beginning), closed when
	// EOF is seen or ctx is cancelled. Errors are delivered on errc and
	// terminate the stream.
	Read(ctx context.Context, streamID string, startIndex int) (<-chan Chunk, <-chan error)
}
