package streamer

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ejc3/workflow/pkg/storage/dialect"
)

// queryer is the subset of *sql.DB the streamer needs, matching the
// queue package's narrowing so both can be driven by the same underlying
// adapter.SQLDB() without an import cycle on the adapter package.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func insertChunk(ctx context.Context, db queryer, dia dialect.Dialect, c Chunk) error {
	query := fmt.Sprintf(
		`INSERT INTO stream_chunks (stream_id, chunk_id, chunk_data, content_type, eof, created_at)
		 VALUES (%s, %s, %s, %s, %s, %s)`,
		dia.Placeholder(1), dia.Placeholder(2), dia.Placeholder(3), dia.Placeholder(4), dia.Placeholder(5), dia.Placeholder(6),
	)
	_, err := db.ExecContext(ctx, query, c.StreamID, c.ChunkID, c.ChunkData, c.ContentType, c.EOF, time.Now().UTC())
	return err
}

// fetchChunksAfter returns chunks for streamID with chunk_id > afterChunkID
// (afterChunkID == "" fetches from the beginning), ascending, up to limit
// rows (0 = unlimited). Shared by the initial catch-up read in Read() and
// by the polling implementation's per-tick query.
func fetchChunksAfter(ctx context.Context, db queryer, dia dialect.Dialect, streamID, afterChunkID string, limit int) ([]Chunk, error) {
	var query string
	var args []any
	if afterChunkID == "" {
		query = fmt.Sprintf(`SELECT stream_id, chunk_id, chunk_data, content_type, eof FROM stream_chunks WHERE stream_id = %s ORDER BY chunk_id ASC`, dia.Placeholder(1))
		args = []any{streamID}
	} else {
		query = fmt.Sprintf(`SELECT stream_id, chunk_id, chunk_data, content_type, eof FROM stream_chunks WHERE stream_id = %s AND chunk_id > %s ORDER BY chunk_id ASC`, dia.Placeholder(1), dia.Placeholder(2))
		args = []any{streamID, afterChunkID}
	}
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Chunk
	for rows.Next() {
		var c Chunk
		if err := rows.Scan(&c.StreamID, &c.ChunkID, &c.ChunkData, &c.ContentType, &c.EOF); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// fetchOneChunk reads a single chunk by its composite key, used by the
// postgres implementation to resolve a NOTIFY payload into a row.
func fetchOneChunk(ctx context.Context, db queryer, dia dialect.Dialect, streamID, chunkID string) (*Chunk, error) {
	rows, err := db.QueryContext(ctx,
		fmt.Sprintf(`SELECT stream_id, chunk_id, chunk_data, content_type, eof FROM stream_chunks WHERE stream_id = %s AND chunk_id = %s`,
			dia.Placeholder(1), dia.Placeholder(2)), streamID, chunkID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	if !rows.Next() {
		return nil, rows.Err()
	}
	var c Chunk
	if err := rows.Scan(&c.StreamID, &c.ChunkID, &c.ChunkData, &c.ContentType, &c.EOF); err != nil {
		return nil, err
	}
	return &c, nil
}
