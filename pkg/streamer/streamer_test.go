package streamer

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ejc3/workflow/pkg/id"
	"github.com/ejc3/workflow/pkg/storage/dialect"
)

const chunksSchema = `
CREATE TABLE stream_chunks (
	stream_id TEXT NOT NULL,
	chunk_id TEXT NOT NULL,
	chunk_data BLOB NOT NULL,
	content_type TEXT NOT NULL DEFAULT 'application/octet-stream',
	eof INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL,
	PRIMARY KEY (stream_id, chunk_id)
);
`

func newTestStreamer(t *testing.T) *pollingStreamer {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	_, err = db.Exec(chunksSchema)
	require.NoError(t, err)
	return newPollingStreamer(db, dialect.For(dialect.SQLite), id.NewGenerator(), zap.NewNop())
}

func drain(t *testing.T, out <-chan Chunk, errc <-chan error, timeout time.Duration) []Chunk {
	t.Helper()
	var got []Chunk
	deadline := time.After(timeout)
	for {
		select {
		case c, ok := <-out:
			if !ok {
				return got
			}
			got = append(got, c)
		case err := <-errc:
			require.NoError(t, err)
		case <-deadline:
			t.Fatal("timed out waiting for stream to finish")
		}
	}
}

func TestWriteThenRead_OrderAndEOF(t *testing.T) {
	s := newTestStreamer(t)
	ctx := context.Background()
	streamID := "strm_1"

	_, err := s.Write(ctx, streamID, []byte("ab"), "")
	require.NoError(t, err)
	_, err = s.Write(ctx, streamID, []byte("cd"), "")
	require.NoError(t, err)
	require.NoError(t, s.Close(ctx, streamID))

	out, errc := s.Read(ctx, streamID, 0)
	got := drain(t, out, errc, 2*time.Second)

	require.Len(t, got, 3)
	assert.Equal(t, []byte("ab"), got[0].ChunkData)
	assert.Equal(t, []byte("cd"), got[1].ChunkData)
	assert.True(t, got[2].EOF)
}

func TestLiveDelivery_ReaderAttachesMidStream(t *testing.T) {
	s := newTestStreamer(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	streamID := "strm_live"

	_, err := s.Write(ctx, streamID, []byte("ab"), "")
	require.NoError(t, err)

	out, errc := s.Read(ctx, streamID, 0)

	time.Sleep(30 * time.Millisecond)
	_, err = s.Write(ctx, streamID, []byte("cd"), "")
	require.NoError(t, err)
	require.NoError(t, s.Close(ctx, streamID))

	got := drain(t, out, errc, 3*time.Second)
	require.Len(t, got, 3)
	assert.Equal(t, []byte("ab"), got[0].ChunkData)
	assert.Equal(t, []byte("cd"), got[1].ChunkData)
	assert.True(t, got[2].EOF)
}

func TestRead_StartIndexSkipsChunks(t *testing.T) {
	s := newTestStreamer(t)
	ctx := context.Background()
	streamID := "strm_skip"

	for _, b := range [][]byte{[]byte("a"), []byte("b"), []byte("c")} {
		_, err := s.Write(ctx, streamID, b, "")
		require.NoError(t, err)
	}
	require.NoError(t, s.Close(ctx, streamID))

	out, errc := s.Read(ctx, streamID, 2)
	got := drain(t, out, errc, 2*time.Second)

	require.Len(t, got, 2)
	assert.Equal(t, []byte("c"), got[0].ChunkData)
	assert.True(t, got[1].EOF)
}

func TestRead_StartIndexExceedingCatchUp_SkipsLiveChunksToo(t *testing.T) {
	s := newTestStreamer(t)
	ctx := context.Background()
	streamID := "strm_skip_live"

	_, err := s.Write(ctx, streamID, []byte("a"), "")
	require.NoError(t, err)

	// startIndex=3 exceeds the single chunk visible at subscribe time: the
	// remaining skip count must still apply to chunks written afterward.
	out, errc := s.Read(ctx, streamID, 3)

	time.Sleep(30 * time.Millisecond)
	for _, b := range [][]byte{[]byte("b"), []byte("c"), []byte("d")} {
		_, err := s.Write(ctx, streamID, b, "")
		require.NoError(t, err)
	}
	require.NoError(t, s.Close(ctx, streamID))

	got := drain(t, out, errc, 3*time.Second)
	require.Len(t, got, 2)
	assert.Equal(t, []byte("d"), got[0].ChunkData)
	assert.True(t, got[1].EOF)
}

func TestRead_CancellationStopsDelivery(t *testing.T) {
	s := newTestStreamer(t)
	ctx, cancel := context.WithCancel(context.Background())
	streamID := "strm_cancel"

	out, errc := s.Read(ctx, streamID, 0)
	cancel()

	select {
	case _, ok := <-out:
		assert.False(t, ok, "channel should close on cancellation")
	case <-time.After(2 * time.Second):
		t.Fatal("Read did not stop after cancellation")
	}
	select {
	case err := <-errc:
		require.NoError(t, err)
	default:
	}
}
