package streamer

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ejc3/workflow/pkg/id"
	"github.com/ejc3/workflow/pkg/storage/dialect"
)

// pollInterval matches the queue package's poll cadence (spec.md §4.4:
// "a 200 ms interval timer polls ... emits new chunks").
const pollInterval = 200 * time.Millisecond

const pollBatchSize = 100

// pollingStreamer implements spec.md §4.4's MySQL/SQLite fallback: a
// per-stream 200ms ticker polls stream_chunks for rows past the last seen
// chunkId and publishes them into the shared hub, stopping when EOF is
// seen or the last reader detaches.
type pollingStreamer struct {
	db     queryer
	dia    dialect.Dialect
	gen    *id.Generator
	hub    *hub
	logger *zap.Logger

	mu      sync.Mutex
	tickers map[string]context.CancelFunc
}

func newPollingStreamer(db queryer, dia dialect.Dialect, gen *id.Generator, logger *zap.Logger) *pollingStreamer {
	return &pollingStreamer{
		db:      db,
		dia:     dia,
		gen:     gen,
		hub:     newHub(),
		logger:  logger.Named("streamer"),
		tickers: make(map[string]context.CancelFunc),
	}
}

func (s *pollingStreamer) Write(ctx context.Context, streamID string, data []byte, contentType string) (string, error) {
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c := Chunk{StreamID: streamID, ChunkID: s.gen.New(id.PrefixStreamChunk), ChunkData: data, ContentType: contentType}
	if err := insertChunk(ctx, s.db, s.dia, c); err != nil {
		return "", err
	}
	return c.ChunkID, nil
}

func (s *pollingStreamer) Close(ctx context.Context, streamID string) error {
	c := Chunk{StreamID: streamID, ChunkID: s.gen.New(id.PrefixStreamChunk), ChunkData: []byte{}, ContentType: "application/octet-stream", EOF: true}
	return insertChunk(ctx, s.db, s.dia, c)
}

func (s *pollingStreamer) Read(ctx context.Context, streamID string, startIndex int) (<-chan Chunk, <-chan error) {
	out := make(chan Chunk)
	errc := make(chan error, 1)

	go func() {
		defer close(out)

		sub, unsub := s.hub.subscribe(ctx, streamID)
		// maybeStopPolling must observe this subscriber already removed,
		// so it is deferred before unsub: defers run LIFO, so unsub fires
		// first.
		defer s.maybeStopPolling(streamID)
		defer unsub()
		s.ensurePolling(streamID)

		existing, err := fetchChunksAfter(ctx, s.db, s.dia, streamID, "", 0)
		if err != nil {
			if ctx.Err() != nil {
				return // cancelled before or during the catch-up read
			}
			errc <- err
			return
		}

		skip := startIndex
		var lastChunkID string
		for _, c := range existing {
			lastChunkID = c.ChunkID
			if skip > 0 {
				skip--
				if c.EOF {
					return
				}
				continue
			}
			if !deliver(ctx, out, c) {
				return
			}
			if c.EOF {
				return
			}
		}

		for {
			c, ok := sub.next()
			if !ok {
				return
			}
			if lastChunkID != "" && c.ChunkID <= lastChunkID {
				continue // already delivered from the catch-up SELECT
			}
			lastChunkID = c.ChunkID
			if skip > 0 {
				// startIndex exceeded what the catch-up SELECT saw: keep
				// skipping against chunks arriving live, so a reader never
				// sees a chunk it asked to skip.
				skip--
				if c.EOF {
					return
				}
				continue
			}
			if !deliver(ctx, out, c) {
				return
			}
			if c.EOF {
				return
			}
		}
	}()

	return out, errc
}

func deliver(ctx context.Context, out chan<- Chunk, c Chunk) bool {
	select {
	case out <- c:
		return true
	case <-ctx.Done():
		return false
	}
}

// ensurePolling starts streamID's ticker goroutine if it is not already
// running. Safe to call once per reader; the ticker itself stops only when
// the last reader for streamID unsubscribes or EOF is observed.
func (s *pollingStreamer) ensurePolling(streamID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tickers[streamID]; ok {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.tickers[streamID] = cancel
	go s.pollLoop(ctx, streamID)
}

func (s *pollingStreamer) maybeStopPolling(streamID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.hub.subscriberCount(streamID) > 0 {
		return
	}
	if cancel, ok := s.tickers[streamID]; ok {
		cancel()
		delete(s.tickers, streamID)
	}
}

func (s *pollingStreamer) pollLoop(ctx context.Context, streamID string) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	lastSeen := ""
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		chunks, err := fetchChunksAfter(context.Background(), s.db, s.dia, streamID, lastSeen, pollBatchSize)
		if err != nil {
			s.logger.Warn("stream poll failed", zap.String("stream", streamID), zap.Error(err))
			continue
		}
		if len(chunks) == 0 {
			continue
		}
		eof := false
		for _, c := range chunks {
			s.hub.publish(streamID, c)
			lastSeen = c.ChunkID
			if c.EOF {
				eof = true
			}
		}
		if eof {
			s.stopPolling(streamID)
			return
		}
	}
}

func (s *pollingStreamer) stopPolling(streamID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cancel, ok := s.tickers[streamID]; ok {
		cancel()
		delete(s.tickers, streamID)
	}
}
