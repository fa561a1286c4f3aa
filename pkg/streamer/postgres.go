package streamer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// NotifyChannel is the LISTEN/NOTIFY channel stream writes fire on,
// grounded in the same dedicated-pgx-connection pattern pkg/queue's
// postgres.go uses for job dispatch (spec.md §4.4's PostgreSQL streamer).
const NotifyChannel = "workflow_event_chunk"

// postgresStreamer layers a pgx LISTEN fast path over the embedded
// pollingStreamer: a NOTIFY wakes the shared hub immediately instead of
// waiting out the next 200ms poll tick, while the poller keeps running
// underneath as the correctness fallback for a missed NOTIFY during a
// reconnect window (SPEC_FULL.md's resolution of spec.md §9's open
// question (b), mirrored from the queue package's identical shape).
type postgresStreamer struct {
	*pollingStreamer
	notifyDSN string
	logger    *zap.Logger
}

func newPostgresStreamer(inner *pollingStreamer, notifyDSN string, logger *zap.Logger) *postgresStreamer {
	return &postgresStreamer{pollingStreamer: inner, notifyDSN: notifyDSN, logger: logger.Named("streamer.postgres")}
}

func (s *postgresStreamer) Write(ctx context.Context, streamID string, data []byte, contentType string) (string, error) {
	chunkID, err := s.pollingStreamer.Write(ctx, streamID, data, contentType)
	if err != nil {
		return "", err
	}
	go s.notify(context.Background(), streamID, chunkID)
	return chunkID, nil
}

func (s *postgresStreamer) Close(ctx context.Context, streamID string) error {
	if err := s.pollingStreamer.Close(ctx, streamID); err != nil {
		return err
	}
	// The EOF chunk's id is generated inside pollingStreamer.Close and not
	// returned; a NOTIFY with just the streamID is enough to wake a
	// listener into re-checking the stream, which will observe EOF on its
	// next catch-up/poll pass.
	go s.notify(context.Background(), streamID, "")
	return nil
}

func (s *postgresStreamer) notify(ctx context.Context, streamID, chunkID string) {
	conn, err := pgx.Connect(ctx, s.notifyDSN)
	if err != nil {
		s.logger.Warn("notify connect failed, falling back to polling latency", zap.Error(err))
		return
	}
	defer conn.Close(ctx)
	payload := streamID + ":" + chunkID
	if _, err := conn.Exec(ctx, fmt.Sprintf("NOTIFY %s, '%s'", NotifyChannel, pgEscape(payload))); err != nil {
		s.logger.Warn("notify exec failed", zap.Error(err))
	}
}

// pgEscape escapes single quotes for the literal NOTIFY payload; stream
// and chunk ids are ULIDs and never contain one, but this keeps the
// statement safe if that ever changes.
func pgEscape(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}

// Start begins the dedicated LISTEN connection. Read() still works without
// calling Start first (the embedded poller covers it at 200ms latency);
// Start only improves latency.
func (s *postgresStreamer) Start(ctx context.Context) {
	go s.listenLoop(ctx)
}

func (s *postgresStreamer) listenLoop(ctx context.Context) {
	reconnectDelay := time.Second
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		conn, err := pgx.Connect(ctx, s.notifyDSN)
		if err != nil {
			s.logger.Warn("listen connect failed, retrying", zap.Error(err), zap.Duration("delay", reconnectDelay))
			if !sleepOrDone(ctx, reconnectDelay) {
				return
			}
			continue
		}
		if _, err := conn.Exec(ctx, "LISTEN "+NotifyChannel); err != nil {
			conn.Close(ctx)
			s.logger.Warn("listen exec failed, retrying", zap.Error(err))
			if !sleepOrDone(ctx, reconnectDelay) {
				return
			}
			continue
		}

		for {
			notification, err := conn.WaitForNotification(ctx)
			if err != nil {
				conn.Close(ctx)
				break
			}
			s.handleNotification(ctx, notification.Payload)
		}

		if ctx.Err() != nil {
			return
		}
	}
}

func (s *postgresStreamer) handleNotification(ctx context.Context, payload string) {
	streamID, chunkID, ok := strings.Cut(payload, ":")
	if !ok {
		return
	}
	if chunkID == "" {
		// Close() notification: nothing to resolve eagerly, the poll
		// loop (if one is running for this stream) will observe EOF on
		// its next tick.
		return
	}
	if s.hub.subscriberCount(streamID) == 0 {
		return
	}
	chunk, err := fetchOneChunk(ctx, s.db, s.dia, streamID, chunkID)
	if err != nil || chunk == nil {
		return
	}
	s.hub.publish(streamID, *chunk)
}

func sleepOrDone(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
