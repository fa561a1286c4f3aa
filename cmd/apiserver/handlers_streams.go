package main

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ejc3/workflow/internal/httpapi"
)

func (s *server) writeStreamChunk(c *gin.Context) {
	data, err := io.ReadAll(io.LimitReader(c.Request.Body, 16<<20))
	if err != nil {
		httpapi.Error(c, badRequest(err))
		return
	}
	chunkID, err := s.world.Streamer.Write(c.Request.Context(), c.Param("streamId"), data, c.ContentType())
	if err != nil {
		httpapi.Error(c, err)
		return
	}
	httpapi.Created(c, gin.H{"chunkId": chunkID})
}

func (s *server) closeStream(c *gin.Context) {
	if err := s.world.Streamer.Close(c.Request.Context(), c.Param("streamId")); err != nil {
		httpapi.Error(c, err)
		return
	}
	httpapi.Success(c, nil)
}

// readStream delivers spec.md §4.4's chunk sequence as newline-delimited
// JSON over a chunked HTTP response, flushing after every chunk so a
// streaming client observes live delivery instead of a buffered body.
func (s *server) readStream(c *gin.Context) {
	out, errc := s.world.Streamer.Read(c.Request.Context(), c.Param("streamId"), queryInt(c, "startIndex", 0))

	c.Status(http.StatusOK)
	c.Header("Content-Type", "application/x-ndjson")
	flusher, canFlush := c.Writer.(http.Flusher)

	enc := json.NewEncoder(c.Writer)
	for {
		select {
		case chunk, ok := <-out:
			if !ok {
				return
			}
			if err := enc.Encode(chunk); err != nil {
				return
			}
			if canFlush {
				flusher.Flush()
			}
		case err := <-errc:
			if err != nil {
				_ = enc.Encode(gin.H{"error": err.Error()})
				if canFlush {
					flusher.Flush()
				}
			}
			return
		case <-c.Request.Context().Done():
			return
		}
	}
}
