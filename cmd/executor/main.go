// Command executor is the demo Executor collaborator spec.md §6 treats as
// out of scope: a small HTTP receiver that runs a dispatched step's
// command inside a Docker container and streams its output back. Per
// SPEC_FULL.md's DOMAIN STACK note, this replaces the reference task
// executor's net/rpc transport with gin, since the queue's httpExecutor
// dispatches over HTTP.
package main

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/ejc3/workflow/internal/apierr"
	"github.com/ejc3/workflow/internal/config"
	"github.com/ejc3/workflow/internal/httpapi"
	"github.com/ejc3/workflow/internal/logging"
)

var errInvalidCommand = errors.New("executor: message data must be {\"command\": \"...\"}")

// dispatchRequest mirrors pkg/queue's httpExecutor wire format.
type dispatchRequest struct {
	QueueName string          `json:"queueName"`
	Data      json.RawMessage `json:"data"`
}

// stepCommand is the demo message shape this executor understands: run
// Command in a container, optionally streaming combined output to
// StreamID if one was provided by the caller.
type stepCommand struct {
	Command  string `json:"command"`
	StreamID string `json:"streamId"`
}

type executorServer struct {
	runner  *dockerRunner
	streams *streamClient
}

func (e *executorServer) dispatch(c *gin.Context) {
	var req dispatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpapi.Error(c, apierr.Validation(err.Error()))
		return
	}

	var cmd stepCommand
	if err := json.Unmarshal(req.Data, &cmd); err != nil || cmd.Command == "" {
		httpapi.Error(c, apierr.Validation(errInvalidCommand.Error()))
		return
	}

	stdout, stderr, err := e.runner.run(c.Request.Context(), cmd.Command)
	if err != nil {
		httpapi.Error(c, apierr.Transport(err))
		return
	}

	if cmd.StreamID != "" {
		if stdout != "" {
			_ = e.streams.write(c.Request.Context(), cmd.StreamID, []byte(stdout), "text/plain")
		}
		if stderr != "" {
			_ = e.streams.write(c.Request.Context(), cmd.StreamID, []byte(stderr), "text/plain")
		}
		_ = e.streams.close(c.Request.Context(), cmd.StreamID)
	}

	httpapi.Success(c, gin.H{"stdout": stdout, "stderr": stderr})
}

func main() {
	cfg := config.LoadExecutor()
	logger := logging.New(cfg.LogPath, cfg.LogLevel)
	defer logger.Sync()

	runner, err := newDockerRunner(cfg.DockerImage, logger)
	if err != nil {
		logger.Fatal("connecting to docker", zap.Error(err))
	}

	srv := &executorServer{
		runner:  runner,
		streams: newStreamClient(cfg.APIBaseURL, cfg.APIAuthToken),
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.POST("/dispatch", srv.dispatch)
	r.GET("/health", func(c *gin.Context) { httpapi.Success(c, gin.H{"healthy": true}) })

	logger.Info("executor listening", zap.String("addr", cfg.HTTPAddr))
	if err := http.ListenAndServe(cfg.HTTPAddr, r); err != nil {
		logger.Fatal("executor exited", zap.Error(err))
	}
}
