package queue

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Executor is the collaborator the worker loop calls for each leased job.
// Per spec.md §9's Design Notes, the queue never imports an executor
// implementation — it only holds this small interface, injected by the
// facade at construction.
type Executor interface {
	Dispatch(ctx context.Context, queueName string, data json.RawMessage) error
}

// ExecutorFunc adapts a function to the Executor interface.
type ExecutorFunc func(ctx context.Context, queueName string, data json.RawMessage) error

func (f ExecutorFunc) Dispatch(ctx context.Context, queueName string, data json.RawMessage) error {
	return f(ctx, queueName, data)
}

// StepAttemptRecorder lets the queue worker bump a step's retry counter
// without the queue package importing pkg/storage, the same
// dependency-inversion shape as Executor above. World wires
// pkg/storage's StepStore to this interface at construction.
type StepAttemptRecorder interface {
	IncrementAttempt(ctx context.Context, stepID string) error
}

// httpExecutor calls the external Executor endpoint over HTTP, per
// spec.md §6: "Exposed to the outside world over HTTP by a front-end the
// core does not own." This is the default Executor the facade wires;
// callers may substitute any other Executor (e.g. an in-memory fake for
// tests) without the queue package knowing the difference.
type httpExecutor struct {
	baseURL string
	client  *http.Client
}

// NewHTTPExecutor returns an Executor that POSTs {queueName, data} to
// baseURL and treats any non-2xx response as a dispatch failure.
func NewHTTPExecutor(baseURL string, client *http.Client) Executor {
	if client == nil {
		client = &http.Client{Timeout: 25 * time.Second}
	}
	return &httpExecutor{baseURL: baseURL, client: client}
}

type dispatchRequest struct {
	QueueName string          `json:"queueName"`
	Data      json.RawMessage `json:"data"`
}

func (e *httpExecutor) Dispatch(ctx context.Context, queueName string, data json.RawMessage) error {
	body, err := json.Marshal(dispatchRequest{QueueName: queueName, Data: data})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("executor dispatch to %s returned status %d", queueName, resp.StatusCode)
	}
	return nil
}
