package main

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"
)

// streamClient forwards a step's captured output to the apiserver's stream
// endpoints, so a caller watching readFromStream(streamId) observes a
// running container's stdout/stderr as it completes. A zero-value
// streamClient (empty baseURL) is a no-op, letting cmd/executor run
// standalone for local testing without an apiserver.
type streamClient struct {
	baseURL   string
	authToken string
	client    *http.Client
}

func newStreamClient(baseURL, authToken string) *streamClient {
	return &streamClient{baseURL: baseURL, authToken: authToken, client: &http.Client{Timeout: 10 * time.Second}}
}

func (s *streamClient) write(ctx context.Context, streamID string, data []byte, contentType string) error {
	if s.baseURL == "" {
		return nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/streams/"+streamID, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", contentType)
	return s.do(req)
}

func (s *streamClient) close(ctx context.Context, streamID string) error {
	if s.baseURL == "" {
		return nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/streams/"+streamID+"/close", nil)
	if err != nil {
		return err
	}
	return s.do(req)
}

func (s *streamClient) do(req *http.Request) error {
	if s.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+s.authToken)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("executor: stream request to %s returned status %d", req.URL, resp.StatusCode)
	}
	return nil
}
