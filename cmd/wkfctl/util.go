package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/ejc3/workflow/internal/cli"
	"github.com/ejc3/workflow/internal/httpapi"
)

func marshalIndent(v any) ([]byte, error) {
	return json.MarshalIndent(v, "", "  ")
}

// doRequest sends method/path and either returns the parsed envelope or a
// formatted error combining the HTTP status and the envelope's message.
func doRequest(method, path string, body any) (*httpapi.Envelope, error) {
	client, err := currentClient()
	if err != nil {
		return nil, err
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(data)
	}

	resp, err := client.Do(method, path, reader)
	if err != nil {
		return nil, err
	}

	env, err := cli.ReadEnvelope(resp)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return env, fmt.Errorf("%s", env.Message)
	}
	return env, nil
}
