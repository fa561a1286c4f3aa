package cli

import (
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/ejc3/workflow/internal/httpapi"
)

// Client is wkfctl's HTTP client: a Session plus an *http.Client whose
// transport optionally trusts a custom CA pool, mirroring the reference
// CLI's createTLSConfig.
type Client struct {
	Session Session
	http    *http.Client
}

// NewClient builds a Client for session, loading a custom CA pool from
// session.CACertPath if set.
func NewClient(session Session) *Client {
	return &Client{Session: session, http: &http.Client{Transport: transportFor(session.CACertPath)}}
}

func transportFor(caCertPath string) *http.Transport {
	tlsConfig := &tls.Config{}
	if caCertPath != "" {
		if caCert, err := os.ReadFile(caCertPath); err == nil {
			pool := x509.NewCertPool()
			if pool.AppendCertsFromPEM(caCert) {
				tlsConfig.RootCAs = pool
			}
		}
	}
	return &http.Transport{TLSClientConfig: tlsConfig}
}

// Do sends method/path with body, injecting the session's bearer token and
// an Accept: application/json header.
func (c *Client) Do(method, path string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequest(method, c.Session.ServerURL+path, body)
	if err != nil {
		return nil, err
	}
	if c.Session.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Session.Token)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	return c.http.Do(req)
}

// ReadEnvelope reads and JSON-decodes resp's body into httpapi.Envelope,
// with Data left as json.RawMessage-compatible any for the caller to
// re-marshal into a concrete type.
func ReadEnvelope(resp *http.Response) (*httpapi.Envelope, error) {
	if resp == nil || resp.Body == nil {
		return nil, fmt.Errorf("cli: response body is nil")
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("cli: reading response: %w", err)
	}
	var env httpapi.Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("cli: parsing response: %w", err)
	}
	return &env, nil
}

// DecodeData re-marshals env.Data into out, for callers that need a
// concrete type rather than the generic any httpapi.Envelope carries.
func DecodeData(env *httpapi.Envelope, out any) error {
	raw, err := json.Marshal(env.Data)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}
