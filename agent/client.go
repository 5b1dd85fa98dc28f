package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/mitchellh/mapstructure"
)

// APIError is a non-2xx response from an agent. Message is taken from the
// body's "detail" or "error" field when present.
type APIError struct {
	Agent   Key
	Status  int
	URL     string
	Message string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s agent: %s (HTTP %d, %s)", e.Agent, e.Message, e.Status, e.URL)
	}
	return fmt.Sprintf("%s agent: HTTP %d (%s)", e.Agent, e.Status, e.URL)
}

// httpClient is shared across both agents; agents are local processes so a
// short timeout keeps offline detection snappy.
var httpClient = &http.Client{Timeout: 5 * time.Second}

// SetHTTPClient overrides the shared client (tests).
func SetHTTPClient(c *http.Client) { httpClient = c }

// GetJSON issues a GET against an agent and decodes the JSON response into
// out (out may be nil to discard the body).
func (r *Registry) GetJSON(ctx context.Context, k Key, path string, out interface{}) error {
	return r.doJSON(ctx, k, http.MethodGet, path, nil, out)
}

// PostJSON issues a POST with a JSON body (nil for an empty body) and
// decodes the JSON response into out.
func (r *Registry) PostJSON(ctx context.Context, k Key, path string, body, out interface{}) error {
	return r.doJSON(ctx, k, http.MethodPost, path, body, out)
}

func (r *Registry) doJSON(ctx context.Context, k Key, method, path string, body, out interface{}) error {
	url := r.BaseURL(k) + path
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s agent: encode request: %w", k, err)
		}
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return fmt.Errorf("%s agent: %w", k, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s agent: %w", k, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%s agent: read response: %w", k, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{Agent: k, Status: resp.StatusCode, URL: url, Message: errorMessage(raw)}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%s agent: decode response: %w", k, err)
	}
	return nil
}

// errorMessage pulls "detail" or "error" out of a JSON error body.
func errorMessage(raw []byte) string {
	var body struct {
		Detail string `json:"detail"`
		Error  string `json:"error"`
	}
	if json.Unmarshal(raw, &body) != nil {
		return ""
	}
	if body.Detail != "" {
		return body.Detail
	}
	return body.Error
}

// Decode maps a loosely-typed payload (map[string]interface{} off the wire)
// onto a tagged struct. Weak typing tolerates agents returning numbers as
// strings and ints as floats.
func Decode(in, out interface{}) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		TagName:          "json",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return err
	}
	return dec.Decode(in)
}
