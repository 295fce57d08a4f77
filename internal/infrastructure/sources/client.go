// Package sources holds the shared HTTP plumbing for source-system
// adapters: a JSON client with retry, and basic-auth header construction.
package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/felixgeelhaar/fortify/retry"
)

// StatusError carries a non-2xx response back to the pipeline boundary.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

// Client is a JSON GET client with exponential-backoff retry on transport
// failures.
type Client struct {
	httpClient *http.Client
	retryCfg   retry.Config
}

func NewClient() *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		retryCfg: retry.Config{
			MaxAttempts:   3,
			InitialDelay:  250 * time.Millisecond,
			BackoffPolicy: retry.BackoffExponential,
		},
	}
}

// BasicAuthHeader builds the standard headers for a pre-encoded basic-auth
// credential. Source systems hand out the base64 user data directly.
func BasicAuthHeader(encodedUser string) http.Header {
	header := http.Header{}
	header.Set("Authorization", "Basic "+encodedUser)
	header.Set("Accept", "application/json")
	header.Set("Content-Type", "application/json")
	return header
}

// GetJSON fetches a URL and unmarshals the response body into out.
func (c *Client) GetJSON(ctx context.Context, url string, header http.Header, out any) error {
	r := retry.New[[]byte](c.retryCfg)

	body, err := r.Do(ctx, func(ctx context.Context) ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		for key, values := range header {
			req.Header[key] = values
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode != http.StatusOK {
			return nil, &StatusError{StatusCode: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
		}
		return data, nil
	})
	if err != nil {
		return err
	}
	return json.Unmarshal(body, out)
}
