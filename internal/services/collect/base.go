package collect

import (
	"context"
	"fmt"
	"time"

	xhttp "SigFusion/pkg/http"
)

// HTTPSourceBase provides a DRY foundation for collaborator HTTP clients.
// It centralizes client construction and JSON request handling.
type HTTPSourceBase struct {
	baseURL string
	client  *xhttp.Client
}

// NewHTTPSourceBase builds an HTTP client with timeout and base URL.
func NewHTTPSourceBase(baseURL string, timeout time.Duration) *HTTPSourceBase {
	if timeout <= 0 {
		timeout = 8 * time.Second
	}
	return &HTTPSourceBase{
		baseURL: baseURL,
		client:  xhttp.NewClient(xhttp.WithTimeout(timeout)),
	}
}

// GetJSON fetches `path` under baseURL with query params and decodes
// JSON into dest.
func (b *HTTPSourceBase) GetJSON(ctx context.Context, path string, query map[string][]string, dest interface{}) error {
	if b.client == nil || b.baseURL == "" {
		return fmt.Errorf("source http client not initialized")
	}
	err := b.client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method:      xhttp.MethodGet,
		URL:         b.baseURL + path,
		QueryParams: query,
	}, dest)
	if err != nil {
		return fmt.Errorf("get %s: %w", path, err)
	}
	return nil
}

// PostJSON posts the given payload to `path` under baseURL and decodes JSON into dest.
func (b *HTTPSourceBase) PostJSON(ctx context.Context, path string, payload interface{}, dest interface{}) error {
	if b.client == nil || b.baseURL == "" {
		return fmt.Errorf("source http client not initialized")
	}
	err := b.client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodPost,
		URL:    b.baseURL + path,
		Headers: map[string]string{
			"Content-Type": "application/json",
		},
		Body: payload,
	}, dest)
	if err != nil {
		return fmt.Errorf("post %s: %w", path, err)
	}
	return nil
}

// GetJSONWithRetry fetches JSON with up to `attempts` retries for transient errors.
func (b *HTTPSourceBase) GetJSONWithRetry(ctx context.Context, path string, query map[string][]string, dest interface{}, attempts int) error {
	if attempts <= 1 {
		return b.GetJSON(ctx, path, query, dest)
	}
	var err error
	for i := 1; i <= attempts; i++ {
		err = b.GetJSON(ctx, path, query, dest)
		if err == nil {
			return nil
		}
		// simple backoff
		select {
		case <-time.After(time.Duration(i) * 50 * time.Millisecond):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}
