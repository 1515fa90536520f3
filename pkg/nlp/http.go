package nlp

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
)

// httpPostJSON posts payload to endpoint with the given extra headers and
// returns the raw response body. A 429 becomes a RateLimitError; any other
// non-200 status becomes a plain error carrying the body.
func httpPostJSON(ctx context.Context, hc *http.Client, provider, endpoint string, headers map[string]string, payload []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to reach %s endpoint: %w", provider, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, NewRateLimitError(fmt.Sprintf("%s rate limit: %s", provider, body))
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, body)
	}
	return body, nil
}
