package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/lorisra/ottera/internal/reliability"
)

// HTTPDirectory fetches character profiles from the remote agent service.
type HTTPDirectory struct {
	baseURL string
	client  *http.Client
}

func NewHTTPDirectory(baseURL string) *HTTPDirectory {
	return &HTTPDirectory{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (d *HTTPDirectory) List(ctx context.Context) ([]Character, error) {
	var out []Character
	if err := d.getJSON(ctx, d.baseURL+"/characters", &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (d *HTTPDirectory) Get(ctx context.Context, id string) (Character, error) {
	var out Character
	err := d.getJSON(ctx, d.baseURL+"/characters/"+url.PathEscape(id), &out)
	if err != nil {
		var ce *reliability.ClassifiedError
		if errors.As(err, &ce) && ce.Status == http.StatusNotFound {
			return Character{}, ErrNotFound
		}
		return Character{}, err
	}
	return out, nil
}

const getAttempts = 3

// getJSON retries transient upstream failures with capped backoff; client
// errors and malformed bodies surface immediately.
func (d *HTTPDirectory) getJSON(ctx context.Context, rawURL string, out any) error {
	var err error
	for attempt := 0; attempt < getAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(reliability.Backoff(attempt-1, 100*time.Millisecond, time.Second)):
			case <-ctx.Done():
				return err
			}
		}
		err = d.fetchJSON(ctx, rawURL, out)
		if err == nil || !reliability.IsRetryable(err) {
			return err
		}
	}
	return err
}

func (d *HTTPDirectory) fetchJSON(ctx context.Context, rawURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	res, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("agent request: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 4<<10))
		return &reliability.ClassifiedError{
			Kind:      reliability.KindForHTTPStatus(res.StatusCode),
			Code:      fmt.Sprintf("agent_http_%d", res.StatusCode),
			Status:    res.StatusCode,
			Retryable: reliability.IsRetryableHTTPStatus(res.StatusCode),
			Err:       fmt.Errorf("agent status %d: %s", res.StatusCode, strings.TrimSpace(string(body))),
		}
	}

	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("decode agent response: %w", err)
	}
	return nil
}
