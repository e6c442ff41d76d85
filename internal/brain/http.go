package brain

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// HTTPResponder forwards requests to a generation HTTP endpoint. It accepts
// plain JSON bodies as well as SSE and NDJSON delta streams.
type HTTPResponder struct {
	url    string
	client *http.Client
}

func NewHTTPResponder(url string) *HTTPResponder {
	return &HTTPResponder{
		url: strings.TrimSpace(url),
		client: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

func (r *HTTPResponder) StreamReply(ctx context.Context, req ReplyRequest, onDelta DeltaHandler) (ReplyResponse, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return ReplyResponse{}, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, bytes.NewReader(payload))
	if err != nil {
		return ReplyResponse{}, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	res, err := r.client.Do(httpReq)
	if err != nil {
		return ReplyResponse{}, fmt.Errorf("send request: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 4<<10))
		return ReplyResponse{}, fmt.Errorf("brain http status %d: %s", res.StatusCode, string(body))
	}

	ct := strings.ToLower(res.Header.Get("Content-Type"))
	if strings.Contains(ct, "text/event-stream") || strings.Contains(ct, "application/x-ndjson") {
		return consumeStream(res.Body, onDelta)
	}

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return ReplyResponse{}, fmt.Errorf("read response: %w", err)
	}

	var obj map[string]any
	if err := json.Unmarshal(body, &obj); err != nil {
		text := strings.TrimSpace(string(body))
		if text == "" {
			return ReplyResponse{}, nil
		}
		if onDelta != nil {
			if err := onDelta(text); err != nil {
				return ReplyResponse{}, err
			}
		}
		return ReplyResponse{Text: text}, nil
	}

	text := extractText(obj)
	if text != "" && onDelta != nil {
		if err := onDelta(text); err != nil {
			return ReplyResponse{}, err
		}
	}
	return ReplyResponse{Text: text}, nil
}

func consumeStream(body io.Reader, onDelta DeltaHandler) (ReplyResponse, error) {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	var out strings.Builder
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "data:") {
			line = strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		}

		delta := line
		var obj map[string]any
		if err := json.Unmarshal([]byte(line), &obj); err == nil {
			delta = strings.TrimSpace(extractText(obj))
		}

		if delta == "" {
			continue
		}
		out.WriteString(delta)
		if onDelta != nil {
			if err := onDelta(delta); err != nil {
				return ReplyResponse{}, err
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return ReplyResponse{}, fmt.Errorf("stream read: %w", err)
	}

	return ReplyResponse{Text: out.String()}, nil
}

func extractText(obj map[string]any) string {
	for _, k := range []string{"text", "delta", "output", "message"} {
		if v, ok := obj[k]; ok {
			if s, ok := v.(string); ok {
				return s
			}
		}
	}
	return ""
}
