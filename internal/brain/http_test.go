package brain

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestStreamReplyPlainJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"text":"hello back"}`))
	}))
	defer srv.Close()

	var deltas []string
	resp, err := NewHTTPResponder(srv.URL).StreamReply(context.Background(), ReplyRequest{InputText: "hi"}, func(d string) error {
		deltas = append(deltas, d)
		return nil
	})
	if err != nil {
		t.Fatalf("StreamReply() error = %v", err)
	}
	if resp.Text != "hello back" {
		t.Fatalf("Text = %q, want hello back", resp.Text)
	}
	if len(deltas) != 1 || deltas[0] != "hello back" {
		t.Fatalf("deltas = %v", deltas)
	}
}

func TestStreamReplySSE(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = w.Write([]byte("data: {\"delta\":\"hel\"}\n\ndata: {\"delta\":\"lo\"}\n\n"))
	}))
	defer srv.Close()

	var got strings.Builder
	resp, err := NewHTTPResponder(srv.URL).StreamReply(context.Background(), ReplyRequest{InputText: "hi"}, func(d string) error {
		got.WriteString(d)
		return nil
	})
	if err != nil {
		t.Fatalf("StreamReply() error = %v", err)
	}
	if resp.Text != "hello" || got.String() != "hello" {
		t.Fatalf("Text = %q, streamed = %q, want hello", resp.Text, got.String())
	}
}

func TestStreamReplyErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	if _, err := NewHTTPResponder(srv.URL).StreamReply(context.Background(), ReplyRequest{InputText: "hi"}, nil); err == nil {
		t.Fatalf("StreamReply() should fail on 503")
	}
}

func TestNewResponderModes(t *testing.T) {
	if _, err := NewResponder(Config{Mode: "http"}); err == nil {
		t.Fatalf("http mode without url should fail")
	}
	r, err := NewResponder(Config{Mode: "auto"})
	if err != nil {
		t.Fatalf("auto mode error = %v", err)
	}
	if _, ok := r.(*MockResponder); !ok {
		t.Fatalf("auto mode without url should fall back to mock, got %T", r)
	}
	if _, err := NewResponder(Config{Mode: "weird"}); err == nil {
		t.Fatalf("unsupported mode should fail")
	}
}
