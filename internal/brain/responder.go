package brain

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ReplyRequest is the normalized request sent to the generation endpoint.
type ReplyRequest struct {
	UserID      string   `json:"user_id"`
	SessionID   string   `json:"session_id"`
	TurnID      string   `json:"turn_id"`
	CharacterID string   `json:"character_id,omitempty"`
	InputText   string   `json:"input_text"`
	History     []string `json:"history,omitempty"`
}

// ReplyResponse is the final response after streaming deltas.
type ReplyResponse struct {
	Text string `json:"text"`
}

// DeltaHandler receives streaming text fragments.
type DeltaHandler func(delta string) error

// Responder produces one assistant reply per user utterance.
type Responder interface {
	StreamReply(ctx context.Context, req ReplyRequest, onDelta DeltaHandler) (ReplyResponse, error)
}

// Config controls responder construction.
type Config struct {
	Mode    string
	HTTPURL string
}

func NewResponder(cfg Config) (Responder, error) {
	mode := strings.ToLower(strings.TrimSpace(cfg.Mode))
	if mode == "" {
		mode = "auto"
	}

	switch mode {
	case "auto":
		if strings.TrimSpace(cfg.HTTPURL) != "" {
			return NewHTTPResponder(cfg.HTTPURL), nil
		}
		return NewMockResponder(), nil
	case "http":
		if strings.TrimSpace(cfg.HTTPURL) == "" {
			return nil, errors.New("brain HTTP url is required for http mode")
		}
		return NewHTTPResponder(cfg.HTTPURL), nil
	case "mock":
		return NewMockResponder(), nil
	default:
		return nil, fmt.Errorf("unsupported brain mode %q", cfg.Mode)
	}
}
