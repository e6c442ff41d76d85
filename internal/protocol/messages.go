package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// MessageType identifies websocket payload variants on the call channel.
type MessageType string

const (
	TypeCallAudioChunk MessageType = "call_audio_chunk"
	TypeCallControl    MessageType = "call_control"
	TypeCallText       MessageType = "call_text"

	TypeTranscript         MessageType = "transcript"
	TypeAssistantTextDelta MessageType = "assistant_text_delta"
	TypeAssistantAudio     MessageType = "assistant_audio"
	TypeTurnEnd            MessageType = "turn_end"
	TypeCallState          MessageType = "call_state"
	TypeErrorEvent         MessageType = "error_event"
)

// Control actions accepted from the client.
const (
	ActionStart       = "start"
	ActionStop        = "stop"
	ActionPlaybackEnd = "playback_end"
	ActionToggleText  = "toggle_text"
	ActionToggleVoice = "toggle_voice"
	ActionRetry       = "retry"
	ActionEnd         = "end"
)

var ErrUnsupportedType = errors.New("unsupported message type")

type Envelope struct {
	Type MessageType `json:"type"`
}

// CallAudioChunk carries one microphone capture frame.
type CallAudioChunk struct {
	Type        MessageType `json:"type"`
	SessionID   string      `json:"session_id"`
	Seq         int         `json:"seq"`
	PCM16Base64 string      `json:"pcm16_base64"`
	SampleRate  int         `json:"sample_rate"`
	TSMs        int64       `json:"ts_ms"`
}

// CallControl carries a client lifecycle action.
type CallControl struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
	Action    string      `json:"action"`
}

// CallText is typed input used while the voice path is demoted.
type CallText struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
	Text      string      `json:"text"`
}

// Transcript reports speech-to-text output. Final marks the end of an
// utterance; non-final transcripts are progress display only.
type Transcript struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
	TurnID    string      `json:"turn_id"`
	Text      string      `json:"text"`
	Final     bool        `json:"final"`
	TSMs      int64       `json:"ts_ms"`
}

type AssistantTextDelta struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
	TurnID    string      `json:"turn_id"`
	TextDelta string      `json:"text_delta"`
}

type AssistantAudio struct {
	Type        MessageType `json:"type"`
	SessionID   string      `json:"session_id"`
	TurnID      string      `json:"turn_id"`
	Format      string      `json:"format"`
	AudioBase64 string      `json:"audio_base64"`
}

type TurnEnd struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
	TurnID    string      `json:"turn_id"`
	Reason    string      `json:"reason"`
}

// CallState announces orchestrator phase changes so the client can render
// listening/processing/speaking affordances without tracking flags itself.
type CallState struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
	Status    string      `json:"status"`
	Phase     string      `json:"phase"`
	TextMode  bool        `json:"text_mode"`
}

type ErrorEvent struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
	Code      string      `json:"code"`
	Source    string      `json:"source"`
	Retryable bool        `json:"retryable"`
	Detail    string      `json:"detail"`
}

// ParseClientMessage decodes and validates an inbound client frame.
func ParseClientMessage(raw []byte) (any, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("invalid envelope: %w", err)
	}

	switch env.Type {
	case TypeCallAudioChunk:
		var msg CallAudioChunk
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		if msg.SessionID == "" || msg.PCM16Base64 == "" || msg.SampleRate <= 0 {
			return nil, errors.New("invalid call_audio_chunk")
		}
		return msg, nil
	case TypeCallControl:
		var msg CallControl
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		if msg.SessionID == "" || msg.Action == "" {
			return nil, errors.New("invalid call_control")
		}
		return msg, nil
	case TypeCallText:
		var msg CallText
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		if msg.SessionID == "" || msg.Text == "" {
			return nil, errors.New("invalid call_text")
		}
		return msg, nil
	default:
		return nil, ErrUnsupportedType
	}
}
