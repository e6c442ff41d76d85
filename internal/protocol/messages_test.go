package protocol

import (
	"errors"
	"testing"
)

func TestParseClientMessageAudioChunk(t *testing.T) {
	raw := []byte(`{"type":"call_audio_chunk","session_id":"s1","seq":3,"pcm16_base64":"AAAA","sample_rate":16000}`)
	parsed, err := ParseClientMessage(raw)
	if err != nil {
		t.Fatalf("ParseClientMessage() error = %v", err)
	}
	msg, ok := parsed.(CallAudioChunk)
	if !ok {
		t.Fatalf("parsed type = %T, want CallAudioChunk", parsed)
	}
	if msg.Seq != 3 || msg.SampleRate != 16000 {
		t.Fatalf("unexpected chunk fields: %+v", msg)
	}
}

func TestParseClientMessageRejectsMissingFields(t *testing.T) {
	cases := []string{
		`{"type":"call_audio_chunk","session_id":"s1","sample_rate":16000}`,
		`{"type":"call_audio_chunk","pcm16_base64":"AAAA","sample_rate":16000}`,
		`{"type":"call_control","session_id":"s1"}`,
		`{"type":"call_text","session_id":"s1","text":""}`,
	}
	for _, raw := range cases {
		if _, err := ParseClientMessage([]byte(raw)); err == nil {
			t.Fatalf("ParseClientMessage(%s) should fail", raw)
		}
	}
}

func TestParseClientMessageControl(t *testing.T) {
	raw := []byte(`{"type":"call_control","session_id":"s1","action":"toggle_text"}`)
	parsed, err := ParseClientMessage(raw)
	if err != nil {
		t.Fatalf("ParseClientMessage() error = %v", err)
	}
	msg, ok := parsed.(CallControl)
	if !ok {
		t.Fatalf("parsed type = %T, want CallControl", parsed)
	}
	if msg.Action != ActionToggleText {
		t.Fatalf("Action = %q, want %q", msg.Action, ActionToggleText)
	}
}

func TestParseClientMessageUnsupportedType(t *testing.T) {
	_, err := ParseClientMessage([]byte(`{"type":"transcript","session_id":"s1"}`))
	if !errors.Is(err, ErrUnsupportedType) {
		t.Fatalf("error = %v, want ErrUnsupportedType", err)
	}
}
