package speech

import (
	"context"
	"strings"
)

// MockProvider is a local fallback provider used when ElevenLabs is not
// configured. Transcripts and audio are simulated.
type MockProvider struct{}

func NewMockProvider() *MockProvider { return &MockProvider{} }

func (p *MockProvider) Transcribe(_ context.Context, clip []byte, _ string) (Transcript, error) {
	if len(clip) == 0 {
		return Transcript{}, nil
	}
	return Transcript{Text: "simulated voice input"}, nil
}

func (p *MockProvider) Synthesize(_ context.Context, text, _ string, _ VoiceSettings) (Synthesis, error) {
	if strings.TrimSpace(text) == "" {
		return Synthesis{}, nil
	}
	return Synthesis{Audio: []byte(text), Format: "mock_text_bytes"}, nil
}
