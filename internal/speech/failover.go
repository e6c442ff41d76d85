package speech

import (
	"context"
	"fmt"
	"sync/atomic"
)

// NewFailoverPair builds Transcriber/Synthesizer providers that prefer the
// primary backend and switch to fallback when a primary call fails. Once
// fallback succeeds it stays active until fallback fails; then primary is
// retried.
func NewFailoverPair(
	primarySTT Transcriber,
	primaryTTS Synthesizer,
	fallbackSTT Transcriber,
	fallbackTTS Synthesizer,
) (Transcriber, Synthesizer) {
	state := &failoverState{}
	return &failoverTranscriber{state: state, primary: primarySTT, fallback: fallbackSTT},
		&failoverSynthesizer{state: state, primary: primaryTTS, fallback: fallbackTTS}
}

type failoverState struct {
	fallbackActive atomic.Bool
}

type failoverTranscriber struct {
	state    *failoverState
	primary  Transcriber
	fallback Transcriber
}

func (t *failoverTranscriber) Transcribe(ctx context.Context, clip []byte, filename string) (Transcript, error) {
	if t.state.fallbackActive.Load() {
		out, fbErr := t.fallback.Transcribe(ctx, clip, filename)
		if fbErr == nil {
			return out, nil
		}
		out, prErr := t.primary.Transcribe(ctx, clip, filename)
		if prErr == nil {
			t.state.fallbackActive.Store(false)
			return out, nil
		}
		return Transcript{}, fmt.Errorf("stt fallback failed: %v; stt primary failed: %w", fbErr, prErr)
	}

	out, prErr := t.primary.Transcribe(ctx, clip, filename)
	if prErr == nil {
		return out, nil
	}
	out, fbErr := t.fallback.Transcribe(ctx, clip, filename)
	if fbErr != nil {
		return Transcript{}, fmt.Errorf("stt primary failed: %v; stt fallback failed: %w", prErr, fbErr)
	}
	t.state.fallbackActive.Store(true)
	return out, nil
}

type failoverSynthesizer struct {
	state    *failoverState
	primary  Synthesizer
	fallback Synthesizer
}

func (s *failoverSynthesizer) Synthesize(ctx context.Context, text, voiceID string, settings VoiceSettings) (Synthesis, error) {
	if s.state.fallbackActive.Load() {
		out, fbErr := s.fallback.Synthesize(ctx, text, voiceID, settings)
		if fbErr == nil {
			return out, nil
		}
		out, prErr := s.primary.Synthesize(ctx, text, voiceID, settings)
		if prErr == nil {
			s.state.fallbackActive.Store(false)
			return out, nil
		}
		return Synthesis{}, fmt.Errorf("tts fallback failed: %v; tts primary failed: %w", fbErr, prErr)
	}

	out, prErr := s.primary.Synthesize(ctx, text, voiceID, settings)
	if prErr == nil {
		return out, nil
	}
	out, fbErr := s.fallback.Synthesize(ctx, text, voiceID, settings)
	if fbErr != nil {
		return Synthesis{}, fmt.Errorf("tts primary failed: %v; tts fallback failed: %w", prErr, fbErr)
	}
	s.state.fallbackActive.Store(true)
	return out, nil
}
