package speech

import (
	"context"
	"errors"
	"testing"
)

type scriptedTranscriber struct {
	calls int
	fail  bool
	text  string
}

func (s *scriptedTranscriber) Transcribe(_ context.Context, _ []byte, _ string) (Transcript, error) {
	s.calls++
	if s.fail {
		return Transcript{}, errors.New("stt down")
	}
	return Transcript{Text: s.text}, nil
}

type scriptedSynthesizer struct {
	calls int
	fail  bool
}

func (s *scriptedSynthesizer) Synthesize(_ context.Context, text, _ string, _ VoiceSettings) (Synthesis, error) {
	s.calls++
	if s.fail {
		return Synthesis{}, errors.New("tts down")
	}
	return Synthesis{Audio: []byte(text), Format: "mock"}, nil
}

func TestFailoverPrefersPrimary(t *testing.T) {
	pr := &scriptedTranscriber{text: "primary"}
	fb := &scriptedTranscriber{text: "fallback"}
	stt, _ := NewFailoverPair(pr, &scriptedSynthesizer{}, fb, &scriptedSynthesizer{})

	out, err := stt.Transcribe(context.Background(), []byte("x"), "")
	if err != nil {
		t.Fatalf("Transcribe() error = %v", err)
	}
	if out.Text != "primary" || fb.calls != 0 {
		t.Fatalf("primary not preferred: %q, fallback calls=%d", out.Text, fb.calls)
	}
}

func TestFailoverSticksToFallbackAcrossProviders(t *testing.T) {
	prSTT := &scriptedTranscriber{fail: true}
	fbSTT := &scriptedTranscriber{text: "fallback"}
	prTTS := &scriptedSynthesizer{}
	fbTTS := &scriptedSynthesizer{}
	stt, tts := NewFailoverPair(prSTT, prTTS, fbSTT, fbTTS)

	if _, err := stt.Transcribe(context.Background(), []byte("x"), ""); err != nil {
		t.Fatalf("Transcribe() error = %v", err)
	}
	// Fallback is now active for the synthesizer as well; primary TTS must
	// not be consulted.
	if _, err := tts.Synthesize(context.Background(), "hi", "v", VoiceSettings{}); err != nil {
		t.Fatalf("Synthesize() error = %v", err)
	}
	if prTTS.calls != 0 || fbTTS.calls != 1 {
		t.Fatalf("primary tts calls=%d fallback tts calls=%d, want 0/1", prTTS.calls, fbTTS.calls)
	}
}

func TestFailoverRecoversToPrimary(t *testing.T) {
	pr := &scriptedTranscriber{fail: true}
	fb := &scriptedTranscriber{text: "fallback"}
	stt, _ := NewFailoverPair(pr, &scriptedSynthesizer{}, fb, &scriptedSynthesizer{})

	if _, err := stt.Transcribe(context.Background(), []byte("x"), ""); err != nil {
		t.Fatalf("activate fallback: %v", err)
	}
	fb.fail = true
	pr.fail = false
	pr.text = "primary again"
	out, err := stt.Transcribe(context.Background(), []byte("x"), "")
	if err != nil {
		t.Fatalf("Transcribe() error = %v", err)
	}
	if out.Text != "primary again" {
		t.Fatalf("Text = %q, want primary after fallback failure", out.Text)
	}
}

func TestFailoverReportsBothFailures(t *testing.T) {
	pr := &scriptedTranscriber{fail: true}
	fb := &scriptedTranscriber{fail: true}
	stt, _ := NewFailoverPair(pr, &scriptedSynthesizer{}, fb, &scriptedSynthesizer{})
	if _, err := stt.Transcribe(context.Background(), []byte("x"), ""); err == nil {
		t.Fatalf("Transcribe() should fail when both providers are down")
	}
}
