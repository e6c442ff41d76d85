package vad

import (
	"bytes"
	"errors"
	"testing"
	"time"
)

func TestRecorderFinalizeProducesWAV(t *testing.T) {
	r := NewRecorder(16000, 30*time.Second)
	r.Start()
	r.Append(make([]byte, 3200)) // 100ms at 16kHz mono PCM16

	clip, dur, err := r.Finalize()
	if err != nil {
		t.Fatalf("Finalize() error = %v", err)
	}
	if dur != 100*time.Millisecond {
		t.Fatalf("duration = %v, want 100ms", dur)
	}
	if !bytes.HasPrefix(clip, []byte("RIFF")) {
		t.Fatalf("clip missing RIFF header")
	}
	if !bytes.Contains(clip[:44], []byte("WAVE")) {
		t.Fatalf("clip missing WAVE marker")
	}
	if len(clip) != 44+3200 {
		t.Fatalf("clip length = %d, want %d", len(clip), 44+3200)
	}
	if r.Active() {
		t.Fatalf("recorder still active after Finalize")
	}
}

func TestRecorderDropsFramesWhenNotArmed(t *testing.T) {
	r := NewRecorder(16000, 30*time.Second)
	r.Append(make([]byte, 3200))
	if _, _, err := r.Finalize(); !errors.Is(err, ErrEmptyClip) {
		t.Fatalf("Finalize() error = %v, want ErrEmptyClip", err)
	}
}

func TestRecorderOverrunSafetyNet(t *testing.T) {
	r := NewRecorder(16000, 100*time.Millisecond)
	r.Start()
	r.Append(make([]byte, 1600)) // 50ms
	if r.Overrun() {
		t.Fatalf("overrun before max duration")
	}
	r.Append(make([]byte, 1600)) // 100ms total
	if !r.Overrun() {
		t.Fatalf("overrun not reported at max duration")
	}
}

func TestRecorderAbortDropsAudio(t *testing.T) {
	r := NewRecorder(16000, 30*time.Second)
	r.Start()
	r.Append(make([]byte, 3200))
	r.Abort()
	if r.Active() {
		t.Fatalf("recorder active after Abort")
	}
	if _, _, err := r.Finalize(); !errors.Is(err, ErrEmptyClip) {
		t.Fatalf("Finalize() after Abort error = %v, want ErrEmptyClip", err)
	}
}
