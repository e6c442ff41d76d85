package vad

import (
	"encoding/binary"
	"math"
	"testing"
	"time"
)

func pcmFrame(amplitude float64, samples int) []byte {
	out := make([]byte, samples*2)
	for i := 0; i < samples; i++ {
		v := int16(amplitude * 32767 * math.Sin(float64(i)/4))
		binary.LittleEndian.PutUint16(out[2*i:], uint16(v))
	}
	return out
}

func TestMonitorDetectsSpeechStart(t *testing.T) {
	m := NewMonitor(MonitorConfig{SpeechThreshold: 0.015, SilenceThreshold: 0.008})
	now := time.Now()

	v := m.Feed(pcmFrame(0.001, 320), now)
	if v.Speaking {
		t.Fatalf("quiet frame classified as speaking")
	}
	v = m.Feed(pcmFrame(0.5, 320), now)
	if !v.Speaking || !v.SpeechStarted {
		t.Fatalf("loud frame not classified as speech start: %+v", v)
	}
}

func TestMonitorEndsUtteranceByFrameCount(t *testing.T) {
	m := NewMonitor(MonitorConfig{
		SpeechThreshold:  0.015,
		SilenceThreshold: 0.008,
		MinSilence:       time.Hour, // force the frame-count condition
		MinSilenceFrames: 3,
	})
	now := time.Now()
	m.Feed(pcmFrame(0.5, 320), now)

	var ended bool
	for i := 0; i < 3; i++ {
		v := m.Feed(pcmFrame(0.0001, 320), now.Add(time.Duration(i)*20*time.Millisecond))
		ended = v.UtteranceEnd
	}
	if !ended {
		t.Fatalf("utterance did not end after 3 consecutive silent frames")
	}
}

func TestMonitorEndsUtteranceByWallClock(t *testing.T) {
	m := NewMonitor(MonitorConfig{
		SpeechThreshold:  0.015,
		SilenceThreshold: 0.008,
		MinSilence:       500 * time.Millisecond,
		MinSilenceFrames: 1000, // force the wall-clock condition
	})
	now := time.Now()
	m.Feed(pcmFrame(0.5, 320), now)

	if v := m.Feed(pcmFrame(0.0001, 320), now.Add(100*time.Millisecond)); v.UtteranceEnd {
		t.Fatalf("utterance ended before min silence elapsed")
	}
	if v := m.Feed(pcmFrame(0.0001, 320), now.Add(700*time.Millisecond)); !v.UtteranceEnd {
		t.Fatalf("utterance did not end after min silence elapsed")
	}
}

func TestMonitorLoudFrameResetsSilenceRun(t *testing.T) {
	m := NewMonitor(MonitorConfig{
		SpeechThreshold:  0.015,
		SilenceThreshold: 0.008,
		MinSilence:       time.Hour,
		MinSilenceFrames: 3,
	})
	now := time.Now()
	m.Feed(pcmFrame(0.5, 320), now)
	m.Feed(pcmFrame(0.0001, 320), now)
	m.Feed(pcmFrame(0.0001, 320), now)
	m.Feed(pcmFrame(0.5, 320), now) // speech resumes
	v := m.Feed(pcmFrame(0.0001, 320), now)
	if v.UtteranceEnd {
		t.Fatalf("silence run should have been reset by the loud frame")
	}
	if !v.Speaking {
		t.Fatalf("still inside utterance, want Speaking=true")
	}
}

func TestRMSSilence(t *testing.T) {
	if got := RMS(make([]byte, 640)); got != 0 {
		t.Fatalf("RMS(zero frame) = %v, want 0", got)
	}
	if got := RMS(nil); got != 0 {
		t.Fatalf("RMS(nil) = %v, want 0", got)
	}
}
