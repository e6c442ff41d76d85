package vad

import (
	"bytes"
	"errors"
	"time"
)

var ErrEmptyClip = errors.New("no audio buffered")

// Recorder buffers PCM16LE frames while speech is active and finalizes the
// utterance as a WAV clip. Clip length is derived from buffered samples, not
// wall clock, so tests and replays are deterministic.
type Recorder struct {
	buf        bytes.Buffer
	sampleRate int
	maxLen     time.Duration
	active     bool
}

func NewRecorder(sampleRate int, maxLen time.Duration) *Recorder {
	if sampleRate <= 0 {
		sampleRate = 16000
	}
	if maxLen <= 0 {
		maxLen = 30 * time.Second
	}
	return &Recorder{sampleRate: sampleRate, maxLen: maxLen}
}

func (r *Recorder) Start() {
	r.buf.Reset()
	r.active = true
}

func (r *Recorder) Active() bool { return r.active }

// Append buffers one captured frame. Frames arriving while the recorder is
// not armed are dropped.
func (r *Recorder) Append(pcm []byte) {
	if !r.active || len(pcm) == 0 {
		return
	}
	r.buf.Write(pcm)
}

// Duration reports the buffered clip length.
func (r *Recorder) Duration() time.Duration {
	samples := r.buf.Len() / 2
	if samples == 0 {
		return 0
	}
	return time.Duration(samples) * time.Second / time.Duration(r.sampleRate)
}

// Overrun reports whether the hard maximum recording duration was reached.
// It is the safety net that forces an utterance commit.
func (r *Recorder) Overrun() bool {
	return r.active && r.Duration() >= r.maxLen
}

// Finalize wraps the buffered audio as a WAV clip and disarms the recorder.
func (r *Recorder) Finalize() ([]byte, time.Duration, error) {
	r.active = false
	if r.buf.Len() == 0 {
		return nil, 0, ErrEmptyClip
	}
	dur := r.Duration()
	clip, err := encodeWAVPCM16LE(r.buf.Bytes(), r.sampleRate)
	r.buf.Reset()
	if err != nil {
		return nil, 0, err
	}
	return clip, dur, nil
}

// Abort drops any buffered audio without producing a clip.
func (r *Recorder) Abort() {
	r.active = false
	r.buf.Reset()
}
