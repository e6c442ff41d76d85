package vad

import (
	"math"
	"time"
)

// MonitorConfig tunes the energy classifier. Thresholds are fixed; there is
// no adaptive noise-floor calibration.
type MonitorConfig struct {
	SpeechThreshold  float64
	SilenceThreshold float64
	// Utterance end is declared when either MinSilence wall-clock time has
	// passed or MinSilenceFrames consecutive low-energy frames were seen,
	// whichever comes first.
	MinSilence       time.Duration
	MinSilenceFrames int
}

// Monitor classifies a rolling PCM16 energy signal into speaking/silence and
// signals when a detected utterance has finished.
type Monitor struct {
	cfg MonitorConfig

	speaking      bool
	silenceFrames int
	silenceSince  time.Time
}

// Verdict is the per-frame classification result.
type Verdict struct {
	Energy        float64
	Speaking      bool
	UtteranceEnd  bool
	SpeechStarted bool
}

func NewMonitor(cfg MonitorConfig) *Monitor {
	if cfg.SpeechThreshold <= 0 {
		cfg.SpeechThreshold = 0.015
	}
	if cfg.SilenceThreshold <= 0 || cfg.SilenceThreshold > cfg.SpeechThreshold {
		cfg.SilenceThreshold = cfg.SpeechThreshold / 2
	}
	if cfg.MinSilence <= 0 {
		cfg.MinSilence = 900 * time.Millisecond
	}
	if cfg.MinSilenceFrames <= 0 {
		cfg.MinSilenceFrames = 30
	}
	return &Monitor{cfg: cfg}
}

// Feed classifies one PCM16LE frame captured at now.
func (m *Monitor) Feed(pcm []byte, now time.Time) Verdict {
	energy := RMS(pcm)
	v := Verdict{Energy: energy}

	if !m.speaking {
		if energy >= m.cfg.SpeechThreshold {
			m.speaking = true
			m.silenceFrames = 0
			m.silenceSince = time.Time{}
			v.SpeechStarted = true
		}
		v.Speaking = m.speaking
		return v
	}

	if energy < m.cfg.SilenceThreshold {
		m.silenceFrames++
		if m.silenceSince.IsZero() {
			m.silenceSince = now
		}
		byFrames := m.silenceFrames >= m.cfg.MinSilenceFrames
		byClock := now.Sub(m.silenceSince) >= m.cfg.MinSilence
		if byFrames || byClock {
			m.speaking = false
			m.silenceFrames = 0
			m.silenceSince = time.Time{}
			v.Speaking = false
			v.UtteranceEnd = true
			return v
		}
	} else {
		m.silenceFrames = 0
		m.silenceSince = time.Time{}
	}

	v.Speaking = true
	return v
}

// Reset clears the classifier state between utterances.
func (m *Monitor) Reset() {
	m.speaking = false
	m.silenceFrames = 0
	m.silenceSince = time.Time{}
}

// RMS computes normalized root-mean-square energy of a PCM16LE frame.
func RMS(pcm []byte) float64 {
	n := len(pcm) / 2
	if n == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		s := int16(uint16(pcm[2*i]) | uint16(pcm[2*i+1])<<8)
		f := float64(s) / 32768.0
		sum += f * f
	}
	return math.Sqrt(sum / float64(n))
}
