package speech

import "context"

// Transcript is the result of one speech-to-text call.
type Transcript struct {
	Text string
}

// Transcriber converts a finalized audio clip to text.
type Transcriber interface {
	Transcribe(ctx context.Context, clip []byte, filename string) (Transcript, error)
}

// VoiceSettings tunes synthesis output. Zero values mean provider defaults.
type VoiceSettings struct {
	Stability       float64
	SimilarityBoost float64
	Speed           float64
}

// Synthesis is a complete synthesized reply clip.
type Synthesis struct {
	Audio  []byte
	Format string
}

// Synthesizer converts reply text to an audio clip.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, voiceID string, settings VoiceSettings) (Synthesis, error)
}
