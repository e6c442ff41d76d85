package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config contains all runtime settings for the companion gateway.
type Config struct {
	BindAddr              string
	ShutdownTimeout       time.Duration
	CallInactivityTimeout time.Duration
	MetricsNamespace      string
	AllowAnyOrigin        bool

	MediaBaseURL string

	SpeechProvider            string
	ElevenLabsAPIKey          string
	ElevenLabsBaseURL         string
	ElevenLabsSTTModel        string
	ElevenLabsTTSModel        string
	ElevenLabsTTSVoice        string
	ElevenLabsTTSOutputFormat string
	TranscribeTimeout         time.Duration

	BrainMode    string
	BrainHTTPURL string

	AgentAPIBaseURL string
	AuthServiceURL  string
	LedgerURL       string

	StripeSecretKey  string
	StripeSuccessURL string
	StripeCancelURL  string

	DatabaseURL string

	// Voice activity detection tuning. Thresholds are fixed constants;
	// quiet or noisy rooms will mis-trigger without recalibration.
	VADSpeechThreshold  float64
	VADSilenceThreshold float64
	VADMinSilence       time.Duration
	VADMinSilenceFrames int
	MaxRecording        time.Duration

	RearmDelay    time.Duration
	FirstReplySLO time.Duration
}

// Load reads environment variables and applies safe defaults.
func Load() (Config, error) {
	cfg := Config{
		BindAddr:                  envOrDefault("APP_BIND_ADDR", ":8080"),
		MetricsNamespace:          envOrDefault("APP_METRICS_NAMESPACE", "ottera"),
		AllowAnyOrigin:            false,
		MediaBaseURL:              strings.TrimRight(envTrimmed("MEDIA_BASE_URL"), "/"),
		SpeechProvider:            envOrDefault("SPEECH_PROVIDER", "auto"),
		ElevenLabsAPIKey:          envTrimmed("ELEVENLABS_API_KEY"),
		ElevenLabsBaseURL:         envOrDefault("ELEVENLABS_BASE_URL", "https://api.elevenlabs.io"),
		ElevenLabsSTTModel:        envOrDefault("ELEVENLABS_STT_MODEL_ID", "scribe_v1"),
		ElevenLabsTTSModel:        envOrDefault("ELEVENLABS_TTS_MODEL_ID", "eleven_multilingual_v2"),
		ElevenLabsTTSVoice:        envOrDefault("ELEVENLABS_TTS_VOICE_ID", "cgSgspJ2msm6clMCkdW9"),
		ElevenLabsTTSOutputFormat: envOrDefault("ELEVENLABS_TTS_OUTPUT_FORMAT", "mp3_44100_128"),
		BrainMode:                 envOrDefault("BRAIN_MODE", "auto"),
		BrainHTTPURL:              envTrimmed("BRAIN_HTTP_URL"),
		AgentAPIBaseURL:           envTrimmed("AGENT_API_BASE_URL"),
		AuthServiceURL:            envTrimmed("AUTH_SERVICE_URL"),
		LedgerURL:                 envTrimmed("LEDGER_URL"),
		StripeSecretKey:           envTrimmed("STRIPE_SECRET_KEY"),
		StripeSuccessURL:          envOrDefault("STRIPE_SUCCESS_URL", "https://app.ottera.chat/wallet?purchase=success"),
		StripeCancelURL:           envOrDefault("STRIPE_CANCEL_URL", "https://app.ottera.chat/wallet?purchase=cancelled"),
		DatabaseURL:               envTrimmed("DATABASE_URL"),
		ShutdownTimeout:           15 * time.Second,
		CallInactivityTimeout:     2 * time.Minute,
		TranscribeTimeout:         10 * time.Second,
		VADSpeechThreshold:        0.015,
		VADSilenceThreshold:       0.008,
		VADMinSilence:             900 * time.Millisecond,
		VADMinSilenceFrames:       30,
		MaxRecording:              30 * time.Second,
		RearmDelay:                400 * time.Millisecond,
		FirstReplySLO:             1200 * time.Millisecond,
	}

	var err error
	cfg.ShutdownTimeout, err = durationFromEnv("APP_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.CallInactivityTimeout, err = durationFromEnv("APP_CALL_INACTIVITY_TIMEOUT", cfg.CallInactivityTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.TranscribeTimeout, err = durationFromEnv("APP_TRANSCRIBE_TIMEOUT", cfg.TranscribeTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.VADMinSilence, err = durationFromEnv("VAD_MIN_SILENCE", cfg.VADMinSilence)
	if err != nil {
		return Config{}, err
	}
	cfg.VADMinSilenceFrames, err = intFromEnv("VAD_MIN_SILENCE_FRAMES", cfg.VADMinSilenceFrames)
	if err != nil {
		return Config{}, err
	}
	cfg.VADSpeechThreshold, err = floatFromEnv("VAD_SPEECH_THRESHOLD", cfg.VADSpeechThreshold)
	if err != nil {
		return Config{}, err
	}
	cfg.VADSilenceThreshold, err = floatFromEnv("VAD_SILENCE_THRESHOLD", cfg.VADSilenceThreshold)
	if err != nil {
		return Config{}, err
	}
	cfg.MaxRecording, err = durationFromEnv("APP_MAX_RECORDING", cfg.MaxRecording)
	if err != nil {
		return Config{}, err
	}
	cfg.RearmDelay, err = durationFromEnv("APP_REARM_DELAY", cfg.RearmDelay)
	if err != nil {
		return Config{}, err
	}
	cfg.FirstReplySLO, err = durationFromEnv("APP_FIRST_REPLY_SLO", cfg.FirstReplySLO)
	if err != nil {
		return Config{}, err
	}
	cfg.AllowAnyOrigin, err = boolFromEnv("APP_ALLOW_ANY_ORIGIN", cfg.AllowAnyOrigin)
	if err != nil {
		return Config{}, err
	}

	if cfg.CallInactivityTimeout < 5*time.Second {
		return Config{}, fmt.Errorf("APP_CALL_INACTIVITY_TIMEOUT must be at least 5s")
	}
	if cfg.TranscribeTimeout <= 0 {
		return Config{}, fmt.Errorf("APP_TRANSCRIBE_TIMEOUT must be positive")
	}
	if cfg.VADSpeechThreshold <= 0 || cfg.VADSilenceThreshold <= 0 {
		return Config{}, fmt.Errorf("VAD thresholds must be positive")
	}
	if cfg.VADSilenceThreshold > cfg.VADSpeechThreshold {
		return Config{}, fmt.Errorf("VAD_SILENCE_THRESHOLD must not exceed VAD_SPEECH_THRESHOLD")
	}
	if cfg.VADMinSilenceFrames <= 0 {
		return Config{}, fmt.Errorf("VAD_MIN_SILENCE_FRAMES must be positive")
	}
	if cfg.MaxRecording < time.Second {
		return Config{}, fmt.Errorf("APP_MAX_RECORDING must be at least 1s")
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func envTrimmed(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := envTrimmed(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return d, nil
}

func intFromEnv(key string, fallback int) (int, error) {
	v := envTrimmed(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return n, nil
}

func floatFromEnv(key string, fallback float64) (float64, error) {
	v := envTrimmed(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return f, nil
}

func boolFromEnv(key string, fallback bool) (bool, error) {
	v := strings.ToLower(envTrimmed(key))
	if v == "" {
		return fallback, nil
	}
	switch v {
	case "1", "true", "t", "yes", "y", "on":
		return true, nil
	case "0", "false", "f", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("%s parse error: expected bool", key)
	}
}
