package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/lorisra/ottera/internal/reliability"
)

type ElevenLabsConfig struct {
	APIKey            string
	BaseURL           string
	STTModelID        string
	TTSModelID        string
	OutputFormat      string
	TranscribeTimeout time.Duration
}

// ElevenLabsProvider implements Transcriber and Synthesizer over the REST API.
type ElevenLabsProvider struct {
	cfg    ElevenLabsConfig
	client *http.Client
}

func NewElevenLabsProvider(cfg ElevenLabsConfig) *ElevenLabsProvider {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = "https://api.elevenlabs.io"
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if strings.TrimSpace(cfg.STTModelID) == "" {
		cfg.STTModelID = "scribe_v1"
	}
	if strings.TrimSpace(cfg.TTSModelID) == "" {
		cfg.TTSModelID = "eleven_multilingual_v2"
	}
	if strings.TrimSpace(cfg.OutputFormat) == "" {
		cfg.OutputFormat = "mp3_44100_128"
	}
	if cfg.TranscribeTimeout <= 0 {
		cfg.TranscribeTimeout = 10 * time.Second
	}
	return &ElevenLabsProvider{cfg: cfg, client: &http.Client{}}
}

// Transcribe uploads the clip as multipart form data. This is the only
// provider call with its own fixed-duration abort; generation and synthesis
// rely on the turn context alone.
func (p *ElevenLabsProvider) Transcribe(ctx context.Context, clip []byte, filename string) (Transcript, error) {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.TranscribeTimeout)
	defer cancel()

	if strings.TrimSpace(filename) == "" {
		filename = "utterance.wav"
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return Transcript{}, fmt.Errorf("create form file: %w", err)
	}
	if _, err := fw.Write(clip); err != nil {
		return Transcript{}, fmt.Errorf("write clip: %w", err)
	}
	if err := mw.WriteField("model_id", p.cfg.STTModelID); err != nil {
		return Transcript{}, fmt.Errorf("write model field: %w", err)
	}
	if err := mw.Close(); err != nil {
		return Transcript{}, fmt.Errorf("close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.BaseURL+"/v1/speech-to-text", &buf)
	if err != nil {
		return Transcript{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("xi-api-key", p.cfg.APIKey)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := p.client.Do(req)
	if err != nil {
		return Transcript{}, fmt.Errorf("stt request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Transcript{}, providerError("stt", resp)
	}

	var out struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Transcript{}, fmt.Errorf("parse stt response: %w", err)
	}
	return Transcript{Text: strings.TrimSpace(out.Text)}, nil
}

// Synthesize posts reply text and returns the audio blob.
func (p *ElevenLabsProvider) Synthesize(ctx context.Context, text, voiceID string, settings VoiceSettings) (Synthesis, error) {
	if strings.TrimSpace(voiceID) == "" {
		return Synthesis{}, fmt.Errorf("voice_id is required")
	}

	payload := map[string]any{
		"text":     text,
		"model_id": p.cfg.TTSModelID,
	}
	if settings != (VoiceSettings{}) {
		vs := map[string]any{}
		if settings.Stability > 0 {
			vs["stability"] = clamp01(settings.Stability)
		}
		if settings.SimilarityBoost > 0 {
			vs["similarity_boost"] = clamp01(settings.SimilarityBoost)
		}
		if settings.Speed > 0 {
			vs["speed"] = clampRange(settings.Speed, 0.7, 1.2)
		}
		payload["voice_settings"] = vs
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return Synthesis{}, fmt.Errorf("marshal tts request: %w", err)
	}

	endpoint := p.cfg.BaseURL + "/v1/text-to-speech/" + url.PathEscape(voiceID) +
		"?output_format=" + url.QueryEscape(p.cfg.OutputFormat)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return Synthesis{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("xi-api-key", p.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return Synthesis{}, fmt.Errorf("tts request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Synthesis{}, providerError("tts", resp)
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return Synthesis{}, fmt.Errorf("read tts audio: %w", err)
	}
	if len(audio) == 0 {
		return Synthesis{}, fmt.Errorf("tts returned empty audio")
	}
	return Synthesis{Audio: audio, Format: p.cfg.OutputFormat}, nil
}

func providerError(op string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 2<<10))
	return &reliability.ClassifiedError{
		Kind:      reliability.KindForHTTPStatus(resp.StatusCode),
		Code:      fmt.Sprintf("%s_http_%d", op, resp.StatusCode),
		Status:    resp.StatusCode,
		Retryable: reliability.IsRetryableHTTPStatus(resp.StatusCode),
		Err:       fmt.Errorf("%s status %d: %s", op, resp.StatusCode, strings.TrimSpace(string(body))),
	}
}

func clamp01(v float64) float64 {
	return clampRange(v, 0, 1)
}

func clampRange(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
