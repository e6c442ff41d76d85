package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/lorisra/ottera/internal/agent"
	"github.com/lorisra/ottera/internal/auth"
	"github.com/lorisra/ottera/internal/brain"
	"github.com/lorisra/ottera/internal/call"
	"github.com/lorisra/ottera/internal/config"
	"github.com/lorisra/ottera/internal/conversation"
	"github.com/lorisra/ottera/internal/httpapi"
	"github.com/lorisra/ottera/internal/observability"
	"github.com/lorisra/ottera/internal/session"
	"github.com/lorisra/ottera/internal/speech"
	"github.com/lorisra/ottera/internal/vad"
	"github.com/lorisra/ottera/internal/wallet"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	metrics := observability.NewMetrics(cfg.MetricsNamespace)

	ctx := context.Background()
	store, err := conversation.NewStore(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("conversation store init failed: %v", err)
	}
	defer store.Close()

	responder, err := brain.NewResponder(brain.Config{
		Mode:    cfg.BrainMode,
		HTTPURL: cfg.BrainHTTPURL,
	})
	if err != nil {
		log.Fatalf("responder init failed: %v", err)
	}

	var (
		stt speech.Transcriber
		tts speech.Synthesizer
	)

	speechMode := strings.ToLower(strings.TrimSpace(cfg.SpeechProvider))
	if speechMode == "" {
		speechMode = "auto"
	}

	tryElevenLabs := func() bool {
		if strings.TrimSpace(cfg.ElevenLabsAPIKey) == "" {
			return false
		}
		p := speech.NewElevenLabsProvider(speech.ElevenLabsConfig{
			APIKey:            cfg.ElevenLabsAPIKey,
			BaseURL:           cfg.ElevenLabsBaseURL,
			STTModelID:        cfg.ElevenLabsSTTModel,
			TTSModelID:        cfg.ElevenLabsTTSModel,
			OutputFormat:      cfg.ElevenLabsTTSOutputFormat,
			TranscribeTimeout: cfg.TranscribeTimeout,
		})
		mock := speech.NewMockProvider()
		stt, tts = speech.NewFailoverPair(p, p, mock, mock)
		log.Printf("speech provider: elevenlabs (mock fallback)")
		return true
	}

	switch speechMode {
	case "elevenlabs":
		if !tryElevenLabs() {
			log.Fatalf("SPEECH_PROVIDER=elevenlabs but ELEVENLABS_API_KEY is not set")
		}
	case "mock":
		p := speech.NewMockProvider()
		stt, tts = p, p
		log.Printf("speech provider: mock")
	case "auto":
		if !tryElevenLabs() {
			p := speech.NewMockProvider()
			stt, tts = p, p
			log.Printf("speech provider: mock (no elevenlabs key)")
		}
	default:
		log.Fatalf("invalid SPEECH_PROVIDER: %q (expected auto|elevenlabs|mock)", cfg.SpeechProvider)
	}

	sessions := session.NewManager(cfg.CallInactivityTimeout)
	sessions.SetExpireHook(func(_ *session.Session) {
		metrics.CallEvents.WithLabelValues("expired").Inc()
	})

	orchestrator := call.NewOrchestrator(sessions, store, responder, stt, tts, metrics, call.Config{
		VAD: vad.MonitorConfig{
			SpeechThreshold:  cfg.VADSpeechThreshold,
			SilenceThreshold: cfg.VADSilenceThreshold,
			MinSilence:       cfg.VADMinSilence,
			MinSilenceFrames: cfg.VADMinSilenceFrames,
		},
		MaxRecording:  cfg.MaxRecording,
		RearmDelay:    cfg.RearmDelay,
		FirstReplySLO: cfg.FirstReplySLO,
	})

	var directory agent.Directory
	if strings.TrimSpace(cfg.AgentAPIBaseURL) != "" {
		directory = agent.NewHTTPDirectory(cfg.AgentAPIBaseURL)
		log.Printf("character directory: agent api at %s", cfg.AgentAPIBaseURL)
	} else {
		directory = agent.NewCatalog(nil)
		log.Printf("character directory: built-in catalog")
	}

	var authenticator httpapi.Authenticator
	if strings.TrimSpace(cfg.AuthServiceURL) != "" {
		authenticator = auth.NewClient(cfg.AuthServiceURL)
	}

	packages, err := wallet.NewCatalog(nil)
	if err != nil {
		log.Fatalf("token package catalog invalid: %v", err)
	}

	var linker wallet.PaymentLinker
	if strings.TrimSpace(cfg.StripeSecretKey) != "" {
		linker, err = wallet.NewStripeLinker(cfg.StripeSecretKey, cfg.StripeSuccessURL, cfg.StripeCancelURL)
		if err != nil {
			log.Fatalf("stripe init failed: %v", err)
		}
		log.Printf("payments: stripe checkout")
	} else {
		linker = wallet.MockLinker{}
		log.Printf("payments: mock links (no stripe key)")
	}

	var history httpapi.HistorySource
	if strings.TrimSpace(cfg.LedgerURL) != "" {
		history = wallet.NewHistoryClient(cfg.LedgerURL)
	}

	api := httpapi.New(cfg, sessions, orchestrator, metrics, directory, authenticator, packages, linker, history)
	httpServer := &http.Server{
		Addr:    cfg.BindAddr,
		Handler: api.Router(),
	}

	runCtx, runCancel := context.WithCancel(context.Background())
	defer runCancel()
	sessions.StartJanitor(runCtx, 5*time.Second)

	go func() {
		log.Printf("server listening on %s", cfg.BindAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen error: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Printf("shutdown signal received")

	runCancel()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
		_ = httpServer.Close()
	}

	log.Printf("shutdown complete")
}
