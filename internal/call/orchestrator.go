package call

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/lorisra/ottera/internal/brain"
	"github.com/lorisra/ottera/internal/conversation"
	"github.com/lorisra/ottera/internal/observability"
	"github.com/lorisra/ottera/internal/protocol"
	"github.com/lorisra/ottera/internal/reliability"
	"github.com/lorisra/ottera/internal/session"
	"github.com/lorisra/ottera/internal/speech"
	"github.com/lorisra/ottera/internal/vad"
)

// Phase is the single tagged state of one call connection. Exactly one phase
// holds at a time; there are no independent busy/speaking flags.
type Phase string

const (
	PhaseIdle         Phase = "idle"
	PhaseListening    Phase = "listening"
	PhaseTranscribing Phase = "transcribing"
	PhaseGenerating   Phase = "generating"
	PhaseSpeaking     Phase = "speaking"
	PhaseError        Phase = "error"
)

const (
	historyContextLimit = 12
	turnSaveTimeout     = 2 * time.Second
	outboundSendTimeout = 5 * time.Second
	defaultSampleRate   = 16000
)

// placeholderTranscript is the provider's filler output for unusable audio.
const placeholderTranscript = "i didn't catch that"

// Config tunes per-connection endpointing and pacing.
type Config struct {
	VAD           vad.MonitorConfig
	MaxRecording  time.Duration
	RearmDelay    time.Duration
	FirstReplySLO time.Duration
}

// Orchestrator drives the capture, transcribe, generate, synthesize loop for
// live call connections.
type Orchestrator struct {
	sessions  *session.Manager
	store     conversation.Store
	responder brain.Responder
	stt       speech.Transcriber
	tts       speech.Synthesizer
	metrics   *observability.Metrics
	cfg       Config
}

func NewOrchestrator(
	sessions *session.Manager,
	store conversation.Store,
	responder brain.Responder,
	stt speech.Transcriber,
	tts speech.Synthesizer,
	metrics *observability.Metrics,
	cfg Config,
) *Orchestrator {
	if cfg.MaxRecording <= 0 {
		cfg.MaxRecording = 30 * time.Second
	}
	if cfg.RearmDelay <= 0 {
		cfg.RearmDelay = 400 * time.Millisecond
	}
	return &Orchestrator{
		sessions:  sessions,
		store:     store,
		responder: responder,
		stt:       stt,
		tts:       tts,
		metrics:   metrics,
		cfg:       cfg,
	}
}

// turnEvent is one pipeline result delivered back to the connection loop.
// Events carry the token of the turn that produced them so results from a
// cancelled turn are discarded instead of mutating newer state.
type turnEvent struct {
	token int64
	kind  turnEventKind

	text   string
	audio  []byte
	format string
	code   string
	source string
	err    error
}

type turnEventKind int

const (
	evtTranscript turnEventKind = iota
	evtNoSpeech
	evtDelta
	evtAudio
	evtDone
	evtSynthesisFailed
	evtFailed
)

type turnInput struct {
	clip     []byte
	text     string
	source   string
	duration time.Duration
}

// RunConnection drives one call connection until the context is cancelled or
// the inbound channel closes.
func (o *Orchestrator) RunConnection(ctx context.Context, s *session.Session, inbound <-chan any, outbound chan<- any) error {
	o.metrics.ActiveCalls.Inc()
	defer o.metrics.ActiveCalls.Dec()
	o.metrics.CallEvents.WithLabelValues("connected").Inc()

	_ = o.sessions.Activate(s.ID)

	var (
		phase    = PhaseListening
		textMode = s.TextMode
		status   = session.StatusActive

		monitor    = vad.NewMonitor(o.cfg.VAD)
		sampleRate = defaultSampleRate
		recorder   = vad.NewRecorder(sampleRate, o.cfg.MaxRecording)

		activeToken  int64
		nextToken    int64
		activeTurnID string
		turnCancel   context.CancelFunc
		turnEvents   = make(chan turnEvent, 32)

		// Set when the current turn's utterance ended, cleared once the
		// first-reply latency was observed.
		utteranceEndedAt time.Time
		latencyObserved  bool

		lastInput  *turnInput
		lastFailed bool

		rearmCh <-chan time.Time
	)

	setPhase := func(p Phase) {
		if phase == p {
			return
		}
		phase = p
		o.send(ctx, outbound, protocol.CallState{
			Type:      protocol.TypeCallState,
			SessionID: s.ID,
			Status:    string(status),
			Phase:     string(phase),
			TextMode:  textMode,
		})
	}

	cancelActiveTurn := func(reason string) {
		if turnCancel == nil {
			return
		}
		turnCancel()
		turnCancel = nil
		o.send(ctx, outbound, protocol.TurnEnd{
			Type:      protocol.TypeTurnEnd,
			SessionID: s.ID,
			TurnID:    activeTurnID,
			Reason:    reason,
		})
		activeTurnID = ""
		activeToken = 0
	}

	// finishTurn releases the turn context after its terminal event was sent.
	finishTurn := func() {
		if turnCancel != nil {
			turnCancel()
			turnCancel = nil
		}
		activeTurnID = ""
		activeToken = 0
	}

	startTurn := func(input turnInput) {
		nextToken++
		token := nextToken
		activeToken = token
		turnID := uuid.NewString()
		activeTurnID = turnID
		_ = o.sessions.StartTurn(s.ID, turnID)

		lastInput = &input
		lastFailed = false
		latencyObserved = false
		utteranceEndedAt = time.Now()

		turnCtx, cancel := context.WithCancel(ctx)
		turnCancel = cancel

		if len(input.clip) > 0 {
			setPhase(PhaseTranscribing)
		} else {
			setPhase(PhaseGenerating)
		}
		o.metrics.CallEvents.WithLabelValues("turn_started").Inc()

		go o.runTurn(turnCtx, s, token, turnID, input, textMode, turnEvents)
	}

	scheduleRearm := func() {
		setPhase(PhaseIdle)
		rearmCh = time.After(o.cfg.RearmDelay)
	}

	rearm := func() {
		rearmCh = nil
		monitor.Reset()
		recorder.Abort()
		setPhase(PhaseListening)
	}

	commitUtterance := func() {
		clip, dur, err := recorder.Finalize()
		monitor.Reset()
		if err != nil {
			// Nothing usable was buffered; keep listening.
			return
		}
		startTurn(turnInput{clip: clip, source: "voice", duration: dur})
	}

	// Announce the initial state so the client renders the call as live.
	o.send(ctx, outbound, protocol.CallState{
		Type:      protocol.TypeCallState,
		SessionID: s.ID,
		Status:    string(status),
		Phase:     string(phase),
		TextMode:  textMode,
	})

	for {
		select {
		case <-ctx.Done():
			cancelActiveTurn("connection_closed")
			o.metrics.CallEvents.WithLabelValues("disconnected").Inc()
			return nil

		case <-rearmCh:
			rearm()

		case msg, ok := <-inbound:
			if !ok {
				cancelActiveTurn("connection_closed")
				o.metrics.CallEvents.WithLabelValues("disconnected").Inc()
				return nil
			}
			_ = o.sessions.Touch(s.ID)

			switch m := msg.(type) {
			case protocol.CallAudioChunk:
				o.metrics.WSMessages.WithLabelValues("in", string(protocol.TypeCallAudioChunk)).Inc()
				if textMode || phase != PhaseListening {
					// Frames outside the listening window are dropped, not queued.
					continue
				}
				pcm, err := base64.StdEncoding.DecodeString(m.PCM16Base64)
				if err != nil {
					o.send(ctx, outbound, protocol.ErrorEvent{
						Type:      protocol.TypeErrorEvent,
						SessionID: s.ID,
						Code:      "bad_audio_chunk",
						Source:    "client",
						Retryable: true,
						Detail:    err.Error(),
					})
					continue
				}
				if rate := m.SampleRate; rate > 0 && rate != sampleRate {
					if recorder.Active() {
						// The clip already carries frames at the old rate;
						// a mixed-rate WAV would mislabel them for the
						// transcriber.
						o.send(ctx, outbound, protocol.ErrorEvent{
							Type:      protocol.TypeErrorEvent,
							SessionID: s.ID,
							Code:      "sample_rate_changed",
							Source:    "client",
							Retryable: true,
							Detail:    fmt.Sprintf("sample rate changed mid-utterance: %d -> %d", sampleRate, rate),
						})
						continue
					}
					sampleRate = rate
					recorder = vad.NewRecorder(sampleRate, o.cfg.MaxRecording)
				}

				verdict := monitor.Feed(pcm, time.Now())
				if verdict.SpeechStarted {
					recorder.Start()
				}
				recorder.Append(pcm)
				if verdict.UtteranceEnd || recorder.Overrun() {
					commitUtterance()
				}

			case protocol.CallText:
				o.metrics.WSMessages.WithLabelValues("in", string(protocol.TypeCallText)).Inc()
				if phase != PhaseListening && phase != PhaseIdle {
					continue
				}
				text := strings.TrimSpace(m.Text)
				if text == "" {
					continue
				}
				rearmCh = nil
				recorder.Abort()
				monitor.Reset()
				startTurn(turnInput{text: text, source: "text"})

			case protocol.CallControl:
				o.metrics.WSMessages.WithLabelValues("in", string(protocol.TypeCallControl)).Inc()
				switch m.Action {
				case protocol.ActionStart:
					if phase == PhaseIdle {
						rearmCh = nil
						rearm()
					}
				case protocol.ActionStop:
					if phase == PhaseListening && recorder.Active() {
						commitUtterance()
					}
				case protocol.ActionPlaybackEnd:
					if phase == PhaseSpeaking {
						o.send(ctx, outbound, protocol.TurnEnd{
							Type:      protocol.TypeTurnEnd,
							SessionID: s.ID,
							TurnID:    activeTurnID,
							Reason:    "completed",
						})
						finishTurn()
						o.metrics.CallEvents.WithLabelValues("turn_completed").Inc()
						scheduleRearm()
					}
				case protocol.ActionToggleText:
					if !textMode {
						cancelActiveTurn("mode_changed")
						textMode = true
						_ = o.sessions.SetTextMode(s.ID, true)
						o.metrics.FallbackSwitches.WithLabelValues("manual").Inc()
						recorder.Abort()
						monitor.Reset()
						rearmCh = nil
						phase = PhaseIdle
						o.send(ctx, outbound, protocol.CallState{
							Type:      protocol.TypeCallState,
							SessionID: s.ID,
							Status:    string(status),
							Phase:     string(phase),
							TextMode:  textMode,
						})
					}
				case protocol.ActionToggleVoice:
					if textMode {
						textMode = false
						_ = o.sessions.SetTextMode(s.ID, false)
						monitor.Reset()
						if phase == PhaseIdle {
							phase = PhaseListening
						}
						o.send(ctx, outbound, protocol.CallState{
							Type:      protocol.TypeCallState,
							SessionID: s.ID,
							Status:    string(status),
							Phase:     string(phase),
							TextMode:  textMode,
						})
					}
				case protocol.ActionRetry:
					if lastFailed && lastInput != nil && (phase == PhaseListening || phase == PhaseIdle || phase == PhaseError) {
						if status == session.StatusError {
							status = session.StatusActive
							_ = o.sessions.Activate(s.ID)
						}
						rearmCh = nil
						startTurn(*lastInput)
					}
				case protocol.ActionEnd:
					cancelActiveTurn("call_ended")
					status = session.StatusEnded
					_, _ = o.sessions.End(s.ID)
					phase = PhaseIdle
					o.send(ctx, outbound, protocol.CallState{
						Type:      protocol.TypeCallState,
						SessionID: s.ID,
						Status:    string(status),
						Phase:     string(phase),
						TextMode:  textMode,
					})
					o.metrics.CallEvents.WithLabelValues("ended").Inc()
					return nil
				}
			}

		case evt := <-turnEvents:
			if evt.token != activeToken {
				// Late result from a cancelled or superseded turn.
				o.metrics.CallEvents.WithLabelValues("late_result_dropped").Inc()
				continue
			}

			switch evt.kind {
			case evtTranscript:
				o.send(ctx, outbound, protocol.Transcript{
					Type:      protocol.TypeTranscript,
					SessionID: s.ID,
					TurnID:    activeTurnID,
					Text:      evt.text,
					Final:     true,
					TSMs:      time.Now().UnixMilli(),
				})
				setPhase(PhaseGenerating)

			case evtNoSpeech:
				o.send(ctx, outbound, protocol.TurnEnd{
					Type:      protocol.TypeTurnEnd,
					SessionID: s.ID,
					TurnID:    activeTurnID,
					Reason:    "no_speech",
				})
				finishTurn()
				o.metrics.CallEvents.WithLabelValues("turn_no_speech").Inc()
				rearm()

			case evtDelta:
				if !latencyObserved {
					latencyObserved = true
					latency := time.Since(utteranceEndedAt)
					o.metrics.ObserveFirstReplyLatency(latency)
					if o.cfg.FirstReplySLO > 0 && latency > o.cfg.FirstReplySLO {
						o.metrics.CallEvents.WithLabelValues("first_reply_slo_miss").Inc()
					}
				}
				o.send(ctx, outbound, protocol.AssistantTextDelta{
					Type:      protocol.TypeAssistantTextDelta,
					SessionID: s.ID,
					TurnID:    activeTurnID,
					TextDelta: evt.text,
				})

			case evtAudio:
				o.send(ctx, outbound, protocol.AssistantAudio{
					Type:        protocol.TypeAssistantAudio,
					SessionID:   s.ID,
					TurnID:      activeTurnID,
					Format:      evt.format,
					AudioBase64: base64.StdEncoding.EncodeToString(evt.audio),
				})
				setPhase(PhaseSpeaking)

			case evtSynthesisFailed:
				// Reply text already streamed; demote to text so the
				// conversation continues without audio.
				o.metrics.ProviderErrors.WithLabelValues("tts", evt.code).Inc()
				o.send(ctx, outbound, protocol.ErrorEvent{
					Type:      protocol.TypeErrorEvent,
					SessionID: s.ID,
					Code:      evt.code,
					Source:    "tts",
					Retryable: true,
					Detail:    evt.err.Error(),
				})
				if !textMode {
					textMode = true
					_ = o.sessions.SetTextMode(s.ID, true)
					o.metrics.FallbackSwitches.WithLabelValues("synthesis_failure").Inc()
				}
				o.send(ctx, outbound, protocol.TurnEnd{
					Type:      protocol.TypeTurnEnd,
					SessionID: s.ID,
					TurnID:    activeTurnID,
					Reason:    "completed_text_only",
				})
				finishTurn()
				phase = PhaseIdle
				o.send(ctx, outbound, protocol.CallState{
					Type:      protocol.TypeCallState,
					SessionID: s.ID,
					Status:    string(status),
					Phase:     string(phase),
					TextMode:  textMode,
				})

			case evtDone:
				if phase == PhaseSpeaking {
					// Waiting on the client's playback_end.
					continue
				}
				o.send(ctx, outbound, protocol.TurnEnd{
					Type:      protocol.TypeTurnEnd,
					SessionID: s.ID,
					TurnID:    activeTurnID,
					Reason:    "completed",
				})
				finishTurn()
				o.metrics.CallEvents.WithLabelValues("turn_completed").Inc()
				if textMode {
					setPhase(PhaseIdle)
				} else {
					scheduleRearm()
				}

			case evtFailed:
				lastFailed = true
				o.metrics.ProviderErrors.WithLabelValues(evt.source, evt.code).Inc()
				o.send(ctx, outbound, protocol.ErrorEvent{
					Type:      protocol.TypeErrorEvent,
					SessionID: s.ID,
					Code:      evt.code,
					Source:    evt.source,
					Retryable: reliability.IsRetryable(evt.err),
					Detail:    evt.err.Error(),
				})
				o.send(ctx, outbound, protocol.TurnEnd{
					Type:      protocol.TypeTurnEnd,
					SessionID: s.ID,
					TurnID:    activeTurnID,
					Reason:    "error",
				})
				finishTurn()
				o.metrics.CallEvents.WithLabelValues("turn_failed").Inc()

				switch {
				case reliability.Classify(evt.err) == reliability.KindPermission:
					// Unrecoverable without operator action; the call stays
					// frozen until the client explicitly retries.
					status = session.StatusError
					_ = o.sessions.Fail(s.ID)
					phase = PhaseError
					o.metrics.CallEvents.WithLabelValues("entered_error_state").Inc()
					o.send(ctx, outbound, protocol.CallState{
						Type:      protocol.TypeCallState,
						SessionID: s.ID,
						Status:    string(status),
						Phase:     string(phase),
						TextMode:  textMode,
					})
				case evt.source == "stt" && !textMode:
					// A failing transcription path freezes voice for the
					// rest of the session; typing keeps working.
					textMode = true
					_ = o.sessions.SetTextMode(s.ID, true)
					o.metrics.FallbackSwitches.WithLabelValues("transcription_failure").Inc()
					phase = PhaseIdle
					o.send(ctx, outbound, protocol.CallState{
						Type:      protocol.TypeCallState,
						SessionID: s.ID,
						Status:    string(status),
						Phase:     string(phase),
						TextMode:  textMode,
					})
				case textMode:
					setPhase(PhaseIdle)
				default:
					scheduleRearm()
				}
			}
		}
	}
}

// runTurn executes one transcribe, generate, synthesize pipeline. All results
// are delivered through events; the goroutine never touches loop state.
func (o *Orchestrator) runTurn(ctx context.Context, s *session.Session, token int64, turnID string, input turnInput, textMode bool, events chan<- turnEvent) {
	emit := func(evt turnEvent) {
		evt.token = token
		// Deliver whenever buffer space exists, even after cancellation;
		// the loop's token check decides whether the result still counts.
		select {
		case events <- evt:
			return
		default:
		}
		select {
		case events <- evt:
		case <-ctx.Done():
		}
	}

	inputText := input.text
	if len(input.clip) > 0 {
		t0 := time.Now()
		tr, err := o.stt.Transcribe(ctx, input.clip, "utterance.wav")
		o.metrics.ObserveStage("transcribe", time.Since(t0))
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			emit(turnEvent{kind: evtFailed, code: "transcribe_failed", source: "stt", err: err})
			return
		}
		inputText = strings.TrimSpace(tr.Text)
		if unusableTranscript(inputText) {
			emit(turnEvent{kind: evtNoSpeech})
			return
		}
		emit(turnEvent{kind: evtTranscript, text: inputText})
	}

	o.saveTurnBestEffort(conversation.Turn{
		UserID:    s.UserID,
		SessionID: s.ID,
		Role:      conversation.RoleUser,
		Content:   inputText,
		Source:    input.source,
	})

	history := o.recentHistory(ctx, s.ID)

	t0 := time.Now()
	reply, err := o.responder.StreamReply(ctx, brain.ReplyRequest{
		UserID:      s.UserID,
		SessionID:   s.ID,
		TurnID:      turnID,
		CharacterID: s.CharacterID,
		InputText:   inputText,
		History:     history,
	}, func(delta string) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		emit(turnEvent{kind: evtDelta, text: delta})
		return nil
	})
	o.metrics.ObserveStage("generate", time.Since(t0))
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		emit(turnEvent{kind: evtFailed, code: "generate_failed", source: "brain", err: err})
		return
	}

	replyText := strings.TrimSpace(reply.Text)
	if replyText != "" {
		o.saveTurnBestEffort(conversation.Turn{
			UserID:    s.UserID,
			SessionID: s.ID,
			Role:      conversation.RoleAssistant,
			Content:   replyText,
			Source:    input.source,
		})
	}

	if !textMode && replyText != "" && o.tts != nil {
		speakable := speech.SanitizeForSynthesis(replyText)
		if speakable != "" {
			t0 = time.Now()
			syn, err := o.tts.Synthesize(ctx, speakable, s.VoiceID, speech.VoiceSettings{})
			o.metrics.ObserveStage("synthesize", time.Since(t0))
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				emit(turnEvent{kind: evtSynthesisFailed, code: "synthesize_failed", err: err})
				return
			}
			emit(turnEvent{kind: evtAudio, audio: syn.Audio, format: syn.Format})
		}
	}

	emit(turnEvent{kind: evtDone})
}

func (o *Orchestrator) recentHistory(ctx context.Context, sessionID string) []string {
	if o.store == nil {
		return nil
	}
	recentCtx, cancel := context.WithTimeout(ctx, turnSaveTimeout)
	defer cancel()
	turns, err := o.store.RecentTurns(recentCtx, sessionID, historyContextLimit)
	if err != nil || len(turns) == 0 {
		return nil
	}
	out := make([]string, 0, len(turns))
	for _, t := range turns {
		out = append(out, t.Role+": "+t.Content)
	}
	return out
}

func (o *Orchestrator) saveTurnBestEffort(turn conversation.Turn) {
	if o.store == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), turnSaveTimeout)
		defer cancel()
		_ = o.store.SaveTurn(ctx, turn)
	}()
}

func (o *Orchestrator) send(ctx context.Context, outbound chan<- any, msg any) {
	timer := time.NewTimer(outboundSendTimeout)
	defer timer.Stop()
	select {
	case outbound <- msg:
		o.metrics.WSMessages.WithLabelValues("out", outboundType(msg)).Inc()
	case <-ctx.Done():
	case <-timer.C:
		o.metrics.CallEvents.WithLabelValues("outbound_send_timeout").Inc()
	}
}

func outboundType(msg any) string {
	switch msg.(type) {
	case protocol.Transcript:
		return string(protocol.TypeTranscript)
	case protocol.AssistantTextDelta:
		return string(protocol.TypeAssistantTextDelta)
	case protocol.AssistantAudio:
		return string(protocol.TypeAssistantAudio)
	case protocol.TurnEnd:
		return string(protocol.TypeTurnEnd)
	case protocol.CallState:
		return string(protocol.TypeCallState)
	case protocol.ErrorEvent:
		return string(protocol.TypeErrorEvent)
	default:
		return "unknown"
	}
}

// unusableTranscript reports transcripts that must not reach generation:
// empty output, transcripts under two runes, and the provider placeholder.
func unusableTranscript(text string) bool {
	t := strings.TrimSpace(text)
	if len([]rune(t)) < 2 {
		return true
	}
	return strings.ToLower(strings.Trim(t, ".!?")) == placeholderTranscript
}
