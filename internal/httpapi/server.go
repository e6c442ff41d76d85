package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/lorisra/ottera/internal/agent"
	"github.com/lorisra/ottera/internal/auth"
	"github.com/lorisra/ottera/internal/config"
	"github.com/lorisra/ottera/internal/observability"
	"github.com/lorisra/ottera/internal/protocol"
	"github.com/lorisra/ottera/internal/session"
	"github.com/lorisra/ottera/internal/wallet"
)

// Orchestrator drives one call connection over channel pairs.
type Orchestrator interface {
	RunConnection(ctx context.Context, s *session.Session, inbound <-chan any, outbound chan<- any) error
}

// Authenticator is the slice of the auth client the API surface needs.
type Authenticator interface {
	Login(ctx context.Context, email, password string) (auth.Account, error)
	Signup(ctx context.Context, email, password, firstName, lastName, referralCode string) (auth.Account, error)
}

// HistorySource fetches one page of a user's payment history.
type HistorySource interface {
	Page(ctx context.Context, userID string, page, pageSize int) (wallet.HistoryPage, error)
}

type Server struct {
	cfg           config.Config
	sessions      *session.Manager
	orchestrator  Orchestrator
	metrics       *observability.Metrics
	directory     agent.Directory
	authenticator Authenticator
	packages      *wallet.Catalog
	linker        wallet.PaymentLinker
	history       HistorySource
	upgrader      websocket.Upgrader
}

func New(
	cfg config.Config,
	sessions *session.Manager,
	orchestrator Orchestrator,
	metrics *observability.Metrics,
	directory agent.Directory,
	authenticator Authenticator,
	packages *wallet.Catalog,
	linker wallet.PaymentLinker,
	history HistorySource,
) *Server {
	return &Server{
		cfg:           cfg,
		sessions:      sessions,
		orchestrator:  orchestrator,
		metrics:       metrics,
		directory:     directory,
		authenticator: authenticator,
		packages:      packages,
		linker:        linker,
		history:       history,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				// Only same-origin browser connections by default, so another
				// site cannot drive the user's microphone session.
				if cfg.AllowAnyOrigin {
					return true
				}
				origin := strings.TrimSpace(r.Header.Get("Origin"))
				if origin == "" {
					// Non-browser clients often omit Origin. Allow them.
					return true
				}
				u, err := url.Parse(origin)
				if err != nil {
					return false
				}
				if u.Scheme != "http" && u.Scheme != "https" {
					return false
				}
				return strings.EqualFold(u.Host, r.Host)
			},
		},
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		observability.MetricsHandler().ServeHTTP(w, r)
	})
	r.Get("/v1/perf/turns", s.handlePerfTurns)

	r.Post("/v1/call/session", s.handleCreateSession)
	r.Post("/v1/call/session/{id}/end", s.handleEndSession)
	r.Get("/v1/call/ws", s.handleCallWS)

	r.Get("/v1/characters", s.handleListCharacters)
	r.Get("/v1/characters/{id}", s.handleGetCharacter)

	r.Post("/v1/auth/login", s.handleLogin)
	r.Post("/v1/auth/signup", s.handleSignup)

	r.Get("/v1/wallet/packages", s.handleListPackages)
	r.Post("/v1/wallet/payment-link", s.handleCreatePaymentLink)
	r.Get("/v1/wallet/history", s.handleHistory)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":       "ready",
		"active_calls": s.sessions.ActiveCount(),
	})
}

func (s *Server) handlePerfTurns(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, s.metrics.StageSnapshot())
}

type createSessionRequest struct {
	UserID      string `json:"user_id"`
	CharacterID string `json:"character_id"`
	VoiceID     string `json:"voice_id"`
}

type createSessionResponse struct {
	SessionID       string         `json:"session_id"`
	UserID          string         `json:"user_id"`
	Status          session.Status `json:"status"`
	CharacterID     string         `json:"character_id"`
	VoiceID         string         `json:"voice_id"`
	StartedAt       time.Time      `json:"started_at"`
	InactivityTTLMS int64          `json:"inactivity_ttl_ms"`
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, errEmptyBody) {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if strings.TrimSpace(req.UserID) == "" {
		req.UserID = "anonymous"
	}

	if strings.TrimSpace(req.VoiceID) == "" && s.directory != nil && strings.TrimSpace(req.CharacterID) != "" {
		if ch, err := s.directory.Get(r.Context(), req.CharacterID); err == nil {
			req.VoiceID = ch.VoiceID
		}
	}
	if strings.TrimSpace(req.VoiceID) == "" {
		req.VoiceID = s.cfg.ElevenLabsTTSVoice
	}

	sess := s.sessions.Create(req.UserID, req.CharacterID, req.VoiceID)
	s.metrics.CallEvents.WithLabelValues("session_created").Inc()

	respondJSON(w, http.StatusCreated, createSessionResponse{
		SessionID:       sess.ID,
		UserID:          sess.UserID,
		Status:          sess.Status,
		CharacterID:     sess.CharacterID,
		VoiceID:         sess.VoiceID,
		StartedAt:       sess.StartedAt,
		InactivityTTLMS: s.cfg.CallInactivityTimeout.Milliseconds(),
	})
}

func (s *Server) handleEndSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if strings.TrimSpace(id) == "" {
		respondError(w, http.StatusBadRequest, "invalid_session_id", "missing session id")
		return
	}

	sess, err := s.sessions.End(id)
	if err != nil {
		respondError(w, http.StatusNotFound, "session_not_found", err.Error())
		return
	}
	s.metrics.CallEvents.WithLabelValues("session_ended").Inc()
	respondJSON(w, http.StatusOK, sess)
}

func (s *Server) handleCallWS(w http.ResponseWriter, r *http.Request) {
	sessionID := strings.TrimSpace(r.URL.Query().Get("session_id"))
	if sessionID == "" {
		respondError(w, http.StatusBadRequest, "missing_session_id", "query parameter session_id is required")
		return
	}
	if s.orchestrator == nil {
		respondError(w, http.StatusNotImplemented, "unavailable", "orchestrator not configured")
		return
	}

	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		respondError(w, http.StatusNotFound, "session_not_found", err.Error())
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	inbound := make(chan any, 256)
	outbound := make(chan any, 256)
	runDone := make(chan struct{})

	go func() {
		defer close(runDone)
		_ = s.orchestrator.RunConnection(ctx, sess, inbound, outbound)
	}()

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-outbound:
				if !ok {
					return
				}
				_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
				if err := conn.WriteJSON(msg); err != nil {
					cancel()
					return
				}
			}
		}
	}()

	conn.SetReadLimit(2 << 20)
	_ = conn.SetReadDeadline(time.Now().Add(120 * time.Second))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(120 * time.Second))
		return nil
	})

readLoop:
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		if msgType != websocket.TextMessage {
			continue
		}
		parsed, err := protocol.ParseClientMessage(data)
		if err != nil {
			errEvent := protocol.ErrorEvent{
				Type:      protocol.TypeErrorEvent,
				SessionID: sessionID,
				Code:      "invalid_client_message",
				Source:    "gateway",
				Retryable: false,
				Detail:    err.Error(),
			}
			select {
			case outbound <- errEvent:
			default:
				// Keep websocket writes single-threaded; drop if the outbound
				// queue is saturated.
			}
			continue
		}

		select {
		case <-ctx.Done():
			break readLoop
		case inbound <- parsed:
		}
	}

	cancel()
	close(inbound)
	<-runDone
	<-writerDone
}

func (s *Server) handleListCharacters(w http.ResponseWriter, r *http.Request) {
	if s.directory == nil {
		respondError(w, http.StatusServiceUnavailable, "unavailable", "character directory not configured")
		return
	}
	characters, err := s.directory.List(r.Context())
	if err != nil {
		respondError(w, http.StatusBadGateway, "agent_unavailable", err.Error())
		return
	}
	out := make([]agent.Character, 0, len(characters))
	for _, c := range characters {
		out = append(out, agent.ResolveCharacterMedia(s.cfg.MediaBaseURL, c))
	}
	respondJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetCharacter(w http.ResponseWriter, r *http.Request) {
	if s.directory == nil {
		respondError(w, http.StatusServiceUnavailable, "unavailable", "character directory not configured")
		return
	}
	id := chi.URLParam(r, "id")
	ch, err := s.directory.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, agent.ErrNotFound) {
			respondError(w, http.StatusNotFound, "character_not_found", "no character with id "+id)
			return
		}
		respondError(w, http.StatusBadGateway, "agent_unavailable", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, agent.ResolveCharacterMedia(s.cfg.MediaBaseURL, ch))
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type signupRequest struct {
	Email        string `json:"email"`
	Password     string `json:"password"`
	FirstName    string `json:"firstName"`
	LastName     string `json:"lastName"`
	ReferralCode string `json:"referralCode"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if s.authenticator == nil {
		respondError(w, http.StatusServiceUnavailable, "unavailable", "auth service not configured")
		return
	}
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	account, err := s.authenticator.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		respondAuthError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, account)
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	if s.authenticator == nil {
		respondError(w, http.StatusServiceUnavailable, "unavailable", "auth service not configured")
		return
	}
	var req signupRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	account, err := s.authenticator.Signup(r.Context(), req.Email, req.Password, req.FirstName, req.LastName, req.ReferralCode)
	if err != nil {
		respondAuthError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, account)
}

func respondAuthError(w http.ResponseWriter, err error) {
	var apiErr *auth.APIError
	if errors.As(err, &apiErr) {
		status := apiErr.Status
		if status < 400 || status > 599 {
			status = http.StatusBadGateway
		}
		respondJSON(w, status, apiErr)
		return
	}
	respondError(w, http.StatusBadGateway, "auth_unavailable", err.Error())
}

func (s *Server) handleListPackages(w http.ResponseWriter, _ *http.Request) {
	if s.packages == nil {
		respondError(w, http.StatusServiceUnavailable, "unavailable", "token packages not configured")
		return
	}
	respondJSON(w, http.StatusOK, s.packages.List())
}

type paymentLinkRequest struct {
	PackageID string `json:"package_id"`
	Email     string `json:"email"`
	UserID    string `json:"user_id"`
}

func (s *Server) handleCreatePaymentLink(w http.ResponseWriter, r *http.Request) {
	if s.packages == nil || s.linker == nil {
		respondError(w, http.StatusServiceUnavailable, "unavailable", "payments not configured")
		return
	}
	var req paymentLinkRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	pkg, ok := s.packages.Get(strings.TrimSpace(req.PackageID))
	if !ok {
		respondError(w, http.StatusNotFound, "package_not_found", "no package with id "+req.PackageID)
		return
	}

	link, err := s.linker.CreateLink(r.Context(), wallet.PurchaseIntent{
		Package: pkg,
		Email:   req.Email,
		UserID:  req.UserID,
	})
	if err != nil {
		respondError(w, http.StatusBadGateway, "payment_link_failed", err.Error())
		return
	}
	respondJSON(w, http.StatusCreated, link)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		respondError(w, http.StatusServiceUnavailable, "unavailable", "ledger not configured")
		return
	}
	userID := strings.TrimSpace(r.URL.Query().Get("user_id"))
	if userID == "" {
		respondError(w, http.StatusBadRequest, "missing_user_id", "query parameter user_id is required")
		return
	}
	page := queryInt(r, "page", 1)
	pageSize := queryInt(r, "page_size", 20)

	result, err := s.history.Page(r.Context(), userID, page, pageSize)
	if err != nil {
		respondError(w, http.StatusBadGateway, "ledger_unavailable", err.Error())
		return
	}

	pager := wallet.NewPager(page, pageSize, result.TotalCount)
	respondJSON(w, http.StatusOK, map[string]any{
		"transactions":   result.Transactions,
		"total_received": result.TotalReceived,
		"total_sent":     result.TotalSent,
		"balanceSummary": result.BalanceSummary,
		"totalCount":     result.TotalCount,
		"page":           pager.Page,
		"page_size":      pager.PageSize,
		"total_pages":    pager.TotalPages(),
		"has_next":       pager.HasNext(),
		"has_prev":       pager.HasPrev(),
	})
}

func queryInt(r *http.Request, key string, fallback int) int {
	v := strings.TrimSpace(r.URL.Query().Get(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

var errEmptyBody = errors.New("empty body")

func decodeJSON(r *http.Request, out any) error {
	if r.Body == nil {
		return errEmptyBody
	}
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(out); err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "eof") {
			return errEmptyBody
		}
		return err
	}
	return nil
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: message, Code: code})
}
