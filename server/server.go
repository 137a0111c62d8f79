// Package server exposes the chat processor over HTTP and relays each
// turn's prompt to the upstream completion service.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"dario.cat/mergo"
	"github.com/alexschlessinger/calmchat/chat"
	"github.com/alexschlessinger/calmchat/llm"
	"github.com/alexschlessinger/calmchat/messages"
	"github.com/alexschlessinger/calmchat/sessions"
	"github.com/google/uuid"
	"github.com/xeipuuv/gojsonschema"
	"go.uber.org/zap"
)

// MaxBodyBytes caps the size of a request body
const MaxBodyBytes = 64 << 10

// Client-facing error messages. Upstream details stay in the logs.
const (
	msgNotConfigured = "service is not configured"
	msgUpstream      = "the assistant is unavailable right now, please try again"
	msgEmptyQuery    = "query must not be empty"
	msgNotFound      = "session not found"
	msgTooLarge      = "request body too large"
)

// Upstream is the completion service a turn is relayed to
type Upstream interface {
	llm.LLM
	// CheckCredentials reports whether a request for model could be sent
	CheckCredentials(model string) error
}

// Config holds the per-request upstream parameters
type Config struct {
	Model        string
	Temperature  float32
	MaxTokens    int
	Timeout      time.Duration
	SystemPrompt string
}

// Upstream defaults applied to zero Config fields. Temperature has none
// because zero is a valid setting.
const (
	DefaultModel     = "openai/gpt-4o-mini"
	DefaultMaxTokens = 1024
	DefaultTimeout   = time.Minute
)

// DefaultConfig returns the upstream parameters used for unset fields
func DefaultConfig() Config {
	return Config{
		Model:        DefaultModel,
		MaxTokens:    DefaultMaxTokens,
		Timeout:      DefaultTimeout,
		SystemPrompt: sessions.DefaultSystemPrompt,
	}
}

// Handler routes the chat API
type Handler struct {
	store     sessions.SessionStore
	processor *chat.Processor
	upstream  Upstream
	config    Config
	schema    *gojsonschema.Schema
	mux       *http.ServeMux
}

var _ http.Handler = (*Handler)(nil)

// NewHandler builds the API routes around a store and an upstream
func NewHandler(store sessions.SessionStore, upstream Upstream, config Config) (*Handler, error) {
	if store == nil {
		return nil, errors.New("server: store is required")
	}
	if upstream == nil {
		return nil, errors.New("server: upstream is required")
	}
	if err := mergo.Merge(&config, DefaultConfig()); err != nil {
		return nil, fmt.Errorf("server: failed to apply config defaults: %w", err)
	}
	schema, err := reflectSchema(&ChatRequest{})
	if err != nil {
		return nil, err
	}

	h := &Handler{
		store:     store,
		processor: chat.NewProcessor(store),
		upstream:  upstream,
		config:    config,
		schema:    schema,
		mux:       http.NewServeMux(),
	}
	h.mux.HandleFunc("POST /api/chat", h.handleChat)
	h.mux.HandleFunc("GET /api/sessions/{id}", h.handleSession)
	h.mux.HandleFunc("GET /healthz", h.handleHealth)
	return h, nil
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

func (h *Handler) handleChat(w http.ResponseWriter, r *http.Request) {
	req, status, err := h.decodeChatRequest(w, r)
	if err != nil {
		writeError(w, status, err.Error())
		return
	}

	// Fail before the registry is touched so no orphan user message is recorded
	if err := h.upstream.CheckCredentials(h.config.Model); err != nil {
		zap.S().Errorw("upstream_not_configured", "model", h.config.Model, "error", err)
		writeError(w, http.StatusInternalServerError, msgNotConfigured)
		return
	}

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	turn := h.processor.HandleTurn(sessionID, req.Query)

	started := time.Now()
	reply, err := h.upstream.Complete(r.Context(), h.completionRequest(turn.Prompt))
	if err != nil {
		zap.S().Warnw("upstream_failed",
			"session_id", sessionID,
			"model", h.config.Model,
			"duration", time.Since(started),
			"error", err,
		)
		writeError(w, http.StatusBadGateway, msgUpstream)
		return
	}

	answer := llm.StripThinkBlocks(reply.Content)
	if answer == "" {
		answer = chat.PlaceholderReply
	}
	reply.Content = answer
	h.processor.RecordReplyMessage(sessionID, *reply)

	zap.S().Infow("turn_completed",
		"session_id", sessionID,
		"message_count", turn.MessageCount,
		"new_session", turn.Created,
		"input_tokens", reply.GetInputTokens(),
		"output_tokens", reply.GetOutputTokens(),
		"stop_reason", reply.StopReason,
		"duration", time.Since(started),
	)

	writeJSON(w, http.StatusOK, ChatResponse{
		Answer:       answer,
		SessionID:    sessionID,
		MessageCount: turn.MessageCount,
		NewSession:   turn.Created,
	})
}

// decodeChatRequest reads, validates and decodes the body, returning the
// HTTP status to use on failure
func (h *Handler) decodeChatRequest(w http.ResponseWriter, r *http.Request) (*ChatRequest, int, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, http.StatusRequestEntityTooLarge, errors.New(msgTooLarge)
		}
		return nil, http.StatusBadRequest, fmt.Errorf("failed to read body: %w", err)
	}

	if err := validateBody(h.schema, body); err != nil {
		return nil, http.StatusBadRequest, err
	}

	var req ChatRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, http.StatusBadRequest, fmt.Errorf("invalid request: %w", err)
	}
	req.Query = strings.TrimSpace(req.Query)
	if req.Query == "" {
		return nil, http.StatusBadRequest, errors.New(msgEmptyQuery)
	}
	req.SessionID = strings.TrimSpace(req.SessionID)
	return &req, 0, nil
}

// completionRequest wraps a turn prompt with the persona
func (h *Handler) completionRequest(prompt string) *llm.CompletionRequest {
	msgs := make([]messages.ChatMessage, 0, 2)
	if h.config.SystemPrompt != "" {
		msgs = append(msgs, messages.ChatMessage{Role: messages.MessageRoleSystem, Content: h.config.SystemPrompt})
	}
	msgs = append(msgs, messages.ChatMessage{Role: messages.MessageRoleUser, Content: prompt})

	return &llm.CompletionRequest{
		Model:       h.config.Model,
		Temperature: h.config.Temperature,
		MaxTokens:   h.config.MaxTokens,
		Timeout:     h.config.Timeout,
		Messages:    msgs,
	}
}

// HistoryMessage is one entry of GET /api/sessions/{id}
type HistoryMessage struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// SessionResponse is the body of GET /api/sessions/{id}
type SessionResponse struct {
	SessionID string           `json:"sessionId"`
	Messages  []HistoryMessage `json:"messages"`
}

func (h *Handler) handleSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	history, ok := h.processor.History(id)
	if !ok {
		writeError(w, http.StatusNotFound, msgNotFound)
		return
	}

	resp := SessionResponse{SessionID: id, Messages: make([]HistoryMessage, len(history))}
	for i, msg := range history {
		resp.Messages[i] = HistoryMessage{Role: msg.Role, Content: msg.Content, Timestamp: msg.Timestamp}
	}
	writeJSON(w, http.StatusOK, resp)
}

// HealthResponse is the body of GET /healthz
type HealthResponse struct {
	Status   string         `json:"status"`
	Sessions int            `json:"sessions"`
	Stats    sessions.Stats `json:"stats"`
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	stats := h.store.Stats()
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:   "ok",
		Sessions: stats.Total,
		Stats:    stats,
	})
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.S().Debugw("response_write_failed", "error", err)
	}
}
