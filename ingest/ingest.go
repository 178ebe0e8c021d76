// Package ingest exposes the pipeline over HTTP: a webhook endpoint for
// pushing events in and a WebSocket stream for watching processed
// outcomes in real time.
package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/becomeliminal/cerebral-go-sdk/core"
	"github.com/becomeliminal/cerebral-go-sdk/engine"
)

// Pipeline is the processing entry point the server forwards events to.
// Satisfied by *engine.Engine.
type Pipeline interface {
	Process(ctx context.Context, input engine.Input) (*engine.Outcome, error)
}

// EventRequest is the webhook payload.
type EventRequest struct {
	Content       string            `json:"content"`
	SessionID     string            `json:"session_id,omitempty"`
	UserInitiated bool              `json:"user_initiated,omitempty"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

// EventResponse is the webhook reply and the stream frame payload.
type EventResponse struct {
	EventID       string  `json:"event_id,omitempty"`
	Category      string  `json:"category"`
	Novelty       float64 `json:"novelty"`
	Significance  float64 `json:"significance,omitempty"`
	Valence       float64 `json:"valence"`
	Salience      float64 `json:"salience,omitempty"`
	ShouldProcess bool    `json:"should_process"`
	Consolidated  bool    `json:"consolidated"`
	Provider      string  `json:"provider,omitempty"`
	Response      string  `json:"response,omitempty"`
	Timestamp     string  `json:"timestamp"`
}

// Server handles webhook ingestion and outcome streaming.
type Server struct {
	pipeline Pipeline
	hub      *hub
}

// NewServer creates a server around a pipeline.
func NewServer(p Pipeline) *Server {
	return &Server{
		pipeline: p,
		hub:      newHub(),
	}
}

// Routes registers the server's endpoints on a mux.
func (s *Server) Routes(mux *http.ServeMux) {
	mux.HandleFunc("/v1/events", s.HandleEvent)
	mux.HandleFunc("/v1/stream", s.HandleStream)
}

// HandleEvent accepts one event, runs it through the pipeline, replies
// with the outcome, and broadcasts it to stream subscribers.
func (s *Server) HandleEvent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSONError(w, http.StatusMethodNotAllowed, "POST required")
		return
	}

	var req EventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}

	outcome, err := s.pipeline.Process(r.Context(), engine.Input{
		Content:       req.Content,
		SessionID:     req.SessionID,
		UserInitiated: req.UserInitiated,
		Metadata:      req.Metadata,
	})
	if err != nil {
		switch {
		case errors.Is(err, core.ErrInvalidInput):
			writeJSONError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, core.ErrUnroutableTask):
			writeJSONError(w, http.StatusUnprocessableEntity, err.Error())
		default:
			log.Printf("[INGEST] Process failed: %v", err)
			writeJSONError(w, http.StatusBadGateway, "event processing failed")
		}
		return
	}

	resp := toResponse(outcome)
	s.hub.broadcast(resp)

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		log.Printf("[INGEST] Write response: %v", err)
	}
}

func toResponse(outcome *engine.Outcome) EventResponse {
	resp := EventResponse{
		Category:      outcome.Category.String(),
		Novelty:       outcome.Novelty,
		Valence:       outcome.Valence,
		ShouldProcess: outcome.ShouldProcess,
		Consolidated:  outcome.Consolidated,
		Provider:      string(outcome.Provider),
		Response:      outcome.Response,
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
	}
	if outcome.Event != nil {
		resp.EventID = outcome.Event.ID
		resp.Significance = outcome.Event.Significance
		resp.Salience = outcome.Event.Salience()
	}
	return resp
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
