package sse

import (
	"context"
	"encoding/json/v2"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/rebase-energy/workspace-server/internal/http/response"
)

// WorkspaceResolver maps a workspace slug to its id.
type WorkspaceResolver func(ctx context.Context, slug string) (string, error)

// Handler handles SSE connections at GET /api/v1/workspaces/{slug}/events.
type Handler struct {
	manager   *Manager
	resolve   WorkspaceResolver
	logger    *slog.Logger
	heartbeat time.Duration
}

// NewHandler creates a new SSE Handler.
func NewHandler(manager *Manager, resolve WorkspaceResolver, logger *slog.Logger) *Handler {
	return &Handler{
		manager:   manager,
		resolve:   resolve,
		logger:    logger,
		heartbeat: 30 * time.Second,
	}
}

// ServeHTTP handles the SSE connection.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		response.MethodNotAllowed(w, h.logger)
		return
	}

	// Check if request context is already canceled (early client disconnect).
	if r.Context().Err() != nil {
		return
	}

	var workspaceID string
	if slug := chi.URLParam(r, "slug"); slug != "" && h.resolve != nil {
		wsID, err := h.resolve(r.Context(), slug)
		if err != nil {
			h.logger.Warn("failed to resolve workspace for SSE", slog.String("slug", slug), slog.String("error", err.Error()))
			response.HandleError(w, err, h.logger)
			return
		}
		workspaceID = wsID
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering

	rc := http.NewResponseController(w)

	if err := rc.Flush(); err != nil {
		h.logger.Error("failed to flush headers", slog.String("error", err.Error()))
		response.InternalError(w, "Streaming not supported", h.logger)
		return
	}

	client, err := h.manager.Connect(workspaceID)
	if err != nil {
		h.logger.Error("failed to register SSE client", slog.String("error", err.Error()))
		response.InternalError(w, "Failed to establish connection", h.logger)
		return
	}
	defer h.manager.Disconnect(client.ID)

	clientLogger := h.logger.With(slog.String("client_id", client.ID))

	if err := h.sendEvent(w, rc, "connected", map[string]string{
		"client_id":    client.ID,
		"workspace_id": workspaceID,
		"message":      "SSE connection established",
	}); err != nil {
		clientLogger.Warn("failed to send initial connection message", slog.String("error", err.Error()))
		return
	}

	ctx := r.Context()

	heartbeatTicker := time.NewTicker(h.heartbeat)
	defer heartbeatTicker.Stop()

	for {
		select {
		case event, ok := <-client.EventChan:
			if !ok {
				return
			}
			if err := h.sendEvent(w, rc, string(event.Type), event); err != nil {
				clientLogger.Info("client disconnected during send")
				return
			}

		case <-heartbeatTicker.C:
			heartbeat := NewHeartbeatEvent()
			if err := h.sendEvent(w, rc, string(heartbeat.Type), heartbeat); err != nil {
				clientLogger.Info("client disconnected during heartbeat")
				return
			}

		case <-client.Done:
			clientLogger.Info("client closed by manager")
			return

		case <-ctx.Done():
			clientLogger.Info("client context canceled")
			return
		}
	}
}

// sendEvent writes an SSE event to the response writer using json/v2.
func (h *Handler) sendEvent(w http.ResponseWriter, rc *http.ResponseController, eventType string, data any) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal event data: %w", err)
	}

	if _, err := fmt.Fprintf(w, "event: %s\n", eventType); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", jsonData); err != nil {
		return err
	}

	if err := rc.Flush(); err != nil {
		return err
	}

	// Reset after each successful write.
	if err := rc.SetWriteDeadline(time.Now().Add(60 * time.Second)); err != nil {
		h.logger.Debug("failed to set write deadline", slog.String("error", err.Error()))
	}

	return nil
}
