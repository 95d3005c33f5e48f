package stream

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	chatService "github.com/zhouzirui/searchchat/internal/service/chat"
	"github.com/zhouzirui/searchchat/pkg/log"
	"github.com/zhouzirui/searchchat/pkg/utils"
)

// Handler answers a question over Server-Sent Events.
type Handler struct {
	chatSvc *chatService.Service
}

// New creates a new stream handler
func New(chatSvc *chatService.Service) *Handler {
	return &Handler{chatSvc: chatSvc}
}

// StreamResponse represents a streaming response chunk
type StreamResponse struct {
	Event     string             `json:"event"`
	Content   string             `json:"content,omitempty"`
	SessionID string             `json:"sessionId,omitempty"`
	Reply     *chatService.Reply `json:"reply,omitempty"`
	Finished  bool               `json:"finished,omitempty"`
	Error     string             `json:"error,omitempty"`
}

// RegisterRoutes 注册流式接口
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/stream/{sessionID}", h.handleStream)
}

func (h *Handler) handleStream(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	question := r.URL.Query().Get("message")

	if question == "" {
		utils.RespondError(w, http.StatusBadRequest, "message query parameter is required")
		return
	}
	if _, err := h.chatSvc.GetSession(r.Context(), sessionID); err != nil {
		utils.RespondError(w, http.StatusNotFound, err.Error())
		return
	}

	if err := h.HandleStreamRequest(r.Context(), w, sessionID, question); err != nil {
		logger := log.Component(r.Context(), "stream")
		logger.Error().Err(err).Str("session", sessionID).Msg("stream failed")
	}
}

// HandleStreamRequest resolves one question and reports progress as SSE events:
// start, then message (or error), then end.
func (h *Handler) HandleStreamRequest(ctx context.Context, w http.ResponseWriter, sessionID, question string) error {
	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.RespondError(w, http.StatusInternalServerError, "streaming unsupported")
		return errors.New("streaming unsupported")
	}

	utils.SetupSSEHeaders(w)

	utils.SendSSEChunk(w, flusher, StreamResponse{
		Event:     "start",
		SessionID: sessionID,
		Content:   question,
	})

	reply, err := h.chatSvc.Ask(ctx, sessionID, question)
	if err != nil {
		utils.SendSSEChunk(w, flusher, StreamResponse{Event: "error", SessionID: sessionID, Error: err.Error()})
		return err
	}

	utils.SendSSEChunk(w, flusher, StreamResponse{
		Event:     "message",
		SessionID: sessionID,
		Content:   reply.Answer,
		Reply:     &reply,
	})

	utils.SendSSEChunk(w, flusher, StreamResponse{
		Event:     "end",
		SessionID: sessionID,
		Finished:  true,
	})

	logger := log.Component(ctx, "stream")
	logger.Debug().Str("session", sessionID).Bool("failed", reply.Failed).Msg("stream completed")
	return nil
}
