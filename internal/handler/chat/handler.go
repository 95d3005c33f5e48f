package chat

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/searchchat/internal/model/chat"
	chatService "github.com/zhouzirui/searchchat/internal/service/chat"
	"github.com/zhouzirui/searchchat/pkg/render"
	"github.com/zhouzirui/searchchat/pkg/utils"
)

// Handler 聊天服务的HTTP处理器
type Handler struct {
	chatSvc *chatService.Service
}

// New 创建聊天处理器
func New(chatSvc *chatService.Service) *Handler {
	return &Handler{chatSvc: chatSvc}
}

// RegisterRoutes 注册聊天相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/sessions", h.handleCreateSession)
	r.Get("/sessions/{sessionID}", h.handleGetSession)
	r.Delete("/sessions/{sessionID}", h.handleDeleteSession)
	r.Post("/sessions/{sessionID}/messages", h.handleAsk)
}

type turnView struct {
	Role chat.Role `json:"role"`
	Text string    `json:"text"`
	HTML string    `json:"html,omitempty"`
}

type sessionView struct {
	chat.Session
	Transcript []turnView `json:"transcript"`
}

// handleCreateSession 创建会话
func (h *Handler) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	session, err := h.chatSvc.CreateSession(r.Context())
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	utils.RespondJSON(w, http.StatusCreated, session)
}

// handleGetSession 返回会话及完整对话记录
func (h *Handler) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	session, err := h.chatSvc.GetSession(r.Context(), sessionID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	transcript, err := h.chatSvc.LoadTranscript(r.Context(), sessionID)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	utils.RespondJSON(w, http.StatusOK, sessionView{Session: session, Transcript: viewTranscript(transcript)})
}

// handleDeleteSession 结束会话
func (h *Handler) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := h.chatSvc.DeleteSession(r.Context(), chi.URLParam(r, "sessionID")); err != nil {
		respondServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleAsk 提交问题并返回最终答案
func (h *Handler) handleAsk(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Question string `json:"question"`
	}

	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	reply, err := h.chatSvc.Ask(r.Context(), chi.URLParam(r, "sessionID"), payload.Question)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	utils.RespondJSON(w, http.StatusOK, reply)
}

func respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, chatService.ErrSessionNotFound):
		utils.RespondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, chatService.ErrQuestionRequired):
		utils.RespondError(w, http.StatusBadRequest, err.Error())
	default:
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
	}
}

func viewTranscript(transcript chat.Transcript) []turnView {
	views := make([]turnView, 0, len(transcript))
	for _, turn := range transcript {
		view := turnView{Role: turn.Role, Text: turn.Text}
		if turn.Role == chat.RoleAssistant {
			view.HTML = render.MarkdownToHTML(turn.Text)
		}
		views = append(views, view)
	}
	return views
}
