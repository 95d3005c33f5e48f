package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	chatservice "github.com/zhouzirui/searchchat/internal/service/chat"
	"github.com/zhouzirui/searchchat/pkg/log"
)

const (
	readTimeout  = 60 * time.Second
	writeTimeout = 10 * time.Second
)

// WebSocketHandler WebSocket问答处理器
type WebSocketHandler struct {
	chatSvc     *chatservice.Service
	upgrader    websocket.Upgrader
	readTimeout time.Duration
}

// NewWebSocketHandler 创建WebSocket处理器
func NewWebSocketHandler(chatSvc *chatservice.Service) *WebSocketHandler {
	return &WebSocketHandler{
		chatSvc:     chatSvc,
		readTimeout: readTimeout,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// RegisterRoutes 注册WebSocket路由
func (h *WebSocketHandler) RegisterRoutes(r chi.Router) {
	r.Get("/ws/{sessionID}", h.handleWebSocket)
}

type inboundMessage struct {
	Type      string          `json:"type"`
	ID        string          `json:"id,omitempty"`
	SessionID string          `json:"sessionId"`
	Data      json.RawMessage `json:"data"`
}

// AskMessage carries a question.
type AskMessage struct {
	Question string `json:"question"`
}

type outgoingMessage struct {
	Type      string      `json:"type"`
	ID        string      `json:"id,omitempty"`
	SessionID string      `json:"sessionId,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

// conn serializes writes; gorilla allows one concurrent writer.
type conn struct {
	*websocket.Conn
	writeMu sync.Mutex
}

func (c *conn) send(msg outgoingMessage) error {
	msg.Timestamp = time.Now().UnixMilli()

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	_ = c.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.WriteJSON(msg)
}

// handleWebSocket 处理WebSocket连接；同一连接上的问题按顺序解析
func (h *WebSocketHandler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	logger := log.Component(r.Context(), "websocket")

	if _, err := h.chatSvc.GetSession(r.Context(), sessionID); err != nil {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}

	raw, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn().Err(err).Msg("upgrade failed")
		return
	}
	c := &conn{Conn: raw}
	defer c.Close()

	logger.Info().Str("session", sessionID).Msg("new connection")

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	_ = c.SetReadDeadline(time.Now().Add(h.readTimeout))
	c.SetPongHandler(func(string) error {
		return c.SetReadDeadline(time.Now().Add(h.readTimeout))
	})

	go pingLoop(ctx, c, h.readTimeout*9/10)

	_ = c.send(outgoingMessage{Type: "connected", SessionID: sessionID})

	for {
		var msg inboundMessage
		if err := c.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Warn().Err(err).Msg("read error")
			}
			return
		}

		if msg.SessionID != "" && msg.SessionID != sessionID {
			h.sendError(c, msg.ID, sessionID, "session mismatch")
			_ = c.SetReadDeadline(time.Now().Add(h.readTimeout))
			continue
		}

		h.handleMessage(ctx, c, sessionID, &msg)

		// 解析期间不读取连接，超时从处理完成后重新计算
		_ = c.SetReadDeadline(time.Now().Add(h.readTimeout))
	}
}

func (h *WebSocketHandler) handleMessage(ctx context.Context, c *conn, sessionID string, msg *inboundMessage) {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}

	switch msg.Type {
	case "ask":
		h.handleAsk(ctx, c, sessionID, msg)
	case "ping":
		_ = c.send(outgoingMessage{Type: "pong", ID: msg.ID, SessionID: sessionID})
	default:
		h.sendError(c, msg.ID, sessionID, "unsupported message type: "+msg.Type)
	}
}

func (h *WebSocketHandler) handleAsk(ctx context.Context, c *conn, sessionID string, msg *inboundMessage) {
	var ask AskMessage
	if err := json.Unmarshal(msg.Data, &ask); err != nil {
		h.sendError(c, msg.ID, sessionID, "invalid ask payload")
		return
	}

	_ = c.send(outgoingMessage{Type: "thinking", ID: msg.ID, SessionID: sessionID, Data: map[string]string{"question": ask.Question}})

	reply, err := h.chatSvc.Ask(ctx, sessionID, ask.Question)
	if err != nil {
		h.sendError(c, msg.ID, sessionID, err.Error())
		return
	}

	if err := c.send(outgoingMessage{Type: "answer", ID: msg.ID, SessionID: sessionID, Data: reply}); err != nil {
		logger := log.Component(ctx, "websocket")
		logger.Warn().Err(err).Msg("failed to send answer")
	}
}

func (h *WebSocketHandler) sendError(c *conn, id, sessionID, message string) {
	_ = c.send(outgoingMessage{Type: "error", ID: id, SessionID: sessionID, Data: map[string]string{"error": message}})
}

func pingLoop(ctx context.Context, c *conn, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
				return
			}
		}
	}
}
