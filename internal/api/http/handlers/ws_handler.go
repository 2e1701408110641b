package handlers

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/workflow-service/internal/api/dto"
	"github.com/spec-kit/workflow-service/internal/dashboard"
	"github.com/spec-kit/workflow-service/internal/workspace"
	apperrors "github.com/spec-kit/workflow-service/pkg/util/errorutil"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	workspaceLocal = "ws_workspace"
)

// Client message types.
const (
	wsFilters  = "filters"
	wsChatOpen = "chat.open"
	wsChatSend = "chat.send"
	wsError    = "error"
)

// WSHandler streams workspace updates over a WebSocket.
type WSHandler struct {
	registry   *workspace.Registry
	logger     *zap.Logger
	ttlSeconds int
}

// NewWSHandler constructs handler.
func NewWSHandler(registry *workspace.Registry, logger *zap.Logger, ttlSeconds int) *WSHandler {
	return &WSHandler{registry: registry, logger: logger, ttlSeconds: ttlSeconds}
}

// Upgrade admits WebSocket upgrades and resolves the caller's workspace
// before the handshake completes.
func (h *WSHandler) Upgrade(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}
	_, w, err := acquireWorkspace(c, h.registry)
	if err != nil {
		return err
	}
	c.Locals(workspaceLocal, w)
	return c.Next()
}

// Stream is the upgraded connection handler.
func (h *WSHandler) Stream() fiber.Handler {
	return websocket.New(h.serve)
}

type chatSendPayload struct {
	PeerID string `json:"peer_id"`
	Text   string `json:"text"`
}

func (h *WSHandler) serve(conn *websocket.Conn) {
	w, ok := conn.Locals(workspaceLocal).(*workspace.Workspace)
	if !ok {
		_ = conn.Close()
		return
	}
	logger := h.logger.With(zap.String("user_id", w.Identity().ID))
	logger.Info("live connection opened")

	ctx, cancel := context.WithCancel(context.Background())
	updates, stop := w.Listen()
	replies := make(chan dto.WSMessage, 4)
	writerDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		h.writeLoop(conn, w, updates, replies, logger)
		cancel()
		// unblocks the reader
		_ = conn.Close()
	}()

	h.readLoop(ctx, conn, w, replies, logger)

	stop()
	<-writerDone
	logger.Info("live connection closed")
}

func (h *WSHandler) readLoop(ctx context.Context, conn *websocket.Conn, w *workspace.Workspace, replies chan<- dto.WSMessage, logger *zap.Logger) {
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		w.Touch()
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Warn("live connection read failed", zap.Error(err))
			}
			return
		}
		w.Touch()

		var msg dto.WSMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			h.reply(ctx, replies, apperrors.NewValidationError("invalid message format", nil))
			continue
		}
		if err := h.handle(ctx, w, msg); err != nil {
			h.reply(ctx, replies, err)
		}
	}
}

func (h *WSHandler) handle(ctx context.Context, w *workspace.Workspace, msg dto.WSMessage) error {
	switch msg.Type {
	case wsFilters:
		var filters dashboard.Filters
		if err := json.Unmarshal(msg.Payload, &filters); err != nil {
			return apperrors.NewValidationError("invalid filters", nil)
		}
		return w.SetFilters(ctx, filters)
	case wsChatOpen:
		var payload dto.ChatOpenPayload
		if len(msg.Payload) > 0 {
			if err := json.Unmarshal(msg.Payload, &payload); err != nil {
				return apperrors.NewValidationError("invalid chat selection", nil)
			}
		}
		return w.OpenChat(ctx, payload.PeerID)
	case wsChatSend:
		var payload chatSendPayload
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			return apperrors.NewValidationError("invalid chat message", nil)
		}
		_, err := w.SendChat(ctx, payload.PeerID, payload.Text)
		return err
	default:
		return apperrors.NewValidationError("unknown message type", map[string]any{"type": msg.Type})
	}
}

func (h *WSHandler) reply(ctx context.Context, replies chan<- dto.WSMessage, err error) {
	domainErr := apperrors.ToDomainError(err)
	msg := dto.WSMessage{Type: wsError, Error: &dto.ErrorBody{
		Code:       domainErr.Code,
		Message:    domainErr.Message,
		Details:    domainErr.Details,
		TTLSeconds: h.ttlSeconds,
	}}
	select {
	case replies <- msg:
	case <-ctx.Done():
	}
}

func (h *WSHandler) writeLoop(conn *websocket.Conn, w *workspace.Workspace, updates <-chan workspace.Update, replies <-chan dto.WSMessage, logger *zap.Logger) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case u, ok := <-updates:
			if !ok {
				_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
				_ = conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "workspace closed"))
				return
			}
			msg, err := encodeUpdate(u)
			if err != nil {
				logger.Error("encode update failed", zap.Error(err))
				continue
			}
			if err := writeJSON(conn, msg); err != nil {
				logger.Warn("live connection write failed", zap.Error(err))
				return
			}
			if u.Type == workspace.UpdateSignedOut {
				return
			}
		case msg := <-replies:
			if err := writeJSON(conn, msg); err != nil {
				logger.Warn("live connection write failed", zap.Error(err))
				return
			}
		case <-ticker.C:
			w.Touch()
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func writeJSON(conn *websocket.Conn, msg dto.WSMessage) error {
	if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return conn.WriteJSON(msg)
}

func encodeUpdate(u workspace.Update) (dto.WSMessage, error) {
	msg := dto.WSMessage{Type: string(u.Type)}
	var payload any
	switch u.Type {
	case workspace.UpdateView:
		if u.View != nil {
			payload = dto.NewViewResponse(*u.View)
		}
	case workspace.UpdateChat:
		if u.Chat != nil {
			payload = dto.ChatPayload{PeerID: u.Chat.PeerID, Messages: dto.NewChatMessageResponses(u.Chat.Messages)}
		}
	}
	if payload == nil {
		return msg, nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return msg, err
	}
	msg.Payload = raw
	return msg, nil
}
