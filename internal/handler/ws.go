package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"commute/internal/domain"
	"commute/internal/service"
	"commute/internal/ws"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Client message types.
const (
	wsMessagePosition      = "position"
	wsMessagePositionError = "position_error"
	wsMessagePing          = "ping"
)

// WebSocketHandler streams trip notifications to clients and accepts
// position reports over the same connection.
type WebSocketHandler struct {
	tripService *service.TripSessionService
	hub         *ws.Hub
	log         *zap.Logger
}

// NewWebSocketHandler creates a new WebSocketHandler.
func NewWebSocketHandler(tripService *service.TripSessionService, hub *ws.Hub, log *zap.Logger) *WebSocketHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &WebSocketHandler{
		tripService: tripService,
		hub:         hub,
		log:         log,
	}
}

// Subscribe handles GET /v1/trips/:id/ws
func (h *WebSocketHandler) Subscribe(c *gin.Context) {
	sessionID := c.Param("id")

	snap, err := h.tripService.Snapshot(c.Request.Context(), sessionID)
	if err != nil {
		respondError(c, err)
		return
	}

	raw, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		h.log.Warn("websocket upgrade failed", zap.String("session_id", sessionID), zap.Error(err))
		return
	}

	conn := ws.NewConn(c.Request.Context(), sessionID, raw)
	if err := h.hub.Add(conn); err != nil {
		h.log.Error("failed to register websocket", zap.String("session_id", sessionID), zap.Error(err))
		_ = conn.Close()
		return
	}
	defer h.hub.Remove(conn)

	h.log.Info("websocket connected", zap.String("session_id", sessionID))

	if err := conn.Send(service.Notification{
		Type:      service.NotificationSnapshot,
		SessionID: sessionID,
		Snapshot:  snap,
		CreatedAt: time.Now(),
	}); err != nil {
		h.log.Warn("failed to send initial snapshot", zap.String("session_id", sessionID), zap.Error(err))
		return
	}

	err = conn.Listen(func(msg map[string]any) error {
		return h.handleMessage(c.Request.Context(), conn, msg)
	})
	switch {
	case err == nil:
	case websocket.IsCloseError(errors.Unwrap(err), websocket.CloseNormalClosure, websocket.CloseGoingAway):
		h.log.Debug("websocket closed by client", zap.String("session_id", sessionID))
	default:
		h.log.Debug("websocket closed", zap.String("session_id", sessionID), zap.Error(err))
	}
}

var errMissingCoordinates = errors.New("position requires numeric lat and lng")

// handleMessage applies one client message. Rejected messages are answered
// with an error notification and keep the connection open.
func (h *WebSocketHandler) handleMessage(ctx context.Context, conn *ws.Conn, msg map[string]any) error {
	sessionID := conn.SessionID()

	var err error
	switch stringField(msg, "type") {
	case wsMessagePosition:
		lat, latOK := msg["lat"].(float64)
		lng, lngOK := msg["lng"].(float64)
		if !latOK || !lngOK {
			err = errMissingCoordinates
			break
		}
		fix := domain.Fix{
			Coordinate:     domain.Coordinate{Lat: lat, Lng: lng},
			AccuracyMeters: floatField(msg, "accuracy_m"),
		}
		if ts := floatField(msg, "timestamp"); ts > 0 {
			fix.Timestamp = time.UnixMilli(int64(ts))
		}
		err = h.tripService.ReportPosition(ctx, sessionID, fix)
	case wsMessagePositionError:
		err = h.tripService.ReportPositionError(ctx, sessionID, stringField(msg, "code"), stringField(msg, "message"))
	case wsMessagePing:
		return conn.Send(gin.H{"type": "pong"})
	default:
		err = errors.New("unknown message type")
	}

	if err == nil {
		return nil
	}
	if errors.Is(err, service.ErrSessionNotFound) {
		// The trip was acknowledged elsewhere; nothing left to stream.
		return err
	}
	return conn.Send(service.Notification{
		Type:      service.NotificationError,
		SessionID: sessionID,
		Warning:   err.Error(),
		CreatedAt: time.Now(),
	})
}

func stringField(msg map[string]any, key string) string {
	s, _ := msg[key].(string)
	return s
}

func floatField(msg map[string]any, key string) float64 {
	f, _ := msg[key].(float64)
	return f
}
