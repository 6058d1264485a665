package ws

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"demand_forecast/internal/model"
	"demand_forecast/internal/predictor"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Source is what the handler reads state from and asks for predictions.
type Source interface {
	State() StatePayload
	PredictDate(ctx context.Context, target model.Target, date time.Time) (predictor.Prediction, error)
}

// Handler manages WebSocket connections. Each client gets a state snapshot
// on connect and may request predictions; results are broadcast by the sink.
type Handler struct {
	hub    *Hub
	source Source
}

func NewHandler(hub *Hub, source Source) *Handler {
	return &Handler{hub: hub, source: source}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("websocket upgrade error: %v", err)
		return
	}

	client := newClient(h.hub, conn)
	client.keepAlive()

	h.hub.Register(client)
	go client.writePump()

	h.sendState(client)
	h.readPump(r.Context(), client)
}

func (h *Handler) readPump(ctx context.Context, c *Client) {
	defer func() {
		h.hub.Unregister(c)
		c.conn.Close()
	}()

	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("websocket read error: %v", err)
			}
			return
		}
		h.handleMessage(ctx, c, msg)
	}
}

func (h *Handler) handleMessage(ctx context.Context, c *Client, msg []byte) {
	var env Envelope
	if err := json.Unmarshal(msg, &env); err != nil {
		log.Printf("invalid message: %v", err)
		h.sendError(c, "invalid message")
		return
	}

	switch env.Type {
	case TypeStateRequest:
		h.sendState(c)

	case TypePredictRequest:
		var p PredictRequestPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			h.sendError(c, "invalid prediction request")
			return
		}
		target, err := model.ParseTarget(p.Target)
		if err != nil {
			h.sendError(c, err.Error())
			return
		}
		date, err := model.ParseDate(p.Date)
		if err != nil {
			h.sendError(c, "invalid date "+p.Date)
			return
		}
		if _, err := h.source.PredictDate(ctx, target, date); err != nil {
			h.sendError(c, err.Error())
		}

	default:
		log.Printf("unknown message type: %s", env.Type)
		h.sendError(c, "unknown message type "+env.Type)
	}
}

func (h *Handler) sendState(c *Client) {
	h.send(c, TypeState, h.source.State())
}

func (h *Handler) sendError(c *Client, message string) {
	h.send(c, TypeError, ErrorPayload{Message: message})
}

func (h *Handler) send(c *Client, msgType string, payload any) {
	msg, err := NewEnvelope(msgType, payload)
	if err != nil {
		log.Printf("error marshaling %s: %v", msgType, err)
		return
	}
	c.trySend(msg)
}
