package ws

import (
	"context"
	"net/http"

	"github.com/coder/websocket"
	"go.uber.org/zap"

	"github.com/GaiaForge/beehive-monitoring/internal/alert"
	"github.com/GaiaForge/beehive-monitoring/internal/learning"
	"github.com/GaiaForge/beehive-monitoring/internal/sampler"
	"github.com/GaiaForge/beehive-monitoring/pkg/hive"
	"github.com/GaiaForge/beehive-monitoring/pkg/plugin"
)

// Handler provides WebSocket endpoints for real-time hive telemetry.
type Handler struct {
	hub    *Hub
	bus    plugin.EventBus
	logger *zap.Logger
}

// Compile-time check that Handler implements the server interface.
var _ interface {
	RegisterRoutes(mux *http.ServeMux)
} = (*Handler)(nil)

// NewHandler creates a WebSocket handler and subscribes to hive events.
func NewHandler(bus plugin.EventBus, logger *zap.Logger) *Handler {
	h := &Handler{
		hub:    NewHub(logger),
		bus:    bus,
		logger: logger,
	}
	h.subscribeToEvents()
	return h
}

// RegisterRoutes registers WebSocket routes on the server mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/ws/stream", h.handleStream)
}

// handleStream upgrades the connection to WebSocket and streams readings,
// anomalies, and alerts as they happen.
func (h *Handler) handleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		// The daemon serves a single apiary on a trusted network.
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.logger.Error("websocket accept failed", zap.Error(err))
		return
	}

	client := &Client{
		conn:   conn,
		remote: r.RemoteAddr,
		send:   make(chan Message, 256),
		logger: h.logger,
	}

	h.hub.Register(client)

	// Run read and write pumps. When either exits, clean up.
	ctx := r.Context()
	done := make(chan struct{})
	go func() {
		client.writePump(ctx)
		close(done)
	}()

	// readPump blocks until client disconnects.
	client.readPump(ctx)

	// Client disconnected -- stop write pump and unregister.
	h.hub.Unregister(client)
	conn.Close(websocket.StatusNormalClosure, "")
	<-done
}

// subscribeToEvents subscribes to sampler, learning, and alert events and
// forwards them to all connected WebSocket clients.
func (h *Handler) subscribeToEvents() {
	if h.bus == nil {
		return
	}

	h.bus.Subscribe(sampler.TopicReadingCollected, func(_ context.Context, event plugin.Event) {
		r, ok := event.Payload.(hive.Reading)
		if !ok {
			return
		}
		h.hub.Broadcast(Message{
			Type:      MessageReading,
			HiveID:    r.HiveID,
			Timestamp: event.Timestamp,
			Data:      ReadingData{Reading: r},
		})
	})

	h.bus.Subscribe(learning.TopicAnomalyDetected, func(_ context.Context, event plugin.Event) {
		a, ok := event.Payload.(*hive.Anomaly)
		if !ok {
			return
		}
		h.hub.Broadcast(Message{
			Type:      MessageAnomalyDetected,
			HiveID:    a.HiveID,
			Timestamp: event.Timestamp,
			Data:      AnomalyData{Anomaly: a},
		})
	})

	h.bus.Subscribe(learning.TopicBaselineEstablished, func(_ context.Context, event plugin.Event) {
		status, ok := event.Payload.(hive.LearningStatus)
		if !ok {
			return
		}
		h.hub.Broadcast(Message{
			Type:      MessageBaselineEstablished,
			Timestamp: event.Timestamp,
			Data:      BaselineEstablishedData{Status: status},
		})
	})

	h.bus.Subscribe(alert.TopicAlertTriggered, func(_ context.Context, event plugin.Event) {
		al, ok := event.Payload.(*alert.Alert)
		if !ok {
			return
		}
		h.hub.Broadcast(Message{
			Type:      MessageAlertTriggered,
			HiveID:    al.HiveID,
			Timestamp: event.Timestamp,
			Data:      al,
		})
	})

	h.bus.Subscribe(alert.TopicAlertResolved, func(_ context.Context, event plugin.Event) {
		al, ok := event.Payload.(*alert.Alert)
		if !ok {
			return
		}
		h.hub.Broadcast(Message{
			Type:      MessageAlertResolved,
			HiveID:    al.HiveID,
			Timestamp: event.Timestamp,
			Data:      al,
		})
	})

	h.logger.Info("subscribed to hive events for WebSocket broadcasting")
}
