package ws

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/GaiaForge/beehive-monitoring/internal/alert"
	"github.com/GaiaForge/beehive-monitoring/internal/event"
	"github.com/GaiaForge/beehive-monitoring/internal/learning"
	"github.com/GaiaForge/beehive-monitoring/internal/sampler"
	"github.com/GaiaForge/beehive-monitoring/pkg/hive"
	"github.com/GaiaForge/beehive-monitoring/pkg/plugin"
)

// newTestHandler wires a handler to a synchronous bus and registers one
// direct hub client standing in for a connected socket.
func newTestHandler(t *testing.T) (*Handler, *event.Bus, *Client) {
	t.Helper()
	bus := event.NewBus(zap.NewNop())
	h := NewHandler(bus, zap.NewNop())
	client := newTestClient("10.0.0.1:1111")
	h.hub.Register(client)
	return h, bus, client
}

func receive(t *testing.T, client *Client) Message {
	t.Helper()
	select {
	case msg := <-client.send:
		return msg
	case <-time.After(100 * time.Millisecond):
		t.Fatal("client did not receive message")
		return Message{}
	}
}

func TestHandlerForwardsReadings(t *testing.T) {
	_, bus, client := newTestHandler(t)

	r := hive.Reading{HiveID: "hive-1", Temperature: 35.2, Timestamp: time.Now()}
	bus.Publish(context.Background(), plugin.Event{
		Topic:     sampler.TopicReadingCollected,
		Source:    "sampler",
		Timestamp: r.Timestamp,
		Payload:   r,
	})

	msg := receive(t, client)
	if msg.Type != MessageReading {
		t.Errorf("Type = %v, want %v", msg.Type, MessageReading)
	}
	if msg.HiveID != "hive-1" {
		t.Errorf("HiveID = %q, want hive-1", msg.HiveID)
	}
	data, ok := msg.Data.(ReadingData)
	if !ok {
		t.Fatalf("Data type = %T, want ReadingData", msg.Data)
	}
	if data.Reading.Temperature != 35.2 {
		t.Errorf("temperature = %v, want 35.2", data.Reading.Temperature)
	}
}

func TestHandlerForwardsAnomalies(t *testing.T) {
	_, bus, client := newTestHandler(t)

	bus.Publish(context.Background(), plugin.Event{
		Topic:   learning.TopicAnomalyDetected,
		Source:  "learning",
		Payload: &hive.Anomaly{HiveID: "hive-1", Channel: hive.ChannelAudio, Band: 2},
	})

	msg := receive(t, client)
	if msg.Type != MessageAnomalyDetected {
		t.Errorf("Type = %v, want %v", msg.Type, MessageAnomalyDetected)
	}
	data, ok := msg.Data.(AnomalyData)
	if !ok {
		t.Fatalf("Data type = %T, want AnomalyData", msg.Data)
	}
	if data.Anomaly.Channel != hive.ChannelAudio || data.Anomaly.Band != 2 {
		t.Errorf("anomaly = %+v", data.Anomaly)
	}
}

func TestHandlerForwardsAlertLifecycle(t *testing.T) {
	_, bus, client := newTestHandler(t)

	al := &alert.Alert{ID: "a1", HiveID: "hive-1", Condition: alert.CondTempHigh}
	bus.Publish(context.Background(), plugin.Event{
		Topic: alert.TopicAlertTriggered, Source: "alert", Payload: al,
	})
	if msg := receive(t, client); msg.Type != MessageAlertTriggered {
		t.Errorf("Type = %v, want %v", msg.Type, MessageAlertTriggered)
	}

	bus.Publish(context.Background(), plugin.Event{
		Topic: alert.TopicAlertResolved, Source: "alert", Payload: al,
	})
	if msg := receive(t, client); msg.Type != MessageAlertResolved {
		t.Errorf("Type = %v, want %v", msg.Type, MessageAlertResolved)
	}
}

func TestHandlerForwardsBaselineEstablished(t *testing.T) {
	_, bus, client := newTestHandler(t)

	bus.Publish(context.Background(), plugin.Event{
		Topic:   learning.TopicBaselineEstablished,
		Source:  "learning",
		Payload: hive.LearningStatus{BaselineEstablished: true, Progress: 100},
	})

	msg := receive(t, client)
	if msg.Type != MessageBaselineEstablished {
		t.Errorf("Type = %v, want %v", msg.Type, MessageBaselineEstablished)
	}
	data, ok := msg.Data.(BaselineEstablishedData)
	if !ok {
		t.Fatalf("Data type = %T, want BaselineEstablishedData", msg.Data)
	}
	if !data.Status.BaselineEstablished || data.Status.Progress != 100 {
		t.Errorf("status = %+v", data.Status)
	}
}

func TestHandlerIgnoresMalformedPayloads(t *testing.T) {
	_, bus, client := newTestHandler(t)

	bus.Publish(context.Background(), plugin.Event{
		Topic: sampler.TopicReadingCollected, Payload: "garbage",
	})
	bus.Publish(context.Background(), plugin.Event{
		Topic: learning.TopicAnomalyDetected, Payload: 42,
	})

	select {
	case msg := <-client.send:
		t.Errorf("unexpected message %+v for malformed payload", msg)
	case <-time.After(50 * time.Millisecond):
	}
}
