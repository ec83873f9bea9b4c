package alert

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/GaiaForge/beehive-monitoring/internal/store"
	"github.com/GaiaForge/beehive-monitoring/pkg/hive"
)

func testAlertStore(t *testing.T) *AlertStore {
	t.Helper()
	s, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	if err := s.Migrate(context.Background(), "alert", migrations()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return NewAlertStore(s.DB())
}

// notifyRecorder captures dispatched notifications.
type notifyRecorder struct {
	mu     sync.Mutex
	events []string // "condition:eventType"
}

func (n *notifyRecorder) record(a *Alert, eventType string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, a.Condition+":"+eventType)
}

func (n *notifyRecorder) list() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.events...)
}

func testAlerter(t *testing.T) (*Alerter, *notifyRecorder) {
	t.Helper()
	rec := &notifyRecorder{}
	a := NewAlerter(testAlertStore(t), nil, DefaultConfig(), rec.record, zap.NewNop())
	return a, rec
}

func defaultThresholds() hive.Thresholds {
	return hive.Thresholds{
		Temperature: hive.Range{Low: 30, High: 38},
		Humidity:    hive.Range{Low: 50, High: 70},
	}
}

func reading(temp, hum, volt float64) hive.Reading {
	return hive.Reading{
		HiveID:      "hive-1",
		Temperature: temp,
		Humidity:    hum,
		BatteryVolt: volt,
		Timestamp:   time.Now(),
	}
}

func TestAlerterRequiresConsecutiveBreaches(t *testing.T) {
	a, _ := testAlerter(t)
	ctx := context.Background()
	th := defaultThresholds()

	// Two hot readings: below the trigger threshold of three.
	a.ProcessReading(ctx, reading(39.5, 60, 4.0), th)
	a.ProcessReading(ctx, reading(39.5, 60, 4.0), th)
	if al, _ := a.store.GetActiveAlert(ctx, CondTempHigh); al != nil {
		t.Fatal("alert triggered before threshold")
	}

	a.ProcessReading(ctx, reading(39.5, 60, 4.0), th)
	al, err := a.store.GetActiveAlert(ctx, CondTempHigh)
	if err != nil {
		t.Fatalf("GetActiveAlert: %v", err)
	}
	if al == nil {
		t.Fatal("no alert after three consecutive breaches")
	}
	if al.Severity != SeverityWarning || al.Value != 39.5 {
		t.Fatalf("unexpected alert: %+v", al)
	}
}

func TestAlerterGlitchResetsCounter(t *testing.T) {
	a, _ := testAlerter(t)
	ctx := context.Background()
	th := defaultThresholds()

	a.ProcessReading(ctx, reading(39.5, 60, 4.0), th)
	a.ProcessReading(ctx, reading(39.5, 60, 4.0), th)
	a.ProcessReading(ctx, reading(35.0, 60, 4.0), th) // recovery resets
	a.ProcessReading(ctx, reading(39.5, 60, 4.0), th)
	a.ProcessReading(ctx, reading(39.5, 60, 4.0), th)

	if al, _ := a.store.GetActiveAlert(ctx, CondTempHigh); al != nil {
		t.Fatal("glitch did not reset the breach counter")
	}
}

func TestAlerterResolvesOnRecovery(t *testing.T) {
	a, rec := testAlerter(t)
	ctx := context.Background()
	th := defaultThresholds()

	for i := 0; i < 3; i++ {
		a.ProcessReading(ctx, reading(25.0, 60, 4.0), th)
	}
	if al, _ := a.store.GetActiveAlert(ctx, CondTempLow); al == nil {
		t.Fatal("cold alert not triggered")
	}

	a.ProcessReading(ctx, reading(34.0, 60, 4.0), th)
	if al, _ := a.store.GetActiveAlert(ctx, CondTempLow); al != nil {
		t.Fatal("cold alert not resolved on recovery")
	}

	events := rec.list()
	if len(events) != 2 || events[0] != CondTempLow+":triggered" || events[1] != CondTempLow+":resolved" {
		t.Fatalf("notification sequence = %v", events)
	}
}

func TestAlerterNoDuplicateActiveAlert(t *testing.T) {
	a, rec := testAlerter(t)
	ctx := context.Background()
	th := defaultThresholds()

	for i := 0; i < 6; i++ {
		a.ProcessReading(ctx, reading(60, 85, 4.0), th)
	}

	alerts, err := a.store.ListAlerts(ctx, true, 10)
	if err != nil {
		t.Fatalf("ListAlerts: %v", err)
	}
	// temperature_high and humidity_high, one each.
	if len(alerts) != 2 {
		t.Fatalf("active alerts = %d, want 2", len(alerts))
	}
	if len(rec.list()) != 2 {
		t.Fatalf("notifications = %v, want one per condition", rec.list())
	}
}

func TestAlerterBatteryCriticalImmediate(t *testing.T) {
	a, _ := testAlerter(t)
	ctx := context.Background()

	// A single critically low reading triggers without the filter.
	a.ProcessReading(ctx, reading(35, 60, 3.1), defaultThresholds())
	al, _ := a.store.GetActiveAlert(ctx, CondBatteryCritical)
	if al == nil {
		t.Fatal("critical battery did not trigger immediately")
	}
	if al.Severity != SeverityCritical {
		t.Fatalf("severity = %s, want critical", al.Severity)
	}
}

func TestAlerterBatteryLowFiltered(t *testing.T) {
	a, _ := testAlerter(t)
	ctx := context.Background()
	th := defaultThresholds()

	a.ProcessReading(ctx, reading(35, 60, 3.4), th)
	if al, _ := a.store.GetActiveAlert(ctx, CondBatteryLow); al != nil {
		t.Fatal("low battery triggered on first reading")
	}
	a.ProcessReading(ctx, reading(35, 60, 3.4), th)
	a.ProcessReading(ctx, reading(35, 60, 3.4), th)
	if al, _ := a.store.GetActiveAlert(ctx, CondBatteryLow); al == nil {
		t.Fatal("low battery not triggered after three readings")
	}
}

func TestAlerterAnomalyTriggersAndQuiesces(t *testing.T) {
	a, _ := testAlerter(t)
	ctx := context.Background()

	old := anomalyQuietPeriod
	anomalyQuietPeriod = 10 * time.Millisecond
	t.Cleanup(func() { anomalyQuietPeriod = old })

	a.ProcessAnomaly(ctx, &hive.Anomaly{
		HiveID:  "hive-1",
		Channel: hive.ChannelWeight,
		Value:   36.0, Expected: 40.0, Deviation: -8.0,
	})
	al, _ := a.store.GetActiveAlert(ctx, CondWeightAnomaly)
	if al == nil {
		t.Fatal("weight anomaly did not trigger an alert")
	}
	if al.Severity != SeverityCritical {
		t.Fatalf("severity = %s, want critical", al.Severity)
	}

	// After the quiet period a normal reading resolves it.
	time.Sleep(20 * time.Millisecond)
	a.ProcessReading(ctx, reading(35, 60, 4.0), defaultThresholds())
	if al, _ := a.store.GetActiveAlert(ctx, CondWeightAnomaly); al != nil {
		t.Fatal("anomaly alert not resolved after quiet period")
	}
}
