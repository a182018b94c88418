package worker

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/opensource-finance/kestrel/internal/bus"
	"github.com/opensource-finance/kestrel/internal/domain"
)

// memoryRepo records saved alerts for assertions.
type memoryRepo struct {
	mu     sync.Mutex
	alerts []*domain.Alert
}

func (r *memoryRepo) SaveSweep(context.Context, string, *domain.Sweep) error { return nil }
func (r *memoryRepo) GetSweep(context.Context, string, string) (*domain.Sweep, error) {
	return nil, nil
}
func (r *memoryRepo) ListSweeps(context.Context, string, int) ([]*domain.Sweep, error) {
	return nil, nil
}

func (r *memoryRepo) SaveAlert(_ context.Context, tenantID string, alert *domain.Alert) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a := *alert
	a.TenantID = tenantID
	r.alerts = append(r.alerts, &a)
	return nil
}

func (r *memoryRepo) ListAlerts(context.Context, string, int) ([]*domain.Alert, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.alerts, nil
}

func (r *memoryRepo) Ping(context.Context) error { return nil }
func (r *memoryRepo) Close() error               { return nil }

func (r *memoryRepo) saved() []*domain.Alert {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*domain.Alert, len(r.alerts))
	copy(out, r.alerts)
	return out
}

func publishSweep(t *testing.T, b domain.EventBus, tenantID string, event *domain.SweepEvent) {
	t.Helper()
	payload, err := json.Marshal(event)
	if err != nil {
		t.Fatalf("marshal event: %v", err)
	}
	if err := b.Publish(context.Background(), tenantID, domain.TopicSweepCompleted, payload); err != nil {
		t.Fatalf("publish failed: %v", err)
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestWorkerPersistsHighRiskAlerts(t *testing.T) {
	b := bus.NewChannelBus(100)
	defer b.Close()

	repo := &memoryRepo{}
	w := NewWorker(b, repo, 80)
	if err := w.Start(Config{TenantIDs: []string{"tenant-001"}}); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer w.Stop()

	time.Sleep(10 * time.Millisecond)

	publishSweep(t, b, "tenant-001", &domain.SweepEvent{
		SweepID:  "sweep-001",
		TenantID: "tenant-001",
		Summary: domain.Summary{
			FoundCount: 3,
			Anomalies: []domain.Anomaly{
				{ID: "Acme Corp", Amount: "$2,000.00", Score: 95, Artifact: "GROCERY_POS"},
				{ID: "TXN-7200", Amount: "$100.00", Score: 80, Artifact: "V14"},
				{ID: "Globex", Amount: "$10.00", Score: 42, Artifact: "V17"},
			},
		},
		Timestamp: time.Now().UTC(),
	})

	waitFor(t, func() bool { return len(repo.saved()) == 2 })

	alerts := repo.saved()
	if alerts[0].DisplayID != "Acme Corp" || alerts[0].Score != 95 {
		t.Errorf("unexpected first alert: %+v", alerts[0])
	}
	if alerts[1].Score != 80 {
		t.Errorf("score equal to alert threshold must qualify, got %+v", alerts[1])
	}
	for _, a := range alerts {
		if a.SweepID != "sweep-001" {
			t.Errorf("expected sweep id carried through, got %q", a.SweepID)
		}
		if a.TenantID != "tenant-001" {
			t.Errorf("expected tenant carried through, got %q", a.TenantID)
		}
		if a.ID == "" {
			t.Error("expected generated alert id")
		}
	}
}

func TestWorkerFansOutAlertTopic(t *testing.T) {
	b := bus.NewChannelBus(100)
	defer b.Close()

	var mu sync.Mutex
	var published []domain.Alert
	_, err := b.Subscribe(context.Background(), "tenant-001", domain.TopicAlert, func(_ context.Context, msg *domain.Message) error {
		var a domain.Alert
		if err := json.Unmarshal(msg.Payload, &a); err != nil {
			return err
		}
		mu.Lock()
		published = append(published, a)
		mu.Unlock()
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	w := NewWorker(b, &memoryRepo{}, 80)
	if err := w.Start(Config{TenantIDs: []string{"tenant-001"}}); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer w.Stop()

	time.Sleep(10 * time.Millisecond)

	publishSweep(t, b, "tenant-001", &domain.SweepEvent{
		SweepID:  "sweep-002",
		TenantID: "tenant-001",
		Summary: domain.Summary{
			Anomalies: []domain.Anomaly{
				{ID: "TXN-1", Amount: "$50.00", Score: 90, Artifact: "V14"},
			},
		},
	})

	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(published) == 1
	})

	mu.Lock()
	defer mu.Unlock()
	if published[0].DisplayID != "TXN-1" || published[0].Score != 90 {
		t.Errorf("unexpected published alert: %+v", published[0])
	}
}

func TestWorkerIgnoresLowScores(t *testing.T) {
	b := bus.NewChannelBus(100)
	defer b.Close()

	repo := &memoryRepo{}
	w := NewWorker(b, repo, 80)
	if err := w.Start(Config{TenantIDs: []string{"tenant-001"}}); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer w.Stop()

	time.Sleep(10 * time.Millisecond)

	publishSweep(t, b, "tenant-001", &domain.SweepEvent{
		SweepID:  "sweep-003",
		TenantID: "tenant-001",
		Summary: domain.Summary{
			Anomalies: []domain.Anomaly{
				{ID: "TXN-1", Amount: "$5.00", Score: 42, Artifact: "V17"},
			},
		},
	})

	// Give the worker time to consume before asserting nothing was saved.
	time.Sleep(100 * time.Millisecond)

	if len(repo.saved()) != 0 {
		t.Errorf("expected no alerts below threshold, got %d", len(repo.saved()))
	}
}

func TestWorkerStats(t *testing.T) {
	b := bus.NewChannelBus(100)
	defer b.Close()

	w := NewWorker(b, &memoryRepo{}, 80)
	if err := w.Start(Config{TenantIDs: []string{"tenant-001", "tenant-002"}}); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer w.Stop()

	stats := w.GetStats()
	if stats.SubscriptionCount != 2 {
		t.Errorf("expected 2 subscriptions, got %d", stats.SubscriptionCount)
	}
}
