// Package worker provides async alert processing off the event bus.
package worker

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// Worker consumes completed-sweep events and persists the high-risk
// anomalies as alerts. Keeping this off the request path means a slow
// database never delays the sweep response.
type Worker struct {
	bus        domain.EventBus
	repo       domain.Repository
	alertScore int

	subscriptions []domain.Subscription
	wg            sync.WaitGroup
	ctx           context.Context
	cancel        context.CancelFunc
}

// Config holds worker configuration.
type Config struct {
	// TenantIDs is the list of tenants to process (empty = global worker).
	TenantIDs []string

	// AlertScore is the minimum anomaly score that becomes an alert.
	AlertScore int
}

// NewWorker creates a new async alert worker.
func NewWorker(bus domain.EventBus, repo domain.Repository, alertScore int) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		bus:        bus,
		repo:       repo,
		alertScore: alertScore,
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Start begins processing sweep events for the given tenants.
func (w *Worker) Start(cfg Config) error {
	if len(cfg.TenantIDs) == 0 {
		return w.startGlobalWorker()
	}

	for _, tenantID := range cfg.TenantIDs {
		if err := w.startTenantWorker(tenantID); err != nil {
			slog.Error("failed to start worker for tenant",
				"tenant_id", tenantID,
				"error", err,
			)
			continue
		}
	}

	slog.Info("workers started",
		"tenant_count", len(cfg.TenantIDs),
	)

	return nil
}

// startGlobalWorker starts a worker that processes all tenants (for testing/dev).
func (w *Worker) startGlobalWorker() error {
	sub, err := w.bus.Subscribe(w.ctx, "_global", domain.TopicSweepCompleted, w.handleMessage)
	if err != nil {
		return err
	}
	w.subscriptions = append(w.subscriptions, sub)

	slog.Info("global worker started")
	return nil
}

// startTenantWorker starts a worker for a specific tenant.
func (w *Worker) startTenantWorker(tenantID string) error {
	sub, err := w.bus.Subscribe(w.ctx, tenantID, domain.TopicSweepCompleted, func(ctx context.Context, msg *domain.Message) error {
		return w.processSweep(ctx, tenantID, msg)
	})
	if err != nil {
		return err
	}
	w.subscriptions = append(w.subscriptions, sub)

	slog.Info("tenant worker started",
		"tenant_id", tenantID,
		"topic", domain.TopicSweepCompleted,
	)

	return nil
}

// handleMessage handles messages from a global subscription.
func (w *Worker) handleMessage(ctx context.Context, msg *domain.Message) error {
	return w.processSweep(ctx, msg.TenantID, msg)
}

// processSweep persists alerts for every anomaly at or above the alert score
// and fans each one out on the alert topic.
func (w *Worker) processSweep(ctx context.Context, tenantID string, msg *domain.Message) error {
	start := time.Now()

	var event domain.SweepEvent
	if err := json.Unmarshal(msg.Payload, &event); err != nil {
		slog.Error("failed to parse sweep event",
			"message_id", msg.ID,
			"error", err,
		)
		return err
	}

	// Use event tenant if provided
	if event.TenantID != "" {
		tenantID = event.TenantID
	}

	slog.Debug("processing sweep event",
		"sweep_id", event.SweepID,
		"tenant_id", tenantID,
		"trace_id", event.TraceID,
	)

	var alertCount int
	for _, anomaly := range event.Summary.Anomalies {
		if anomaly.Score < w.alertScore {
			// Anomalies arrive sorted by score; nothing further qualifies.
			break
		}

		alert := &domain.Alert{
			ID:        uuid.New().String(),
			TenantID:  tenantID,
			SweepID:   event.SweepID,
			DisplayID: anomaly.ID,
			Amount:    anomaly.Amount,
			Score:     anomaly.Score,
			Artifact:  anomaly.Artifact,
			CreatedAt: time.Now().UTC(),
		}

		if w.repo != nil {
			if err := w.repo.SaveAlert(ctx, tenantID, alert); err != nil {
				slog.Error("failed to save alert",
					"sweep_id", event.SweepID,
					"display_id", alert.DisplayID,
					"error", err,
				)
				continue
			}
		}

		payload, _ := json.Marshal(alert)
		if err := w.bus.Publish(ctx, tenantID, domain.TopicAlert, payload); err != nil {
			slog.Error("failed to publish alert",
				"sweep_id", event.SweepID,
				"display_id", alert.DisplayID,
				"error", err,
			)
		}
		alertCount++
	}

	slog.Info("sweep event processed",
		"sweep_id", event.SweepID,
		"tenant_id", tenantID,
		"alerts", alertCount,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return nil
}

// Stop gracefully stops all workers.
func (w *Worker) Stop() error {
	w.cancel()

	// Unsubscribe all
	for _, sub := range w.subscriptions {
		if err := sub.Unsubscribe(); err != nil {
			slog.Error("failed to unsubscribe",
				"topic", sub.Topic(),
				"error", err,
			)
		}
	}
	w.subscriptions = nil

	w.wg.Wait()

	slog.Info("workers stopped")
	return nil
}

// Stats returns worker statistics.
type Stats struct {
	SubscriptionCount int      `json:"subscriptionCount"`
	Topics            []string `json:"topics"`
}

// GetStats returns current worker statistics.
func (w *Worker) GetStats() Stats {
	topics := make([]string, len(w.subscriptions))
	for i, sub := range w.subscriptions {
		topics[i] = sub.Topic()
	}
	return Stats{
		SubscriptionCount: len(w.subscriptions),
		Topics:            topics,
	}
}
