package api

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/ingest"
	"github.com/opensource-finance/kestrel/internal/model"
	"github.com/opensource-finance/kestrel/internal/sweep"
)

// Handler holds dependencies for API handlers.
type Handler struct {
	svc     *sweep.Service
	repo    domain.Repository
	cache   domain.Cache
	bus     domain.EventBus
	forest  *model.Forest
	scoring domain.ScoringConfig
	version string
}

// NewHandler creates a new API handler.
func NewHandler(svc *sweep.Service, repo domain.Repository, cache domain.Cache, bus domain.EventBus, forest *model.Forest, scoring domain.ScoringConfig, version string) *Handler {
	return &Handler{
		svc:     svc,
		repo:    repo,
		cache:   cache,
		bus:     bus,
		forest:  forest,
		scoring: scoring,
		version: version,
	}
}

// Sweep handles POST /sweep: score an uploaded CSV batch and return the
// summary. Accepts either a multipart upload (field "file") or a raw CSV
// body, so both the browser UI and curl pipelines work.
func (h *Handler) Sweep(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	traceID := GetTraceID(ctx)

	body, err := h.readUpload(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": err.Error(),
		})
		return
	}
	if len(body) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "empty upload",
		})
		return
	}

	// Scoring is deterministic per artifact, so an identical batch can be
	// answered from cache.
	sum := sha256.Sum256(body)
	digest := hex.EncodeToString(sum[:])

	if h.cache != nil {
		cached, err := h.cache.GetSummary(ctx, tenantID, digest)
		if err != nil {
			slog.Warn("summary cache read failed", "error", err)
		}
		if cached != nil {
			w.Header().Set("X-Cache", "HIT")
			writeJSON(w, http.StatusOK, cached)
			return
		}
	}

	table, err := ingest.ParseCSV(bytes.NewReader(body))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid CSV: " + err.Error(),
		})
		return
	}

	summary, _, err := h.svc.Run(ctx, table)
	if err != nil {
		slog.Error("sweep failed", "tenant_id", tenantID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "sweep failed",
		})
		return
	}

	sweepID := uuid.New().String()
	record := &domain.Sweep{
		ID:        sweepID,
		TenantID:  tenantID,
		Digest:    digest,
		Summary:   *summary,
		CreatedAt: time.Now().UTC(),
	}

	if h.repo != nil {
		if err := h.repo.SaveSweep(ctx, tenantID, record); err != nil {
			slog.Error("failed to save sweep", "sweep_id", sweepID, "error", err)
			// The response is still valid; persistence is best-effort.
		}
	}

	if h.bus != nil {
		event := &domain.SweepEvent{
			SweepID:   sweepID,
			TenantID:  tenantID,
			TraceID:   traceID,
			Summary:   *summary,
			Timestamp: time.Now().UTC(),
		}
		payload, _ := json.Marshal(event)
		if err := h.bus.Publish(ctx, tenantID, domain.TopicSweepCompleted, payload); err != nil {
			slog.Error("failed to publish sweep event", "sweep_id", sweepID, "error", err)
		}
	}

	if h.cache != nil {
		ttl := time.Duration(h.scoring.SummaryCacheTTL) * time.Second
		if ttl > 0 {
			if err := h.cache.SetSummary(ctx, tenantID, digest, summary, ttl); err != nil {
				slog.Warn("summary cache write failed", "error", err)
			}
		}
	}

	slog.Info("sweep served",
		"sweep_id", sweepID,
		"tenant_id", tenantID,
		"scanned", summary.TotalScanned,
		"found", summary.FoundCount,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	w.Header().Set("X-Sweep-ID", sweepID)
	writeJSON(w, http.StatusOK, summary)
}

// readUpload extracts the CSV payload from a multipart form or raw body.
func (h *Handler) readUpload(r *http.Request) ([]byte, error) {
	ct := r.Header.Get("Content-Type")
	if strings.HasPrefix(ct, "multipart/form-data") {
		file, _, err := r.FormFile("file")
		if err != nil {
			return nil, err
		}
		defer file.Close()
		return io.ReadAll(file)
	}

	return io.ReadAll(r.Body)
}

// GetSweep handles GET /sweeps/{id}.
func (h *Handler) GetSweep(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	sweepID := chi.URLParam(r, "id")

	if sweepID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "sweep id is required",
		})
		return
	}

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	record, err := h.repo.GetSweep(ctx, tenantID, sweepID)
	if err != nil {
		slog.Error("failed to get sweep", "id", sweepID, "error", err)
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "sweep not found",
		})
		return
	}

	writeJSON(w, http.StatusOK, record)
}

// ListSweeps handles GET /sweeps.
func (h *Handler) ListSweeps(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	sweeps, err := h.repo.ListSweeps(ctx, tenantID, queryLimit(r))
	if err != nil {
		slog.Error("failed to list sweeps", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to list sweeps",
		})
		return
	}
	if sweeps == nil {
		sweeps = []*domain.Sweep{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"sweeps": sweeps,
		"count":  len(sweeps),
	})
}

// ListAlerts handles GET /alerts.
func (h *Handler) ListAlerts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	alerts, err := h.repo.ListAlerts(ctx, tenantID, queryLimit(r))
	if err != nil {
		slog.Error("failed to list alerts", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to list alerts",
		})
		return
	}
	if alerts == nil {
		alerts = []*domain.Alert{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"alerts": alerts,
		"count":  len(alerts),
	})
}

// ModelInfo handles GET /model: the loaded artifact's shape and most
// influential features.
func (h *Handler) ModelInfo(w http.ResponseWriter, r *http.Request) {
	if h.forest == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "model not available",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"features":    h.forest.NumFeatures(),
		"trees":       len(h.forest.Trees),
		"threshold":   h.svc.Threshold(),
		"topFeatures": h.forest.TopFeatures(5),
	})
}

// Health returns server health status.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := "healthy"

	// Check repository health
	if h.repo != nil {
		if err := h.repo.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	// Check cache health
	if h.cache != nil {
		if err := h.cache.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  status,
		"version": h.version,
	})
}

// Ready returns whether the server is ready to accept traffic.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"ready": "true",
	})
}

func queryLimit(r *http.Request) int {
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			return n
		}
	}
	return 0
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
