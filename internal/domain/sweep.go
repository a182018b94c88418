package domain

import (
	"time"
)

// Anomaly is one flagged transaction in presentation form.
type Anomaly struct {
	ID       string `json:"id"`
	Amount   string `json:"amount"`
	Score    int    `json:"score"`
	Artifact string `json:"artifact"`
}

// Summary is the aggregate result of one sweep. It is the response payload
// for POST /sweep.
type Summary struct {
	TotalScanned  int       `json:"totalScanned"`
	FoundCount    int       `json:"foundCount"`
	TotalExposure float64   `json:"totalExposure"`
	AvgExposure   float64   `json:"avgExposure"`
	Anomalies     []Anomaly `json:"anomalies"`
}

// Sweep is a persisted sweep run: the summary plus identifying metadata.
type Sweep struct {
	ID        string    `json:"id"`
	TenantID  string    `json:"tenantId"`
	Digest    string    `json:"digest"` // SHA-256 of the uploaded batch
	Summary   Summary   `json:"summary"`
	CreatedAt time.Time `json:"createdAt"`
}

// Alert is a high-risk anomaly persisted by the async worker for follow-up.
type Alert struct {
	ID        string    `json:"id"`
	TenantID  string    `json:"tenantId"`
	SweepID   string    `json:"sweepId"`
	DisplayID string    `json:"displayId"`
	Amount    string    `json:"amount"`
	Score     int       `json:"score"`
	Artifact  string    `json:"artifact"`
	CreatedAt time.Time `json:"createdAt"`
}

// SweepEvent is the bus payload published when a sweep completes.
type SweepEvent struct {
	SweepID   string    `json:"sweepId"`
	TenantID  string    `json:"tenantId"`
	TraceID   string    `json:"traceId"`
	Summary   Summary   `json:"summary"`
	Timestamp time.Time `json:"timestamp"`
}
