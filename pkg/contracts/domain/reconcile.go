package domain

import "time"

// HitStatus is the pull state derived for a manufacturing order
type HitStatus string

const (
	HitCompleted HitStatus = "Completed"
	HitPulled    HitStatus = "Pulled"
	HitNotPulled HitStatus = "Not Pulled"
)

// HitStatuses lists every status in display order
var HitStatuses = []HitStatus{HitCompleted, HitPulled, HitNotPulled}

// Valid reports whether s is a known status
func (s HitStatus) Valid() bool {
	switch s {
	case HitCompleted, HitPulled, HitNotPulled:
		return true
	}
	return false
}

// StageID names a reconciliation stage
type StageID string

const (
	StageZQM StageID = "zqm"
	StagePMR StageID = "pmr"
	StageSOH StageID = "soh"
)

// StageStatus is the lifecycle state of a stage
type StageStatus string

const (
	StageStatusPending   StageStatus = "pending"
	StageStatusActive    StageStatus = "active"
	StageStatusCompleted StageStatus = "completed"
	StageStatusFailed    StageStatus = "failed"
)

// Warning is a recoverable problem reported alongside a result
type Warning struct {
	Stage   string                 `json:"stage,omitempty"`
	Type    string                 `json:"type"`
	Message string                 `json:"message"`
	Context map[string]interface{} `json:"context,omitempty"`
}

// ReconcileSummary describes one reconciliation result
type ReconcileSummary struct {
	ZQMRows         int               `json:"zqm_rows"`
	ZQMFilteredRows int               `json:"zqm_filtered_rows"`
	PMRRows         int               `json:"pmr_rows"`
	MasterRows      int               `json:"master_rows"`
	SOHRows         int               `json:"soh_rows"`
	SOHFilteredRows int               `json:"soh_filtered_rows"`
	Orders          int               `json:"orders"`
	Hits            map[HitStatus]int `json:"hits"`
	Unclassified    int               `json:"unclassified_rows"`
	AmbiguousOrders []string          `json:"ambiguous_orders,omitempty"`
	Warnings        []Warning         `json:"warnings,omitempty"`
}

// StageSummary is the externally visible state of one session stage
type StageSummary struct {
	ID          StageID     `json:"id"`
	Status      StageStatus `json:"status"`
	FileName    string      `json:"file_name,omitempty"`
	Rows        int         `json:"rows"`
	StartedAt   *time.Time  `json:"started_at,omitempty"`
	CompletedAt *time.Time  `json:"completed_at,omitempty"`
	Error       string      `json:"error,omitempty"`
	Message     string      `json:"message,omitempty"`
}

// SessionSummary is the response body for session endpoints
type SessionSummary struct {
	ID        string            `json:"id"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
	ExpiresAt time.Time         `json:"expires_at"`
	Stages    []StageSummary    `json:"stages"`
	Ready     bool              `json:"ready"`
	Result    *ReconcileSummary `json:"result,omitempty"`
	Warnings  []Warning         `json:"warnings,omitempty"`
}

// StageResult is the response body of a stage upload
type StageResult struct {
	SessionID  string            `json:"session_id"`
	Stage      StageID           `json:"stage"`
	FileName   string            `json:"file_name"`
	InputRows  int               `json:"input_rows"`
	OutputRows int               `json:"output_rows"`
	Message    string            `json:"message"`
	Hits       map[HitStatus]int `json:"hits,omitempty"`
	Warnings   []Warning         `json:"warnings,omitempty"`
	Session    SessionSummary    `json:"session"`
}
