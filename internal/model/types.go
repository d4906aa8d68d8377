package model

import "time"

type ThresholdType string

const (
	ThresholdLessThan    ThresholdType = "less_than"
	ThresholdGreaterThan ThresholdType = "greater_than"
	ThresholdEquals      ThresholdType = "equals"
)

type MetricStatus string

const (
	StatusMet     MetricStatus = "met"
	StatusWarning MetricStatus = "warning"
	StatusFailed  MetricStatus = "failed"
)

type Decision string

const (
	DecisionAccept Decision = "accept"
	DecisionReject Decision = "reject"
)

// SLAMetric is the latest computed value of one named service-quality
// indicator for one org. Keyed by (org_id, metric_name); recomputed on
// every update, last write wins.
type SLAMetric struct {
	OrgID             string        `json:"org_id"`
	MetricName        string        `json:"metric_name"`
	CurrentValue      float64       `json:"current_value"`
	TargetValue       float64       `json:"target_value"`
	ThresholdType     ThresholdType `json:"threshold_type"`
	Status            MetricStatus  `json:"status"`
	MeasurementWindow string        `json:"measurement_window"`
	LastMeasurement   time.Time     `json:"last_measurement"`
}

// AuditEvent explains one accept/reject decision of the detection
// pipeline. Append-only once recorded.
type AuditEvent struct {
	EventID          string             `json:"event_id"`
	OrgID            string             `json:"org_id"`
	CameraID         string             `json:"camera_id,omitempty"`
	DecisionEngine   string             `json:"decision_engine"`
	Scores           map[string]float64 `json:"scores"`
	Thresholds       map[string]float64 `json:"thresholds"`
	SignalsUsed      []string           `json:"signals_used"`
	FinalDecision    Decision           `json:"final_decision"`
	ConfidenceScore  float64            `json:"confidence_score"`
	Explain          map[string]any     `json:"explain"`
	ProcessingTimeMs float64            `json:"processing_time_ms,omitempty"`
	CreatedAt        time.Time          `json:"created_at"`
}

// HealthSample is one raw scalar measurement reported by the camera
// fleet or the detection pipeline.
type HealthSample struct {
	Timestamp time.Time `json:"timestamp"`
	OrgID     string    `json:"org_id"`
	CameraID  string    `json:"camera_id,omitempty"`
	Metric    string    `json:"metric"`
	Value     float64   `json:"value"`
}

type PlatformAlert struct {
	Timestamp time.Time `json:"timestamp"`
	OrgID     string    `json:"org_id"`
	CameraID  string    `json:"camera_id,omitempty"`
	Severity  string    `json:"severity"`
	AlertType string    `json:"alert_type"`
	Resolved  bool      `json:"resolved"`
}

type ReportJob struct {
	Timestamp  time.Time `json:"timestamp"`
	OrgID      string    `json:"org_id"`
	ReportType string    `json:"report_type"`
	Status     string    `json:"status"`
}

const (
	ReportStatusCompleted = "completed"
	ReportStatusFailed    = "failed"
	ReportStatusPending   = "pending"
)

const SeverityCritical = "critical"
