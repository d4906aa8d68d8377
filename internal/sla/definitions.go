package sla

import "visionsla/internal/model"

// Source selects where a metric's current value comes from.
type Source int

const (
	// SourceHealthMean averages matching health_samples rows, with a
	// fallback constant when the window holds none.
	SourceHealthMean Source = iota
	// SourceAlertCount counts unresolved platform_alerts rows.
	SourceAlertCount
	// SourceReportRate derives a percentage from finished report jobs.
	SourceReportRate
	// SourceZero is a placeholder for feeds not wired into the
	// pipeline yet; the value is always 0.
	SourceZero
)

type Definition struct {
	Name          string
	Source        Source
	HealthMetric  string  // health_samples.metric to average, for SourceHealthMean
	Fallback      float64 // value when no rows match
	Target        float64
	ThresholdType model.ThresholdType
	// WarningFactor > 1 opens a warning band between Target and
	// Target*WarningFactor for less-than metrics. Zero disables it.
	WarningFactor float64
	CriticalOnly  bool // for SourceAlertCount: restrict to severity critical
}

// Definitions lists the nine service-quality indicators, evaluated in
// this order on every update.
var Definitions = []Definition{
	{
		Name:          "detection_latency_p95_ms",
		Source:        SourceHealthMean,
		HealthMetric:  "detection_latency_ms",
		Fallback:      85,
		Target:        120,
		ThresholdType: model.ThresholdLessThan,
		WarningFactor: 1.25,
	},
	{
		Name:          "e2e_alert_latency_ms",
		Source:        SourceHealthMean,
		HealthMetric:  "e2e_alert_latency_ms",
		Fallback:      2400,
		Target:        3000,
		ThresholdType: model.ThresholdLessThan,
		WarningFactor: 1.33,
	},
	{
		Name:          "camera_uptime_pct",
		Source:        SourceHealthMean,
		HealthMetric:  "camera_uptime_pct",
		Fallback:      100,
		Target:        99.5,
		ThresholdType: model.ThresholdGreaterThan,
	},
	{
		Name:          "stream_health_pct",
		Source:        SourceHealthMean,
		HealthMetric:  "stream_health_pct",
		Fallback:      100,
		Target:        98,
		ThresholdType: model.ThresholdGreaterThan,
	},
	{
		Name:          "critical_alerts_count",
		Source:        SourceAlertCount,
		CriticalOnly:  true,
		Target:        0,
		ThresholdType: model.ThresholdEquals,
	},
	{
		Name:          "unresolved_alerts_count",
		Source:        SourceAlertCount,
		Target:        10,
		ThresholdType: model.ThresholdLessThan,
	},
	{
		Name:          "report_success_rate_pct",
		Source:        SourceReportRate,
		Fallback:      100,
		Target:        95,
		ThresholdType: model.ThresholdGreaterThan,
	},
	{
		Name:          "frame_drop_rate_pct",
		Source:        SourceZero,
		Target:        1,
		ThresholdType: model.ThresholdLessThan,
	},
	{
		Name:          "missed_incidents_count",
		Source:        SourceZero,
		Target:        0,
		ThresholdType: model.ThresholdEquals,
	},
}
