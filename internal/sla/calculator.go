package sla

import (
	"time"

	"visionsla/internal/model"
	"visionsla/internal/storage"
)

// Inputs holds the raw aggregates one update reads from storage. The
// calculator itself is pure; collection and persistence live in the
// Updater.
type Inputs struct {
	HealthAverages map[string]float64
	Alerts         storage.AlertCounts
	Reports        storage.ReportCounts
}

// Compute derives the nine metrics for one org from the collected
// aggregates. len(result) == len(Definitions) always.
func Compute(orgID string, in Inputs, window time.Duration, now time.Time) []model.SLAMetric {
	out := make([]model.SLAMetric, 0, len(Definitions))
	for _, def := range Definitions {
		value := currentValue(def, in)
		out = append(out, model.SLAMetric{
			OrgID:             orgID,
			MetricName:        def.Name,
			CurrentValue:      value,
			TargetValue:       def.Target,
			ThresholdType:     def.ThresholdType,
			Status:            Classify(def, value),
			MeasurementWindow: window.String(),
			LastMeasurement:   now.UTC(),
		})
	}
	return out
}

func currentValue(def Definition, in Inputs) float64 {
	switch def.Source {
	case SourceHealthMean:
		if v, ok := in.HealthAverages[def.HealthMetric]; ok {
			return v
		}
		return def.Fallback
	case SourceAlertCount:
		if def.CriticalOnly {
			return float64(in.Alerts.Critical)
		}
		return float64(in.Alerts.Unresolved)
	case SourceReportRate:
		finished := in.Reports.Completed + in.Reports.Failed
		if finished == 0 {
			return def.Fallback
		}
		return float64(in.Reports.Completed) / float64(finished) * 100
	default:
		return 0
	}
}

// Classify maps a current value against its definition's target into
// met/warning/failed. The warning band applies only to less-than
// metrics that declare a WarningFactor: values past the target but
// under Target*WarningFactor degrade to warning instead of failed.
func Classify(def Definition, value float64) model.MetricStatus {
	switch def.ThresholdType {
	case model.ThresholdLessThan:
		if value < def.Target {
			return model.StatusMet
		}
		if def.WarningFactor > 1 && value < def.Target*def.WarningFactor {
			return model.StatusWarning
		}
		return model.StatusFailed
	case model.ThresholdGreaterThan:
		if value > def.Target {
			return model.StatusMet
		}
		return model.StatusFailed
	case model.ThresholdEquals:
		if value == def.Target {
			return model.StatusMet
		}
		return model.StatusFailed
	default:
		return model.StatusFailed
	}
}
