package sla

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"visionsla/internal/config"
	"visionsla/internal/model"
	"visionsla/internal/snapshot"
	"visionsla/internal/storage"
	"visionsla/internal/telemetry"
)

// Updater runs one collect-compute-persist cycle per request. It holds
// no per-org state; the snapshot store only caches the latest result.
type Updater struct {
	cfg    *config.Manager
	store  storage.Store
	snap   *snapshot.Store
	logger *slog.Logger
}

type Summary struct {
	MetricsUpdated    int       `json:"metrics_updated"`
	OverallCompliance float64   `json:"overall_compliance"`
	FailedMetrics     []string  `json:"failed_metrics"`
	Timestamp         time.Time `json:"timestamp"`
}

func NewUpdater(cfg *config.Manager, store storage.Store, snap *snapshot.Store, logger *slog.Logger) *Updater {
	return &Updater{cfg: cfg, store: store, snap: snap, logger: logger}
}

// Update recomputes and persists all nine metrics for one org. Any
// collection error aborts the whole run with no metrics written, so an
// empty result means "no update performed", never "all failed".
func (u *Updater) Update(ctx context.Context, orgID string) (Summary, []model.SLAMetric, error) {
	started := time.Now()
	summary, metrics, err := u.update(ctx, orgID)
	outcome := telemetry.OutcomeSuccess
	if err != nil {
		outcome = telemetry.OutcomeError
	}
	telemetry.ObserveSLAUpdate(time.Since(started), outcome)
	return summary, metrics, err
}

func (u *Updater) update(ctx context.Context, orgID string) (Summary, []model.SLAMetric, error) {
	if orgID == "" {
		return Summary{}, nil, fmt.Errorf("orgId is required")
	}
	cfg := u.cfg.Get()
	now := time.Now().UTC()
	since := now.Add(-cfg.SLA.Lookback.Std())

	averages, err := u.store.HealthAverages(ctx, orgID, since)
	if err != nil {
		return Summary{}, nil, fmt.Errorf("collect health averages: %w", err)
	}
	alertCounts, err := u.store.CountAlerts(ctx, orgID, since)
	if err != nil {
		return Summary{}, nil, fmt.Errorf("collect alerts: %w", err)
	}
	reportCounts, err := u.store.CountReportJobs(ctx, orgID, since)
	if err != nil {
		return Summary{}, nil, fmt.Errorf("collect report jobs: %w", err)
	}

	metrics := Compute(orgID, Inputs{
		HealthAverages: averages,
		Alerts:         alertCounts,
		Reports:        reportCounts,
	}, cfg.SLA.Lookback.Std(), now)

	if err := u.store.UpsertSLAMetrics(ctx, metrics); err != nil {
		return Summary{}, nil, fmt.Errorf("persist metrics: %w", err)
	}
	if u.snap != nil {
		u.snap.Update(orgID, metrics)
	}

	summary := Summarize(metrics, now)
	if u.logger != nil {
		u.logger.Info("sla updated",
			"org_id", orgID,
			"metrics_updated", summary.MetricsUpdated,
			"overall_compliance", summary.OverallCompliance,
			"failed_metrics", summary.FailedMetrics,
		)
	}
	return summary, metrics, nil
}

// Summarize reduces a metric batch to the response shape of update_sla.
// OverallCompliance counts only status met; warning is non-compliant
// but not listed under failed_metrics.
func Summarize(metrics []model.SLAMetric, now time.Time) Summary {
	summary := Summary{
		MetricsUpdated: len(metrics),
		FailedMetrics:  []string{},
		Timestamp:      now.UTC(),
	}
	if len(metrics) == 0 {
		return summary
	}
	met := 0
	for _, m := range metrics {
		switch m.Status {
		case model.StatusMet:
			met++
		case model.StatusFailed:
			summary.FailedMetrics = append(summary.FailedMetrics, m.MetricName)
		}
	}
	summary.OverallCompliance = float64(met) / float64(len(metrics)) * 100
	return summary
}
