package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"visionsla/internal/config"
	"visionsla/internal/model"
)

func newTestStore(t *testing.T) Store {
	t.Helper()
	dsn := "file:" + filepath.Join(t.TempDir(), "test.db")
	store, err := NewSQLite(dsn)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	if err := store.Init(context.Background()); err != nil {
		t.Fatalf("init schema: %v", err)
	}
	return store
}

func TestNewStoreDriverSelection(t *testing.T) {
	if _, err := NewStore(config.StorageConfig{Driver: "oracle"}); err == nil {
		t.Fatalf("expected error for unsupported driver")
	}
	store, err := NewStore(config.StorageConfig{Driver: "sqlite", DSN: "file:" + filepath.Join(t.TempDir(), "sel.db")})
	if err != nil {
		t.Fatalf("sqlite store: %v", err)
	}
	_ = store.Close()
}

func TestHealthAverages(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	for _, v := range []float64{100, 120, 140} {
		err := store.SaveHealthSample(ctx, model.HealthSample{
			Timestamp: now.Add(-time.Hour), OrgID: "org-1", CameraID: "cam-1",
			Metric: "detection_latency_ms", Value: v,
		})
		if err != nil {
			t.Fatalf("save sample: %v", err)
		}
	}
	// outside the window
	err := store.SaveHealthSample(ctx, model.HealthSample{
		Timestamp: now.Add(-48 * time.Hour), OrgID: "org-1",
		Metric: "detection_latency_ms", Value: 9999,
	})
	if err != nil {
		t.Fatalf("save sample: %v", err)
	}
	// other org
	err = store.SaveHealthSample(ctx, model.HealthSample{
		Timestamp: now.Add(-time.Hour), OrgID: "org-2",
		Metric: "detection_latency_ms", Value: 5,
	})
	if err != nil {
		t.Fatalf("save sample: %v", err)
	}

	avgs, err := store.HealthAverages(ctx, "org-1", now.Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("averages: %v", err)
	}
	if got := avgs["detection_latency_ms"]; got != 120 {
		t.Fatalf("avg: got %f want 120", got)
	}
}

func TestCountAlerts(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	alerts := []model.PlatformAlert{
		{Timestamp: now.Add(-time.Hour), OrgID: "org-1", Severity: "critical", AlertType: "camera_offline"},
		{Timestamp: now.Add(-time.Hour), OrgID: "org-1", Severity: "warning", AlertType: "stream_degraded"},
		{Timestamp: now.Add(-time.Hour), OrgID: "org-1", Severity: "critical", AlertType: "camera_offline", Resolved: true},
		{Timestamp: now.Add(-48 * time.Hour), OrgID: "org-1", Severity: "critical", AlertType: "camera_offline"},
	}
	for _, a := range alerts {
		if err := store.SaveAlert(ctx, a); err != nil {
			t.Fatalf("save alert: %v", err)
		}
	}

	counts, err := store.CountAlerts(ctx, "org-1", now.Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("count alerts: %v", err)
	}
	if counts.Critical != 1 {
		t.Fatalf("critical: got %d want 1", counts.Critical)
	}
	if counts.Unresolved != 2 {
		t.Fatalf("unresolved: got %d want 2", counts.Unresolved)
	}
}

func TestCountReportJobs(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	jobs := []model.ReportJob{
		{Timestamp: now.Add(-time.Hour), OrgID: "org-1", ReportType: "daily", Status: model.ReportStatusCompleted},
		{Timestamp: now.Add(-time.Hour), OrgID: "org-1", ReportType: "daily", Status: model.ReportStatusCompleted},
		{Timestamp: now.Add(-time.Hour), OrgID: "org-1", ReportType: "daily", Status: model.ReportStatusFailed},
		{Timestamp: now.Add(-time.Hour), OrgID: "org-1", ReportType: "daily", Status: model.ReportStatusPending},
	}
	for _, j := range jobs {
		if err := store.SaveReportJob(ctx, j); err != nil {
			t.Fatalf("save job: %v", err)
		}
	}

	counts, err := store.CountReportJobs(ctx, "org-1", now.Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("count jobs: %v", err)
	}
	if counts.Completed != 2 || counts.Failed != 1 {
		t.Fatalf("counts: %+v", counts)
	}
}

func TestUpsertSLAMetricsIdempotent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	first := time.Now().UTC().Add(-time.Minute)

	batch := []model.SLAMetric{
		{OrgID: "org-1", MetricName: "camera_uptime_pct", CurrentValue: 99.9, TargetValue: 99.5,
			ThresholdType: model.ThresholdGreaterThan, Status: model.StatusMet,
			MeasurementWindow: "24h0m0s", LastMeasurement: first},
		{OrgID: "org-1", MetricName: "critical_alerts_count", CurrentValue: 0, TargetValue: 0,
			ThresholdType: model.ThresholdEquals, Status: model.StatusMet,
			MeasurementWindow: "24h0m0s", LastMeasurement: first},
	}
	if err := store.UpsertSLAMetrics(ctx, batch); err != nil {
		t.Fatalf("first upsert: %v", err)
	}

	second := time.Now().UTC()
	for i := range batch {
		batch[i].LastMeasurement = second
	}
	if err := store.UpsertSLAMetrics(ctx, batch); err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	rows, err := store.ListSLAMetrics(ctx, "org-1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("upsert must not duplicate rows: got %d", len(rows))
	}
	for _, m := range rows {
		if !m.LastMeasurement.Equal(second) {
			t.Fatalf("last_measurement not advanced: %v", m.LastMeasurement)
		}
		if m.Status != model.StatusMet {
			t.Fatalf("status changed across identical upserts: %s", m.Status)
		}
	}
}

func TestSaveAuditEventAppendOnly(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	ev := model.AuditEvent{
		EventID:        "evt-1",
		OrgID:          "org-1",
		DecisionEngine: "signal_fusion_v1",
		Scores:         map[string]float64{"detection": 0.9},
		Thresholds:     map[string]float64{"detection": 0.5},
		SignalsUsed:    []string{"detection"},
		FinalDecision:  model.DecisionAccept,
		CreatedAt:      time.Now().UTC(),
	}
	if err := store.SaveAuditEvent(ctx, ev); err != nil {
		t.Fatalf("save audit event: %v", err)
	}
	// primary key on event_id forbids rewriting history
	if err := store.SaveAuditEvent(ctx, ev); err == nil {
		t.Fatalf("expected duplicate event_id to fail")
	}
}
