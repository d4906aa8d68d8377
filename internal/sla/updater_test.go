package sla

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"visionsla/internal/config"
	"visionsla/internal/model"
	"visionsla/internal/snapshot"
	"visionsla/internal/storage"
)

func newUpdaterForTest(t *testing.T) (*Updater, storage.Store, *snapshot.Store) {
	t.Helper()
	store, err := storage.NewSQLite("file:" + filepath.Join(t.TempDir(), "sla.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	if err := store.Init(context.Background()); err != nil {
		t.Fatalf("init schema: %v", err)
	}
	snap := snapshot.NewStore(10)
	cfg := config.NewStaticManager(config.DefaultConfig())
	return NewUpdater(cfg, store, snap, nil), store, snap
}

func TestUpdateCleanOrg(t *testing.T) {
	u, _, snap := newUpdaterForTest(t)
	summary, metrics, err := u.Update(context.Background(), "org-1")
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if summary.MetricsUpdated != 9 || summary.OverallCompliance != 100 {
		t.Fatalf("summary: %+v", summary)
	}
	if len(metrics) != 9 {
		t.Fatalf("metrics: %d", len(metrics))
	}
	if _, _, ok := snap.Get("org-1"); !ok {
		t.Fatalf("snapshot not refreshed")
	}
}

func TestUpdateReflectsRawRows(t *testing.T) {
	u, store, _ := newUpdaterForTest(t)
	ctx := context.Background()
	now := time.Now().UTC()

	// latency samples inside the warning band
	for _, v := range []float64{125, 130, 135} {
		err := store.SaveHealthSample(ctx, model.HealthSample{
			Timestamp: now.Add(-time.Hour), OrgID: "org-1",
			Metric: "detection_latency_ms", Value: v,
		})
		if err != nil {
			t.Fatalf("save sample: %v", err)
		}
	}
	err := store.SaveAlert(ctx, model.PlatformAlert{
		Timestamp: now.Add(-time.Hour), OrgID: "org-1",
		Severity: model.SeverityCritical, AlertType: "camera_offline",
	})
	if err != nil {
		t.Fatalf("save alert: %v", err)
	}

	summary, metrics, err := u.Update(ctx, "org-1")
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	byName := make(map[string]model.SLAMetric)
	for _, m := range metrics {
		byName[m.MetricName] = m
	}
	if m := byName["detection_latency_p95_ms"]; m.CurrentValue != 130 || m.Status != model.StatusWarning {
		t.Fatalf("latency metric: %+v", m)
	}
	if m := byName["critical_alerts_count"]; m.CurrentValue != 1 || m.Status != model.StatusFailed {
		t.Fatalf("critical alerts metric: %+v", m)
	}
	found := false
	for _, name := range summary.FailedMetrics {
		if name == "critical_alerts_count" {
			found = true
		}
	}
	if !found {
		t.Fatalf("failed_metrics must list critical_alerts_count: %v", summary.FailedMetrics)
	}
	// warning is non-compliant but not failed
	for _, name := range summary.FailedMetrics {
		if name == "detection_latency_p95_ms" {
			t.Fatalf("warning metric must not be listed as failed")
		}
	}
}

func TestUpdateRequiresOrg(t *testing.T) {
	u, _, _ := newUpdaterForTest(t)
	if _, metrics, err := u.Update(context.Background(), ""); err == nil || metrics != nil {
		t.Fatalf("empty org must abort with no metrics: err=%v metrics=%v", err, metrics)
	}
}

func TestUpdateAbortsOnClosedStore(t *testing.T) {
	u, store, _ := newUpdaterForTest(t)
	_ = store.Close()
	_, metrics, err := u.Update(context.Background(), "org-1")
	if err == nil {
		t.Fatalf("expected collection error")
	}
	if len(metrics) != 0 {
		t.Fatalf("aborted update must return no metrics, got %d", len(metrics))
	}
}
