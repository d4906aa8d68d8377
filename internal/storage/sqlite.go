package storage

import (
	"context"
	"database/sql"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"visionsla/internal/model"
)

type sqliteStore struct {
	baseStore
}

func NewSQLite(dsn string) (Store, error) {
	if strings.TrimSpace(dsn) == "" {
		dsn = "file:visionsla.db?_pragma=busy_timeout(5000)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	// The sqlite backend serves single-process deployments; one writer
	// avoids SQLITE_BUSY churn on the ingest path.
	db.SetMaxOpenConns(1)
	return &sqliteStore{baseStore{db: db}}, nil
}

func (s *sqliteStore) Init(ctx context.Context) error {
	if s.db == nil {
		return nil
	}
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS health_samples (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			ts TEXT NOT NULL,
			org_id TEXT NOT NULL,
			camera_id TEXT,
			metric TEXT NOT NULL,
			value REAL NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_health_org_ts ON health_samples(org_id, ts)`,
		`CREATE TABLE IF NOT EXISTS platform_alerts (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			ts TEXT NOT NULL,
			org_id TEXT NOT NULL,
			camera_id TEXT,
			severity TEXT NOT NULL,
			alert_type TEXT NOT NULL,
			resolved INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS idx_alerts_org_ts ON platform_alerts(org_id, ts)`,
		`CREATE TABLE IF NOT EXISTS report_jobs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			ts TEXT NOT NULL,
			org_id TEXT NOT NULL,
			report_type TEXT NOT NULL,
			status TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_reports_org_ts ON report_jobs(org_id, ts)`,
		`CREATE TABLE IF NOT EXISTS sla_metrics (
			org_id TEXT NOT NULL,
			metric_name TEXT NOT NULL,
			current_value REAL NOT NULL,
			target_value REAL NOT NULL,
			threshold_type TEXT NOT NULL,
			status TEXT NOT NULL,
			measurement_window TEXT NOT NULL,
			last_measurement TEXT NOT NULL,
			PRIMARY KEY (org_id, metric_name)
		)`,
		`CREATE TABLE IF NOT EXISTS audit_events (
			event_id TEXT PRIMARY KEY,
			org_id TEXT NOT NULL,
			camera_id TEXT,
			decision_engine TEXT NOT NULL,
			scores_json TEXT NOT NULL,
			thresholds_json TEXT NOT NULL,
			signals_used_json TEXT NOT NULL,
			final_decision TEXT NOT NULL,
			confidence_score REAL NOT NULL,
			explain_json TEXT,
			processing_time_ms REAL,
			created_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_audit_org_created ON audit_events(org_id, created_at)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *sqliteStore) SaveHealthSample(ctx context.Context, sample model.HealthSample) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO health_samples (ts, org_id, camera_id, metric, value) VALUES (?, ?, ?, ?, ?)`,
		fmtTS(sample.Timestamp), sample.OrgID, sample.CameraID, sample.Metric, sample.Value)
	return err
}

func (s *sqliteStore) SaveAlert(ctx context.Context, alert model.PlatformAlert) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO platform_alerts (ts, org_id, camera_id, severity, alert_type, resolved)
		VALUES (?, ?, ?, ?, ?, ?)`,
		fmtTS(alert.Timestamp), alert.OrgID, alert.CameraID, alert.Severity, alert.AlertType, boolToInt(alert.Resolved))
	return err
}

func (s *sqliteStore) SaveReportJob(ctx context.Context, job model.ReportJob) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO report_jobs (ts, org_id, report_type, status) VALUES (?, ?, ?, ?)`,
		fmtTS(job.Timestamp), job.OrgID, job.ReportType, job.Status)
	return err
}

func (s *sqliteStore) HealthAverages(ctx context.Context, orgID string, since time.Time) (map[string]float64, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT metric, AVG(value) FROM health_samples WHERE org_id = ? AND ts >= ? GROUP BY metric`,
		orgID, fmtTS(since))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[string]float64)
	for rows.Next() {
		var metric string
		var avg float64
		if err := rows.Scan(&metric, &avg); err != nil {
			return nil, err
		}
		out[metric] = avg
	}
	return out, rows.Err()
}

func (s *sqliteStore) CountAlerts(ctx context.Context, orgID string, since time.Time) (AlertCounts, error) {
	var counts AlertCounts
	err := s.db.QueryRowContext(ctx,
		`SELECT
			COALESCE(SUM(CASE WHEN severity = 'critical' THEN 1 ELSE 0 END), 0),
			COUNT(*)
		FROM platform_alerts WHERE org_id = ? AND ts >= ? AND resolved = 0`,
		orgID, fmtTS(since)).Scan(&counts.Critical, &counts.Unresolved)
	return counts, err
}

func (s *sqliteStore) CountReportJobs(ctx context.Context, orgID string, since time.Time) (ReportCounts, error) {
	var counts ReportCounts
	err := s.db.QueryRowContext(ctx,
		`SELECT
			COALESCE(SUM(CASE WHEN status = 'completed' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = 'failed' THEN 1 ELSE 0 END), 0)
		FROM report_jobs WHERE org_id = ? AND ts >= ?`,
		orgID, fmtTS(since)).Scan(&counts.Completed, &counts.Failed)
	return counts, err
}

func (s *sqliteStore) UpsertSLAMetrics(ctx context.Context, metrics []model.SLAMetric) error {
	if s.db == nil || len(metrics) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO sla_metrics (org_id, metric_name, current_value, target_value, threshold_type, status, measurement_window, last_measurement)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (org_id, metric_name) DO UPDATE SET
			current_value = excluded.current_value,
			target_value = excluded.target_value,
			threshold_type = excluded.threshold_type,
			status = excluded.status,
			measurement_window = excluded.measurement_window,
			last_measurement = excluded.last_measurement`)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	defer stmt.Close()
	for _, m := range metrics {
		if _, err := stmt.ExecContext(ctx,
			m.OrgID, m.MetricName, m.CurrentValue, m.TargetValue,
			string(m.ThresholdType), string(m.Status), m.MeasurementWindow,
			fmtTS(m.LastMeasurement),
		); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

func (s *sqliteStore) ListSLAMetrics(ctx context.Context, orgID string) ([]model.SLAMetric, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT org_id, metric_name, current_value, target_value, threshold_type, status, measurement_window, last_measurement
		FROM sla_metrics WHERE org_id = ? ORDER BY metric_name`, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.SLAMetric, 0, 9)
	for rows.Next() {
		var m model.SLAMetric
		var threshold, status, last string
		if err := rows.Scan(&m.OrgID, &m.MetricName, &m.CurrentValue, &m.TargetValue,
			&threshold, &status, &m.MeasurementWindow, &last); err != nil {
			return nil, err
		}
		m.ThresholdType = model.ThresholdType(threshold)
		m.Status = model.MetricStatus(status)
		if ts, err := time.Parse(sqliteTimeLayout, last); err == nil {
			m.LastMeasurement = ts
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *sqliteStore) SaveAuditEvent(ctx context.Context, ev model.AuditEvent) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO audit_events (event_id, org_id, camera_id, decision_engine, scores_json, thresholds_json, signals_used_json, final_decision, confidence_score, explain_json, processing_time_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.EventID, ev.OrgID, ev.CameraID, ev.DecisionEngine,
		encodeJSON(ev.Scores), encodeJSON(ev.Thresholds), encodeJSON(ev.SignalsUsed),
		string(ev.FinalDecision), ev.ConfidenceScore, encodeJSON(ev.Explain),
		ev.ProcessingTimeMs, fmtTS(ev.CreatedAt))
	return err
}

// Fixed-width fractional seconds keep lexicographic range comparisons
// aligned with chronological order (RFC3339Nano trims trailing zeros,
// which breaks that).
const sqliteTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func fmtTS(ts time.Time) string {
	if ts.IsZero() {
		ts = nowUTC()
	}
	return ts.UTC().Format(sqliteTimeLayout)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
