package storage

import (
	"context"
	"database/sql"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"visionsla/internal/model"
)

type postgresStore struct {
	baseStore
}

func NewPostgres(dsn string) (Store, error) {
	if strings.TrimSpace(dsn) == "" {
		dsn = "postgres://localhost:5432/visionsla?sslmode=disable"
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	return &postgresStore{baseStore{db: db}}, nil
}

func (s *postgresStore) Init(ctx context.Context) error {
	if s.db == nil {
		return nil
	}
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS health_samples (
			id BIGSERIAL PRIMARY KEY,
			ts TIMESTAMPTZ NOT NULL,
			org_id TEXT NOT NULL,
			camera_id TEXT,
			metric TEXT NOT NULL,
			value DOUBLE PRECISION NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_health_org_ts ON health_samples(org_id, ts)`,
		`CREATE TABLE IF NOT EXISTS platform_alerts (
			id BIGSERIAL PRIMARY KEY,
			ts TIMESTAMPTZ NOT NULL,
			org_id TEXT NOT NULL,
			camera_id TEXT,
			severity TEXT NOT NULL,
			alert_type TEXT NOT NULL,
			resolved BOOLEAN NOT NULL DEFAULT FALSE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_alerts_org_ts ON platform_alerts(org_id, ts)`,
		`CREATE TABLE IF NOT EXISTS report_jobs (
			id BIGSERIAL PRIMARY KEY,
			ts TIMESTAMPTZ NOT NULL,
			org_id TEXT NOT NULL,
			report_type TEXT NOT NULL,
			status TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_reports_org_ts ON report_jobs(org_id, ts)`,
		`CREATE TABLE IF NOT EXISTS sla_metrics (
			org_id TEXT NOT NULL,
			metric_name TEXT NOT NULL,
			current_value DOUBLE PRECISION NOT NULL,
			target_value DOUBLE PRECISION NOT NULL,
			threshold_type TEXT NOT NULL,
			status TEXT NOT NULL,
			measurement_window TEXT NOT NULL,
			last_measurement TIMESTAMPTZ NOT NULL,
			PRIMARY KEY (org_id, metric_name)
		)`,
		`CREATE TABLE IF NOT EXISTS audit_events (
			event_id TEXT PRIMARY KEY,
			org_id TEXT NOT NULL,
			camera_id TEXT,
			decision_engine TEXT NOT NULL,
			scores_json JSONB NOT NULL,
			thresholds_json JSONB NOT NULL,
			signals_used_json JSONB NOT NULL,
			final_decision TEXT NOT NULL,
			confidence_score DOUBLE PRECISION NOT NULL,
			explain_json JSONB,
			processing_time_ms DOUBLE PRECISION,
			created_at TIMESTAMPTZ NOT NULL
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

func (s *postgresStore) SaveHealthSample(ctx context.Context, sample model.HealthSample) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO health_samples (ts, org_id, camera_id, metric, value) VALUES ($1, $2, $3, $4, $5)`,
		sample.Timestamp.UTC(), sample.OrgID, sample.CameraID, sample.Metric, sample.Value)
	return err
}

func (s *postgresStore) SaveAlert(ctx context.Context, alert model.PlatformAlert) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO platform_alerts (ts, org_id, camera_id, severity, alert_type, resolved)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		alert.Timestamp.UTC(), alert.OrgID, alert.CameraID, alert.Severity, alert.AlertType, alert.Resolved)
	return err
}

func (s *postgresStore) SaveReportJob(ctx context.Context, job model.ReportJob) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO report_jobs (ts, org_id, report_type, status) VALUES ($1, $2, $3, $4)`,
		job.Timestamp.UTC(), job.OrgID, job.ReportType, job.Status)
	return err
}

func (s *postgresStore) HealthAverages(ctx context.Context, orgID string, since time.Time) (map[string]float64, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT metric, AVG(value) FROM health_samples WHERE org_id = $1 AND ts >= $2 GROUP BY metric`,
		orgID, since.UTC())
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

func (s *postgresStore) CountAlerts(ctx context.Context, orgID string, since time.Time) (AlertCounts, error) {
	var counts AlertCounts
	err := s.db.QueryRowContext(ctx,
		`SELECT
			COUNT(*) FILTER (WHERE severity = 'critical'),
			COUNT(*)
		FROM platform_alerts WHERE org_id = $1 AND ts >= $2 AND NOT resolved`,
		orgID, since.UTC()).Scan(&counts.Critical, &counts.Unresolved)
	return counts, err
}

func (s *postgresStore) CountReportJobs(ctx context.Context, orgID string, since time.Time) (ReportCounts, error) {
	var counts ReportCounts
	err := s.db.QueryRowContext(ctx,
		`SELECT
			COUNT(*) FILTER (WHERE status = 'completed'),
			COUNT(*) FILTER (WHERE status = 'failed')
		FROM report_jobs WHERE org_id = $1 AND ts >= $2`,
		orgID, since.UTC()).Scan(&counts.Completed, &counts.Failed)
	return counts, err
}

func (s *postgresStore) UpsertSLAMetrics(ctx context.Context, metrics []model.SLAMetric) error {
	if s.db == nil || len(metrics) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO sla_metrics (org_id, metric_name, current_value, target_value, threshold_type, status, measurement_window, last_measurement)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (org_id, metric_name) DO UPDATE SET
			current_value = EXCLUDED.current_value,
			target_value = EXCLUDED.target_value,
			threshold_type = EXCLUDED.threshold_type,
			status = EXCLUDED.status,
			measurement_window = EXCLUDED.measurement_window,
			last_measurement = EXCLUDED.last_measurement`)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	defer stmt.Close()
	for _, m := range metrics {
		if _, err := stmt.ExecContext(ctx,
			m.OrgID, m.MetricName, m.CurrentValue, m.TargetValue,
			string(m.ThresholdType), string(m.Status), m.MeasurementWindow,
			m.LastMeasurement.UTC(),
		); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

func (s *postgresStore) ListSLAMetrics(ctx context.Context, orgID string) ([]model.SLAMetric, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT org_id, metric_name, current_value, target_value, threshold_type, status, measurement_window, last_measurement
		FROM sla_metrics WHERE org_id = $1 ORDER BY metric_name`, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSLAMetrics(rows)
}

func (s *postgresStore) SaveAuditEvent(ctx context.Context, ev model.AuditEvent) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO audit_events (event_id, org_id, camera_id, decision_engine, scores_json, thresholds_json, signals_used_json, final_decision, confidence_score, explain_json, processing_time_ms, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		ev.EventID, ev.OrgID, ev.CameraID, ev.DecisionEngine,
		encodeJSON(ev.Scores), encodeJSON(ev.Thresholds), encodeJSON(ev.SignalsUsed),
		string(ev.FinalDecision), ev.ConfidenceScore, encodeJSON(ev.Explain),
		ev.ProcessingTimeMs, ev.CreatedAt.UTC())
	return err
}

func scanSLAMetrics(rows *sql.Rows) ([]model.SLAMetric, error) {
	out := make([]model.SLAMetric, 0, 9)
	for rows.Next() {
		var m model.SLAMetric
		var threshold, status string
		if err := rows.Scan(&m.OrgID, &m.MetricName, &m.CurrentValue, &m.TargetValue,
			&threshold, &status, &m.MeasurementWindow, &m.LastMeasurement); err != nil {
			return nil, err
		}
		m.ThresholdType = model.ThresholdType(threshold)
		m.Status = model.MetricStatus(status)
		out = append(out, m)
	}
	return out, rows.Err()
}
