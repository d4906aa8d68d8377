package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"visionsla/internal/config"
	"visionsla/internal/model"
)

// AlertCounts summarizes the unresolved alert rows inside a lookback.
type AlertCounts struct {
	Critical   int
	Unresolved int
}

// ReportCounts summarizes finished report jobs inside a lookback.
type ReportCounts struct {
	Completed int
	Failed    int
}

type Store interface {
	Init(ctx context.Context) error
	Close() error

	SaveHealthSample(ctx context.Context, sample model.HealthSample) error
	SaveAlert(ctx context.Context, alert model.PlatformAlert) error
	SaveReportJob(ctx context.Context, job model.ReportJob) error

	HealthAverages(ctx context.Context, orgID string, since time.Time) (map[string]float64, error)
	CountAlerts(ctx context.Context, orgID string, since time.Time) (AlertCounts, error)
	CountReportJobs(ctx context.Context, orgID string, since time.Time) (ReportCounts, error)

	UpsertSLAMetrics(ctx context.Context, metrics []model.SLAMetric) error
	ListSLAMetrics(ctx context.Context, orgID string) ([]model.SLAMetric, error)

	SaveAuditEvent(ctx context.Context, ev model.AuditEvent) error
}

func NewStore(cfg config.StorageConfig) (Store, error) {
	switch strings.ToLower(cfg.Driver) {
	case "sqlite":
		return NewSQLite(cfg.DSN)
	case "postgres", "postgresql":
		return NewPostgres(cfg.DSN)
	default:
		return nil, errors.New("unsupported storage driver")
	}
}

type baseStore struct {
	db *sql.DB
}

func (b *baseStore) Close() error {
	if b.db != nil {
		return b.db.Close()
	}
	return nil
}

func encodeJSON(value any) string {
	data, _ := json.Marshal(value)
	return string(data)
}

func nowUTC() time.Time {
	return time.Now().UTC()
}
