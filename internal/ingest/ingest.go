// Package ingest feeds the raw tables the SLA calculator reads: camera
// health samples, platform alerts, and report-job outcomes arrive as
// JSON over Kafka or REST, are normalized, deduplicated, and persisted
// by a single loop.
package ingest

import (
	"context"
	"log/slog"
	"time"
)

func SendNonBlocking(ctx context.Context, out chan<- Record, rec Record, logger *slog.Logger) bool {
	select {
	case out <- rec:
		return true
	case <-ctx.Done():
		return false
	default:
		if logger != nil {
			logger.Warn("ingest channel full, dropping record", "kind", rec.Kind, "org_id", rec.OrgID())
		}
		return false
	}
}

func BackoffSleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		d = 200 * time.Millisecond
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
