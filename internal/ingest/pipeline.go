package ingest

import (
	"context"
	"log/slog"
	"time"

	"visionsla/internal/config"
	"visionsla/internal/storage"
	"visionsla/internal/telemetry"
)

// Pipeline is the single consumer of the ingest channel: it suppresses
// duplicates and writes each record to its raw table.
type Pipeline struct {
	cfg    *config.Manager
	store  storage.Store
	logger *slog.Logger
	dedupe *DedupeCache
}

func NewPipeline(cfg *config.Manager, store storage.Store, logger *slog.Logger) *Pipeline {
	return &Pipeline{
		cfg:    cfg,
		store:  store,
		logger: logger,
		dedupe: NewDedupeCache(),
	}
}

func (p *Pipeline) Start(ctx context.Context, in <-chan Record) {
	go func() {
		for {
			select {
			case rec := <-in:
				p.Process(ctx, rec)
			case <-ctx.Done():
				return
			}
		}
	}()
}

func (p *Pipeline) Process(ctx context.Context, rec Record) {
	ttl := p.cfg.Get().Ingest.DedupeWindow.Std()
	if ttl > 0 && p.dedupe.Seen(rec.key(), time.Now().UTC(), ttl) {
		telemetry.ObserveIngest(rec.Kind, "duplicate")
		return
	}

	var err error
	switch rec.Kind {
	case KindHealth:
		err = p.store.SaveHealthSample(ctx, rec.Health)
	case KindAlert:
		err = p.store.SaveAlert(ctx, rec.Alert)
	case KindReport:
		err = p.store.SaveReportJob(ctx, rec.Report)
	default:
		telemetry.ObserveIngest(rec.Kind, "rejected")
		return
	}
	if err != nil {
		telemetry.ObserveIngest(rec.Kind, telemetry.OutcomeError)
		if p.logger != nil {
			p.logger.Error("ingest persist failed", "kind", rec.Kind, "org_id", rec.OrgID(), "err", err)
		}
		return
	}
	telemetry.ObserveIngest(rec.Kind, telemetry.OutcomeSuccess)
}
