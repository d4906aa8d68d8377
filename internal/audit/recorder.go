// Package audit re-derives and persists the rationale behind each
// automated detection decision: which signals contributed, what the
// cutoffs were, and why the event was accepted or rejected.
package audit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"visionsla/internal/config"
	"visionsla/internal/model"
	"visionsla/internal/storage"
	"visionsla/internal/telemetry"
)

const decisionEngine = "signal_fusion_v1"

// Signal names as recorded in signals_used.
const (
	SignalDetection = "detection"
	SignalFaceMatch = "face_match"
	SignalReID      = "reid_match"
	SignalTemporal  = "temporal_confirmation"
)

// EventInput is the raw per-event payload supplied by the detection
// pipeline with the audit_event action.
type EventInput struct {
	EventID          string  `json:"event_id,omitempty"`
	CameraID         string  `json:"camera_id,omitempty"`
	ProcessingTimeMs float64 `json:"processing_time_ms,omitempty"`

	DetectionConfidence float64 `json:"detection_confidence"`
	FaceSimilarity      float64 `json:"face_similarity"`
	ReIDDistance        float64 `json:"reid_distance"`
	TemporalFrames      float64 `json:"temporal_frames"`

	HasDetection            bool `json:"has_detection"`
	HasFaceMatch            bool `json:"has_face_match"`
	HasReIDMatch            bool `json:"has_reid_match"`
	HasTemporalConfirmation bool `json:"has_temporal_confirmation"`
}

type Recorder struct {
	cfg    *config.Manager
	store  storage.Store
	recent *Store
	logger *slog.Logger
}

func NewRecorder(cfg *config.Manager, store storage.Store, recent *Store, logger *slog.Logger) *Recorder {
	return &Recorder{cfg: cfg, store: store, recent: recent, logger: logger}
}

// Record fuses the event's signals into a final decision and persists
// the explanation. The row is append-only; callers get the stored
// event back, including an assigned id when the input carried none.
func (r *Recorder) Record(ctx context.Context, orgID string, in EventInput) (model.AuditEvent, error) {
	if orgID == "" {
		return model.AuditEvent{}, fmt.Errorf("orgId is required")
	}
	ev := Fuse(orgID, in, r.cfg.Get().Audit)
	if err := r.store.SaveAuditEvent(ctx, ev); err != nil {
		return model.AuditEvent{}, fmt.Errorf("persist audit event: %w", err)
	}
	if r.recent != nil {
		r.recent.Add(ev)
	}
	telemetry.ObserveAuditDecision(string(ev.FinalDecision))
	if r.logger != nil {
		r.logger.Info("audit event recorded",
			"org_id", orgID,
			"event_id", ev.EventID,
			"final_decision", ev.FinalDecision,
			"signals_used", ev.SignalsUsed,
		)
	}
	return ev, nil
}

// Fuse applies the decision rule: accept when two or more signals
// contributed, or when a single signal contributed and the detection
// confidence clears the strong-signal cutoff. The single-strong-signal
// exception is preserved behavior from the engine this replaced, not a
// rule to extend.
func Fuse(orgID string, in EventInput, cfg config.AuditConfig) model.AuditEvent {
	used := make([]string, 0, 4)
	if in.HasDetection {
		used = append(used, SignalDetection)
	}
	if in.HasFaceMatch {
		used = append(used, SignalFaceMatch)
	}
	if in.HasReIDMatch {
		used = append(used, SignalReID)
	}
	if in.HasTemporalConfirmation {
		used = append(used, SignalTemporal)
	}

	decision := model.DecisionReject
	strongSingle := false
	switch {
	case len(used) >= 2:
		decision = model.DecisionAccept
	case len(used) == 1 && in.DetectionConfidence > cfg.StrongSignalCutoff:
		decision = model.DecisionAccept
		strongSingle = true
	}

	scores := map[string]float64{
		SignalDetection: in.DetectionConfidence,
		SignalFaceMatch: in.FaceSimilarity,
		SignalReID:      in.ReIDDistance,
		SignalTemporal:  in.TemporalFrames,
	}
	confidence := 0.0
	for _, v := range scores {
		if v > confidence {
			confidence = v
		}
	}

	eventID := in.EventID
	if eventID == "" {
		eventID = uuid.NewString()
	}

	return model.AuditEvent{
		EventID:         eventID,
		OrgID:           orgID,
		CameraID:        in.CameraID,
		DecisionEngine:  decisionEngine,
		Scores:          scores,
		Thresholds: map[string]float64{
			SignalDetection: cfg.DetectionThreshold,
			SignalFaceMatch: cfg.FaceThreshold,
			SignalReID:      cfg.ReIDThreshold,
			SignalTemporal:  cfg.TemporalFrames,
		},
		SignalsUsed:     used,
		FinalDecision:   decision,
		ConfidenceScore: confidence,
		Explain: map[string]any{
			"rule":                 "two_signals_or_one_strong",
			"signals_count":        len(used),
			"strong_single_signal": strongSingle,
			"strong_signal_cutoff": cfg.StrongSignalCutoff,
		},
		ProcessingTimeMs: in.ProcessingTimeMs,
		CreatedAt:        time.Now().UTC(),
	}
}
