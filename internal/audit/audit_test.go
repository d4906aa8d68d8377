package audit

import (
	"testing"

	"visionsla/internal/config"
	"visionsla/internal/model"
)

func auditCfg() config.AuditConfig {
	return config.DefaultConfig().Audit
}

func TestFuseTwoSignalsAccept(t *testing.T) {
	// two or more signals accept regardless of individual scores
	in := EventInput{
		HasDetection:        true,
		HasFaceMatch:        true,
		DetectionConfidence: 0.1,
		FaceSimilarity:      0.1,
	}
	ev := Fuse("org-1", in, auditCfg())
	if ev.FinalDecision != model.DecisionAccept {
		t.Fatalf("two signals must accept, got %s", ev.FinalDecision)
	}
	if len(ev.SignalsUsed) != 2 {
		t.Fatalf("signals used: %v", ev.SignalsUsed)
	}
}

func TestFuseAllSignalsAccept(t *testing.T) {
	in := EventInput{
		HasDetection:            true,
		HasFaceMatch:            true,
		HasReIDMatch:            true,
		HasTemporalConfirmation: true,
	}
	ev := Fuse("org-1", in, auditCfg())
	if ev.FinalDecision != model.DecisionAccept || len(ev.SignalsUsed) != 4 {
		t.Fatalf("all signals: decision=%s used=%v", ev.FinalDecision, ev.SignalsUsed)
	}
}

func TestFuseSingleStrongSignalAccept(t *testing.T) {
	in := EventInput{
		HasDetection:        true,
		DetectionConfidence: 0.86,
	}
	ev := Fuse("org-1", in, auditCfg())
	if ev.FinalDecision != model.DecisionAccept {
		t.Fatalf("single strong signal must accept, got %s", ev.FinalDecision)
	}
}

func TestFuseSingleWeakSignalReject(t *testing.T) {
	for _, conf := range []float64{0.85, 0.5, 0} {
		in := EventInput{
			HasDetection:        true,
			DetectionConfidence: conf,
		}
		ev := Fuse("org-1", in, auditCfg())
		if ev.FinalDecision != model.DecisionReject {
			t.Fatalf("confidence %f must reject, got %s", conf, ev.FinalDecision)
		}
	}
}

func TestFuseNoSignalsReject(t *testing.T) {
	ev := Fuse("org-1", EventInput{DetectionConfidence: 0.99}, auditCfg())
	if ev.FinalDecision != model.DecisionReject {
		t.Fatalf("no signals must reject, got %s", ev.FinalDecision)
	}
	if len(ev.SignalsUsed) != 0 {
		t.Fatalf("signals used: %v", ev.SignalsUsed)
	}
}

func TestFuseConfidenceIsMaxScore(t *testing.T) {
	in := EventInput{
		HasDetection:        true,
		HasReIDMatch:        true,
		DetectionConfidence: 0.6,
		ReIDDistance:        0.91,
	}
	ev := Fuse("org-1", in, auditCfg())
	if ev.ConfidenceScore != 0.91 {
		t.Fatalf("confidence: %f", ev.ConfidenceScore)
	}
}

func TestFuseAssignsEventID(t *testing.T) {
	ev := Fuse("org-1", EventInput{HasDetection: true}, auditCfg())
	if ev.EventID == "" {
		t.Fatalf("expected generated event id")
	}
	ev2 := Fuse("org-1", EventInput{EventID: "evt-7", HasDetection: true}, auditCfg())
	if ev2.EventID != "evt-7" {
		t.Fatalf("supplied event id must be kept: %s", ev2.EventID)
	}
}

func TestFuseRecordsThresholds(t *testing.T) {
	cfg := auditCfg()
	ev := Fuse("org-1", EventInput{HasDetection: true}, cfg)
	if ev.Thresholds[SignalDetection] != cfg.DetectionThreshold {
		t.Fatalf("detection threshold: %f", ev.Thresholds[SignalDetection])
	}
	if ev.DecisionEngine == "" {
		t.Fatalf("decision engine label missing")
	}
}

func TestStoreRecentFiltersAndBounds(t *testing.T) {
	s := NewStore(3)
	for i := 0; i < 5; i++ {
		org := "org-a"
		if i%2 == 1 {
			org = "org-b"
		}
		s.Add(model.AuditEvent{EventID: string(rune('a' + i)), OrgID: org})
	}
	all := s.Recent("", 0)
	if len(all) != 3 {
		t.Fatalf("ring must cap at limit: %d", len(all))
	}
	// kept: c(a), d(b), e(a); org-a view newest-last
	orgA := s.Recent("org-a", 0)
	if len(orgA) != 2 || orgA[len(orgA)-1].EventID != "e" {
		t.Fatalf("org filter: %+v", orgA)
	}
	limited := s.Recent("", 1)
	if len(limited) != 1 || limited[0].EventID != "e" {
		t.Fatalf("limit: %+v", limited)
	}
}
