package ingest

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"visionsla/internal/model"
)

const (
	KindHealth = "health"
	KindAlert  = "alert"
	KindReport = "report"
)

// Record is one normalized ingest payload; exactly one of the typed
// fields is populated, selected by Kind.
type Record struct {
	Kind   string
	Source string
	Health model.HealthSample
	Alert  model.PlatformAlert
	Report model.ReportJob
}

func (r Record) OrgID() string {
	switch r.Kind {
	case KindHealth:
		return r.Health.OrgID
	case KindAlert:
		return r.Alert.OrgID
	case KindReport:
		return r.Report.OrgID
	}
	return ""
}

// key identifies a record for duplicate suppression.
func (r Record) key() string {
	switch r.Kind {
	case KindHealth:
		h := r.Health
		return strings.Join([]string{r.Kind, h.OrgID, h.CameraID, h.Metric,
			strconv.FormatFloat(h.Value, 'g', -1, 64),
			h.Timestamp.UTC().Format(time.RFC3339Nano)}, "|")
	case KindAlert:
		a := r.Alert
		return strings.Join([]string{r.Kind, a.OrgID, a.CameraID, a.Severity, a.AlertType,
			a.Timestamp.UTC().Format(time.RFC3339Nano)}, "|")
	case KindReport:
		j := r.Report
		return strings.Join([]string{r.Kind, j.OrgID, j.ReportType, j.Status,
			j.Timestamp.UTC().Format(time.RFC3339Nano)}, "|")
	}
	return r.Kind
}

// ParseBytes decodes one JSON object into a Record.
func ParseBytes(data []byte) (Record, error) {
	var obj map[string]any
	if err := json.Unmarshal(data, &obj); err != nil {
		return Record{}, err
	}
	return ParseMap(obj)
}

// ParseMap maps a loosely-shaped payload into a typed Record. Field
// names are tolerant of the aliases the fleet's exporters actually
// send (org/org_id/orgId, camera/camera_id, epoch or RFC3339 times).
func ParseMap(obj map[string]any) (Record, error) {
	fields := make(map[string]string, len(obj))
	for key, val := range obj {
		fields[strings.ToLower(key)] = stringify(val)
	}

	kind := strings.ToLower(first(fields, "kind", "record_type", "event_kind"))
	orgID := first(fields, "org_id", "orgid", "org", "tenant_id", "tenant")
	if orgID == "" {
		return Record{}, errors.New("missing org id")
	}
	cameraID := first(fields, "camera_id", "cameraid", "camera", "device")

	ts := time.Now().UTC()
	if raw := first(fields, "timestamp", "time", "ts", "created_at"); raw != "" {
		parsed, err := ParseTimestamp(raw)
		if err != nil {
			return Record{}, fmt.Errorf("parse timestamp: %w", err)
		}
		ts = parsed.UTC()
	}

	switch kind {
	case KindHealth, "", "health_sample", "metric":
		metric := first(fields, "metric", "metric_name", "name")
		if metric == "" {
			return Record{}, errors.New("health record missing metric")
		}
		rawValue := first(fields, "value", "metric_value")
		value, err := strconv.ParseFloat(rawValue, 64)
		if err != nil {
			return Record{}, fmt.Errorf("health record value %q: %w", rawValue, err)
		}
		return Record{Kind: KindHealth, Health: model.HealthSample{
			Timestamp: ts, OrgID: orgID, CameraID: cameraID, Metric: metric, Value: value,
		}}, nil
	case KindAlert, "platform_alert":
		severity := strings.ToLower(first(fields, "severity", "level"))
		if severity == "" {
			severity = "info"
		}
		return Record{Kind: KindAlert, Alert: model.PlatformAlert{
			Timestamp: ts,
			OrgID:     orgID,
			CameraID:  cameraID,
			Severity:  severity,
			AlertType: first(fields, "alert_type", "type", "alert"),
			Resolved:  parseBool(first(fields, "resolved", "is_resolved")),
		}}, nil
	case KindReport, "report_job":
		status := strings.ToLower(first(fields, "status", "job_status"))
		switch status {
		case model.ReportStatusCompleted, model.ReportStatusFailed, model.ReportStatusPending:
		default:
			return Record{}, fmt.Errorf("report record status %q unsupported", status)
		}
		return Record{Kind: KindReport, Report: model.ReportJob{
			Timestamp:  ts,
			OrgID:      orgID,
			ReportType: first(fields, "report_type", "type"),
			Status:     status,
		}}, nil
	default:
		return Record{}, fmt.Errorf("unsupported record kind %q", kind)
	}
}

// stringify avoids fmt.Sprint's scientific notation for large JSON
// numbers (epoch timestamps decode as float64).
func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprint(t)
	}
}

func first(fields map[string]string, keys ...string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(fields[k]); v != "" {
			return v
		}
	}
	return ""
}

func parseBool(v string) bool {
	switch strings.ToLower(v) {
	case "true", "1", "yes":
		return true
	}
	return false
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05.000",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05.000",
}

func ParseTimestamp(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, errors.New("empty timestamp")
	}
	if isNumeric(value) {
		return parseUnix(value)
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unsupported timestamp format: %q", value)
}

func isNumeric(value string) bool {
	for _, ch := range value {
		if ch < '0' || ch > '9' {
			return false
		}
	}
	return len(value) > 0
}

func parseUnix(value string) (time.Time, error) {
	if len(value) >= 13 {
		ms, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return time.Time{}, err
		}
		return time.Unix(0, ms*int64(time.Millisecond)).UTC(), nil
	}
	sec, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.Unix(sec, 0).UTC(), nil
}
