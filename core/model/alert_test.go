package model

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestAlertDecodesIntakeShape(t *testing.T) {
	payload := `{"id":"a1","lat":48.8566,"lon":2.3522,"priority":"high","confidence":0.92,"created_at":"2026-08-24T10:15:00Z"}`
	var a Alert
	if err := json.Unmarshal([]byte(payload), &a); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if a.ID != "a1" {
		t.Fatalf("id %q", a.ID)
	}
	if a.Lat != 48.8566 || a.Lon != 2.3522 {
		t.Fatalf("position lost: %+v", a.Position())
	}
	if a.Priority != PriorityHigh {
		t.Fatalf("priority %v, want high", a.Priority)
	}
	if a.Confidence != 0.92 {
		t.Fatalf("confidence %f", a.Confidence)
	}
	want := time.Date(2026, 8, 24, 10, 15, 0, 0, time.UTC)
	if !a.CreatedAt.Equal(want) {
		t.Fatalf("created_at %v, want %v", a.CreatedAt, want)
	}
	if err := a.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func TestAlertPriorityAcceptsNumbers(t *testing.T) {
	var a Alert
	if err := json.Unmarshal([]byte(`{"id":"a2","lat":1,"lon":1,"priority":2,"confidence":0.5,"created_at":"2026-08-24T10:15:00Z"}`), &a); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if a.Priority != PriorityHigh {
		t.Fatalf("priority %v, want high", a.Priority)
	}
	if err := json.Unmarshal([]byte(`{"priority":"urgent"}`), &a); err == nil {
		t.Fatalf("unknown priority name must be rejected")
	}
}

func TestAlertRoundTrip(t *testing.T) {
	a := Alert{
		ID:         "a3",
		Lat:        48.85,
		Lon:        2.35,
		Priority:   PriorityMedium,
		Confidence: 0.7,
		Status:     AlertAssigned,
		CreatedAt:  time.Date(2026, 8, 24, 9, 0, 0, 0, time.UTC),
	}
	b, err := json.Marshal(a)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	s := string(b)
	if !strings.Contains(s, `"priority":"medium"`) {
		t.Fatalf("priority not emitted by name: %s", s)
	}
	if strings.Contains(s, "assigned") || strings.Contains(s, "Status") {
		t.Fatalf("internal status leaked onto the wire: %s", s)
	}
	var back Alert
	if err := json.Unmarshal(b, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if back.ID != a.ID || back.Lat != a.Lat || back.Lon != a.Lon ||
		back.Priority != a.Priority || back.Confidence != a.Confidence ||
		!back.CreatedAt.Equal(a.CreatedAt) {
		t.Fatalf("round trip mismatch: %+v vs %+v", back, a)
	}
	if back.Status != AlertPending {
		t.Fatalf("status must not be carried on the wire")
	}
}
