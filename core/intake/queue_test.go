package intake

import (
	"testing"
	"time"

	"github.com/kestrel-ops/kestrel/core/model"
)

func alert(id string, prio model.AlertPriority, created time.Time) model.Alert {
	return model.Alert{ID: id, Priority: prio, CreatedAt: created, Lat: 10, Lon: 10}
}

func TestPopOrdering(t *testing.T) {
	q := New(Config{})
	now := time.Now()
	q.Push(alert("a-low", model.PriorityLow, now.Add(-3*time.Minute)))
	q.Push(alert("a-high-new", model.PriorityHigh, now.Add(-time.Minute)))
	q.Push(alert("a-high-old", model.PriorityHigh, now.Add(-2*time.Minute)))
	q.Push(alert("a-med", model.PriorityMedium, now.Add(-5*time.Minute)))

	want := []string{"a-high-old", "a-high-new", "a-med", "a-low"}
	for _, id := range want {
		e, ok := q.Pop(now)
		if !ok {
			t.Fatalf("queue exhausted before %s", id)
		}
		if e.Alert.ID != id {
			t.Fatalf("popped %s, want %s", e.Alert.ID, id)
		}
	}
	if _, ok := q.Pop(now); ok {
		t.Fatalf("queue should be empty")
	}
}

func TestPopTieBreakByID(t *testing.T) {
	q := New(Config{})
	now := time.Now()
	created := now.Add(-time.Minute)
	q.Push(alert("b", model.PriorityHigh, created))
	q.Push(alert("a", model.PriorityHigh, created))
	e, _ := q.Pop(now)
	if e.Alert.ID != "a" {
		t.Fatalf("popped %s, want lexicographically smallest id", e.Alert.ID)
	}
}

func TestRequeueBackoff(t *testing.T) {
	q := New(Config{BaseBackoff: time.Second, MaxBackoff: time.Minute, MaxAge: time.Hour})
	now := time.Now()
	q.Push(alert("a1", model.PriorityHigh, now))

	e, _ := q.Pop(now)
	if !q.Requeue(e, now) {
		t.Fatalf("first requeue should succeed")
	}
	if _, ok := q.Pop(now); ok {
		t.Fatalf("alert should be backing off")
	}
	e, ok := q.Pop(now.Add(1500 * time.Millisecond))
	if !ok {
		t.Fatalf("alert should be eligible after base backoff")
	}
	if e.Attempts != 1 {
		t.Fatalf("attempts = %d, want 1", e.Attempts)
	}

	// Second requeue doubles the delay.
	if !q.Requeue(e, now) {
		t.Fatalf("second requeue should succeed")
	}
	if _, ok := q.Pop(now.Add(1500 * time.Millisecond)); ok {
		t.Fatalf("alert should still be backing off after 1.5s with 2s delay")
	}
	if _, ok := q.Pop(now.Add(2500 * time.Millisecond)); !ok {
		t.Fatalf("alert should be eligible after doubled backoff")
	}
}

func TestRequeueBeyondMaxAge(t *testing.T) {
	q := New(Config{MaxAge: time.Minute})
	now := time.Now()
	q.Push(alert("a1", model.PriorityHigh, now.Add(-2*time.Minute)))
	e, _ := q.Pop(now)
	if q.Requeue(e, now) {
		t.Fatalf("requeue past max age must be refused")
	}
	if q.Len() != 0 {
		t.Fatalf("expired alert must not be reinserted")
	}
}

func TestExpireStale(t *testing.T) {
	q := New(Config{MaxAge: time.Minute})
	now := time.Now()
	q.Push(alert("old", model.PriorityLow, now.Add(-2*time.Minute)))
	q.Push(alert("fresh", model.PriorityLow, now))

	expired := q.ExpireStale(now)
	if len(expired) != 1 || expired[0].ID != "old" {
		t.Fatalf("unexpected expiry set: %+v", expired)
	}
	if expired[0].Status != model.AlertExpired {
		t.Fatalf("expired alert status = %s", expired[0].Status)
	}
	if q.Len() != 1 {
		t.Fatalf("fresh alert should remain queued")
	}
}

func TestRemove(t *testing.T) {
	q := New(Config{})
	now := time.Now()
	q.Push(alert("a1", model.PriorityHigh, now))
	if _, ok := q.Remove("a1"); !ok {
		t.Fatalf("remove should find the alert")
	}
	if _, ok := q.Pop(now); ok {
		t.Fatalf("removed alert must not be popped")
	}
}

func TestPushDuplicateIgnored(t *testing.T) {
	q := New(Config{})
	now := time.Now()
	q.Push(alert("a1", model.PriorityHigh, now))
	q.Push(alert("a1", model.PriorityLow, now))
	if q.Len() != 1 {
		t.Fatalf("duplicate push should be ignored, len = %d", q.Len())
	}
}
