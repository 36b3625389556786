// Package intake maintains the priority-ordered backlog of unresolved alerts.
package intake

import (
	"container/heap"
	"sort"
	"sync"
	"time"

	"github.com/kestrel-ops/kestrel/core/model"
)

// Config defines requeue backoff and expiry behavior.
type Config struct {
	// BaseBackoff is the first requeue delay; each attempt doubles it.
	BaseBackoff time.Duration `json:"base_backoff"`
	// MaxBackoff caps the exponential delay.
	MaxBackoff time.Duration `json:"max_backoff"`
	// MaxAge expires alerts that stayed unresolved this long.
	MaxAge time.Duration `json:"max_age"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.BaseBackoff <= 0 {
		c.BaseBackoff = 2 * time.Second
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = 2 * time.Minute
	}
	if c.MaxAge <= 0 {
		c.MaxAge = 30 * time.Minute
	}
}

// Entry is a queued alert together with its assignment attempt count.
type Entry struct {
	Alert    model.Alert
	Attempts int
}

type item struct {
	entry     Entry
	notBefore time.Time
	index     int
}

// ordering: priority desc, created_at asc, id asc.
type itemHeap []*item

func (h itemHeap) Len() int { return len(h) }
func (h itemHeap) Less(i, j int) bool {
	a, b := h[i].entry.Alert, h[j].entry.Alert
	if a.Priority != b.Priority {
		return a.Priority > b.Priority
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID < b.ID
}
func (h itemHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}
func (h *itemHeap) Push(x any) {
	it := x.(*item)
	it.index = len(*h)
	*h = append(*h, it)
}
func (h *itemHeap) Pop() any {
	old := *h
	n := len(old)
	it := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return it
}

// Queue is a thread-safe priority backlog with exponential requeue backoff.
type Queue struct {
	cfg  Config
	mu   sync.Mutex
	h    itemHeap
	byID map[string]*item
}

// New creates an empty queue.
func New(cfg Config) *Queue {
	cfg.SetDefaults()
	return &Queue{cfg: cfg, byID: make(map[string]*item)}
}

// Push enqueues a fresh pending alert. Duplicate ids are ignored.
func (q *Queue) Push(a model.Alert) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, ok := q.byID[a.ID]; ok {
		return
	}
	a.Status = model.AlertPending
	it := &item{entry: Entry{Alert: a}}
	q.byID[a.ID] = it
	heap.Push(&q.h, it)
}

// Pop removes and returns the highest-priority, oldest alert whose backoff
// delay has elapsed. Alerts still backing off stay queued.
func (q *Queue) Pop(now time.Time) (Entry, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	var skipped []*item
	defer func() {
		for _, it := range skipped {
			heap.Push(&q.h, it)
		}
	}()
	for q.h.Len() > 0 {
		it := heap.Pop(&q.h).(*item)
		if it.notBefore.After(now) {
			skipped = append(skipped, it)
			continue
		}
		delete(q.byID, it.entry.Alert.ID)
		return it.entry, true
	}
	return Entry{}, false
}

// Requeue puts a popped alert back with exponential backoff. It returns false
// when the alert exceeded its maximum age; the alert is then not reinserted
// and the caller owns marking it expired.
func (q *Queue) Requeue(e Entry, now time.Time) bool {
	if now.Sub(e.Alert.CreatedAt) > q.cfg.MaxAge {
		return false
	}
	delay := q.cfg.BaseBackoff << uint(e.Attempts)
	if delay > q.cfg.MaxBackoff || delay <= 0 {
		delay = q.cfg.MaxBackoff
	}
	e.Attempts++
	e.Alert.Status = model.AlertPending

	q.mu.Lock()
	defer q.mu.Unlock()
	if _, ok := q.byID[e.Alert.ID]; ok {
		return true
	}
	it := &item{entry: e, notBefore: now.Add(delay)}
	q.byID[e.Alert.ID] = it
	heap.Push(&q.h, it)
	return true
}

// Remove drops the alert from the backlog, e.g. on an external cancel.
func (q *Queue) Remove(id string) (model.Alert, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	it, ok := q.byID[id]
	if !ok {
		return model.Alert{}, false
	}
	heap.Remove(&q.h, it.index)
	delete(q.byID, id)
	return it.entry.Alert, true
}

// ExpireStale removes and returns all queued alerts beyond the maximum age.
func (q *Queue) ExpireStale(now time.Time) []model.Alert {
	q.mu.Lock()
	defer q.mu.Unlock()
	var expired []model.Alert
	for _, it := range q.byID {
		if now.Sub(it.entry.Alert.CreatedAt) > q.cfg.MaxAge {
			a := it.entry.Alert
			a.Status = model.AlertExpired
			expired = append(expired, a)
		}
	}
	for _, a := range expired {
		it := q.byID[a.ID]
		heap.Remove(&q.h, it.index)
		delete(q.byID, a.ID)
	}
	return expired
}

// List returns a snapshot of all queued alerts in pop order.
func (q *Queue) List() []model.Alert {
	q.mu.Lock()
	out := make([]model.Alert, 0, len(q.byID))
	for _, it := range q.byID {
		out = append(out, it.entry.Alert)
	}
	q.mu.Unlock()
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Priority != b.Priority {
			return a.Priority > b.Priority
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
	return out
}

// Len returns the number of queued alerts.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.h.Len()
}
