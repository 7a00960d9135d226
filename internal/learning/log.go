package learning

import (
	"context"
	"sync"
)

// FeedbackLog is the append-only record of all feedback used for batch
// recalibration.
type FeedbackLog interface {
	// Append stores e and returns the number of entries logged so far.
	// inserted is false when an entry with the same event ID is already
	// logged; the log is left unchanged in that case.
	Append(ctx context.Context, e Entry) (count int, inserted bool, err error)
	// Entries returns up to limit most recent entries, oldest first. limit <= 0 means all.
	Entries(ctx context.Context, limit int) ([]Entry, error)
}

// MemoryLog keeps the feedback log in process memory.
type MemoryLog struct {
	mu      sync.Mutex
	entries []Entry
	ids     map[string]struct{}
}

func NewMemoryLog() *MemoryLog {
	return &MemoryLog{ids: make(map[string]struct{})}
}

// Append dedupes by event ID. Entries without an ID are always appended.
func (l *MemoryLog) Append(_ context.Context, e Entry) (int, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if id := e.Event.ID; id != "" {
		if _, ok := l.ids[id]; ok {
			return len(l.entries), false, nil
		}
		if l.ids == nil {
			l.ids = make(map[string]struct{})
		}
		l.ids[id] = struct{}{}
	}
	l.entries = append(l.entries, e)
	return len(l.entries), true, nil
}

func (l *MemoryLog) Entries(_ context.Context, limit int) ([]Entry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	from := 0
	if limit > 0 && len(l.entries) > limit {
		from = len(l.entries) - limit
	}
	out := make([]Entry, len(l.entries)-from)
	copy(out, l.entries[from:])
	return out, nil
}

// FeedbackJobIDs lists the jobs candidateID has given feedback on.
func (l *MemoryLog) FeedbackJobIDs(_ context.Context, candidateID string) ([]string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	seen := make(map[string]struct{})
	var ids []string
	for _, e := range l.entries {
		if e.Event.CandidateID != candidateID {
			continue
		}
		if _, ok := seen[e.Event.JobID]; ok {
			continue
		}
		seen[e.Event.JobID] = struct{}{}
		ids = append(ids, e.Event.JobID)
	}
	return ids, nil
}
