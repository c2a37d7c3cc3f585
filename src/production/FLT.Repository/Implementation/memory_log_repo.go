package implementation

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	fltmodels "gitlab.com/fleetsense/flt.device_server/src/production/FLT.Models"
	interfaces "gitlab.com/fleetsense/flt.device_server/src/production/FLT.Repository/Interfaces"
)

// MemoryLogRepository is the in-process log store backing
// STORAGE_BACKEND=memory and the unit tests.
type MemoryLogRepository struct {
	mu      sync.RWMutex
	entries map[string][]fltmodels.LogEntry // keyed by device ID
}

func NewMemoryLogRepository() *MemoryLogRepository {
	return &MemoryLogRepository{entries: make(map[string][]fltmodels.LogEntry)}
}

func (r *MemoryLogRepository) Insert(_ context.Context, entry *fltmodels.LogEntry) (*fltmodels.LogEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if entry.LogID == "" {
		entry.LogID = uuid.New().String()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}

	r.entries[entry.DeviceID] = append(r.entries[entry.DeviceID], *entry)
	return entry, nil
}

func (r *MemoryLogRepository) Query(_ context.Context, deviceID string, params interfaces.LogQueryParams) (*interfaces.LogQueryResult, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	page := params.Page
	if page < 1 {
		page = 1
	}
	limit := params.Limit
	if limit < 1 {
		limit = 10
	}

	var matched []fltmodels.LogEntry
	for _, entry := range r.entries[deviceID] {
		if params.Event != "" && entry.Event != params.Event {
			continue
		}
		matched = append(matched, entry)
	}
	sortNewestFirst(matched)

	total := int64(len(matched))
	start := (page - 1) * limit
	if start > len(matched) {
		start = len(matched)
	}
	end := start + limit
	if end > len(matched) {
		end = len(matched)
	}

	return &interfaces.LogQueryResult{
		Items: matched[start:end],
		Total: total,
		Page:  page,
		Limit: limit,
	}, nil
}

func (r *MemoryLogRepository) SummarizeUsage(_ context.Context, deviceID string, events []string, since time.Time) (*interfaces.UsageSummary, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	eventSet := make(map[string]bool, len(events))
	for _, e := range events {
		eventSet[e] = true
	}

	summary := &interfaces.UsageSummary{}
	for _, entry := range r.entries[deviceID] {
		if !eventSet[entry.Event] || entry.Timestamp.Before(since) {
			continue
		}
		value, ok := numericValue(entry.Value)
		if !ok {
			continue
		}
		if summary.Count == 0 || value > summary.MaxValue {
			summary.MaxValue = value
		}
		if summary.Count == 0 || value < summary.MinValue {
			summary.MinValue = value
		}
		summary.TotalValue += value
		summary.Count++
	}
	if summary.Count > 0 {
		summary.AvgValue = summary.TotalValue / float64(summary.Count)
	}

	return summary, nil
}

func (r *MemoryLogRepository) RecentSince(_ context.Context, deviceID string, since time.Time, limit int) ([]fltmodels.LogEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var matched []fltmodels.LogEntry
	for _, entry := range r.entries[deviceID] {
		if entry.Timestamp.Before(since) {
			continue
		}
		matched = append(matched, entry)
	}
	sortNewestFirst(matched)

	if len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

func (r *MemoryLogRepository) DeleteByDevice(_ context.Context, deviceID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	deleted := int64(len(r.entries[deviceID]))
	delete(r.entries, deviceID)
	return deleted, nil
}

func sortNewestFirst(entries []fltmodels.LogEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Timestamp.After(entries[j].Timestamp)
	})
}

// numericValue extracts a float64 from a log value. Strings, booleans
// and objects are excluded from the numeric aggregate.
func numericValue(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}
