package interfaces

import (
	"context"
	"time"

	fltmodels "gitlab.com/fleetsense/flt.device_server/src/production/FLT.Models"
)

// LogQueryParams represents filters and pagination for log queries
type LogQueryParams struct {
	Event string
	Page  int
	Limit int
}

// LogQueryResult represents a paginated log listing, newest first
type LogQueryResult struct {
	Items []fltmodels.LogEntry `json:"items"`
	Total int64                `json:"total"`
	Page  int                  `json:"page"`
	Limit int                  `json:"limit"`
}

// UsageSummary represents the numeric reduction over matching log
// entries. A window with no matching entries yields the all-zero
// summary, not an error.
type UsageSummary struct {
	TotalValue float64 `json:"totalValue"`
	Count      int64   `json:"count"`
	AvgValue   float64 `json:"avgValue"`
	MaxValue   float64 `json:"maxValue"`
	MinValue   float64 `json:"minValue"`
}

type LogRepository interface {
	// Insert appends a single entry; entries are immutable once written
	Insert(ctx context.Context, entry *fltmodels.LogEntry) (*fltmodels.LogEntry, error)

	// Query returns entries for a device, newest first, offset/limit paged
	Query(ctx context.Context, deviceID string, params LogQueryParams) (*LogQueryResult, error)

	// SummarizeUsage filters entries to the given event names with
	// timestamp >= since (inclusive) and reduces their numeric values.
	// Non-numeric values are excluded from the reduction.
	SummarizeUsage(ctx context.Context, deviceID string, events []string, since time.Time) (*UsageSummary, error)

	// RecentSince returns the newest entries in the window regardless of
	// event name, capped at limit.
	RecentSince(ctx context.Context, deviceID string, since time.Time, limit int) ([]fltmodels.LogEntry, error)

	// DeleteByDevice removes every entry for a device. Used only by the
	// registry's cascade delete.
	DeleteByDevice(ctx context.Context, deviceID string) (int64, error)
}
