package implementation

// ensureMetadataNotNull ensures Metadata is not nil to prevent null JSON issues
func ensureMetadataNotNull(metadata map[string]string) map[string]string {
	if metadata == nil {
		return make(map[string]string)
	}
	return metadata
}

// Device Repository (CRUD + liveness)
// ├── Create() - Register device
// ├── GetByID() - Owner-scoped lookup
// ├── List() - Owner's devices with type/status filters
// ├── Stats() - Counts grouped by status and type
// ├── Update() - Partial update of name/type/status/metadata
// ├── Delete() - Remove device (caller cascades logs)
// ├── RecordHeartbeat() - last_active_at + declared status
// ├── ListStaleActive() - Sweep scan
// └── DeactivateIfStale() - Sweep conditional write

// Log Repository (Append-Only Telemetry)
// ├── Insert() - Append entry
// ├── Query() - Device logs, newest first
// ├── SummarizeUsage() - Windowed numeric reduction
// ├── RecentSince() - Recent activity, capped
// └── DeleteByDevice() - Cascade delete only
