package dto

// SyncAugmentRequest runs a small batch inline. OperationType falls back to
// the configured default when empty.
type SyncAugmentRequest struct {
	ItemIDs       []string `json:"item_ids"`
	DryRun        bool     `json:"dry_run,omitempty"`
	OperationType string   `json:"operation_type,omitempty"`
}

// SyncSummary aggregates the outcomes of a synchronous run.
type SyncSummary struct {
	Total     int `json:"total"`
	Processed int `json:"processed"`
	Updated   int `json:"updated"`
	Previewed int `json:"previewed"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`
}

// SyncAugmentResponse carries every outcome of a synchronous run.
type SyncAugmentResponse struct {
	Success bool          `json:"success"`
	Summary SyncSummary   `json:"summary"`
	Results []ItemOutcome `json:"results"`
	DryRun  bool          `json:"dryRun"`
}

// BatchTooLargeResponse is the 400 body for an oversized synchronous request.
type BatchTooLargeResponse struct {
	Error         string `json:"error"`
	Message       string `json:"message"`
	Cap           int    `json:"cap"`
	ReceivedCount int    `json:"received_count"`
}
