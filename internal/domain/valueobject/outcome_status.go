package valueobject

import "fmt"

// OutcomeStatus is the recorded result of processing a single item.
type OutcomeStatus string

// Outcome status constants.
const (
	OutcomeUpdated OutcomeStatus = "updated"
	OutcomeSkipped OutcomeStatus = "skipped"
	OutcomeFailed  OutcomeStatus = "failed"
	OutcomePreview OutcomeStatus = "preview"
)

var validOutcomeStatuses = map[OutcomeStatus]bool{
	OutcomeUpdated: true,
	OutcomeSkipped: true,
	OutcomeFailed:  true,
	OutcomePreview: true,
}

// NewOutcomeStatus creates a new OutcomeStatus with validation.
func NewOutcomeStatus(status string) (OutcomeStatus, error) {
	s := OutcomeStatus(status)
	if !validOutcomeStatuses[s] {
		return "", fmt.Errorf("invalid outcome status: %s", status)
	}
	return s, nil
}

// String returns the string representation of the status.
func (s OutcomeStatus) String() string {
	return string(s)
}

// IsSuccess reports whether the outcome counts toward successful items.
// A dry-run preview is a success even though nothing was written.
func (s OutcomeStatus) IsSuccess() bool {
	return s == OutcomeUpdated || s == OutcomePreview
}
