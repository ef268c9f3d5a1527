package entity

import "contentaugment/internal/domain/valueobject"

// ItemOutcome is the recorded result of one item within a job.
type ItemOutcome struct {
	ItemID string                    `json:"item_id"`
	Status valueobject.OutcomeStatus `json:"status"`
	Detail string                    `json:"detail,omitempty"`
}

func UpdatedOutcome(itemID string) ItemOutcome {
	return ItemOutcome{ItemID: itemID, Status: valueobject.OutcomeUpdated}
}

func SkippedOutcome(itemID, reason string) ItemOutcome {
	return ItemOutcome{ItemID: itemID, Status: valueobject.OutcomeSkipped, Detail: reason}
}

func FailedOutcome(itemID, message string) ItemOutcome {
	return ItemOutcome{ItemID: itemID, Status: valueobject.OutcomeFailed, Detail: message}
}

func PreviewOutcome(itemID, preview string) ItemOutcome {
	return ItemOutcome{ItemID: itemID, Status: valueobject.OutcomePreview, Detail: preview}
}
