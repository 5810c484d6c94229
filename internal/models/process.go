package models

import "time"

// Process is the per-user scratch record of the in-flight workflow.
// TelegramUserID is the identity key; every other field belongs to the
// current flow and is wiped when a new flow starts or the user cancels.
type Process struct {
	TelegramUserID int64

	Operation string
	Chain     string
	Protocol  string
	Ticker    string
	Amount    string
	Recipient string
	Payload   string

	// Fee snapshot taken when the proposal was shown.
	FeeRate    string
	ReviewedAt time.Time

	// Message carrying the review keyboard, so it can be removed later.
	ReviewMessageID int64
}

func (p *Process) HasReview() bool {
	return !p.ReviewedAt.IsZero() && p.FeeRate != ""
}

// ClearReview drops the fee snapshot, keeping collected inputs.
func (p *Process) ClearReview() {
	p.FeeRate = ""
	p.ReviewedAt = time.Time{}
	p.ReviewMessageID = 0
}
