package models

// WorkflowState is the persisted position of a user inside a transaction flow.
type WorkflowState string

// Workflow states
const (
	StateIdle WorkflowState = "idle"

	StateMintProtocol WorkflowState = "mint_protocol"
	StateMintTicker   WorkflowState = "mint_ticker"
	StateMintAmount   WorkflowState = "mint_amount"

	StateTransferProtocol  WorkflowState = "transfer_protocol"
	StateTransferTicker    WorkflowState = "transfer_ticker"
	StateTransferAmount    WorkflowState = "transfer_amount"
	StateTransferRecipient WorkflowState = "transfer_recipient"

	StateSendRecipient WorkflowState = "send_recipient"
	StateSendAmount    WorkflowState = "send_amount"

	StateCustomPayload WorkflowState = "custom_payload"

	StateReview     WorkflowState = "review"
	StateConfirming WorkflowState = "confirming"
)

// Operation types
const (
	OpMint     = "mint"
	OpTransfer = "transfer"
	OpSend     = "send"
	OpCustom   = "custom"
)

// Retry reasons for looping a confirmation back to review.
const (
	RetryTimeout               = "timeout"
	RetryExpensiveFee          = "expensive_fee"
	RetryAddressNotInitialized = "address_not_initialized"
)

// ValidStateTransitions: from -> []to. Every non-idle state may also go back
// to idle (cancel), which IsValidTransition handles separately.
var ValidStateTransitions = map[WorkflowState][]WorkflowState{
	StateIdle: {StateMintProtocol, StateTransferProtocol, StateSendRecipient, StateCustomPayload},

	StateMintProtocol: {StateMintTicker},
	StateMintTicker:   {StateMintAmount},
	StateMintAmount:   {StateReview},

	StateTransferProtocol:  {StateTransferTicker},
	StateTransferTicker:    {StateTransferAmount},
	StateTransferAmount:    {StateTransferRecipient},
	StateTransferRecipient: {StateReview},

	StateSendRecipient: {StateSendAmount},
	StateSendAmount:    {StateReview},

	StateCustomPayload: {StateReview},

	// review -> review is the retry loop (timeout, fee spike, inactive account)
	StateReview:     {StateConfirming, StateReview},
	StateConfirming: {StateReview, StateIdle},
}

func IsValidTransition(from, to WorkflowState) bool {
	allowed, ok := ValidStateTransitions[from]
	if !ok {
		return false
	}
	if to == StateIdle {
		return true
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

// FirstInputState returns the state a fresh flow for op starts in.
func FirstInputState(op string) (WorkflowState, bool) {
	switch op {
	case OpMint:
		return StateMintProtocol, true
	case OpTransfer:
		return StateTransferProtocol, true
	case OpSend:
		return StateSendRecipient, true
	case OpCustom:
		return StateCustomPayload, true
	}
	return "", false
}

// IsInputState reports whether s collects user input before review.
func IsInputState(s WorkflowState) bool {
	return s != StateIdle && s != StateReview && s != StateConfirming && ValidStateTransitions[s] != nil
}
