package enums

import "fmt"

// ReceiptStatus describes the lifecycle state of an uploaded receipt.
type ReceiptStatus string

const (
	ReceiptStatusPending    ReceiptStatus = "pending"
	ReceiptStatusUploaded   ReceiptStatus = "uploaded"
	ReceiptStatusProcessing ReceiptStatus = "processing"
	ReceiptStatusReady      ReceiptStatus = "ready"
	ReceiptStatusFailed     ReceiptStatus = "failed"
)

var validReceiptStatuses = []ReceiptStatus{
	ReceiptStatusPending,
	ReceiptStatusUploaded,
	ReceiptStatusProcessing,
	ReceiptStatusReady,
	ReceiptStatusFailed,
}

// Forward edges of the lifecycle graph. Failed is reachable from every
// non-terminal state; no edge points backwards.
var receiptStatusTransitions = map[ReceiptStatus][]ReceiptStatus{
	ReceiptStatusPending:    {ReceiptStatusUploaded, ReceiptStatusFailed},
	ReceiptStatusUploaded:   {ReceiptStatusProcessing, ReceiptStatusReady, ReceiptStatusFailed},
	ReceiptStatusProcessing: {ReceiptStatusReady, ReceiptStatusFailed},
	ReceiptStatusReady:      {},
	ReceiptStatusFailed:     {},
}

// String returns the literal string for the status.
func (s ReceiptStatus) String() string {
	return string(s)
}

// IsValid reports whether the status is known.
func (s ReceiptStatus) IsValid() bool {
	for _, candidate := range validReceiptStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the status admits no further transitions.
func (s ReceiptStatus) IsTerminal() bool {
	return s == ReceiptStatusReady || s == ReceiptStatusFailed
}

// CanTransition reports whether the lifecycle graph allows moving to next.
func (s ReceiptStatus) CanTransition(next ReceiptStatus) bool {
	for _, candidate := range receiptStatusTransitions[s] {
		if candidate == next {
			return true
		}
	}
	return false
}

// ParseReceiptStatus converts raw input into a ReceiptStatus.
func ParseReceiptStatus(value string) (ReceiptStatus, error) {
	for _, candidate := range validReceiptStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid receipt status %q", value)
}
