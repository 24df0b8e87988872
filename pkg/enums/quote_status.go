package enums

import "fmt"

// QuoteStatus tracks the lifecycle of a customer quote.
type QuoteStatus string

const (
	QuoteStatusPending   QuoteStatus = "pending"
	QuoteStatusApproved  QuoteStatus = "approved"
	QuoteStatusAccepted  QuoteStatus = "accepted"
	QuoteStatusRejected  QuoteStatus = "rejected"
	QuoteStatusConverted QuoteStatus = "converted"
	QuoteStatusCancelled QuoteStatus = "cancelled"
)

var validQuoteStatuses = []QuoteStatus{
	QuoteStatusPending,
	QuoteStatusApproved,
	QuoteStatusAccepted,
	QuoteStatusRejected,
	QuoteStatusConverted,
	QuoteStatusCancelled,
}

// String implements fmt.Stringer.
func (q QuoteStatus) String() string {
	return string(q)
}

// IsValid reports whether the value is a known QuoteStatus.
func (q QuoteStatus) IsValid() bool {
	for _, candidate := range validQuoteStatuses {
		if candidate == q {
			return true
		}
	}
	return false
}

// ParseQuoteStatus converts raw input into a QuoteStatus.
func ParseQuoteStatus(value string) (QuoteStatus, error) {
	for _, candidate := range validQuoteStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid quote status %q", value)
}

// QuoteAction is a transition request against a quote.
type QuoteAction string

const (
	QuoteActionApprove QuoteAction = "approve"
	QuoteActionAccept  QuoteAction = "accept"
	QuoteActionReject  QuoteAction = "reject"
	QuoteActionCancel  QuoteAction = "cancel"
	QuoteActionConvert QuoteAction = "convert"
)

func ParseQuoteAction(value string) (QuoteAction, error) {
	switch a := QuoteAction(value); a {
	case QuoteActionApprove, QuoteActionAccept, QuoteActionReject, QuoteActionCancel, QuoteActionConvert:
		return a, nil
	}
	return "", fmt.Errorf("invalid quote action %q", value)
}
