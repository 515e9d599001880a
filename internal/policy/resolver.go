package policy

import (
	"fmt"
	"strings"

	"github.com/ashureev/orderdesk/internal/domain"
)

// ApplyBusinessLogic maps a requested resolution onto the status the order
// should end up in. Resolutions that are not applicable in the current
// status return the status unchanged, and the caller picks the matching
// already-shipped/already-refunded template instead. The proposed status
// still goes through the transition table, which rejects what it must.
func ApplyBusinessLogic(current domain.OrderStatus, resolution string) domain.OrderStatus {
	switch resolution {
	case ActionTracking:
		if current == domain.StatusUnknown {
			return domain.StatusShipped
		}
		return current
	case ActionRefund:
		if current == domain.StatusProcessing || current == domain.StatusUnknown {
			return domain.StatusRefunded
		}
		return current
	case ActionReplacement:
		switch current {
		case domain.StatusProcessing, domain.StatusUnknown,
			domain.StatusShipped, domain.StatusDelivered:
			return domain.StatusReplacementSent
		}
		return current
	case ActionCancel:
		if current == domain.StatusProcessing || current == domain.StatusUnknown {
			return domain.StatusCancelled
		}
		return current
	}
	return current
}

// validIssues are the issue values a refund or replacement request may carry.
var validIssues = map[string]bool{
	"wrong_item": true, "delivery": true, "damaged": true,
	"general": true, "cancel": true, "tracking": true,
}

// ValidOrderID reports whether an order id is plausible enough to act on.
// Anything shorter than three characters is treated as noise.
func ValidOrderID(orderID string) bool {
	return len(strings.TrimSpace(orderID)) >= 3
}

// ValidateCompleteRequest is the gate in front of deterministic resolution:
// the order id must be at least three characters, tracking validates on its
// own, cancel needs nothing further, and refund or replacement must carry a
// recognized issue.
func ValidateCompleteRequest(orderID, issue, resolution string) bool {
	if !ValidOrderID(orderID) {
		return false
	}
	if issue == ActionTracking && resolution == ActionTracking {
		return true
	}
	switch resolution {
	case ActionRefund, ActionReplacement, ActionCancel, ActionTracking:
	default:
		return false
	}
	if resolution == ActionCancel {
		return true
	}
	return validIssues[issue]
}

// ResolverFallback is the last-resort closing line when a selected template
// fails validation.
func ResolverFallback(resolution, orderID string) string {
	return fmt.Sprintf("I've processed your %s request for order #%s. You'll receive confirmation shortly.", resolution, orderID)
}
