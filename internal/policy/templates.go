// Package policy selects final responses deterministically. Every customer-
// facing sentence that closes a request lives in a fixed template table
// keyed by (action, order status); nothing here is generated at runtime.
package policy

import (
	"strings"

	"github.com/ashureev/orderdesk/internal/domain"
)

// Actions the response table is keyed by.
const (
	ActionRefund      = "refund"
	ActionReplacement = "replacement"
	ActionCancel      = "cancel"
	ActionGeneral     = "general"
	ActionTracking    = "tracking"
)

type templateKey struct {
	action string
	status domain.OrderStatus
}

var responseTemplates = map[templateKey]string{
	// Refund.
	{ActionRefund, domain.StatusProcessing}:      "I'm sorry for the inconvenience. I've successfully initiated a refund for order #{order_id}. The amount will be credited within 3–5 business days.",
	{ActionRefund, domain.StatusUnknown}:         "I'm sorry for the inconvenience. I've successfully initiated a refund for order #{order_id}. The amount will be credited within 3–5 business days.",
	{ActionRefund, domain.StatusShipped}:         "I'm sorry for the inconvenience. Order #{order_id} has already been shipped, so a refund isn't possible right now. I can help with a replacement or return after delivery.",
	{ActionRefund, domain.StatusDelivered}:       "I'm sorry for the inconvenience. Order #{order_id} has already been delivered, so a refund isn't possible right now. I can help with a return process instead.",
	{ActionRefund, domain.StatusCancelled}:       "Order #{order_id} has already been cancelled and a refund is being processed. You'll receive the credit within 3–5 business days.",
	{ActionRefund, domain.StatusRefunded}:        "Order #{order_id} has already been refunded. The credit should appear in your account within 3–5 business days.",
	{ActionRefund, domain.StatusReplacementSent}: "A replacement for order #{order_id} is already on the way, so a refund isn't possible right now. I can help with a return once it arrives.",

	// Replacement.
	{ActionReplacement, domain.StatusProcessing}:      "Sorry about the mix-up. I've initiated a replacement for order #{order_id}. The correct item will be delivered within 2–3 business days.",
	{ActionReplacement, domain.StatusUnknown}:         "Sorry about the mix-up. I've initiated a replacement for order #{order_id}. The correct item will be delivered within 2–3 business days.",
	{ActionReplacement, domain.StatusShipped}:         "Sorry about the mix-up. Since order #{order_id} has already shipped, I've arranged for a replacement to be sent. You'll receive the correct item within 2–3 business days.",
	{ActionReplacement, domain.StatusDelivered}:       "Sorry about the mix-up. I've initiated a replacement for order #{order_id}. The correct item will be delivered within 2–3 business days.",
	{ActionReplacement, domain.StatusCancelled}:       "I apologize for the inconvenience. Order #{order_id} has been cancelled, so I can't arrange a replacement. I can help process a new order instead.",
	{ActionReplacement, domain.StatusRefunded}:        "I apologize for the inconvenience. Order #{order_id} has been refunded, so I can't arrange a replacement. I can help you place a new order instead.",
	{ActionReplacement, domain.StatusReplacementSent}: "A replacement for order #{order_id} has already been sent. You'll receive it within 2–3 business days.",

	// Cancellation.
	{ActionCancel, domain.StatusProcessing}:      "Your order #{order_id} has been successfully cancelled. A full refund will be processed within 3–5 business days.",
	{ActionCancel, domain.StatusUnknown}:         "Your order #{order_id} has been successfully cancelled. A full refund will be processed within 3–5 business days.",
	{ActionCancel, domain.StatusShipped}:         "I'm sorry, but order #{order_id} has already been shipped and cannot be cancelled. I can help arrange a return after delivery.",
	{ActionCancel, domain.StatusDelivered}:       "I'm sorry, but order #{order_id} has already been delivered and cannot be cancelled. I can help with the return process instead.",
	{ActionCancel, domain.StatusCancelled}:       "Order #{order_id} has already been cancelled. A full refund will be processed within 3–5 business days.",
	{ActionCancel, domain.StatusRefunded}:        "Order #{order_id} has already been cancelled and refunded. The credit should appear in your account within 3–5 business days.",
	{ActionCancel, domain.StatusReplacementSent}: "I'm sorry, but a replacement for order #{order_id} has already been sent and the order cannot be cancelled. I can help arrange a return after delivery.",

	// General, for requests without a specific issue type.
	{ActionGeneral, domain.StatusProcessing}:      "I've successfully processed your request for order #{order_id}. You'll receive confirmation and updates shortly.",
	{ActionGeneral, domain.StatusUnknown}:         "I've successfully processed your request for order #{order_id}. You'll receive confirmation and updates shortly.",
	{ActionGeneral, domain.StatusShipped}:         "I understand your concern about order #{order_id}. Since it has already shipped, I've noted your request and our team will follow up with you shortly.",
	{ActionGeneral, domain.StatusDelivered}:       "I understand your concern about order #{order_id}. Since it has been delivered, I've noted your request and our team will follow up with you shortly.",
	{ActionGeneral, domain.StatusCancelled}:       "Order #{order_id} has already been cancelled. If you need further assistance, please let me know.",
	{ActionGeneral, domain.StatusRefunded}:        "Order #{order_id} has already been refunded. The credit should appear in your account within 3–5 business days.",
	{ActionGeneral, domain.StatusReplacementSent}: "A replacement for order #{order_id} has already been sent. If you need further assistance, please let me know.",

	// Tracking, never prompts for a resolution.
	{ActionTracking, domain.StatusProcessing}:      "Order #{order_id} is currently being processed and will ship soon.",
	{ActionTracking, domain.StatusUnknown}:         "Order #{order_id} is currently being processed and will ship soon.",
	{ActionTracking, domain.StatusShipped}:         "Order #{order_id} has been shipped and is on the way. You should receive it by tomorrow.",
	{ActionTracking, domain.StatusDelivered}:       "Order #{order_id} has been delivered successfully.",
	{ActionTracking, domain.StatusCancelled}:       "Order #{order_id} has been cancelled.",
	{ActionTracking, domain.StatusRefunded}:        "Order #{order_id} has been refunded.",
	{ActionTracking, domain.StatusReplacementSent}: "A replacement for order #{order_id} has been sent and is on the way.",
}

// Missing-info prompts, keyed by what is missing.
const (
	MissingOrderID    = "order_id"
	MissingIssue      = "issue"
	MissingResolution = "resolution"
)

var missingInfoResponses = map[string]string{
	MissingOrderID:    "I can help with that. Please share your order number so I can proceed.",
	MissingIssue:      "I can help with your order. Could you tell me what the issue is? (wrong item, delivery problem, or general concern)",
	MissingResolution: "I understand there's an issue with your order. How would you like me to help? (refund, replacement, or cancellation)",
}

// PostResolutionResponse is the only thing said after a flow has completed.
const PostResolutionResponse = "Is there anything else I can help you with?"

const finalFallback = "I've processed your request for order #{order_id}. You'll receive confirmation shortly."

// GetResponse returns the canned response for an action applied to an order
// in the given status. Unknown combinations fall back to the general row for
// that status, then to a hard-coded closing line. The order id is always
// substituted in.
func GetResponse(action string, status domain.OrderStatus, orderID string) string {
	if action == "" {
		action = ActionGeneral
	}
	action = strings.ToLower(action)
	if status == "" {
		status = domain.StatusUnknown
	}

	tmpl, ok := responseTemplates[templateKey{action, status}]
	if !ok {
		tmpl, ok = responseTemplates[templateKey{ActionGeneral, status}]
	}
	if !ok {
		tmpl = finalFallback
	}
	return strings.ReplaceAll(tmpl, "{order_id}", orderID)
}

// MissingInfoResponse returns the prompt for a missing field.
func MissingInfoResponse(missing string) string {
	if r, ok := missingInfoResponses[missing]; ok {
		return r
	}
	return "I need a bit more information to help you with your request."
}

// questionIndicators mark a response as interrogative.
var questionIndicators = []string{"?", "could you", "can you", "please provide", "what", "how", "when", "where"}

// Validate checks a candidate final response: it must name the order id, and
// it must not ask a question unless it is one of the sanctioned prompts
// (missing-info or post-resolution).
func Validate(response, orderID string) bool {
	if response == "" || orderID == "" {
		return false
	}
	if !strings.Contains(response, orderID) && response != PostResolutionResponse {
		return false
	}

	lower := strings.ToLower(response)
	asksQuestion := false
	for _, ind := range questionIndicators {
		if strings.Contains(lower, ind) {
			asksQuestion = true
			break
		}
	}
	if !asksQuestion {
		return true
	}

	if response == PostResolutionResponse {
		return true
	}
	for _, allowed := range missingInfoResponses {
		if response == allowed {
			return true
		}
	}
	return false
}
