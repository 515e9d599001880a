package domain

import "time"

// OrderStatus is the closed set of states an order can be in.
type OrderStatus string

const (
	StatusUnknown         OrderStatus = "unknown"
	StatusProcessing      OrderStatus = "processing"
	StatusShipped         OrderStatus = "shipped"
	StatusDelivered       OrderStatus = "delivered"
	StatusCancelled       OrderStatus = "cancelled"
	StatusRefunded        OrderStatus = "refunded"
	StatusReplacementSent OrderStatus = "replacement_sent"
)

// AllStatuses lists every order status. Used by table-driven checks.
var AllStatuses = []OrderStatus{
	StatusUnknown, StatusProcessing, StatusShipped, StatusDelivered,
	StatusCancelled, StatusRefunded, StatusReplacementSent,
}

// orderTransitions is the single source of truth for legal status moves.
// CANCELLED and REFUNDED are terminal.
var orderTransitions = map[OrderStatus][]OrderStatus{
	StatusUnknown:         {StatusProcessing, StatusCancelled},
	StatusProcessing:      {StatusShipped, StatusCancelled, StatusReplacementSent},
	StatusShipped:         {StatusDelivered, StatusRefunded, StatusReplacementSent},
	StatusDelivered:       {StatusRefunded, StatusReplacementSent},
	StatusCancelled:       {},
	StatusRefunded:        {},
	StatusReplacementSent: {StatusDelivered},
}

// CanTransition reports whether from -> to is a legal order status move.
func CanTransition(from, to OrderStatus) bool {
	for _, allowed := range orderTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// Cancellable reports whether an order in this status can still be cancelled.
func (s OrderStatus) Cancellable() bool {
	return s == StatusUnknown || s == StatusProcessing
}

// Shipped reports whether the order has left the warehouse.
func (s OrderStatus) Shipped() bool {
	return s == StatusShipped || s == StatusDelivered
}

// OrderState is the per-session view of one order's lifecycle. It is created
// lazily on first reference to an order id and mutated only via TransitionTo.
type OrderState struct {
	OrderID        string      `json:"order_id"`
	Status         OrderStatus `json:"status"`
	DeliveryETA    string      `json:"delivery_eta,omitempty"`
	TrackingNumber string      `json:"tracking_number,omitempty"`
	CreatedAt      time.Time   `json:"created_at"`
	LastUpdated    time.Time   `json:"last_updated"`
}

// NewOrderState creates an order state in the UNKNOWN status.
func NewOrderState(orderID string) *OrderState {
	now := time.Now()
	return &OrderState{
		OrderID:     orderID,
		Status:      StatusUnknown,
		CreatedAt:   now,
		LastUpdated: now,
	}
}

// TransitionTo moves the order to target if the transition table allows it.
// On an illegal move it returns false and leaves the state untouched; callers
// treat that as "resolution not applicable in this status" and pick the
// status-appropriate canned response instead of erroring.
func (o *OrderState) TransitionTo(target OrderStatus) bool {
	if !CanTransition(o.Status, target) {
		return false
	}
	o.Status = target
	o.LastUpdated = time.Now()
	return true
}

// UpdateTracking records a tracking number and optional delivery estimate.
func (o *OrderState) UpdateTracking(trackingNumber, deliveryETA string) {
	o.TrackingNumber = trackingNumber
	if deliveryETA != "" {
		o.DeliveryETA = deliveryETA
	}
	o.LastUpdated = time.Now()
}
