package domain

// Intent is the closed set of workflows a conversation can lock onto.
type Intent string

const (
	IntentNone            Intent = ""
	IntentCustomerLookup  Intent = "customer_lookup"
	IntentOrderDetail     Intent = "order_detail_query"
	IntentBillingIssue    Intent = "billing_issue"
	IntentReturnOrder     Intent = "return_order"
	IntentOrderStatus     Intent = "order_status"
	IntentFAQ             Intent = "faq"
)

// Slot names a piece of information a workflow requires before it can
// complete.
const (
	SlotOrderID    = "order_id"
	SlotCustomerID = "customer_id"
)

// RequiredSlots returns the slots an intent needs filled before its workflow
// can run to completion. FAQ needs nothing.
func (i Intent) RequiredSlots() []string {
	switch i {
	case IntentCustomerLookup:
		return []string{SlotCustomerID}
	case IntentOrderDetail, IntentBillingIssue, IntentReturnOrder, IntentOrderStatus:
		return []string{SlotOrderID}
	default:
		return nil
	}
}
