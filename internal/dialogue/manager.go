// Package dialogue runs the multi-turn workflow engine: it locks a
// conversation onto an intent, fills the slots that intent needs, and
// answers from the reference datasets. Intent detection is keyword-based
// with a strict priority order; a failed lookup never resets the intent.
package dialogue

import (
	"fmt"
	"strings"

	"github.com/ashureev/orderdesk/internal/dataset"
	"github.com/ashureev/orderdesk/internal/domain"
	"github.com/ashureev/orderdesk/internal/nlu"
)

// Directory is what the manager needs from the reference data.
type Directory interface {
	OrderByID(orderID string) (dataset.OrderRecord, bool)
	CustomerByID(customerID string) (dataset.CustomerProfile, bool)
	FAQAnswer(question string) (string, bool)
}

// Result is one workflow turn: the reply and a short state label describing
// where the conversation stands.
type Result struct {
	Response string
	State    string
}

// Manager drives workflows against the reference data.
type Manager struct {
	data Directory
}

// NewManager returns a workflow manager backed by the given data.
func NewManager(data Directory) *Manager {
	return &Manager{data: data}
}

// Intent keyword lists, checked in this exact order. Earlier lists win:
// "order details" must not be captured by billing, and "cancel" must reach
// the return workflow before the FAQ list sees "issue" or "problem".
var (
	customerLookupKeywords = []string{
		"customer", "customer id", "customer details", "customer information",
		"cust", "details regarding customer", "customer profile",
	}
	orderDetailKeywords = []string{
		"price", "cost", "amount", "details", "detail",
		"product", "item", "ordered", "order details",
	}
	returnOrderKeywords = []string{
		"return", "exchange", "send back", "wrong item", "defective",
		"damaged", "not what i ordered", "incorrect", "faulty",
		"cancel", "cancellation", "cancel my order",
	}
	orderStatusKeywords = []string{
		"track", "status", "where is", "when will",
		"shipped", "arrive", "eta", "tracking", "delivered",
	}
	billingIssueKeywords = []string{
		"charged", "double", "refund", "payment", "billing",
		"debited", "money deducted",
	}
	faqKeywords = []string{
		"subscription", "food delivery", "internet", "connection", "issue",
		"problem", "help", "support", "question", "how to", "what is",
		"contact", "hours", "business", "app", "crashing", "technical",
		"coupon", "discount", "offer", "promo", "food", "restaurant",
	}
)

var intentPriority = []struct {
	intent   domain.Intent
	keywords []string
}{
	{domain.IntentCustomerLookup, customerLookupKeywords},
	{domain.IntentOrderDetail, orderDetailKeywords},
	{domain.IntentReturnOrder, returnOrderKeywords},
	{domain.IntentOrderStatus, orderStatusKeywords},
	{domain.IntentBillingIssue, billingIssueKeywords},
	{domain.IntentFAQ, faqKeywords},
}

// DetectIntent matches the message against the keyword lists in priority
// order. It returns IntentNone when nothing matches, leaving the caller
// free to fall back to FAQ search or further handling.
func DetectIntent(message string) domain.Intent {
	lower := strings.ToLower(message)
	for _, p := range intentPriority {
		for _, kw := range p.keywords {
			if strings.Contains(lower, kw) {
				return p.intent
			}
		}
	}
	return domain.IntentNone
}

var completionKeywords = []string{
	"thank you", "thanks", "that helps", "perfect", "great",
	"solved", "resolved", "done", "that's all", "no more questions",
}

// IsCompletionSignal reports whether the user is wrapping up.
func IsCompletionSignal(message string) bool {
	lower := strings.ToLower(message)
	for _, kw := range completionKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

const completionResponse = "You're welcome! Feel free to reach out if you need any more help."

// Process handles one message against the session's dialogue state. The
// second return value is false when the manager has nothing to say: no
// pending slot, no active intent, and no intent detectable from the message.
func (m *Manager) Process(message string, sess *domain.Session) (Result, bool) {
	d := sess.Dialogue

	if IsCompletionSignal(message) {
		d.Reset()
		return Result{Response: completionResponse, State: "conversation_completed"}, true
	}

	if d.PendingSlot != "" {
		return m.fillSlot(message, sess), true
	}

	if d.ActiveIntent == domain.IntentNone {
		if detected := DetectIntent(message); detected != domain.IntentNone {
			d.ActiveIntent = detected
		}
	}

	if d.ActiveIntent == domain.IntentNone {
		return Result{}, false
	}
	return m.runWorkflow(message, sess), true
}

func (m *Manager) fillSlot(message string, sess *domain.Session) Result {
	d := sess.Dialogue

	switch d.PendingSlot {
	case domain.SlotOrderID:
		orderID := nlu.OrderIDSlot(message)
		if orderID == "" {
			return Result{
				Response: "I need your order number to help you. Please provide your order number (e.g., 45, ORD45, or #45).",
				State:    "awaiting_order_id",
			}
		}
		d.SetSlot(domain.SlotOrderID, orderID)
		sess.PersistentEntities["order_number"] = orderID
		return m.runWorkflow(message, sess)

	case domain.SlotCustomerID:
		customerID := nlu.CustomerIDSlot(message)
		if customerID == "" {
			return Result{
				Response: "I need a valid customer ID to help you. Please provide your customer ID (e.g., CUST0001, CUST000714).",
				State:    "awaiting_customer_id",
			}
		}
		d.SetSlot(domain.SlotCustomerID, customerID)
		return m.runWorkflow(message, sess)
	}

	return Result{
		Response: "I didn't understand that. Could you please provide the information I requested?",
		State:    "slot_filling_error",
	}
}

func (m *Manager) runWorkflow(message string, sess *domain.Session) Result {
	switch sess.Dialogue.ActiveIntent {
	case domain.IntentCustomerLookup:
		return m.customerLookup(message, sess)
	case domain.IntentOrderDetail:
		return m.orderDetail(message, sess)
	case domain.IntentOrderStatus:
		return m.orderStatus(message, sess)
	case domain.IntentReturnOrder:
		return m.returnOrder(message, sess)
	case domain.IntentBillingIssue:
		return m.billing(message, sess)
	default:
		return m.faq(message, sess)
	}
}

// requireOrderID resolves the order-id slot for a workflow: dialogue context
// first, then the current message. It returns the ask-for-it result when the
// slot stays empty.
func (m *Manager) requireOrderID(message string, sess *domain.Session, prompt, state string) (string, *Result) {
	d := sess.Dialogue
	if id, ok := d.Slot(domain.SlotOrderID); ok {
		return id, nil
	}
	if id := nlu.OrderIDSlot(message); id != "" {
		d.SetSlot(domain.SlotOrderID, id)
		return id, nil
	}
	d.AwaitSlot(domain.SlotOrderID)
	return "", &Result{Response: prompt, State: state}
}

const orderNotFoundRetry = "I couldn't find that order. Please recheck the order number."

// orderLookupMiss clears the bad id and re-asks, keeping the intent locked.
func (m *Manager) orderLookupMiss(sess *domain.Session, orderID, state string) Result {
	d := sess.Dialogue
	d.ClearSlot(domain.SlotOrderID)
	if sess.PersistentEntities["order_number"] == orderID {
		delete(sess.PersistentEntities, "order_number")
	}
	d.AwaitSlot(domain.SlotOrderID)
	return Result{Response: orderNotFoundRetry, State: state}
}

func (m *Manager) complete(sess *domain.Session) {
	sess.Dialogue.Reset()
}

func (m *Manager) customerLookup(message string, sess *domain.Session) Result {
	d := sess.Dialogue

	customerID, ok := d.Slot(domain.SlotCustomerID)
	if !ok {
		if id := nlu.CustomerIDSlot(message); id != "" {
			d.SetSlot(domain.SlotCustomerID, id)
			customerID = id
		} else {
			d.AwaitSlot(domain.SlotCustomerID)
			return Result{
				Response: "Please provide the customer ID you want to look up (e.g., CUST0001, CUST000714).",
				State:    "customer_lookup_awaiting_id",
			}
		}
	}

	profile, found := m.data.CustomerByID(customerID)
	if !found {
		d.ClearSlot(domain.SlotCustomerID)
		d.AwaitSlot(domain.SlotCustomerID)
		return Result{
			Response: fmt.Sprintf("I couldn't find customer %s in our records. Please check the customer ID and try again.", customerID),
			State:    "customer_lookup_not_found_retry",
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Customer Details for %s:\n\n", profile.CustomerID)
	fmt.Fprintf(&b, "Name: %s\n", profile.Name)
	fmt.Fprintf(&b, "Total Orders: %d\n", profile.TotalOrders)
	fmt.Fprintf(&b, "Total Amount: ₹%s\n\n", formatAmount(profile.TotalAmount))

	b.WriteString("Order Status Summary:\n")
	fmt.Fprintf(&b, "• Delivered: %d\n", profile.Delivered)
	fmt.Fprintf(&b, "• In Transit: %d\n", profile.InTransit)
	fmt.Fprintf(&b, "• Returned: %d\n", profile.Returned)
	fmt.Fprintf(&b, "• Pending: %d\n\n", profile.Pending)

	b.WriteString("Payment Methods Used:\n")
	fmt.Fprintf(&b, "• COD: %d orders\n", profile.COD)
	fmt.Fprintf(&b, "• Card: %d orders\n", profile.Card)
	fmt.Fprintf(&b, "• UPI: %d orders\n", profile.UPI)
	fmt.Fprintf(&b, "• Wallet: %d orders\n\n", profile.Wallet)

	if len(profile.PlatformNames) > 0 {
		b.WriteString("Platform Usage:\n")
		for _, name := range profile.PlatformNames {
			fmt.Fprintf(&b, "• %s: %d orders\n", name, profile.Platforms[name])
		}
		b.WriteString("\n")
	}

	if len(profile.Orders) > 0 {
		b.WriteString("Recent Orders:\n")
		for i, o := range profile.Orders {
			if i == 3 {
				fmt.Fprintf(&b, "... and %d more orders\n", len(profile.Orders)-3)
				break
			}
			fmt.Fprintf(&b, "%d. Order #%s: %s - ₹%s (%s)\n",
				i+1, o.OrderID, o.Product, formatAmount(o.Amount), o.Status)
		}
	}

	m.complete(sess)
	return Result{Response: b.String(), State: "customer_lookup_provided"}
}

func (m *Manager) orderDetail(message string, sess *domain.Session) Result {
	orderID, ask := m.requireOrderID(message, sess,
		"Please provide your order number so I can get the details for you.",
		"order_detail_awaiting_order")
	if ask != nil {
		return *ask
	}

	rec, found := m.data.OrderByID(orderID)
	if !found {
		return m.orderLookupMiss(sess, orderID, "order_detail_not_found_retry")
	}

	lower := strings.ToLower(message)
	var response string
	switch {
	case containsAny(lower, "price", "cost", "amount"):
		response = fmt.Sprintf("The price for order #%s is ₹%s.", orderID, formatAmount(rec.Amount))
	case containsAny(lower, "product", "item", "ordered"):
		response = fmt.Sprintf("Order #%s is for %s.", orderID, rec.Product)
	case containsAny(lower, "details", "detail"):
		response = fmt.Sprintf("Order #%s details:\n• Product: %s\n• Amount: ₹%s\n• Platform: %s\n• Status: %s",
			orderID, rec.Product, formatAmount(rec.Amount), rec.Platform, rec.Status)
	default:
		response = fmt.Sprintf("Order #%s is for %s with amount ₹%s.", orderID, rec.Product, formatAmount(rec.Amount))
	}

	m.complete(sess)
	return Result{Response: response, State: "order_detail_provided"}
}

func (m *Manager) orderStatus(message string, sess *domain.Session) Result {
	orderID, ask := m.requireOrderID(message, sess,
		"I can help you track your order. Please provide your order number to check the current status.",
		"status_awaiting_order")
	if ask != nil {
		return *ask
	}

	rec, found := m.data.OrderByID(orderID)
	if !found {
		return m.orderLookupMiss(sess, orderID, "status_order_not_found_retry")
	}

	var response string
	switch strings.ToLower(rec.Status) {
	case "delivered":
		response = fmt.Sprintf("Great news! Your order #%s for %s has been delivered.", orderID, rec.Product)
	case "in transit":
		response = fmt.Sprintf("Your order #%s for %s is currently in transit and on its way to you. You should receive it within 1-2 business days.", orderID, rec.Product)
	case "processing":
		response = fmt.Sprintf("Your order #%s for %s is being processed and will ship soon. You'll receive tracking information once it ships.", orderID, rec.Product)
	case "shipped":
		response = fmt.Sprintf("Your order #%s for %s has shipped and is on its way to you.", orderID, rec.Product)
	default:
		response = fmt.Sprintf("Your order #%s for %s has status: %s.", orderID, rec.Product, rec.Status)
	}
	response += fmt.Sprintf(" (Ordered from %s)", rec.Platform)

	m.complete(sess)
	return Result{Response: response, State: "status_provided"}
}

func (m *Manager) returnOrder(message string, sess *domain.Session) Result {
	orderID, ask := m.requireOrderID(message, sess,
		"I can help you return your order. Please provide your order number so I can check the return eligibility.",
		"return_awaiting_order")
	if ask != nil {
		return *ask
	}

	rec, found := m.data.OrderByID(orderID)
	if !found {
		return m.orderLookupMiss(sess, orderID, "return_order_not_found_retry")
	}

	var response string
	switch status := strings.ToLower(rec.Status); status {
	case "delivered", "returnable":
		response = fmt.Sprintf("I can help you return order #%s (%s). To return this item, go to 'My Orders', select the item, choose a return reason, and schedule a pickup. Refunds are processed within 5-7 business days after we receive the item.", orderID, rec.Product)
	case "in transit":
		response = fmt.Sprintf("Order #%s is currently in transit. You can return it once it's delivered. You'll have 7 days from delivery to initiate a return.", orderID)
	default:
		response = fmt.Sprintf("Order #%s has status '%s' and may not be eligible for return. Please contact customer support for assistance with this order.", orderID, status)
	}

	m.complete(sess)
	return Result{Response: response, State: "return_processed"}
}

func (m *Manager) billing(message string, sess *domain.Session) Result {
	d := sess.Dialogue

	// The billing workflow also reuses an order id remembered from earlier
	// workflows in the session.
	orderID, ok := d.Slot(domain.SlotOrderID)
	if !ok {
		if remembered := sess.PersistentEntities["order_number"]; remembered != "" {
			if id := nlu.OrderIDSlot(remembered); id != "" {
				orderID = id
				d.SetSlot(domain.SlotOrderID, id)
			}
		}
	}
	if orderID == "" {
		if id := nlu.OrderIDSlot(message); id != "" {
			orderID = id
			d.SetSlot(domain.SlotOrderID, id)
			sess.PersistentEntities["order_number"] = id
		} else {
			d.AwaitSlot(domain.SlotOrderID)
			return Result{
				Response: "I can help you with billing issues. Please provide your order number so I can look into this for you.",
				State:    "billing_awaiting_order",
			}
		}
	}

	rec, found := m.data.OrderByID(orderID)
	if !found {
		return m.orderLookupMiss(sess, orderID, "billing_order_not_found_retry")
	}

	lower := strings.ToLower(message)
	switch {
	case containsAny(lower, "no", "not yet", "haven't received", "still waiting"):
		return Result{
			Response: "Refunds can take 3–5 business days to appear in your account. If it has been longer than that, I will escalate this to our billing team for immediate review.",
			State:    "billing_refund_escalation",
		}
	case containsAny(lower, "refund", "refunded", "money back", "didn't get"):
		if strings.Contains(strings.ToLower(rec.Status), "refund") {
			return Result{
				Response: fmt.Sprintf("I see order #%s shows as refunded. Has the amount reached your bank account yet?", orderID),
				State:    "billing_refund_inquiry",
			}
		}
		return Result{
			Response: fmt.Sprintf("I found your order #%s for %s (₹%s). Let me help you with the refund process. What specific issue are you experiencing?", orderID, rec.Product, formatAmount(rec.Amount)),
			State:    "billing_refund_inquiry",
		}
	case containsAny(lower, "charged twice", "double charge", "charged multiple"):
		return Result{
			Response: fmt.Sprintf("I found your order #%s for %s (₹%s). Double charges usually occur as temporary authorization holds that get released automatically within 3-5 business days. If you see multiple permanent charges, I can escalate this immediately.", orderID, rec.Product, formatAmount(rec.Amount)),
			State:    "billing_double_charge",
		}
	default:
		return Result{
			Response: fmt.Sprintf("I found your order #%s for %s (₹%s). I can help you with billing issues such as:\n• Refund requests and status\n• Double charges or incorrect amounts\n• Payment method issues\n• Billing disputes\n\nWhat specific billing issue are you experiencing with this order?", orderID, rec.Product, formatAmount(rec.Amount)),
			State:    "billing_general_inquiry",
		}
	}
}

func (m *Manager) faq(message string, sess *domain.Session) Result {
	answer, found := m.data.FAQAnswer(message)
	if !found {
		answer = "I can help you with orders, returns, billing issues, and general questions. What would you like assistance with?"
	}
	m.complete(sess)
	return Result{Response: answer, State: "faq_answered"}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// formatAmount groups a rupee amount with thousands separators.
func formatAmount(n int) string {
	s := fmt.Sprintf("%d", n)
	if len(s) <= 3 {
		return s
	}
	var b strings.Builder
	lead := len(s) % 3
	if lead > 0 {
		b.WriteString(s[:lead])
	}
	for i := lead; i < len(s); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(s[i : i+3])
	}
	return b.String()
}
