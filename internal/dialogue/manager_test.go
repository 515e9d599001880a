package dialogue

import (
	"strings"
	"testing"

	"github.com/ashureev/orderdesk/internal/dataset"
	"github.com/ashureev/orderdesk/internal/domain"
)

type fakeData struct {
	orders    map[string]dataset.OrderRecord
	customers map[string]dataset.CustomerProfile
	faqs      map[string]string
}

func (f *fakeData) OrderByID(id string) (dataset.OrderRecord, bool) {
	rec, ok := f.orders[id]
	return rec, ok
}

func (f *fakeData) CustomerByID(id string) (dataset.CustomerProfile, bool) {
	p, ok := f.customers[id]
	return p, ok
}

func (f *fakeData) FAQAnswer(q string) (string, bool) {
	for k, v := range f.faqs {
		if strings.Contains(strings.ToLower(q), k) {
			return v, true
		}
	}
	return "", false
}

func testData() *fakeData {
	return &fakeData{
		orders: map[string]dataset.OrderRecord{
			"45": {
				Order: dataset.Order{
					OrderID: "45", Product: "Wireless Headphones", Platform: "Amazon",
					Status: "Delivered", PaymentMode: "UPI", Amount: 2499,
				},
				CustomerID: "CUST0001", CustomerName: "Ananya Sharma",
			},
			"12345": {
				Order: dataset.Order{
					OrderID: "12345", Product: "Running Shoes", Platform: "Flipkart",
					Status: "In Transit", PaymentMode: "Card", Amount: 3199,
				},
				CustomerID: "CUST0001", CustomerName: "Ananya Sharma",
			},
		},
		customers: map[string]dataset.CustomerProfile{
			"CUST0001": {
				CustomerID: "CUST0001", Name: "Ananya Sharma", TotalOrders: 2,
				TotalAmount: 5698, Delivered: 1, InTransit: 1,
				UPI: 1, Card: 1,
				Platforms:     map[string]int{"Amazon": 1, "Flipkart": 1},
				PlatformNames: []string{"Amazon", "Flipkart"},
				Orders: []dataset.Order{
					{OrderID: "45", Product: "Wireless Headphones", Status: "Delivered", Amount: 2499},
					{OrderID: "12345", Product: "Running Shoes", Status: "In Transit", Amount: 3199},
				},
			},
		},
		faqs: map[string]string{
			"coupon": "Check that the coupon hasn't expired.",
		},
	}
}

func TestDetectIntentPriority(t *testing.T) {
	t.Parallel()

	tests := []struct {
		message string
		want    domain.Intent
	}{
		// "customer" outranks everything, even with billing words present.
		{"details regarding customer CUST0001 payment", domain.IntentCustomerLookup},
		// "price" outranks the refund keyword.
		{"what is the price of my order, I may want a refund", domain.IntentOrderDetail},
		// "cancel" goes to return/cancel, not FAQ, despite "problem".
		{"cancel my order, there is a problem", domain.IntentReturnOrder},
		{"where is my order", domain.IntentOrderStatus},
		{"I was charged twice", domain.IntentBillingIssue},
		{"my coupon code is not working", domain.IntentFAQ},
		{"blargh", domain.IntentNone},
	}
	for _, tt := range tests {
		if got := DetectIntent(tt.message); got != tt.want {
			t.Errorf("DetectIntent(%q) = %q, want %q", tt.message, got, tt.want)
		}
	}
}

func TestStatusWorkflowSlotFilling(t *testing.T) {
	t.Parallel()

	m := NewManager(testData())
	sess := domain.NewSession("s1")

	res, handled := m.Process("track my order", sess)
	if !handled {
		t.Fatal("tracking message not handled")
	}
	if sess.Dialogue.ActiveIntent != domain.IntentOrderStatus {
		t.Fatalf("intent = %q, want order_status", sess.Dialogue.ActiveIntent)
	}
	if sess.Dialogue.PendingSlot != domain.SlotOrderID {
		t.Fatalf("pending slot = %q, want order_id", sess.Dialogue.PendingSlot)
	}
	if !strings.Contains(res.Response, "provide your order number") {
		t.Fatalf("prompt = %q", res.Response)
	}

	res, _ = m.Process("it's ORD45", sess)
	if !strings.Contains(res.Response, "#45") || !strings.Contains(res.Response, "has been delivered") {
		t.Fatalf("status response = %q", res.Response)
	}
	if !strings.Contains(res.Response, "(Ordered from Amazon)") {
		t.Fatalf("status response missing platform: %q", res.Response)
	}
	if sess.Dialogue.ActiveIntent != domain.IntentNone {
		t.Fatal("workflow completion did not reset the dialogue")
	}
}

func TestLookupMissKeepsIntent(t *testing.T) {
	t.Parallel()

	m := NewManager(testData())
	sess := domain.NewSession("s2")

	res, _ := m.Process("track order 99999", sess)
	if res.Response != "I couldn't find that order. Please recheck the order number." {
		t.Fatalf("miss response = %q", res.Response)
	}
	if sess.Dialogue.ActiveIntent != domain.IntentOrderStatus {
		t.Fatal("lookup failure reset the intent")
	}
	if sess.Dialogue.PendingSlot != domain.SlotOrderID {
		t.Fatal("lookup failure did not re-ask for the order id")
	}
	if _, ok := sess.Dialogue.Slot(domain.SlotOrderID); ok {
		t.Fatal("invalid order id was kept in context")
	}

	// Retry with a good id succeeds in the same intent.
	res, _ = m.Process("45", sess)
	if !strings.Contains(res.Response, "has been delivered") {
		t.Fatalf("retry response = %q", res.Response)
	}
}

func TestInvalidSlotInputReasksWithoutReset(t *testing.T) {
	t.Parallel()

	m := NewManager(testData())
	sess := domain.NewSession("s3")

	m.Process("track my order", sess)
	res, _ := m.Process("i don't remember", sess)
	if !strings.Contains(res.Response, "e.g., 45, ORD45, or #45") {
		t.Fatalf("re-ask = %q", res.Response)
	}
	if sess.Dialogue.ActiveIntent != domain.IntentOrderStatus {
		t.Fatal("invalid slot input reset the intent")
	}
}

func TestCustomerLookupWorkflow(t *testing.T) {
	t.Parallel()

	m := NewManager(testData())
	sess := domain.NewSession("s4")

	res, _ := m.Process("show me customer details", sess)
	if sess.Dialogue.PendingSlot != domain.SlotCustomerID {
		t.Fatalf("pending slot = %q", sess.Dialogue.PendingSlot)
	}

	res, _ = m.Process("CUST0001", sess)
	for _, want := range []string{
		"Customer Details for CUST0001",
		"Name: Ananya Sharma",
		"Total Orders: 2",
		"Total Amount: ₹5,698",
		"• Delivered: 1",
		"• UPI: 1 orders",
		"• Amazon: 1 orders",
		"1. Order #45: Wireless Headphones - ₹2,499 (Delivered)",
	} {
		if !strings.Contains(res.Response, want) {
			t.Errorf("profile response missing %q:\n%s", want, res.Response)
		}
	}
}

func TestCustomerLookupMissRetry(t *testing.T) {
	t.Parallel()

	m := NewManager(testData())
	sess := domain.NewSession("s5")

	m.Process("customer details", sess)
	res, _ := m.Process("CUST9999", sess)
	if !strings.Contains(res.Response, "I couldn't find customer CUST9999") {
		t.Fatalf("miss response = %q", res.Response)
	}
	if sess.Dialogue.ActiveIntent != domain.IntentCustomerLookup {
		t.Fatal("customer miss reset the intent")
	}
}

func TestOrderDetailVariants(t *testing.T) {
	t.Parallel()

	m := NewManager(testData())

	tests := []struct {
		message string
		want    string
	}{
		{"what is the price of order 45", "The price for order #45 is ₹2,499."},
		{"what product is in order 45", "Order #45 is for Wireless Headphones."},
		{"give me the details of order 12345", "• Platform: Flipkart"},
	}
	for _, tt := range tests {
		sess := domain.NewSession("s6")
		res, _ := m.Process(tt.message, sess)
		if !strings.Contains(res.Response, tt.want) {
			t.Errorf("Process(%q) = %q, want contains %q", tt.message, res.Response, tt.want)
		}
	}
}

func TestReturnWorkflowEligibility(t *testing.T) {
	t.Parallel()

	m := NewManager(testData())

	sess := domain.NewSession("s7")
	res, _ := m.Process("I want to return order 45", sess)
	if !strings.Contains(res.Response, "schedule a pickup") {
		t.Fatalf("delivered return = %q", res.Response)
	}

	sess = domain.NewSession("s8")
	res, _ = m.Process("return order 12345", sess)
	if !strings.Contains(res.Response, "in transit") || !strings.Contains(res.Response, "7 days from delivery") {
		t.Fatalf("in-transit return = %q", res.Response)
	}
}

func TestBillingReusesRememberedOrder(t *testing.T) {
	t.Parallel()

	m := NewManager(testData())
	sess := domain.NewSession("s9")
	sess.PersistentEntities["order_number"] = "45"

	res, _ := m.Process("I have a billing question about the charge", sess)
	if !strings.Contains(res.Response, "order #45") {
		t.Fatalf("billing did not reuse remembered order: %q", res.Response)
	}
	if !strings.Contains(res.Response, "What specific billing issue") {
		t.Fatalf("billing menu missing: %q", res.Response)
	}
}

func TestCompletionSignalResetsDialogue(t *testing.T) {
	t.Parallel()

	m := NewManager(testData())
	sess := domain.NewSession("s10")
	m.Process("track my order", sess)

	res, _ := m.Process("thanks, that helps", sess)
	if res.Response != "You're welcome! Feel free to reach out if you need any more help." {
		t.Fatalf("completion response = %q", res.Response)
	}
	if sess.Dialogue.ActiveIntent != domain.IntentNone || sess.Dialogue.PendingSlot != "" {
		t.Fatal("completion did not reset dialogue state")
	}
}

func TestProcessUnhandledWithoutIntent(t *testing.T) {
	t.Parallel()

	m := NewManager(testData())
	sess := domain.NewSession("s11")

	if _, handled := m.Process("blargh", sess); handled {
		t.Fatal("nonsense message should be unhandled")
	}
}

func TestFormatAmount(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   int
		want string
	}{
		{0, "0"},
		{649, "649"},
		{2499, "2,499"},
		{55698, "55,698"},
		{1234567, "1,234,567"},
	}
	for _, tt := range tests {
		if got := formatAmount(tt.in); got != tt.want {
			t.Errorf("formatAmount(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
