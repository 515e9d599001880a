package orchestrator

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/ashureev/orderdesk/internal/dataset"
	"github.com/ashureev/orderdesk/internal/dialogue"
	"github.com/ashureev/orderdesk/internal/llm"
	"github.com/ashureev/orderdesk/internal/store"
)

// fakeData backs both the dialogue workflows and the FAQ fallback.
type fakeData struct {
	orders map[string]dataset.OrderRecord
	faqs   map[string]string
}

func (f *fakeData) OrderByID(id string) (dataset.OrderRecord, bool) {
	rec, ok := f.orders[id]
	return rec, ok
}

func (f *fakeData) CustomerByID(string) (dataset.CustomerProfile, bool) {
	return dataset.CustomerProfile{}, false
}

func (f *fakeData) FAQAnswer(q string) (string, bool) {
	for k, v := range f.faqs {
		if strings.Contains(strings.ToLower(q), k) {
			return v, true
		}
	}
	return "", false
}

type scriptedLLM struct{ reply string }

func (s scriptedLLM) Reply(context.Context, string) (string, error) { return s.reply, nil }
func (s scriptedLLM) Close() error                                  { return nil }

func newTestOrchestrator(t *testing.T, chitchat llm.Fallback) *Orchestrator {
	t.Helper()
	data := &fakeData{
		orders: map[string]dataset.OrderRecord{
			"45": {
				Order: dataset.Order{
					OrderID: "45", Product: "Wireless Headphones", Platform: "Amazon",
					Status: "Delivered", PaymentMode: "UPI", Amount: 2499,
				},
				CustomerID: "CUST0001", CustomerName: "Ananya Sharma",
			},
		},
		faqs: map[string]string{
			"internationally": "We currently ship within India only.",
		},
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(store.NewMemory(), dialogue.NewManager(data), data, chitchat, logger)
}

func TestCompleteRefundResolvesInOneTurn(t *testing.T) {
	t.Parallel()

	o := newTestOrchestrator(t, llm.Disabled{})
	ctx := context.Background()

	reply, err := o.HandleMessage(ctx, "c1", "I want a refund for order 12345, the item is damaged")
	if err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}
	if !reply.Resolved {
		t.Fatal("complete request not resolved")
	}
	if reply.State != "deterministic_resolution" {
		t.Errorf("state = %q", reply.State)
	}
	if !strings.Contains(reply.Response, "#12345") {
		t.Errorf("response = %q", reply.Response)
	}

	// Everything after resolution gets only the post-resolution prompt.
	reply, err = o.HandleMessage(ctx, "c1", "hello again")
	if err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}
	if reply.Response != "Is there anything else I can help you with?" {
		t.Errorf("post-resolution response = %q", reply.Response)
	}
	if !reply.Resolved {
		t.Error("resolved flag dropped after resolution")
	}
}

func TestTrackingShortcutAndFollowUp(t *testing.T) {
	t.Parallel()

	o := newTestOrchestrator(t, llm.Disabled{})
	ctx := context.Background()

	reply, err := o.HandleMessage(ctx, "c2", "track my order 1236")
	if err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}
	if reply.State != "tracking_shortcut" {
		t.Fatalf("state = %q", reply.State)
	}
	want := "Order #1236 has been shipped and is on the way. You should receive it by tomorrow."
	if reply.Response != want {
		t.Fatalf("tracking response = %q", reply.Response)
	}
	if reply.Resolved {
		t.Error("tracking answer must not resolve the session")
	}

	// Elliptical follow-ups are answered from the cached tracking context.
	for _, msg := range []string{"when will it reach", "eta?", "delivery date?"} {
		reply, err = o.HandleMessage(ctx, "c2", msg)
		if err != nil {
			t.Fatalf("HandleMessage(%q): %v", msg, err)
		}
		if reply.State != "tracking_followup" {
			t.Errorf("state for %q = %q", msg, reply.State)
		}
		if !strings.Contains(reply.Response, "Order #1236") {
			t.Errorf("follow-up %q lost the order context: %q", msg, reply.Response)
		}
	}
}

func TestTrackingWithoutOrderIDThenBareNumber(t *testing.T) {
	t.Parallel()

	o := newTestOrchestrator(t, llm.Disabled{})
	ctx := context.Background()

	reply, err := o.HandleMessage(ctx, "c3", "where is my order")
	if err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}
	if reply.State != "tracking_request" {
		t.Fatalf("state = %q", reply.State)
	}
	if !strings.Contains(reply.Response, "provide your order number") {
		t.Fatalf("prompt = %q", reply.Response)
	}

	// A bare number continues the pending tracking request.
	reply, err = o.HandleMessage(ctx, "c3", "45")
	if err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}
	if reply.State != "tracking_shortcut" {
		t.Fatalf("state = %q", reply.State)
	}
	if !strings.Contains(reply.Response, "Order #45") {
		t.Fatalf("response = %q", reply.Response)
	}
}

func TestMissingOrderIDAskedThenFilled(t *testing.T) {
	t.Parallel()

	o := newTestOrchestrator(t, llm.Disabled{})
	ctx := context.Background()

	reply, err := o.HandleMessage(ctx, "c4", "I want a refund")
	if err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}
	if reply.State != "missing_order_id" {
		t.Fatalf("state = %q", reply.State)
	}
	if !strings.Contains(reply.Response, "share your order number") {
		t.Fatalf("prompt = %q", reply.Response)
	}

	reply, err = o.HandleMessage(ctx, "c4", "order 4567, the item is damaged")
	if err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}
	if !reply.Resolved {
		t.Fatalf("merged request not resolved: %+v", reply)
	}
	if !strings.Contains(reply.Response, "#4567") {
		t.Fatalf("response = %q", reply.Response)
	}
}

func TestMissingResolutionAskedFirst(t *testing.T) {
	t.Parallel()

	o := newTestOrchestrator(t, llm.Disabled{})
	ctx := context.Background()

	reply, err := o.HandleMessage(ctx, "c5", "order 4567 is damaged and broken")
	if err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}
	if reply.State != "missing_resolution" {
		t.Fatalf("state = %q", reply.State)
	}
	if !strings.Contains(reply.Response, "refund, replacement, or cancellation") {
		t.Fatalf("prompt = %q", reply.Response)
	}

	reply, err = o.HandleMessage(ctx, "c5", "refund please")
	if err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}
	if !reply.Resolved {
		t.Fatalf("merged request not resolved: %+v", reply)
	}
	if !strings.Contains(reply.Response, "#4567") {
		t.Fatalf("response = %q", reply.Response)
	}
}

func TestCancelNeedsOnlyOrderID(t *testing.T) {
	t.Parallel()

	o := newTestOrchestrator(t, llm.Disabled{})

	reply, err := o.HandleMessage(context.Background(), "c6", "please cancel order 9876")
	if err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}
	if !reply.Resolved {
		t.Fatalf("cancel not resolved: %+v", reply)
	}
	if !strings.Contains(reply.Response, "#9876") {
		t.Fatalf("response = %q", reply.Response)
	}
}

func TestDialogueWorkflowReached(t *testing.T) {
	t.Parallel()

	o := newTestOrchestrator(t, llm.Disabled{})

	reply, err := o.HandleMessage(context.Background(), "c7", "what is the price of order 45")
	if err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}
	if !strings.Contains(reply.Response, "The price for order #45 is ₹2,499.") {
		t.Fatalf("response = %q", reply.Response)
	}
	if reply.Resolved {
		t.Error("workflow answer must not resolve the session")
	}
}

func TestFAQFallback(t *testing.T) {
	t.Parallel()

	o := newTestOrchestrator(t, llm.Disabled{})

	reply, err := o.HandleMessage(context.Background(), "c8", "do you send packages internationally")
	if err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}
	if reply.State != "faq_fallback" {
		t.Fatalf("state = %q", reply.State)
	}
	if reply.Response != "We currently ship within India only." {
		t.Fatalf("response = %q", reply.Response)
	}
}

func TestGenericMenuWhenNothingMatches(t *testing.T) {
	t.Parallel()

	o := newTestOrchestrator(t, llm.Disabled{})

	reply, err := o.HandleMessage(context.Background(), "c9", "blargh blargh")
	if err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}
	if reply.State != "generic_help" {
		t.Fatalf("state = %q", reply.State)
	}
	if !strings.Contains(reply.Response, "Order tracking and status updates") {
		t.Fatalf("response = %q", reply.Response)
	}
}

func TestChitchatUsesLLMWhenAvailable(t *testing.T) {
	t.Parallel()

	o := newTestOrchestrator(t, scriptedLLM{reply: "Hello there! How can I help?"})

	reply, err := o.HandleMessage(context.Background(), "c10", "blargh blargh")
	if err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}
	if reply.State != "chitchat" {
		t.Fatalf("state = %q", reply.State)
	}
	if reply.Response != "Hello there! How can I help?" {
		t.Fatalf("response = %q", reply.Response)
	}
}

func TestHistoryIsPersisted(t *testing.T) {
	t.Parallel()

	mem := store.NewMemory()
	data := &fakeData{faqs: map[string]string{}}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	o := New(mem, dialogue.NewManager(data), data, llm.Disabled{}, logger)

	ctx := context.Background()
	if _, err := o.HandleMessage(ctx, "c11", "track my order 1236"); err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}

	sess, err := mem.Get(ctx, "c11")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(sess.History) != 2 {
		t.Fatalf("history length = %d, want 2", len(sess.History))
	}
	if sess.History[0].Text != "track my order 1236" {
		t.Errorf("user turn = %q", sess.History[0].Text)
	}
	if sess.LastOrderID != "1236" {
		t.Errorf("follow-up memory order id = %q", sess.LastOrderID)
	}
}

func TestShortOrderIDReasksForNumber(t *testing.T) {
	t.Parallel()

	o := newTestOrchestrator(t, llm.Disabled{})
	ctx := context.Background()

	reply, err := o.HandleMessage(ctx, "c12", "I want a refund")
	if err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}
	if reply.State != "missing_order_id" {
		t.Fatalf("state = %q", reply.State)
	}

	// A two-digit reply is too short to act on: ask again instead of
	// dropping to the fallback chain.
	reply, err = o.HandleMessage(ctx, "c12", "45")
	if err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}
	if reply.State != "missing_order_id" {
		t.Fatalf("state = %q, want missing_order_id", reply.State)
	}
	if !strings.Contains(reply.Response, "order number") {
		t.Fatalf("prompt = %q", reply.Response)
	}

	reply, err = o.HandleMessage(ctx, "c12", "order 4567")
	if err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}
	if !reply.Resolved {
		t.Fatalf("pending refund not resolved: %+v", reply)
	}
	if !strings.Contains(reply.Response, "#4567") {
		t.Fatalf("response = %q", reply.Response)
	}
}
