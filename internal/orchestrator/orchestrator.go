// Package orchestrator is the single controller every chat message goes
// through. Per message it runs, in order: the resolved short-circuit, the
// follow-up cache, complete-request detection with the tracking shortcut,
// deterministic resolution, missing-info prompts, the dialogue workflows,
// and finally the FAQ / multi-topic / chit-chat fallback chain. Handling is
// serialized per session and parallel across sessions.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/ashureev/orderdesk/internal/dialogue"
	"github.com/ashureev/orderdesk/internal/domain"
	"github.com/ashureev/orderdesk/internal/llm"
	"github.com/ashureev/orderdesk/internal/nlu"
	"github.com/ashureev/orderdesk/internal/policy"
	"github.com/ashureev/orderdesk/internal/store"
)

// FAQSource answers free-form questions from the FAQ dataset.
type FAQSource interface {
	FAQAnswer(question string) (string, bool)
}

// Recorder receives conversation turns for transcript logging.
type Recorder interface {
	Record(sessionID, sender, text string)
}

// Reply is the outcome of one handled message.
type Reply struct {
	Response string `json:"response"`
	State    string `json:"conversationState"`
	Resolved bool   `json:"resolved"`
}

// Orchestrator wires the deterministic pipeline together.
type Orchestrator struct {
	sessions   store.Repository
	dialogue   *dialogue.Manager
	faq        FAQSource
	chitchat   llm.Fallback
	transcript Recorder
	logger     *slog.Logger
	llmTimeout time.Duration

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithTranscripts attaches a transcript recorder.
func WithTranscripts(r Recorder) Option {
	return func(o *Orchestrator) { o.transcript = r }
}

// WithLLMTimeout bounds the chit-chat fallback call.
func WithLLMTimeout(d time.Duration) Option {
	return func(o *Orchestrator) { o.llmTimeout = d }
}

// New creates an orchestrator.
func New(sessions store.Repository, dlg *dialogue.Manager, faq FAQSource, chitchat llm.Fallback, logger *slog.Logger, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		sessions:   sessions,
		dialogue:   dlg,
		faq:        faq,
		chitchat:   chitchat,
		logger:     logger,
		llmTimeout: 5 * time.Second,
		locks:      make(map[string]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// lockSession serializes handling per session id.
func (o *Orchestrator) lockSession(id string) func() {
	o.mu.Lock()
	l, ok := o.locks[id]
	if !ok {
		l = &sync.Mutex{}
		o.locks[id] = l
	}
	o.mu.Unlock()
	l.Lock()
	return l.Unlock
}

// HandleMessage runs one user message through the pipeline and persists the
// updated session.
func (o *Orchestrator) HandleMessage(ctx context.Context, sessionID, text string) (Reply, error) {
	unlock := o.lockSession(sessionID)
	defer unlock()

	sess, err := o.sessions.Get(ctx, sessionID)
	if err != nil {
		if err != store.ErrNotFound {
			return Reply{}, fmt.Errorf("load session %s: %w", sessionID, err)
		}
		sess = domain.NewSession(sessionID)
	}

	reply := o.handle(ctx, sess, strings.TrimSpace(text))

	sess.AddMessage(domain.SenderUser, text)
	sess.AddMessage(domain.SenderBot, reply.Response)
	if o.transcript != nil {
		o.transcript.Record(sessionID, domain.SenderUser, text)
		o.transcript.Record(sessionID, domain.SenderBot, reply.Response)
	}

	if err := o.sessions.Put(ctx, sess); err != nil {
		return Reply{}, fmt.Errorf("save session %s: %w", sessionID, err)
	}
	return reply, nil
}

// Pending-field keys carried between turns of an incomplete request.
const (
	pendingResolutionKey = "pending_resolution"
	pendingIssueKey      = "pending_issue"
	pendingOrderKey      = "pending_order_number"
)

func (o *Orchestrator) handle(ctx context.Context, sess *domain.Session, text string) Reply {
	// 1. A resolved conversation only gets the post-resolution prompt.
	if sess.Resolved {
		return Reply{Response: policy.PostResolutionResponse, State: "post_resolution", Resolved: true}
	}

	// 2. Elliptical follow-ups are answered from the conversation memory,
	// without re-running extraction.
	if o.isFollowUp(sess, text) {
		eta := ""
		if state, ok := sess.Orders[sess.LastOrderID]; ok {
			eta = state.DeliveryETA
		}
		return Reply{
			Response: canonicalTracking(sess.LastOrderID, sess.LastOrderStatus, eta),
			State:    "tracking_followup",
		}
	}

	// 3. Complete-request detection, merged with fields remembered from a
	// previous missing-info prompt.
	req := o.mergePending(sess, nlu.DetectCompleteRequest(text), text)

	if req.IsTracking && req.OrderID != "" {
		return o.trackingShortcut(sess, req.OrderID)
	}

	// 4. A complete, valid request resolves deterministically: no routing,
	// no questions, one final response.
	if req.IsComplete && policy.ValidateCompleteRequest(req.OrderID, req.Issue, req.Resolution) {
		return o.resolve(sess, req)
	}

	// A complete request carrying an implausibly short order id re-asks for
	// the number instead of falling through to the fallback chain. The bad
	// id is discarded; the rest of the request stays pending.
	if req.IsComplete && !policy.ValidOrderID(req.OrderID) {
		req.OrderID = ""
		o.rememberPending(sess, req)
		delete(sess.PersistentEntities, pendingOrderKey)
		return Reply{
			Response: policy.MissingInfoResponse(policy.MissingOrderID),
			State:    "missing_" + policy.MissingOrderID,
		}
	}

	// Tracking intent without an order id: ask for the number and drop the
	// stale follow-up memory.
	lower := strings.ToLower(text)
	if req.OrderID == "" && (req.IsTracking || containsAny(lower, "track", "tracking", "status", "where is", "delivery")) {
		sess.ForgetFollowUp()
		sess.PersistentEntities[pendingResolutionKey] = policy.ActionTracking
		return Reply{
			Response: "I can help you track your order. Please provide your order number so I can check the status for you.",
			State:    "tracking_request",
		}
	}

	// Partial request: remember what we have and ask only for what is
	// missing, resolution first, then order id, then issue.
	if missing := missingFields(req); len(missing) > 0 &&
		(req.OrderID != "" || req.Resolution != "" || req.Issue != "") {
		o.rememberPending(sess, req)
		ask := missing[0]
		return Reply{Response: policy.MissingInfoResponse(ask), State: "missing_" + ask}
	}

	// 5-7. Dialogue workflows: pending-slot filling, intent locking and the
	// dataset-driven handlers.
	if res, handled := o.dialogue.Process(text, sess); handled {
		return Reply{Response: res.Response, State: res.State}
	}

	// 8. Nothing classified: FAQ search, then multi-topic prompts, then
	// chit-chat, then the generic menu.
	return o.fallback(ctx, text)
}

func missingFields(req nlu.CompleteRequest) []string {
	var missing []string
	if req.Resolution == "" {
		missing = append(missing, policy.MissingResolution)
	}
	if req.OrderID == "" {
		missing = append(missing, policy.MissingOrderID)
	}
	if req.Issue == "" && req.Resolution != nlu.ResolutionCancel {
		missing = append(missing, policy.MissingIssue)
	}
	return missing
}

// mergePending folds fields remembered from an earlier incomplete request
// into the current detection, then re-derives completeness. The permissive
// order-id extractor runs only when a pending request is waiting for one,
// so a bare reply with just the order number fills it in.
func (o *Orchestrator) mergePending(sess *domain.Session, req nlu.CompleteRequest, text string) nlu.CompleteRequest {
	pendingRes := sess.PersistentEntities[pendingResolutionKey]
	pendingIssue := sess.PersistentEntities[pendingIssueKey]
	pendingOrder := sess.PersistentEntities[pendingOrderKey]
	if pendingRes == "" && pendingIssue == "" && pendingOrder == "" {
		return req
	}

	if req.Resolution == "" {
		req.Resolution = pendingRes
	}
	if req.Issue == "" {
		req.Issue = pendingIssue
	}
	if req.OrderID == "" {
		req.OrderID = nlu.ExtractOrderID(text)
	}
	if req.OrderID == "" && pendingRes != "" {
		req.OrderID = nlu.OrderIDSlot(text)
	}
	if req.OrderID == "" {
		req.OrderID = pendingOrder
	}

	switch req.Resolution {
	case nlu.ResolutionRefund, nlu.ResolutionReplacement:
		if req.Issue == "" && req.OrderID != "" {
			req.Issue = nlu.IssueGeneral
		}
		req.IsComplete = req.OrderID != "" && req.Issue != ""
	case nlu.ResolutionCancel:
		req.Issue = nlu.IssueCancel
		req.IsComplete = req.OrderID != ""
	case nlu.ResolutionTracking:
		req.Issue = nlu.IssueTracking
		req.IsTracking = true
		req.IsComplete = req.OrderID != ""
	}
	return req
}

func (o *Orchestrator) rememberPending(sess *domain.Session, req nlu.CompleteRequest) {
	if req.Resolution != "" {
		sess.PersistentEntities[pendingResolutionKey] = req.Resolution
	}
	if req.Issue != "" {
		sess.PersistentEntities[pendingIssueKey] = req.Issue
	}
	if req.OrderID != "" {
		sess.PersistentEntities[pendingOrderKey] = req.OrderID
	}
}

// trackingShortcut answers a tracking request directly from the order state
// machine. A first-seen order walks UNKNOWN -> PROCESSING -> SHIPPED and
// gets a tracking number and a delivery estimate.
func (o *Orchestrator) trackingShortcut(sess *domain.Session, orderID string) Reply {
	state := sess.OrderState(orderID)
	if state.Status == domain.StatusUnknown {
		state.TransitionTo(domain.StatusProcessing)
		state.TransitionTo(domain.StatusShipped)
		state.UpdateTracking("TRK"+orderID+"789", "tomorrow")
	}

	response := canonicalTracking(orderID, state.Status, state.DeliveryETA)
	sess.RememberTracking(orderID, state.Status)
	delete(sess.PersistentEntities, pendingResolutionKey)
	delete(sess.PersistentEntities, pendingIssueKey)
	delete(sess.PersistentEntities, pendingOrderKey)
	return Reply{Response: response, State: "tracking_shortcut"}
}

// resolve runs a validated complete request to its final canned response
// and terminates the flow.
func (o *Orchestrator) resolve(sess *domain.Session, req nlu.CompleteRequest) Reply {
	state := sess.OrderState(req.OrderID)
	current := state.Status

	if next := policy.ApplyBusinessLogic(current, req.Resolution); next != current {
		if !state.TransitionTo(next) {
			o.logger.Debug("resolution left order status unchanged",
				"order_id", req.OrderID, "from", current, "to", next)
		}
	}

	// The response is selected by the status the order was in when the
	// request arrived, so "already shipped" answers stay truthful.
	response := policy.GetResponse(req.Resolution, current, req.OrderID)
	if !policy.Validate(response, req.OrderID) {
		response = policy.ResolverFallback(req.Resolution, req.OrderID)
	}

	sess.MarkResolved(req.OrderID, req.Resolution)
	o.logger.Info("request resolved deterministically",
		"order_id", req.OrderID, "resolution", req.Resolution, "status", state.Status)
	return Reply{Response: response, State: "deterministic_resolution", Resolved: true}
}

// followUpPhrases mark a message as an elliptical continuation of the last
// tracking answer.
var followUpPhrases = []string{
	"when will it", "when will i get", "eta", "delivery date",
	"where is it", "reach", "arrive", "how long",
}

func (o *Orchestrator) isFollowUp(sess *domain.Session, text string) bool {
	if sess.LastOrderID == "" || sess.LastIntent != "order_tracking" {
		return false
	}
	if nlu.OrderIDSlot(text) != "" {
		return false
	}
	return containsAny(strings.ToLower(text), followUpPhrases...)
}

// canonicalTracking is the fixed per-status tracking answer.
func canonicalTracking(orderID string, status domain.OrderStatus, eta string) string {
	switch status {
	case domain.StatusProcessing:
		return fmt.Sprintf("Order #%s is currently being processed and will ship soon.", orderID)
	case domain.StatusShipped:
		etaText := ""
		if eta != "" {
			etaText = fmt.Sprintf(" You should receive it by %s.", eta)
		}
		return fmt.Sprintf("Order #%s has been shipped and is on the way.%s", orderID, etaText)
	case domain.StatusDelivered:
		return fmt.Sprintf("Order #%s has been delivered successfully.", orderID)
	case domain.StatusCancelled:
		return fmt.Sprintf("Order #%s has been cancelled.", orderID)
	case domain.StatusRefunded:
		return fmt.Sprintf("Order #%s has been refunded.", orderID)
	case domain.StatusReplacementSent:
		return fmt.Sprintf("A replacement for order #%s has been sent and is on the way.", orderID)
	default:
		return fmt.Sprintf("Order #%s has been shipped and is on the way.", orderID)
	}
}

const genericMenu = "I'm here to help! I can assist you with:\n" +
	"• Order tracking and status updates\n" +
	"• Returns and exchanges\n" +
	"• Billing and payment issues\n" +
	"• General questions\n\n" +
	"What would you like help with today?"

// topicPrompts are the canned per-topic asks used when the scorer detects
// something but no workflow claimed the message. topicClauses are the same
// asks in clause form for the multi-topic merge.
var topicPrompts = map[string]string{
	nlu.TopicOrderTracking:   "I can help you track your order. Please share your order number and I'll check the status.",
	nlu.TopicOrderResolution: "I can help resolve an order issue. Please share your order number and whether you'd like a refund, replacement, or cancellation.",
	nlu.TopicProduct:         "I can help with product questions. Which product are you interested in?",
	nlu.TopicSupport:         "I can help with account, billing, and other support issues. Could you share a few more details about the problem?",
}

var topicClauses = map[string]string{
	nlu.TopicOrderTracking:   "For order tracking, please share your order number so I can check the status.",
	nlu.TopicOrderResolution: "For the order issue, let me know whether you'd like a refund, replacement, or cancellation.",
	nlu.TopicProduct:         "For product questions, tell me which product you're interested in.",
	nlu.TopicSupport:         "For account or billing issues, share a few more details about the problem.",
}

func (o *Orchestrator) fallback(ctx context.Context, text string) Reply {
	if answer, ok := o.faq.FAQAnswer(text); ok {
		return Reply{Response: answer, State: "faq_fallback"}
	}

	entities := nlu.Extract(text)
	topics, _ := nlu.DetectTopics(text, entities)

	var detected []string
	for _, t := range topics {
		if t == nlu.TopicGeneral {
			continue
		}
		if _, ok := topicPrompts[t]; ok {
			detected = append(detected, t)
		}
	}
	switch {
	case len(detected) == 1:
		return Reply{Response: topicPrompts[detected[0]], State: "topic_prompt"}
	case len(detected) == 2:
		return Reply{
			Response: "I can help you with both of those things. " +
				topicClauses[detected[0]] + " " + topicClauses[detected[1]],
			State: "multi_topic_prompt",
		}
	case len(detected) > 2:
		var b strings.Builder
		b.WriteString("I can see you need help with several things.")
		for _, t := range detected {
			b.WriteString(" ")
			b.WriteString(topicClauses[t])
		}
		return Reply{Response: b.String(), State: "multi_topic_prompt"}
	}

	llmCtx, cancel := context.WithTimeout(ctx, o.llmTimeout)
	defer cancel()
	if reply, err := o.chitchat.Reply(llmCtx, text); err == nil {
		return Reply{Response: reply, State: "chitchat"}
	} else if err != llm.ErrUnavailable {
		o.logger.Warn("chit-chat fallback failed", "error", err)
	}

	return Reply{Response: genericMenu, State: "generic_help"}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
