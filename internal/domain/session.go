// Package domain holds the core conversation types: sessions, dialogue
// state, order lifecycle and intents. It has no dependencies beyond the
// standard library so every other package can import it freely.
package domain

import "time"

// Message is one turn of the conversation, from either side.
type Message struct {
	Text      string    `json:"text"`
	Sender    string    `json:"sender"`
	Timestamp time.Time `json:"timestamp"`
}

// Senders for Message.Sender.
const (
	SenderUser = "user"
	SenderBot  = "bot"
)

// Session is everything the service remembers about one conversation. It is
// persisted as a whole between turns; mutation happens only while the
// orchestrator holds the per-session lock.
type Session struct {
	ID       string                 `json:"id"`
	Dialogue *DialogueState         `json:"dialogue"`
	Orders   map[string]*OrderState `json:"orders,omitempty"`

	// PersistentEntities survive across turns so later messages can fill
	// in what earlier ones established.
	PersistentEntities map[string]string `json:"persistent_entities,omitempty"`

	History  []Message `json:"history,omitempty"`
	Resolved bool      `json:"resolved"`

	// Follow-up memory: what the last substantive answer was about, so
	// elliptical follow-ups ("when will it arrive") can be answered from
	// cache.
	LastIntent      string      `json:"last_intent,omitempty"`
	LastOrderID     string      `json:"last_order_id,omitempty"`
	LastOrderStatus OrderStatus `json:"last_order_status,omitempty"`
	LastResolution  string      `json:"last_resolution,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewSession creates an empty session.
func NewSession(id string) *Session {
	now := time.Now()
	return &Session{
		ID:                 id,
		Dialogue:           NewDialogueState(),
		Orders:             make(map[string]*OrderState),
		PersistentEntities: make(map[string]string),
		CreatedAt:          now,
		UpdatedAt:          now,
	}
}

// Clone returns a deep copy of the session, so stores can hand out sessions
// that are safe to read while the caller's copy keeps mutating.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	cp := *s
	if s.Dialogue != nil {
		d := *s.Dialogue
		d.Context = make(map[string]string, len(s.Dialogue.Context))
		for k, v := range s.Dialogue.Context {
			d.Context[k] = v
		}
		cp.Dialogue = &d
	}
	if s.Orders != nil {
		cp.Orders = make(map[string]*OrderState, len(s.Orders))
		for id, o := range s.Orders {
			oc := *o
			cp.Orders[id] = &oc
		}
	}
	if s.PersistentEntities != nil {
		cp.PersistentEntities = make(map[string]string, len(s.PersistentEntities))
		for k, v := range s.PersistentEntities {
			cp.PersistentEntities[k] = v
		}
	}
	cp.History = append([]Message(nil), s.History...)
	return &cp
}

// OrderState returns the tracked state for an order id, creating it in the
// UNKNOWN status on first reference.
func (s *Session) OrderState(orderID string) *OrderState {
	if s.Orders == nil {
		s.Orders = make(map[string]*OrderState)
	}
	if o, ok := s.Orders[orderID]; ok {
		return o
	}
	o := NewOrderState(orderID)
	s.Orders[orderID] = o
	return o
}

// TransitionOrder applies a status transition to one of the session's orders.
func (s *Session) TransitionOrder(orderID string, target OrderStatus) bool {
	return s.OrderState(orderID).TransitionTo(target)
}

// AddMessage appends a turn to the history.
func (s *Session) AddMessage(sender, text string) {
	s.History = append(s.History, Message{
		Text:      text,
		Sender:    sender,
		Timestamp: time.Now(),
	})
	s.UpdatedAt = time.Now()
}

// MarkResolved records a terminal resolution for an order and clears the
// active request context so the next turn starts fresh.
func (s *Session) MarkResolved(orderID, resolution string) {
	s.Resolved = true
	s.LastOrderID = orderID
	s.LastResolution = resolution
	if o, ok := s.Orders[orderID]; ok {
		s.LastOrderStatus = o.Status
	}
	s.ClearActiveContext()
}

// ClearActiveContext drops the in-flight request fields (pending entities and
// dialogue lock) without touching history or order states.
func (s *Session) ClearActiveContext() {
	s.PersistentEntities = make(map[string]string)
	if s.Dialogue != nil {
		s.Dialogue.Reset()
	}
	s.UpdatedAt = time.Now()
}

// RememberTracking caches the order a tracking answer was about so elliptical
// follow-ups can be answered without re-running extraction.
func (s *Session) RememberTracking(orderID string, status OrderStatus) {
	s.LastIntent = "order_tracking"
	s.LastOrderID = orderID
	s.LastOrderStatus = status
	s.UpdatedAt = time.Now()
}

// ForgetFollowUp clears the follow-up cache.
func (s *Session) ForgetFollowUp() {
	s.LastIntent = ""
	s.LastOrderID = ""
	s.LastOrderStatus = ""
	s.LastResolution = ""
}
