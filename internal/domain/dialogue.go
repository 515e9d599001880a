package domain

// DialogueState tracks the multi-turn position of one conversation: which
// intent it has committed to, which slot it is waiting on, and what has been
// collected so far.
//
// Invariant: PendingSlot is never set unless ActiveIntent is set. The state
// is reset only on an explicit user completion signal or a successful
// terminal resolution, never on a failed lookup.
type DialogueState struct {
	ActiveIntent      Intent            `json:"active_intent,omitempty"`
	PendingSlot       string            `json:"pending_slot,omitempty"`
	Context           map[string]string `json:"context,omitempty"`
	WorkflowCompleted bool              `json:"workflow_completed,omitempty"`
}

// NewDialogueState returns an idle dialogue state.
func NewDialogueState() *DialogueState {
	return &DialogueState{Context: make(map[string]string)}
}

// Slot returns a collected slot value, if present.
func (d *DialogueState) Slot(name string) (string, bool) {
	v, ok := d.Context[name]
	return v, ok
}

// SetSlot records a collected slot value and clears it as pending.
func (d *DialogueState) SetSlot(name, value string) {
	if d.Context == nil {
		d.Context = make(map[string]string)
	}
	d.Context[name] = value
	if d.PendingSlot == name {
		d.PendingSlot = ""
	}
}

// ClearSlot discards a slot value, e.g. after a lookup failure showed it was
// invalid. The active intent is left alone.
func (d *DialogueState) ClearSlot(name string) {
	delete(d.Context, name)
}

// AwaitSlot marks a slot as the one the conversation is waiting on. It is a
// no-op when no intent is locked, preserving the pending-implies-active
// invariant.
func (d *DialogueState) AwaitSlot(name string) {
	if d.ActiveIntent == IntentNone {
		return
	}
	d.PendingSlot = name
}

// Reset returns the dialogue to idle, ready for a new conversation.
func (d *DialogueState) Reset() {
	d.ActiveIntent = IntentNone
	d.PendingSlot = ""
	d.Context = make(map[string]string)
	d.WorkflowCompleted = false
}
