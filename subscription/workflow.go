package subscription

import "fmt"

type State string

const (
	StateDraft      State = "draft"
	StateQuotation  State = "quotation"
	StateConfirmed  State = "confirmed"
	StateProcessing State = "processing"
	StateDone       State = "done"
	StateCancel     State = "cancel"
	StateStop       State = "stop"
)

// Valid reports whether s is a known state.
func (s State) Valid() bool {
	switch s {
	case StateDraft, StateQuotation, StateConfirmed, StateProcessing, StateDone, StateCancel, StateStop:
		return true
	}
	return false
}

// Event is a workflow button. Each event is named after the state it leads to.
type Event string

const (
	EventQuotation  Event = "quotation"
	EventConfirmed  Event = "confirmed"
	EventProcessing Event = "processing"
	EventDone       Event = "done"
	EventStop       Event = "stop"
	EventCancel     Event = "cancel"
	EventDraft      Event = "draft"
)

// Events lists every workflow event.
var Events = []Event{
	EventQuotation, EventConfirmed, EventProcessing, EventDone,
	EventStop, EventCancel, EventDraft,
}

// States lists every workflow state.
func States() []State {
	return []State{
		StateDraft, StateQuotation, StateConfirmed, StateProcessing,
		StateDone, StateCancel, StateStop,
	}
}

// Target returns the state the event leads to.
func (e Event) Target() State { return State(e) }

type edge struct {
	from  State
	event Event
}

// transitions is the complete set of legal edges.
var transitions = map[edge]State{
	{StateDraft, EventQuotation}:      StateQuotation,
	{StateQuotation, EventConfirmed}:  StateConfirmed,
	{StateConfirmed, EventProcessing}: StateProcessing,
	{StateProcessing, EventDone}:      StateDone,
	{StateDraft, EventCancel}:         StateCancel,
	{StateQuotation, EventCancel}:     StateCancel,
	{StateQuotation, EventDraft}:      StateDraft,
	{StateCancel, EventDraft}:         StateDraft,
	{StateProcessing, EventStop}:      StateStop,
	{StateStop, EventProcessing}:      StateProcessing,
}

// IllegalTransitionError reports an edge outside the transition table.
type IllegalTransitionError struct {
	From  State
	Event Event
}

func (e *IllegalTransitionError) Error() string {
	return fmt.Sprintf("illegal transition %s -> %s", e.From, e.Event.Target())
}

// Next returns the state reached from "from" on event.
func Next(from State, event Event) (State, error) {
	to, ok := transitions[edge{from, event}]
	if !ok {
		return "", &IllegalTransitionError{From: from, Event: event}
	}
	return to, nil
}

// CanTransition reports whether event is legal from the given state.
func CanTransition(from State, event Event) bool {
	_, ok := transitions[edge{from, event}]
	return ok
}

// Available returns the events legal from the given state, in Events order.
func Available(from State) []Event {
	var out []Event
	for _, e := range Events {
		if CanTransition(from, e) {
			out = append(out, e)
		}
	}
	return out
}
