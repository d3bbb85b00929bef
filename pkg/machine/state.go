package machine

import (
	"github.com/pkg/errors"
)

type State string

const (
	StateIdle       State = "idle"
	StateDispatched State = "dispatched"
	StateCompleted  State = "completed"
	StateFailed     State = "failed"
)

type Event string

const (
	EventDispatch       Event = "dispatch"
	EventReplySuccess   Event = "reply-success"
	EventReplyMalformed Event = "reply-malformed"
	EventReplyError     Event = "reply-error"
	EventReset          Event = "reset"
)

var ErrInvalidTransition = errors.New("invalid transition")

var transitions = map[State]map[Event]State{
	StateIdle: {
		EventDispatch: StateDispatched,
	},
	StateDispatched: {
		EventReplySuccess:   StateCompleted,
		EventReplyMalformed: StateFailed,
		EventReplyError:     StateFailed,
	},
	StateCompleted: {
		EventReset: StateIdle,
	},
	StateFailed: {
		EventReset: StateIdle,
	},
}

// Transition returns the state reached from s on e.
func Transition(s State, e Event) (State, error) {
	if next, ok := transitions[s][e]; ok {
		return next, nil
	}
	return s, errors.Wrapf(ErrInvalidTransition, "%s on %s", e, s)
}
