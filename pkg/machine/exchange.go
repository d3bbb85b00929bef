package machine

import (
	"github.com/go-go-golems/multilogue/pkg/dialogue"
)

type Result string

const (
	ResultAppended Result = "appended"
	ResultPassed   Result = "passed"
	ResultFailed   Result = "failed"
)

// Outcome describes how an exchange ended. Turn and Reasoning are set
// whenever a reply was interpreted, including passes. Dialogue is the
// dialogue after the exchange.
type Outcome struct {
	Result    Result
	Turn      dialogue.Turn
	Reasoning string
	Dialogue  dialogue.Dialogue
	Err       error
}

// Exchange is a dispatched request waiting for its reply.
type Exchange struct {
	id      string
	done    chan struct{}
	outcome Outcome
}

func (e *Exchange) ID() string {
	return e.id
}

// Done is closed once the outcome is available and the controller is idle again.
func (e *Exchange) Done() <-chan struct{} {
	return e.done
}

func (e *Exchange) Wait() Outcome {
	<-e.done
	return e.outcome
}
