// Package worker runs the model side of an exchange. A worker receives one
// request and delivers exactly one reply; the Executor makes sure only one
// exchange is outstanding at a time.
package worker

import (
	"context"
	"sync"

	"github.com/go-go-golems/multilogue/pkg/cmj"
	"github.com/go-go-golems/multilogue/pkg/helpers"
	"github.com/pkg/errors"
)

var (
	ErrBusy           = errors.New("an exchange is already outstanding")
	ErrUnknownLocator = errors.New("unknown worker locator")
	ErrAlreadyStarted = errors.New("worker already started")
	ErrTerminated     = errors.New("worker terminated")
	ErrNoReply        = errors.New("worker finished without a reply")
)

// Worker is a single-use model backend.
type Worker interface {
	// Start hands the request to the worker. The returned channel delivers
	// exactly one result and is then closed.
	Start(ctx context.Context, req *cmj.Request) (<-chan helpers.Result[*cmj.Reply], error)
	// Terminate releases the worker. It may be called before or after the
	// reply has been delivered.
	Terminate() error
}

// Func answers a request in-process.
type Func func(ctx context.Context, req *cmj.Request) *cmj.Reply

// FuncWorker runs a Func in a goroutine. Terminate cancels the context the Func runs with.
type FuncWorker struct {
	fn Func

	mu           sync.Mutex
	cancel       context.CancelFunc
	started      bool
	terminated   bool
	terminations int
}

var _ Worker = (*FuncWorker)(nil)

func NewFuncWorker(fn Func) *FuncWorker {
	return &FuncWorker{fn: fn}
}

func (w *FuncWorker) Start(ctx context.Context, req *cmj.Request) (<-chan helpers.Result[*cmj.Reply], error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.terminated {
		return nil, ErrTerminated
	}
	if w.started {
		return nil, ErrAlreadyStarted
	}
	w.started = true

	ctx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	c := make(chan helpers.Result[*cmj.Reply], 1)
	go func() {
		defer close(c)
		reply := w.fn(ctx, req)
		if reply == nil {
			c <- helpers.NewErrorResult[*cmj.Reply](ErrNoReply)
			return
		}
		c <- helpers.NewValueResult(reply)
	}()

	return c, nil
}

func (w *FuncWorker) Terminate() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.terminations++
	w.terminated = true
	if w.cancel != nil {
		w.cancel()
	}
	return nil
}

// Terminations reports how often Terminate was called.
func (w *FuncWorker) Terminations() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.terminations
}

// Reply is a Func that always answers with the same reply.
func Reply(reply *cmj.Reply) Func {
	return func(ctx context.Context, req *cmj.Request) *cmj.Reply {
		return reply
	}
}
