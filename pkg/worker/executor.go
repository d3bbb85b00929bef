package worker

import (
	"context"
	"sync"

	"github.com/go-go-golems/multilogue/pkg/cmj"
	"github.com/go-go-golems/multilogue/pkg/helpers"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Executor owns the single exchange slot. Submit while an exchange is
// outstanding fails with ErrBusy.
type Executor struct {
	factory Factory

	mu   sync.Mutex
	busy bool
}

func NewExecutor(factory Factory) *Executor {
	return &Executor{factory: factory}
}

func (e *Executor) Busy() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.busy
}

func (e *Executor) acquire() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.busy {
		return false
	}
	e.busy = true
	return true
}

func (e *Executor) release() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.busy = false
}

// Submit creates a fresh worker for locator and starts it. The slot stays
// taken until the returned Pending is closed.
func (e *Executor) Submit(ctx context.Context, locator string, req *cmj.Request) (*Pending, error) {
	if !e.acquire() {
		return nil, ErrBusy
	}

	w, err := e.factory.New(locator)
	if err != nil {
		e.release()
		return nil, err
	}

	replies, err := w.Start(ctx, req)
	if err != nil {
		if err_ := w.Terminate(); err_ != nil {
			log.Warn().Err(err_).Msg("could not terminate worker after failed start")
		}
		e.release()
		return nil, errors.Wrap(err, "could not start worker")
	}

	p := &Pending{
		id:      uuid.NewString(),
		worker:  w,
		done:    make(chan struct{}),
		release: e.release,
	}
	log.Debug().Str("exchange", p.id).Str("locator", locator).Int("messages", len(req.Messages)).Msg("exchange submitted")

	go p.wait(ctx, replies)
	return p, nil
}

// Pending is an outstanding exchange.
type Pending struct {
	id      string
	worker  Worker
	done    chan struct{}
	result  helpers.Result[*cmj.Reply]
	release func()

	terminateOnce sync.Once
	terminateErr  error
	closeOnce     sync.Once
}

func (p *Pending) ID() string {
	return p.id
}

// Done is closed once the reply (or a cancellation) has arrived.
func (p *Pending) Done() <-chan struct{} {
	return p.done
}

func (p *Pending) Wait() (*cmj.Reply, error) {
	<-p.done
	return p.result.Value()
}

func (p *Pending) wait(ctx context.Context, replies <-chan helpers.Result[*cmj.Reply]) {
	defer close(p.done)

	select {
	case r, ok := <-replies:
		if ctx.Err() != nil {
			// the worker noticed the cancellation first, its reply does not count
			p.cancelled(ctx)
			return
		}
		if !ok {
			p.result = helpers.NewErrorResult[*cmj.Reply](ErrNoReply)
			return
		}
		p.result = r
	case <-ctx.Done():
		p.cancelled(ctx)
	}
}

func (p *Pending) cancelled(ctx context.Context) {
	log.Debug().Str("exchange", p.id).Err(ctx.Err()).Msg("exchange cancelled")
	_ = p.terminate()
	p.result = helpers.NewErrorResult[*cmj.Reply](errors.Wrap(ctx.Err(), "exchange cancelled"))
}

func (p *Pending) terminate() error {
	p.terminateOnce.Do(func() {
		p.terminateErr = p.worker.Terminate()
	})
	return p.terminateErr
}

// Close terminates the worker and frees the executor slot. Call it after the
// reply has been handled; extra calls are no-ops.
func (p *Pending) Close() error {
	var err error
	p.closeOnce.Do(func() {
		err = p.terminate()
		p.release()
		log.Debug().Str("exchange", p.id).Msg("exchange closed")
	})
	return err
}
