// Package machine drives one exchange with the model: it reads the persisted
// dialogue, hands it to a worker, interprets the single reply and folds the
// answer back into the persisted text.
package machine

import (
	"context"
	"strings"
	"sync"

	"github.com/go-go-golems/multilogue/pkg/cmj"
	"github.com/go-go-golems/multilogue/pkg/dialogue"
	"github.com/go-go-golems/multilogue/pkg/display"
	"github.com/go-go-golems/multilogue/pkg/plato"
	"github.com/go-go-golems/multilogue/pkg/settings"
	"github.com/go-go-golems/multilogue/pkg/store"
	"github.com/go-go-golems/multilogue/pkg/worker"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

var (
	ErrEmptyDialogue  = errors.New("dialogue is empty")
	ErrMalformedReply = errors.New("malformed reply")
	ErrTransport      = errors.New("transport error")
)

// passTokens are replies by which the model deliberately says nothing.
var passTokens = map[string]bool{
	"":        true,
	"...":     true,
	"silence": true,
	"pass":    true,
}

// IsPass reports whether content is a deliberate no-reply.
func IsPass(content string) bool {
	return passTokens[strings.ToLower(strings.TrimSpace(content))]
}

type Controller struct {
	store    store.Store
	executor *worker.Executor
	config   settings.MachineConfig
	settings *settings.Settings
	codec    *plato.Codec
	notifier display.Notifier

	mu    sync.Mutex
	state State
}

type Option func(*Controller)

func WithSettings(s *settings.Settings) Option {
	return func(c *Controller) {
		c.settings = s
	}
}

func WithRoles(roles dialogue.RoleTable) Option {
	return func(c *Controller) {
		c.codec = plato.NewCodec(roles)
	}
}

func WithNotifier(n display.Notifier) Option {
	return func(c *Controller) {
		c.notifier = n
	}
}

func NewController(
	s store.Store,
	executor *worker.Executor,
	config settings.MachineConfig,
	options ...Option,
) (*Controller, error) {
	if s == nil {
		return nil, errors.New("controller needs a store")
	}
	if executor == nil {
		return nil, errors.New("controller needs an executor")
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	c := &Controller{
		store:    s,
		executor: executor,
		config:   config,
		settings: settings.Empty(),
		codec:    plato.NewCodec(dialogue.DefaultRoleTable(config.Name)),
		notifier: display.NotifierFunc(func(display.Notice) {}),
		state:    StateIdle,
	}
	for _, o := range options {
		o(c)
	}
	return c, nil
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) Codec() *plato.Codec {
	return c.codec
}

func (c *Controller) fireLocked(e Event) {
	next, err := Transition(c.state, e)
	if err != nil {
		log.Error().Err(err).Msg("turn controller out of sync")
		return
	}
	log.Debug().Str("from", string(c.state)).Str("to", string(next)).Str("event", string(e)).Msg("turn controller transition")
	c.state = next
}

// Trigger starts an exchange and returns without waiting for the reply. ctx
// is handed to the worker; cancelling it terminates the worker and fails the
// exchange.
func (c *Controller) Trigger(ctx context.Context) (*Exchange, error) {
	text, err := store.GetString(ctx, c.store, store.KeyMultilogue)
	if err != nil {
		err = errors.Wrap(err, "could not read dialogue")
		c.notify(display.LevelError, "Could not read the dialogue.", err)
		return nil, err
	}

	d := c.codec.Parse(text).Dialogue
	if d.IsEmpty() {
		log.Info().Msg("not dispatching an empty dialogue")
		c.notify(display.LevelInfo, "The dialogue is empty, there is nothing to send.", nil)
		return nil, ErrEmptyDialogue
	}

	pending, err := c.dispatch(ctx, cmj.NewRequest(c.config, c.settings, d))
	if err != nil {
		if errors.Is(err, worker.ErrBusy) {
			c.notify(display.LevelWarn, "An exchange is already in progress.", nil)
		} else {
			log.Error().Err(err).Str("work", c.config.Work).Msg("could not dispatch exchange")
			c.notify(display.LevelError, "Could not reach the model.", err)
		}
		return nil, err
	}

	ex := &Exchange{
		id:   pending.ID(),
		done: make(chan struct{}),
	}
	go c.complete(ctx, ex, pending, text, d)

	return ex, nil
}

func (c *Controller) dispatch(ctx context.Context, req *cmj.Request) (*worker.Pending, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := Transition(c.state, EventDispatch); err != nil {
		return nil, errors.Wrapf(worker.ErrBusy, "turn controller is %s", c.state)
	}
	pending, err := c.executor.Submit(ctx, c.config.Work, req)
	if err != nil {
		return nil, err
	}
	c.fireLocked(EventDispatch)
	return pending, nil
}

// RunCycle triggers an exchange and waits for its outcome.
func (c *Controller) RunCycle(ctx context.Context) (Outcome, error) {
	ex, err := c.Trigger(ctx)
	if err != nil {
		return Outcome{Result: ResultFailed, Err: err}, err
	}
	o := ex.Wait()
	return o, o.Err
}

func (c *Controller) complete(ctx context.Context, ex *Exchange, pending *worker.Pending, before string, d dialogue.Dialogue) {
	defer close(ex.done)

	reply, err := pending.Wait()
	outcome, event := c.handle(ctx, before, d, reply, err)

	if err := pending.Close(); err != nil {
		log.Warn().Err(err).Str("exchange", ex.id).Msg("could not terminate worker")
	}

	c.mu.Lock()
	c.fireLocked(event)
	c.fireLocked(EventReset)
	c.mu.Unlock()

	l := log.Info()
	if outcome.Err != nil {
		l = log.Error().Err(outcome.Err)
	}
	l.Str("exchange", ex.id).Str("result", string(outcome.Result)).Msg("exchange finished")

	ex.outcome = outcome
}

func (c *Controller) handle(
	ctx context.Context,
	before string,
	d dialogue.Dialogue,
	reply *cmj.Reply,
	err error,
) (Outcome, Event) {
	failed := func(event Event, level display.Level, msg string, err error) (Outcome, Event) {
		c.notify(level, msg, err)
		return Outcome{Result: ResultFailed, Dialogue: d, Err: err}, event
	}

	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return failed(EventReplyError, display.LevelWarn, "The exchange was cancelled.", err)
		}
		return failed(EventReplyError, display.LevelError, "The model exchange failed.", errors.Wrap(ErrTransport, err.Error()))
	}

	if err := reply.Validate(); err != nil {
		return failed(EventReplyMalformed, display.LevelError, "The model sent a reply that could not be understood.", errors.Wrap(ErrMalformedReply, err.Error()))
	}

	if reply.Type == cmj.ReplyTypeError {
		msg := reply.Error
		if msg == "" {
			msg = "worker reported an error"
		}
		return failed(EventReplyError, display.LevelError, "The model exchange failed.", errors.Wrap(ErrTransport, msg))
	}

	if !reply.Data.HasContent() {
		return failed(EventReplyMalformed, display.LevelError, "The model sent a reply without content.", errors.Wrap(ErrMalformedReply, "reply carries no content"))
	}

	turn := cmj.FromReply(reply.Data, c.config.Name)
	reasoning := cmj.ReasoningOf(reply.Data)
	outcome := Outcome{Turn: turn, Reasoning: reasoning, Dialogue: d}

	if strings.TrimSpace(reasoning) != "" {
		if err := c.store.Set(ctx, store.KeyThoughts, reasoning); err != nil {
			log.Error().Err(err).Msg("could not save thoughts")
			c.notify(display.LevelWarn, "Could not save the model's thoughts.", err)
		}
	}

	if IsPass(turn.Content) {
		log.Info().Str("speaker", turn.Speaker).Msg("model passed, dialogue left unchanged")
		outcome.Result = ResultPassed
		return outcome, EventReplySuccess
	}

	next := d.Append(turn)
	swapped, err := c.store.CompareAndSwap(ctx, store.KeyMultilogue, before, c.codec.Serialize(next))
	if err != nil {
		return failed(EventReplyError, display.LevelError, "Could not save the dialogue.", errors.Wrap(err, "could not save dialogue"))
	}
	if !swapped {
		return failed(
			EventReplyError,
			display.LevelWarn,
			"The dialogue changed while waiting for the model, its reply was not saved.",
			errors.Wrap(store.ErrConflict, "dialogue changed during the exchange"),
		)
	}

	outcome.Result = ResultAppended
	outcome.Dialogue = next
	return outcome, EventReplySuccess
}

func (c *Controller) notify(level display.Level, msg string, err error) {
	c.notifier.Notify(display.Notice{Level: level, Message: msg, Err: err})
}
