package worker

import (
	"sort"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const (
	SchemeOpenAI = "openai"
	SchemeExec   = "exec"
	SchemeEcho   = "echo"
)

// Locator names a worker: "<scheme>:<target>".
type Locator struct {
	Scheme string
	Target string
}

func ParseLocator(s string) (Locator, error) {
	s = strings.TrimSpace(s)
	scheme, target, ok := strings.Cut(s, ":")
	if !ok || scheme == "" {
		return Locator{}, errors.Wrapf(ErrUnknownLocator, "%q", s)
	}
	return Locator{
		Scheme: strings.ToLower(scheme),
		Target: strings.TrimSpace(target),
	}, nil
}

func (l Locator) String() string {
	return l.Scheme + ":" + l.Target
}

// Factory creates a fresh worker for every exchange.
type Factory interface {
	New(locator string) (Worker, error)
}

type FactoryFunc func(locator string) (Worker, error)

func (f FactoryFunc) New(locator string) (Worker, error) {
	return f(locator)
}

// Constructor builds a worker from the target part of a locator.
type Constructor func(target string) (Worker, error)

// Registry maps locator schemes to constructors.
type Registry struct {
	mu           sync.RWMutex
	constructors map[string]Constructor
}

var _ Factory = (*Registry)(nil)

func NewRegistry() *Registry {
	return &Registry{constructors: map[string]Constructor{}}
}

// Options configures the built-in workers.
type Options struct {
	OpenAIAPIKey  string
	OpenAIBaseURL string
}

// NewDefaultRegistry registers the openai, exec and echo schemes.
func NewDefaultRegistry(opts Options) *Registry {
	r := NewRegistry()
	r.Register(SchemeOpenAI, func(target string) (Worker, error) {
		client, err := NewOpenAIClient(opts.OpenAIAPIKey, opts.OpenAIBaseURL)
		if err != nil {
			return nil, err
		}
		return NewOpenAIWorker(client, target)
	})
	r.Register(SchemeExec, func(target string) (Worker, error) {
		return NewProcessWorker(strings.Fields(target))
	})
	r.Register(SchemeEcho, func(target string) (Worker, error) {
		return NewEchoWorker(target), nil
	})
	return r
}

func (r *Registry) Register(scheme string, c Constructor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.constructors[strings.ToLower(scheme)] = c
}

func (r *Registry) Schemes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ret := make([]string, 0, len(r.constructors))
	for k := range r.constructors {
		ret = append(ret, k)
	}
	sort.Strings(ret)
	return ret
}

func (r *Registry) New(locator string) (Worker, error) {
	l, err := ParseLocator(locator)
	if err != nil {
		return nil, err
	}

	r.mu.RLock()
	c, ok := r.constructors[l.Scheme]
	r.mu.RUnlock()
	if !ok {
		return nil, errors.Wrapf(ErrUnknownLocator, "scheme %q", l.Scheme)
	}

	log.Debug().Str("scheme", l.Scheme).Str("target", l.Target).Msg("creating worker")
	return c(l.Target)
}
