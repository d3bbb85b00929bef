package worker

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"os"
	"os/exec"
	"sync"

	"github.com/go-go-golems/multilogue/pkg/cmj"
	"github.com/go-go-golems/multilogue/pkg/helpers"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

const maxReplyLineSize = 16 * 1024 * 1024

// ProcessWorker runs a subprocess per exchange. The request is written to its
// stdin as JSON, the reply is the first line it prints on stdout. Terminate
// kills the process.
type ProcessWorker struct {
	command []string
	env     []string

	mu         sync.Mutex
	cancel     context.CancelFunc
	exited     chan struct{}
	started    bool
	terminated bool
}

var _ Worker = (*ProcessWorker)(nil)

func NewProcessWorker(command []string) (*ProcessWorker, error) {
	if len(command) == 0 {
		return nil, errors.New("exec worker needs a command")
	}
	return &ProcessWorker{command: command}, nil
}

// WithEnv adds environment variables to the subprocess.
func (w *ProcessWorker) WithEnv(env ...string) *ProcessWorker {
	w.env = append(w.env, env...)
	return w
}

func (w *ProcessWorker) Start(ctx context.Context, req *cmj.Request) (<-chan helpers.Result[*cmj.Reply], error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.terminated {
		return nil, ErrTerminated
	}
	if w.started {
		return nil, ErrAlreadyStarted
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, errors.Wrap(err, "could not encode request")
	}

	ctx, cancel := context.WithCancel(ctx)
	cmd := exec.CommandContext(ctx, w.command[0], w.command[1:]...)
	cmd.Stderr = os.Stderr
	if len(w.env) > 0 {
		cmd.Env = append(os.Environ(), w.env...)
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		cancel()
		return nil, err
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		cancel()
		return nil, errors.Wrapf(err, "could not start %s", w.command[0])
	}
	log.Debug().Strs("command", w.command).Int("pid", cmd.Process.Pid).Msg("worker process started")

	w.started = true
	w.cancel = cancel
	w.exited = make(chan struct{})

	c := make(chan helpers.Result[*cmj.Reply], 1)
	go func() {
		defer close(w.exited)

		eg := errgroup.Group{}
		eg.Go(func() error {
			defer func() {
				_ = stdin.Close()
			}()
			if _, err := stdin.Write(append(payload, '\n')); err != nil {
				return errors.Wrap(err, "could not write request")
			}
			return nil
		})

		// the process may answer without reading stdin, so the reply is
		// delivered as soon as it is read. A blocked write is released when
		// the process exits.
		reply, err := readReply(stdout)
		if err != nil {
			c <- helpers.NewErrorResult[*cmj.Reply](err)
		} else {
			c <- helpers.NewValueResult(reply)
		}
		close(c)

		// drain so the process is not blocked writing, then reap it
		_, _ = io.Copy(io.Discard, stdout)
		if err := cmd.Wait(); err != nil && ctx.Err() == nil {
			log.Debug().Err(err).Strs("command", w.command).Msg("worker process exited with error")
		}
		if err := eg.Wait(); err != nil {
			log.Debug().Err(err).Strs("command", w.command).Msg("worker process did not read the request")
		}
	}()

	return c, nil
}

func readReply(r io.Reader) (*cmj.Reply, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxReplyLineSize)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		reply := &cmj.Reply{}
		if err := json.Unmarshal(line, reply); err != nil {
			return nil, errors.Wrap(err, "could not decode worker reply")
		}
		return reply, nil
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "could not read worker reply")
	}
	return nil, ErrNoReply
}

// Terminate kills the process if it is still running and waits for it to be reaped.
func (w *ProcessWorker) Terminate() error {
	w.mu.Lock()
	w.terminated = true
	cancel, exited := w.cancel, w.exited
	w.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()
	<-exited
	return nil
}
