package worker

import (
	"context"
	"encoding/json"
	"io"

	"github.com/go-go-golems/multilogue/pkg/cmj"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Serve is the subprocess side of the exec protocol: it reads one request
// from in, lets w answer it and writes exactly one reply line to out. A
// request that cannot be decoded still gets an error reply.
func Serve(ctx context.Context, in io.Reader, out io.Writer, w Worker) error {
	defer func() {
		if err := w.Terminate(); err != nil {
			log.Warn().Err(err).Msg("could not terminate worker")
		}
	}()

	req := &cmj.Request{}
	if err := json.NewDecoder(in).Decode(req); err != nil {
		err = errors.Wrap(err, "could not decode request")
		return writeReply(out, cmj.NewErrorReply(err), err)
	}

	replies, err := w.Start(ctx, req)
	if err != nil {
		return writeReply(out, cmj.NewErrorReply(err), err)
	}

	select {
	case r, ok := <-replies:
		if !ok {
			return writeReply(out, cmj.NewErrorReply(ErrNoReply), ErrNoReply)
		}
		reply, err := r.Value()
		if err != nil {
			return writeReply(out, cmj.NewErrorReply(err), err)
		}
		return writeReply(out, reply, nil)
	case <-ctx.Done():
		return writeReply(out, cmj.NewErrorReply(ctx.Err()), ctx.Err())
	}
}

func writeReply(out io.Writer, reply *cmj.Reply, cause error) error {
	b, err := json.Marshal(reply)
	if err != nil {
		return errors.Wrap(err, "could not encode reply")
	}
	if _, err := out.Write(append(b, '\n')); err != nil {
		return errors.Wrap(err, "could not write reply")
	}
	return cause
}
