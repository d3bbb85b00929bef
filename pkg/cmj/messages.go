package cmj

import (
	"github.com/go-go-golems/multilogue/pkg/dialogue"
	"github.com/go-go-golems/multilogue/pkg/settings"
	"github.com/invopop/jsonschema"
	"github.com/pkg/errors"
)

// Request is the message posted to a worker.
type Request struct {
	Config   settings.MachineConfig `json:"config"`
	Settings *settings.Settings     `json:"settings"`
	Messages []Record               `json:"messages"`
}

func NewRequest(config settings.MachineConfig, s *settings.Settings, d dialogue.Dialogue) *Request {
	if s == nil {
		s = settings.Empty()
	}
	return &Request{
		Config:   config,
		Settings: s,
		Messages: ToRequestRecords(d),
	}
}

type ReplyType string

const (
	ReplyTypeSuccess ReplyType = "success"
	ReplyTypeError   ReplyType = "error"
)

// Reply is the single message a worker posts back.
type Reply struct {
	Type  ReplyType  `json:"type" jsonschema:"required,enum=success,enum=error"`
	Data  *ReplyData `json:"data,omitempty"`
	Error string     `json:"error,omitempty"`
}

func NewSuccessReply(data *ReplyData) *Reply {
	return &Reply{Type: ReplyTypeSuccess, Data: data}
}

func NewErrorReply(err error) *Reply {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	return &Reply{Type: ReplyTypeError, Error: msg}
}

var ErrUnknownReplyType = errors.New("unknown reply type")

// Validate checks the envelope only. A success reply without content is
// reported by the turn controller, not here.
func (r *Reply) Validate() error {
	if r == nil {
		return errors.New("nil reply")
	}
	switch r.Type {
	case ReplyTypeSuccess, ReplyTypeError:
		return nil
	default:
		return errors.Wrapf(ErrUnknownReplyType, "%q", r.Type)
	}
}

// JSONSchemaExtend documents that content fields are either strings or segment lists.
func (ReplyData) JSONSchemaExtend(s *jsonschema.Schema) {
	text := &jsonschema.Schema{
		OneOf:       []*jsonschema.Schema{{Type: "string"}, {Type: "array"}},
		Description: "plain text or a list of typed segments",
	}
	s.Properties.Set("content", text)
	s.Properties.Set("reasoning_content", text)
}
