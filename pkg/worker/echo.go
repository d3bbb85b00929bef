package worker

import (
	"context"

	"github.com/go-go-golems/multilogue/pkg/cmj"
	"github.com/go-go-golems/multilogue/pkg/dialogue"
)

// NewEchoWorker answers with text, or with the content of the last message
// when text is empty.
func NewEchoWorker(text string) *FuncWorker {
	return NewFuncWorker(func(ctx context.Context, req *cmj.Request) *cmj.Reply {
		if err := ctx.Err(); err != nil {
			return cmj.NewErrorReply(err)
		}
		content := text
		if content == "" && len(req.Messages) > 0 {
			content = req.Messages[len(req.Messages)-1].Content
		}
		return cmj.NewSuccessReply(cmj.NewTextReplyData(string(dialogue.RoleAssistant), content, ""))
	})
}
