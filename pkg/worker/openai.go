package worker

import (
	"context"
	"strings"

	"github.com/go-go-golems/multilogue/pkg/cmj"
	"github.com/go-go-golems/multilogue/pkg/settings"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	go_openai "github.com/sashabaranov/go-openai"
)

func NewOpenAIClient(apiKey string, baseURL string) (*go_openai.Client, error) {
	if apiKey == "" {
		return nil, errors.New("no API key for openai")
	}
	config := go_openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = strings.TrimRight(baseURL, "/")
	}
	return go_openai.NewClientWithConfig(config), nil
}

// NewOpenAIWorker sends the request as one chat completion call to model.
func NewOpenAIWorker(client *go_openai.Client, model string) (*FuncWorker, error) {
	if client == nil {
		return nil, errors.New("openai worker needs a client")
	}
	if model == "" {
		return nil, errors.New("openai worker needs a model")
	}

	return NewFuncWorker(func(ctx context.Context, req *cmj.Request) *cmj.Reply {
		creq := MakeCompletionRequest(model, req)
		log.Debug().
			Str("model", creq.Model).
			Int("messages", len(creq.Messages)).
			Float32("temperature", creq.Temperature).
			Float32("top_p", creq.TopP).
			Int("max_completion_tokens", creq.MaxCompletionTokens).
			Msg("Making request to openai")

		resp, err := client.CreateChatCompletion(ctx, creq)
		if err != nil {
			return cmj.NewErrorReply(errors.Wrap(err, "chat completion failed"))
		}
		if len(resp.Choices) == 0 {
			return cmj.NewErrorReply(errors.New("chat completion returned no choices"))
		}

		msg := resp.Choices[0].Message
		log.Debug().
			Str("finish_reason", string(resp.Choices[0].FinishReason)).
			Int("prompt_tokens", resp.Usage.PromptTokens).
			Int("completion_tokens", resp.Usage.CompletionTokens).
			Msg("openai reply received")
		return cmj.NewSuccessReply(cmj.NewTextReplyData(msg.Role, msg.Content, msg.ReasoningContent))
	}), nil
}

// MakeCompletionRequest maps the request records and the recognised settings
// onto a chat completion request. Unknown settings are ignored.
func MakeCompletionRequest(model string, req *cmj.Request) go_openai.ChatCompletionRequest {
	ret := go_openai.ChatCompletionRequest{
		Model:    model,
		Messages: cmj.ToOpenAIMessages(req.Messages),
	}

	s := req.Settings
	if v, ok := s.Float(settings.KeyTemperature); ok {
		ret.Temperature = float32(v)
	}
	if v, ok := s.Float(settings.KeyTopP); ok {
		ret.TopP = float32(v)
	}
	if v, ok := s.Int(settings.KeyMaxCompletionTokens); ok {
		ret.MaxCompletionTokens = v
	}
	return ret
}
