// Package cmj converts dialogues to and from the role-tagged message records
// exchanged with model workers.
package cmj

import (
	"encoding/json"

	"github.com/go-go-golems/multilogue/pkg/desoup"
	"github.com/go-go-golems/multilogue/pkg/dialogue"
	go_openai "github.com/sashabaranov/go-openai"
)

// Record is one message of a model request.
type Record struct {
	Role    dialogue.Role `json:"role" jsonschema:"required,enum=system,enum=user,enum=assistant"`
	Name    string        `json:"name"`
	Content string        `json:"content"`
}

// ToRequestRecords emits one record per turn, in order. Reasoning is never included.
func ToRequestRecords(d dialogue.Dialogue) []Record {
	ret := make([]Record, 0, len(d))
	for _, t := range d {
		ret = append(ret, Record{
			Role:    t.Role,
			Name:    t.Speaker,
			Content: t.Content,
		})
	}
	return ret
}

// ToDialogue rebuilds a dialogue from records. A record without a valid role
// gets the one the role table derives from its name.
func ToDialogue(records []Record, roles dialogue.RoleTable) dialogue.Dialogue {
	ret := make(dialogue.Dialogue, 0, len(records))
	for _, r := range records {
		role := r.Role
		if !role.IsValid() {
			role = roles.RoleFor(r.Name)
		}
		speaker := r.Name
		if speaker == "" {
			speaker = string(role)
		}
		ret = append(ret, dialogue.NewTurn(speaker, role, r.Content))
	}
	return ret
}

// ReplyData is the payload of a successful worker reply. Content and
// ReasoningContent are kept raw because providers send strings or segment lists.
type ReplyData struct {
	Role             string          `json:"role,omitempty"`
	Content          json.RawMessage `json:"content,omitempty"`
	ReasoningContent json.RawMessage `json:"reasoning_content,omitempty"`
}

// NewTextReplyData builds reply data from plain strings.
func NewTextReplyData(role string, content string, reasoning string) *ReplyData {
	ret := &ReplyData{Role: role}
	ret.Content, _ = json.Marshal(content)
	if reasoning != "" {
		ret.ReasoningContent, _ = json.Marshal(reasoning)
	}
	return ret
}

// HasContent is false when the content field is absent or null.
func (r *ReplyData) HasContent() bool {
	if r == nil {
		return false
	}
	return !isNull(r.Content)
}

func isNull(raw json.RawMessage) bool {
	if len(raw) == 0 {
		return true
	}
	return string(raw) == "null"
}

// FromReply builds the turn answering the dialogue. The speaker is the
// assistant's configured name; reasoning is not embedded.
func FromReply(data *ReplyData, assistantName string) dialogue.Turn {
	if data == nil {
		return dialogue.NewTurn(assistantName, dialogue.RoleAssistant, "")
	}
	return dialogue.NewTurn(
		assistantName,
		dialogue.NormalizeReplyRole(data.Role),
		desoup.RawText(data.Content),
	)
}

// ReasoningOf desoups the reasoning field of a reply.
func ReasoningOf(data *ReplyData) string {
	if data == nil {
		return ""
	}
	return desoup.RawText(data.ReasoningContent)
}

// ToOpenAIMessages maps records onto chat completion messages. Names are only
// forwarded when they differ from the role token, since providers reject
// names with characters outside [a-zA-Z0-9_-].
func ToOpenAIMessages(records []Record) []go_openai.ChatCompletionMessage {
	ret := make([]go_openai.ChatCompletionMessage, 0, len(records))
	for _, r := range records {
		msg := go_openai.ChatCompletionMessage{
			Role:    string(r.Role),
			Content: r.Content,
		}
		if r.Name != "" && r.Name != string(r.Role) && isValidName(r.Name) {
			msg.Name = r.Name
		}
		ret = append(ret, msg)
	}
	return ret
}

func isValidName(name string) bool {
	if len(name) > 64 {
		return false
	}
	for _, c := range name {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '_', c == '-':
		default:
			return false
		}
	}
	return true
}
