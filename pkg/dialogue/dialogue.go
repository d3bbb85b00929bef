// Package dialogue holds the in-memory model of a multi-party dialogue.
//
// A Dialogue is a transient view: the persisted Plato text is the single
// source of truth and a Dialogue is re-derived from it whenever it is needed
// (see pkg/plato).
package dialogue

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

func (r Role) IsValid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant:
		return true
	}
	return false
}

// Turn is one utterance of the dialogue.
type Turn struct {
	Speaker string `json:"speaker" yaml:"speaker"`
	Role    Role   `json:"role" yaml:"role"`
	Content string `json:"content" yaml:"content"`
	// Reasoning is hidden deliberation attached to an assistant turn.
	// It is never serialized into Plato text nor sent back as history.
	Reasoning string `json:"reasoning,omitempty" yaml:"reasoning,omitempty"`
}

func NewTurn(speaker string, role Role, content string) Turn {
	return Turn{
		Speaker: speaker,
		Role:    role,
		Content: content,
	}
}

// Dialogue is ordered chronologically. The empty Dialogue means "no content yet".
type Dialogue []Turn

func New(turns ...Turn) Dialogue {
	ret := make(Dialogue, 0, len(turns))
	return append(ret, turns...)
}

func (d Dialogue) Len() int {
	return len(d)
}

func (d Dialogue) IsEmpty() bool {
	return len(d) == 0
}

// Append returns a new Dialogue with the given turns added at the end.
// The receiver is left untouched.
func (d Dialogue) Append(turns ...Turn) Dialogue {
	ret := make(Dialogue, 0, len(d)+len(turns))
	ret = append(ret, d...)
	return append(ret, turns...)
}

// Last returns the most recent turn.
func (d Dialogue) Last() (Turn, bool) {
	if len(d) == 0 {
		return Turn{}, false
	}
	return d[len(d)-1], true
}

// Equal compares speakers, roles and contents. Reasoning is ignored since it is
// not part of the persisted dialogue.
func (d Dialogue) Equal(other Dialogue) bool {
	if len(d) != len(other) {
		return false
	}
	for i := range d {
		if d[i].Speaker != other[i].Speaker ||
			d[i].Role != other[i].Role ||
			d[i].Content != other[i].Content {
			return false
		}
	}
	return true
}

// Speakers lists the distinct speakers in order of first appearance.
func (d Dialogue) Speakers() []string {
	seen := map[string]bool{}
	var ret []string
	for _, t := range d {
		if seen[t.Speaker] {
			continue
		}
		seen[t.Speaker] = true
		ret = append(ret, t.Speaker)
	}
	return ret
}
