package plato

import (
	"strings"
	"testing"

	"github.com/go-go-golems/multilogue/pkg/dialogue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCodec() *Codec {
	return NewCodec(dialogue.DefaultRoleTable("grok"))
}

func TestParse(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		want     dialogue.Dialogue
		fallback bool
	}{
		{
			name: "empty",
			text: "",
			want: dialogue.New(),
		},
		{
			name: "whitespace only",
			text: " \n\t\n  ",
			want: dialogue.New(),
		},
		{
			name: "two turns",
			text: "user:\nHi\n\nassistant:\nHello",
			want: dialogue.New(
				dialogue.NewTurn("user", dialogue.RoleUser, "Hi"),
				dialogue.NewTurn("assistant", dialogue.RoleAssistant, "Hello"),
			),
		},
		{
			name: "interior blank lines kept, surrounding trimmed",
			text: "Alex:\n\n\nfirst\n\n\nsecond\n\n\ngrok:\nanswer\n\n",
			want: dialogue.New(
				dialogue.NewTurn("Alex", dialogue.RoleUser, "first\n\n\nsecond"),
				dialogue.NewTurn("grok", dialogue.RoleAssistant, "answer"),
			),
		},
		{
			name: "crlf line endings",
			text: "system:\r\nBe brief.\r\n\r\nuser:\r\nWhy?",
			want: dialogue.New(
				dialogue.NewTurn("system", dialogue.RoleSystem, "Be brief."),
				dialogue.NewTurn("user", dialogue.RoleUser, "Why?"),
			),
		},
		{
			name: "preamble becomes default speaker turn",
			text: "Some notes\n\ngrok:\nok",
			want: dialogue.New(
				dialogue.NewTurn("user", dialogue.RoleUser, "Some notes"),
				dialogue.NewTurn("grok", dialogue.RoleAssistant, "ok"),
			),
		},
		{
			name: "escaped marker line in body",
			text: "Alex:\n\\Note:\n\\\\path",
			want: dialogue.New(
				dialogue.NewTurn("Alex", dialogue.RoleUser, "Note:\n\\path"),
			),
		},
		{
			name:     "no markers falls back to single turn",
			text:     "  just some text\nwith Note: inline\n",
			want:     dialogue.New(dialogue.NewTurn("user", dialogue.RoleUser, "  just some text\nwith Note: inline\n")),
			fallback: true,
		},
		{
			name: "empty body",
			text: "Alex:\n\ngrok:\n",
			want: dialogue.New(
				dialogue.NewTurn("Alex", dialogue.RoleUser, ""),
				dialogue.NewTurn("grok", dialogue.RoleAssistant, ""),
			),
		},
	}

	c := newTestCodec()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := c.Parse(tt.text)
			assert.Equal(t, tt.fallback, res.Fallback)
			assert.Equal(t, tt.want, res.Dialogue)
		})
	}
}

func TestSerialize(t *testing.T) {
	c := newTestCodec()
	d := dialogue.New(
		dialogue.NewTurn("user", dialogue.RoleUser, "Hi"),
		dialogue.NewTurn("assistant", dialogue.RoleAssistant, "Hello"),
	)
	assert.Equal(t, "user:\nHi\n\nassistant:\nHello", c.Serialize(d))
	assert.Equal(t, "", c.Serialize(dialogue.New()))
}

func TestSerializeSanitizesSpeaker(t *testing.T) {
	c := newTestCodec()
	d := dialogue.New(dialogue.NewTurn("Mr Smith", dialogue.RoleUser, "x"))
	assert.Equal(t, "Mr_Smith:\nx", c.Serialize(d))

	d = dialogue.New(dialogue.NewTurn("???", dialogue.RoleUser, "x"))
	assert.Equal(t, "user:\nx", c.Serialize(d))
}

func TestRoundTripDialogue(t *testing.T) {
	c := newTestCodec()
	dialogues := []dialogue.Dialogue{
		dialogue.New(),
		dialogue.New(dialogue.NewTurn("user", dialogue.RoleUser, "Hi")),
		dialogue.New(
			dialogue.NewTurn("system", dialogue.RoleSystem, "You are a philosopher."),
			dialogue.NewTurn("Socrates", dialogue.RoleUser, "What is justice?\n\nAnswer plainly."),
			dialogue.NewTurn("grok", dialogue.RoleAssistant, "Giving each their due."),
		),
		dialogue.New(
			dialogue.NewTurn("Alex", dialogue.RoleUser, "A list:\nuser:\n\\escaped\n  indented"),
			dialogue.NewTurn("grok", dialogue.RoleAssistant, ""),
			dialogue.NewTurn("Alex", dialogue.RoleUser, "done"),
		),
	}
	for i, d := range dialogues {
		text := c.Serialize(d)
		res := c.Parse(text)
		require.False(t, res.Fallback && len(d) > 0, "case %d fell back", i)
		assert.Equal(t, d, res.Dialogue, "case %d: %q", i, text)
	}
}

func TestSerializeNormalizesCarriageReturns(t *testing.T) {
	c := newTestCodec()
	d := dialogue.New(dialogue.NewTurn("Alex", dialogue.RoleUser, "a\tb\r\nc\rd"))
	text := c.Serialize(d)
	assert.Equal(t, "Alex:\na\tb\nc\nd", text)
	assert.Equal(t, "a\tb\nc\nd", c.Parse(text).Dialogue[0].Content)
}

func TestRoundTripText(t *testing.T) {
	c := newTestCodec()
	text := "Alex:\nHi there\n\n\n\ngrok:\n\nHello.\nHow can I help?\n"
	got := c.Serialize(c.Parse(text).Dialogue)
	assert.Equal(t, normalizeWhitespace(text), normalizeWhitespace(got))
}

func TestMarkerSpeaker(t *testing.T) {
	s, ok := MarkerSpeaker("grok:")
	assert.True(t, ok)
	assert.Equal(t, "grok", s)

	s, ok = MarkerSpeaker("gpt-4.1:  ")
	assert.True(t, ok)
	assert.Equal(t, "gpt-4.1", s)

	_, ok = MarkerSpeaker("grok: hello")
	assert.False(t, ok)
	_, ok = MarkerSpeaker("two words:")
	assert.False(t, ok)
	_, ok = MarkerSpeaker(":")
	assert.False(t, ok)
}

func normalizeWhitespace(s string) string {
	var lines []string
	for _, l := range strings.Split(s, "\n") {
		l = strings.TrimSpace(l)
		if l != "" {
			lines = append(lines, l)
		}
	}
	return strings.Join(lines, "\n")
}
