package dialogue

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppendDoesNotMutateReceiver(t *testing.T) {
	d := New(NewTurn("user", RoleUser, "Hi"))
	d2 := d.Append(NewTurn("assistant", RoleAssistant, "Hello"))

	assert.Equal(t, 1, d.Len())
	assert.Equal(t, 2, d2.Len())

	last, ok := d2.Last()
	require.True(t, ok)
	assert.Equal(t, "Hello", last.Content)
}

func TestEqualIgnoresReasoning(t *testing.T) {
	a := New(Turn{Speaker: "grok", Role: RoleAssistant, Content: "x", Reasoning: "thinking"})
	b := New(Turn{Speaker: "grok", Role: RoleAssistant, Content: "x"})
	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(b.Append(NewTurn("user", RoleUser, "y"))))
}

func TestSpeakers(t *testing.T) {
	d := New(
		NewTurn("Alex", RoleUser, "1"),
		NewTurn("grok", RoleAssistant, "2"),
		NewTurn("Alex", RoleUser, "3"),
	)
	assert.Equal(t, []string{"Alex", "grok"}, d.Speakers())
}

func TestRoleTable(t *testing.T) {
	rt := DefaultRoleTable("Grok").WithRule("bot-*", RoleAssistant)

	tests := []struct {
		speaker string
		want    Role
	}{
		{"system", RoleSystem},
		{"System", RoleSystem},
		{"user", RoleUser},
		{"assistant", RoleAssistant},
		{"grok", RoleAssistant},
		{"bot-7", RoleAssistant},
		{"Socrates", RoleUser},
		{"", RoleUser},
	}
	for _, tt := range tests {
		t.Run(tt.speaker, func(t *testing.T) {
			assert.Equal(t, tt.want, rt.RoleFor(tt.speaker))
		})
	}
}

func TestRoleTableInvalidDefault(t *testing.T) {
	rt := RoleTable{Default: Role("narrator")}
	assert.Equal(t, RoleUser, rt.RoleFor("anyone"))
}

func TestNormalizeReplyRole(t *testing.T) {
	assert.Equal(t, RoleAssistant, NormalizeReplyRole(""))
	assert.Equal(t, RoleAssistant, NormalizeReplyRole("model"))
	assert.Equal(t, RoleSystem, NormalizeReplyRole("developer"))
	assert.Equal(t, RoleUser, NormalizeReplyRole(" Human "))
}
