package cmds

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-go-golems/multilogue/pkg/dialogue"
	"github.com/go-go-golems/multilogue/pkg/plato"
	"github.com/go-go-golems/multilogue/pkg/presentation"
	"github.com/go-go-golems/multilogue/pkg/store"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".multilogue/store.yaml"), expandHome("~/.multilogue/store.yaml"))
	assert.Equal(t, "/tmp/x", expandHome("/tmp/x"))
	assert.Equal(t, "~user/x", expandHome("~user/x"))
}

func TestLoadConfig(t *testing.T) {
	defer viper.Reset()
	viper.Set("machine.name", "grok")
	viper.Set("machine.work", "echo:")
	viper.Set("store.type", "sqlite")
	viper.Set("store.path", "")

	_, err := LoadConfig()
	assert.Error(t, err, "sqlite needs a path")

	viper.Set("store.type", "memory")
	viper.Set("openai-api-key", "k")
	c, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "grok", c.Machine.Name)
	assert.Equal(t, store.TypeMemory, c.Store.Type)
	assert.Equal(t, "k", c.WorkerOptions().OpenAIAPIKey)
}

func TestAppendTurn(t *testing.T) {
	ctx := context.Background()
	roles := dialogue.DefaultRoleTable("grok")
	app := &App{
		Store: store.NewMemoryStore(),
		Roles: roles,
		Codec: plato.NewCodec(roles),
	}
	defer app.Close()

	require.NoError(t, appendTurn(ctx, app, "Alex", "Hi"))
	require.NoError(t, appendTurn(ctx, app, "Alex", "Still there?"))

	v, err := store.GetString(ctx, app.Store, store.KeyMultilogue)
	require.NoError(t, err)
	assert.Equal(t, "Alex:\nHi\n\nAlex:\nStill there?", v)
}

func TestStoreFromHTML(t *testing.T) {
	ctx := context.Background()
	roles := dialogue.DefaultRoleTable("grok")
	app := &App{
		Store: store.NewMemoryStoreWithValues(map[string]string{store.KeyMultilogue: "Alex:\nHi"}),
		Roles: roles,
		Codec: plato.NewCodec(roles),
	}
	defer app.Close()

	for _, fragment := range []string{
		`<div class="dialogue">just foreign text</div>`,
		`<div class="dialogue"></div>`,
		`<p>not a dialogue</p>`,
	} {
		out := &bytes.Buffer{}
		err := storeFromHTML(ctx, app, fragment, out)
		assert.ErrorIs(t, err, presentation.ErrExtraction, fragment)
		assert.Contains(t, out.String(), presentation.ErrorPlaceholder)

		v, err := store.GetString(ctx, app.Store, store.KeyMultilogue)
		require.NoError(t, err)
		assert.Equal(t, "Alex:\nHi", v, "a rejected fragment leaves the dialogue untouched")
	}

	rendered, err := presentation.Render(dialogue.New(
		dialogue.NewTurn("Alex", dialogue.RoleUser, "Hi"),
		dialogue.NewTurn("grok", dialogue.RoleAssistant, "Hello"),
	))
	require.NoError(t, err)
	out := &bytes.Buffer{}
	require.NoError(t, storeFromHTML(ctx, app, rendered, out))
	assert.Empty(t, out.String())
	v, err := store.GetString(ctx, app.Store, store.KeyMultilogue)
	require.NoError(t, err)
	assert.Equal(t, "Alex:\nHi\n\ngrok:\nHello", v)
}

func TestSchemaCommand(t *testing.T) {
	cmd := NewSchemaCommand()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetArgs([]string{})
	require.NoError(t, cmd.Execute())

	var schemas map[string]map[string]interface{}
	require.NoError(t, json.Unmarshal(out.Bytes(), &schemas))
	require.Contains(t, schemas, "request")
	require.Contains(t, schemas, "reply")
	assert.Contains(t, schemas["request"]["properties"], "messages")
	assert.Contains(t, schemas["reply"]["properties"], "type")
}
