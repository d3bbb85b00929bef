package cmds

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/go-go-golems/multilogue/pkg/dialogue"
	"github.com/go-go-golems/multilogue/pkg/plato"
	"github.com/go-go-golems/multilogue/pkg/settings"
	"github.com/go-go-golems/multilogue/pkg/store"
	"github.com/go-go-golems/multilogue/pkg/worker"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// Config is what the commands read from flags, environment and config file.
type Config struct {
	Machine       settings.MachineConfig `mapstructure:"machine"`
	Settings      string                 `mapstructure:"settings"`
	Store         store.Config           `mapstructure:"store"`
	OpenAIAPIKey  string                 `mapstructure:"openai-api-key"`
	OpenAIBaseURL string                 `mapstructure:"openai-base-url"`
}

func LoadConfig() (*Config, error) {
	c := &Config{
		Machine: settings.MachineConfig{
			Name: viper.GetString("machine.name"),
			Work: viper.GetString("machine.work"),
		},
		Settings: viper.GetString("settings"),
		Store: store.Config{
			Type: store.Type(viper.GetString("store.type")),
			Path: expandHome(viper.GetString("store.path")),
		},
		OpenAIAPIKey:  viper.GetString("openai-api-key"),
		OpenAIBaseURL: viper.GetString("openai-base-url"),
	}
	if c.OpenAIAPIKey == "" {
		c.OpenAIAPIKey = os.Getenv("OPENAI_API_KEY")
	}
	if c.Store.Type != store.TypeMemory && c.Store.Type != "" && c.Store.Path == "" {
		return nil, errors.Errorf("store.path is required for a %s store", c.Store.Type)
	}
	return c, nil
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}

func (c *Config) WorkerOptions() worker.Options {
	return worker.Options{
		OpenAIAPIKey:  c.OpenAIAPIKey,
		OpenAIBaseURL: c.OpenAIBaseURL,
	}
}

// App bundles the opened store with the codec every command uses.
type App struct {
	Config *Config
	Store  store.Store
	Roles  dialogue.RoleTable
	Codec  *plato.Codec
}

func OpenApp() (*App, error) {
	config, err := LoadConfig()
	if err != nil {
		return nil, err
	}
	s, err := store.Open(config.Store)
	if err != nil {
		return nil, errors.Wrap(err, "could not open store")
	}
	roles := dialogue.DefaultRoleTable(config.Machine.Name)

	log.Debug().
		Str("machine", config.Machine.Name).
		Str("work", config.Machine.Work).
		Str("store", string(config.Store.Type)).
		Msg("opened multilogue")

	return &App{
		Config: config,
		Store:  s,
		Roles:  roles,
		Codec:  plato.NewCodec(roles),
	}, nil
}

func (a *App) Close() {
	if err := a.Store.Close(); err != nil {
		log.Warn().Err(err).Msg("could not close store")
	}
}
