package main

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-go-golems/multilogue/cmd/multilogue/cmds"
	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/natefinch/lumberjack.v2"
)

var rootCmd = &cobra.Command{
	Use:   "multilogue",
	Short: "multilogue keeps a dialogue with a language model in a plain text document",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// reinitialize the logger because we can now parse --log-level and co
		// from the command line flag
		initLogger()
	},
	SilenceUsage: true,
}

func initLogger() {
	logLevel := viper.GetString("log-level")
	verbose := viper.GetBool("verbose")
	if verbose && logLevel != "trace" {
		logLevel = "debug"
	}

	err := InitLogger(&logConfig{
		Level:      logLevel,
		LogFile:    viper.GetString("log-file"),
		LogFormat:  viper.GetString("log-format"),
		WithCaller: viper.GetBool("with-caller"),
	})
	cobra.CheckErr(err)
}

type logConfig struct {
	WithCaller bool
	Level      string
	LogFormat  string
	LogFile    string
}

func initConfig(rootCmd *cobra.Command, configPath string) error {
	viper.SetEnvPrefix("multilogue")

	if configPath != "" {
		viper.SetConfigFile(configPath)
	} else {
		viper.SetConfigName("config")
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME/.multilogue")

		xdgConfigPath, err := os.UserConfigDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(xdgConfigPath, "multilogue"))
		}
	}

	err := viper.ReadInConfig()
	if _, ok := err.(viper.ConfigFileNotFoundError); ok {
		// Config file not found; ignore error
	} else if err != nil {
		return err
	}
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	viper.AutomaticEnv()

	flags := rootCmd.PersistentFlags()
	err = viper.BindPFlags(flags)
	if err != nil {
		return err
	}
	for key, flag := range map[string]string{
		"machine.name": "machine-name",
		"machine.work": "machine-work",
		"store.type":   "store-type",
		"store.path":   "store-path",
	} {
		if err := viper.BindPFlag(key, flags.Lookup(flag)); err != nil {
			return err
		}
	}

	initLogger()

	log.Debug().
		Str("config", viper.ConfigFileUsed()).
		Msg("Loaded configuration")

	return nil
}

func InitLogger(config *logConfig) error {
	if config.WithCaller {
		log.Logger = log.With().Caller().Logger()
	}
	// default is text on a terminal, json otherwise
	var logWriter io.Writer
	switch config.LogFormat {
	case "json":
		logWriter = os.Stderr
	case "text":
		logWriter = zerolog.ConsoleWriter{Out: os.Stderr, NoColor: !isatty.IsTerminal(os.Stderr.Fd())}
	default:
		if isatty.IsTerminal(os.Stderr.Fd()) {
			logWriter = zerolog.ConsoleWriter{Out: os.Stderr}
		} else {
			logWriter = os.Stderr
		}
	}

	if config.LogFile != "" {
		logWriter = io.MultiWriter(
			logWriter,
			zerolog.ConsoleWriter{
				NoColor: true,
				Out: &lumberjack.Logger{
					Filename:   config.LogFile,
					MaxSize:    10, // megabytes
					MaxBackups: 3,
					MaxAge:     28,    //days
					Compress:   false, // disabled by default
				},
			})
	}

	log.Logger = log.Output(logWriter)

	switch config.Level {
	case "trace":
		zerolog.SetGlobalLevel(zerolog.TraceLevel)
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	case "fatal":
		zerolog.SetGlobalLevel(zerolog.FatalLevel)
	}

	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	flags := rootCmd.PersistentFlags()

	// logging flags
	flags.Bool("with-caller", false, "Log caller")
	flags.String("log-level", "warn", "Log level (trace, debug, info, warn, error, fatal)")
	flags.String("log-format", "", "Log format (json, text; default text on a terminal)")
	flags.String("log-file", "", "Log file (default: stderr)")

	flags.String("config", "", "Path to config file (default ~/.multilogue/config.yaml)")
	flags.Bool("verbose", false, "Verbose output")

	flags.String("machine-name", "assistant", "Speaker name of the model in the dialogue")
	flags.String("machine-work", "echo:", "Worker locator (openai:<model>, exec:<command>, echo:[text])")
	flags.String("settings", "", "Model settings as a query string, e.g. temperature=0.7&max_completion_tokens=512")
	flags.String("store-type", "yaml", "Store type (memory, yaml, sqlite)")
	flags.String("store-path", "~/.multilogue/store.yaml", "Store file")
	flags.String("openai-api-key", "", "OpenAI API key (default $OPENAI_API_KEY)")
	flags.String("openai-base-url", "", "Base URL of an OpenAI compatible API")

	// parse the flags one time just to catch --config
	configFile := ""
	for idx, arg := range os.Args {
		if arg == "--config" {
			if len(os.Args) > idx+1 {
				configFile = os.Args[idx+1]
			}
		} else if strings.HasPrefix(arg, "--config=") {
			configFile = strings.TrimPrefix(arg, "--config=")
		}
	}

	err := initConfig(rootCmd, configFile)
	if err != nil {
		panic(err)
	}

	rootCmd.AddCommand(
		cmds.NewRunCommand(),
		cmds.NewShowCommand(),
		cmds.NewThoughtsCommand(),
		cmds.NewLoadCommand(),
		cmds.NewSaveCommand(),
		cmds.NewEditCommand(),
		cmds.NewWorkerCommand(),
		cmds.NewSchemaCommand(),
	)
}
