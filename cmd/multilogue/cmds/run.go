package cmds

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/go-go-golems/multilogue/pkg/display"
	"github.com/go-go-golems/multilogue/pkg/machine"
	"github.com/go-go-golems/multilogue/pkg/settings"
	"github.com/go-go-golems/multilogue/pkg/store"
	"github.com/go-go-golems/multilogue/pkg/worker"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func NewRunCommand() *cobra.Command {
	var format string
	var interactive bool
	var speaker string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Send the dialogue to the model and append its reply",
		Long: `Runs one exchange: the stored dialogue is sent to the configured worker
and the reply is appended unless the model passes.

With --interactive every line typed is appended as a turn and answered; an
empty line asks the model to continue without adding a turn.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := display.ParseFormat(format)
			if err != nil {
				return err
			}

			app, err := OpenApp()
			if err != nil {
				return err
			}
			defer app.Close()

			s, err := settings.FromQuery(app.Config.Settings)
			if err != nil {
				return err
			}
			settings.Init(s)

			ctrl, err := machine.NewController(
				app.Store,
				worker.NewExecutor(worker.NewDefaultRegistry(app.Config.WorkerOptions())),
				app.Config.Machine,
				machine.WithSettings(settings.Global()),
				machine.WithRoles(app.Roles),
				machine.WithNotifier(display.NewWriterNotifier(cmd.ErrOrStderr())),
			)
			if err != nil {
				return err
			}

			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer cancel()

			renderer := display.NewRenderer(app.Codec)
			if interactive {
				return runInteractive(ctx, app, ctrl, renderer, speaker, cmd.InOrStdin(), cmd.OutOrStdout())
			}

			if _, err := ctrl.RunCycle(ctx); err != nil {
				// already shown as a notice
				log.Debug().Err(err).Msg("exchange did not append a turn")
				if errors.Is(err, machine.ErrEmptyDialogue) {
					return nil
				}
				return err
			}

			text, err := store.GetString(ctx, app.Store, store.KeyMultilogue)
			if err != nil {
				return err
			}
			out, err := renderer.Render(text, f)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), out)
			return err
		},
	}

	cmd.Flags().StringVar(&format, "format", "term", "Output format (text, html, cmj, term)")
	cmd.Flags().BoolVarP(&interactive, "interactive", "i", false, "Read turns from stdin and answer each of them")
	cmd.Flags().StringVar(&speaker, "as", "user", "Speaker of the turns typed in interactive mode")

	return cmd
}

// runInteractive redisplays from the store change feed, so edits made by the
// exchange show up the same way as edits made by the reader.
func runInteractive(
	ctx context.Context,
	app *App,
	ctrl *machine.Controller,
	renderer *display.Renderer,
	speaker string,
	in io.Reader,
	out io.Writer,
) error {
	watchCtx, stopWatching := context.WithCancel(ctx)
	changes, err := app.Store.Subscribe(watchCtx)
	if err != nil {
		stopWatching()
		return err
	}

	shown := 0
	if text, err := store.GetString(ctx, app.Store, store.KeyMultilogue); err == nil {
		d := app.Codec.Parse(text).Dialogue
		if !d.IsEmpty() {
			_, _ = fmt.Fprintln(out, display.RenderTerminal(d, renderer.Width))
		}
		shown = d.Len()
	}

	watched := make(chan struct{})
	go func() {
		defer close(watched)
		for c := range changes {
			if c.Key != store.KeyMultilogue {
				continue
			}
			d := app.Codec.Parse(c.Value).Dialogue
			if d.Len() > shown {
				_, _ = fmt.Fprintln(out, "\n"+display.RenderTerminal(d[shown:], renderer.Width))
			}
			shown = d.Len()
		}
	}()
	defer func() {
		stopWatching()
		<-watched
	}()

	scanner := bufio.NewScanner(in)
	for {
		_, _ = fmt.Fprintf(out, "\n%s> ", speaker)
		if !scanner.Scan() {
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			if err := appendTurn(ctx, app, speaker, line); err != nil {
				return err
			}
		}

		if _, err := ctrl.RunCycle(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			log.Debug().Err(err).Msg("exchange did not append a turn")
		}
	}
}

func appendTurn(ctx context.Context, app *App, speaker string, content string) error {
	text, err := store.GetString(ctx, app.Store, store.KeyMultilogue)
	if err != nil {
		return err
	}
	d := app.Codec.Parse(text).Dialogue.Append(app.Roles.Turn(speaker, content))
	swapped, err := app.Store.CompareAndSwap(ctx, store.KeyMultilogue, text, app.Codec.Serialize(d))
	if err != nil {
		return err
	}
	if !swapped {
		return errors.Wrap(store.ErrConflict, "dialogue changed while adding a turn")
	}
	return nil
}
