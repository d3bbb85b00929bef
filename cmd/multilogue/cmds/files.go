package cmds

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/go-go-golems/multilogue/pkg/display"
	"github.com/go-go-golems/multilogue/pkg/presentation"
	"github.com/go-go-golems/multilogue/pkg/store"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func NewLoadCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "load <file>",
		Short: "Replace the stored dialogue with the contents of a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := os.ReadFile(args[0])
			if err != nil {
				return errors.Wrapf(err, "could not read %s", args[0])
			}

			app, err := OpenApp()
			if err != nil {
				return err
			}
			defer app.Close()

			if err := app.Store.Set(cmd.Context(), store.KeyMultilogue, string(b)); err != nil {
				return err
			}

			r := app.Codec.Parse(string(b))
			log.Info().Str("file", args[0]).Int("turns", r.Dialogue.Len()).Bool("fallback", r.Fallback).Msg("loaded dialogue")
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Loaded %d turns from %s\n", r.Dialogue.Len(), args[0])
			return err
		},
	}
}

func NewSaveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "save <file>",
		Short: "Write the stored dialogue to a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := OpenApp()
			if err != nil {
				return err
			}
			defer app.Close()

			text, err := store.GetString(cmd.Context(), app.Store, store.KeyMultilogue)
			if err != nil {
				return err
			}
			if strings.TrimSpace(text) == "" {
				return errors.New("dialogue is empty, nothing to save")
			}
			if err := os.WriteFile(args[0], []byte(text), 0o644); err != nil {
				return errors.Wrapf(err, "could not write %s", args[0])
			}
			log.Info().Str("file", args[0]).Msg("saved dialogue")
			return nil
		},
	}
}

func NewEditCommand() *cobra.Command {
	var fromHTML string

	cmd := &cobra.Command{
		Use:   "edit",
		Short: "Edit the stored dialogue",
		Long: `Opens the dialogue as Plato text in $EDITOR and stores the result.

With --from-html the dialogue is instead extracted from a rendered HTML
fragment, as produced by "show --format html".`,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := OpenApp()
			if err != nil {
				return err
			}
			defer app.Close()

			if fromHTML != "" {
				b, err := os.ReadFile(fromHTML)
				if err != nil {
					return errors.Wrapf(err, "could not read %s", fromHTML)
				}
				return storeFromHTML(cmd.Context(), app, string(b), cmd.OutOrStdout())
			}

			text, err := store.GetString(cmd.Context(), app.Store, store.KeyMultilogue)
			if err != nil {
				return err
			}
			log.Debug().Str("view", string(display.DeriveViewMode(text, true))).Msg("opening editor")

			edited, err := editInEditor(text)
			if err != nil {
				return err
			}
			if edited == text {
				return nil
			}
			swapped, err := app.Store.CompareAndSwap(cmd.Context(), store.KeyMultilogue, text, edited)
			if err != nil {
				return err
			}
			if !swapped {
				return errors.Wrap(store.ErrConflict, "dialogue changed while editing")
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&fromHTML, "from-html", "", "Extract the dialogue from an HTML fragment file")

	return cmd
}

// storeFromHTML replaces the dialogue with the one extracted from fragment. On
// failure the error placeholder is printed and the store is left untouched.
func storeFromHTML(ctx context.Context, app *App, fragment string, out io.Writer) error {
	d, err := presentation.Extract(fragment)
	if err == nil && d.IsEmpty() {
		err = errors.Wrap(presentation.ErrExtraction, "fragment holds no turns")
	}
	if err != nil {
		_, _ = fmt.Fprintln(out, presentation.ErrorPlaceholder)
		return err
	}
	return app.Store.Set(ctx, store.KeyMultilogue, app.Codec.Serialize(d))
}

func editInEditor(text string) (string, error) {
	f, err := os.CreateTemp("", "multilogue-*.plato")
	if err != nil {
		return "", err
	}
	defer func() {
		_ = os.Remove(f.Name())
	}()
	if _, err := f.WriteString(text); err != nil {
		_ = f.Close()
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", err
	}

	editor := os.Getenv("EDITOR")
	if editor == "" {
		editor = "vi"
	}
	parts := strings.Fields(editor)
	c := exec.Command(parts[0], append(parts[1:], f.Name())...)
	c.Stdin, c.Stdout, c.Stderr = os.Stdin, os.Stdout, os.Stderr
	if err := c.Run(); err != nil {
		return "", errors.Wrapf(err, "editor %s failed", editor)
	}

	b, err := os.ReadFile(f.Name())
	if err != nil {
		return "", err
	}
	return string(b), nil
}
