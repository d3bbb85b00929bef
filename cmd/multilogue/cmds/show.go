package cmds

import (
	"fmt"

	"github.com/go-go-golems/multilogue/pkg/display"
	"github.com/go-go-golems/multilogue/pkg/store"
	"github.com/spf13/cobra"
)

func NewShowCommand() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Display the stored dialogue",
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

			text, err := store.GetString(cmd.Context(), app.Store, store.KeyMultilogue)
			if err != nil {
				return err
			}
			out, err := display.NewRenderer(app.Codec).Render(text, f)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), out)
			return err
		},
	}
	cmd.Flags().StringVar(&format, "format", "text", "Output format (text, html, cmj, term)")

	return cmd
}

func NewThoughtsCommand() *cobra.Command {
	var asHTML bool

	cmd := &cobra.Command{
		Use:   "thoughts",
		Short: "Display the reasoning the model gave with its latest reply",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := OpenApp()
			if err != nil {
				return err
			}
			defer app.Close()

			thoughts, err := store.GetString(cmd.Context(), app.Store, store.KeyThoughts)
			if err != nil {
				return err
			}
			if asHTML {
				thoughts, err = display.ThoughtsHTML(thoughts)
				if err != nil {
					return err
				}
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), thoughts)
			return err
		},
	}
	cmd.Flags().BoolVar(&asHTML, "html", false, "Render the thoughts as HTML")

	return cmd
}
