package cmds

import (
	"fmt"

	"github.com/go-go-golems/multilogue/pkg/cmj"
	"github.com/go-go-golems/multilogue/pkg/helpers"
	"github.com/go-go-golems/multilogue/pkg/worker"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func NewWorkerCommand() *cobra.Command {
	var work string

	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Answer one request read from stdin (the exec worker protocol)",
		Long: `Reads one JSON request from stdin, answers it with the worker named by
--work and prints exactly one JSON reply line to stdout. Use it as
"exec:multilogue worker --work openai:gpt-4o-mini".`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if work == "" {
				return errors.New("--work is required")
			}
			l, err := worker.ParseLocator(work)
			if err != nil {
				return err
			}
			if l.Scheme == worker.SchemeExec {
				return errors.New("the worker command cannot delegate to another exec worker")
			}

			config, err := LoadConfig()
			if err != nil {
				return err
			}
			w, err := worker.NewDefaultRegistry(config.WorkerOptions()).New(work)
			if err != nil {
				return err
			}
			return worker.Serve(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout(), w)
		},
	}
	cmd.Flags().StringVar(&work, "work", "", "Locator of the in-process worker answering the request")

	return cmd
}

func NewSchemaCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print the JSON schema of the worker request and reply messages",
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := helpers.SchemaJSON(map[string]interface{}{
				"request": &cmj.Request{},
				"reply":   &cmj.Reply{},
			})
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(b))
			return err
		},
	}
}
