package main

import (
	"bufio"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nadzzz/cozmoagent/internal/iu"
	"github.com/nadzzz/cozmoagent/internal/stage"
)

func newPlanCmd(load loader) *cobra.Command {
	return &cobra.Command{
		Use:   "plan [utterance]",
		Short: "Interpret an utterance, or one utterance per stdin line, and print the command units",
		Long: `Runs the interpretation stage once per utterance without any transport.
With no argument, each line read from stdin is a committed utterance and the
conversation context carries over from line to line.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load(cmd)
			if err != nil {
				return err
			}
			p, err := newPlanner(cfg)
			if err != nil {
				return err
			}
			defer p.Close()

			st, err := newStage(cfg, p)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			run := func(text string) error {
				out, err := st.Process(cmd.Context(), iu.Batch{iu.NewTextUnit(text, true)})
				if err != nil && !errors.Is(err, stage.ErrBusy) {
					return err
				}
				for _, u := range out.Units() {
					if err := enc.Encode(u); err != nil {
						return err
					}
				}
				return nil
			}

			if len(args) > 0 {
				return run(strings.Join(args, " "))
			}
			scanner := bufio.NewScanner(cmd.InOrStdin())
			for scanner.Scan() {
				err := run(scanner.Text())
				if errors.Is(err, stage.ErrPlanner) {
					slog.Warn("no plan for this line", "error", err)
					continue
				}
				if err != nil {
					return err
				}
			}
			return scanner.Err()
		},
	}
}
