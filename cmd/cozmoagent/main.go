// cozmoagent turns streaming speech recognition into robot command units.
//
// Usage:
//
//	cozmoagent serve [--config /path/to/cozmoagent.yaml]
//	cozmoagent plan "move forward ten centimeters"
//	cozmoagent catalog --format yaml
//
// @title       cozmoagent API
// @version     1.0
// @description Turns incremental speech recognition into robot command units.
// @BasePath    /
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/nadzzz/cozmoagent/internal/config"
	"github.com/nadzzz/cozmoagent/internal/planner"
	localplanner "github.com/nadzzz/cozmoagent/internal/planner/local"
	openaiplanner "github.com/nadzzz/cozmoagent/internal/planner/openai"
	"github.com/nadzzz/cozmoagent/internal/stage"
)

// version is set at build time via ldflags.
var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configFile string

	root := &cobra.Command{
		Use:           "cozmoagent",
		Short:         "Interpret streaming speech into robot commands",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVar(&configFile, "config", "", "path to config file (e.g. configs/cozmoagent.yaml)")
	config.RegisterFlags(root.PersistentFlags())

	load := func(cmd *cobra.Command) (*config.Config, error) {
		cfg, err := config.Load(configFile, cmd.Flags())
		if err != nil {
			return nil, err
		}
		config.SetupLogging(cfg.Logging)
		return cfg, nil
	}

	root.AddCommand(
		newServeCmd(load),
		newPlanCmd(load),
		newCatalogCmd(),
		&cobra.Command{
			Use:   "version",
			Short: "Print the version",
			Run: func(cmd *cobra.Command, _ []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "cozmoagent %s\n", version)
			},
		},
	)
	return root
}

type loader func(cmd *cobra.Command) (*config.Config, error)

// newPlanner initializes the configured planner backend.
func newPlanner(cfg *config.Config) (planner.Planner, error) {
	switch cfg.Planner.Backend {
	case "openai":
		slog.Info("using OpenAI-compatible planner",
			"base_url", cfg.Planner.OpenAI.BaseURL,
			"model", cfg.Planner.OpenAI.Model)
		return openaiplanner.New(cfg.Planner.OpenAI), nil
	case "local":
		slog.Info("using local planner",
			"endpoint", cfg.Planner.Local.Endpoint,
			"model", cfg.Planner.Local.Model)
		return localplanner.New(cfg.Planner.Local), nil
	default:
		return nil, fmt.Errorf("unknown planner backend %q", cfg.Planner.Backend)
	}
}

// newStage builds the interpretation stage from config.
func newStage(cfg *config.Config, p planner.Planner) (*stage.Stage, error) {
	policy, err := stage.PolicyByName(cfg.Stage.Overlap)
	if err != nil {
		return nil, err
	}
	return stage.New(p,
		stage.WithWindow(cfg.Stage.Window),
		stage.WithRenderLimit(cfg.Stage.RenderLimit),
		stage.WithPolicy(policy),
	), nil
}
