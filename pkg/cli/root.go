// Package cli wires the renderpilot commands: run drives the
// automation pipeline end to end, listen watches a session out of
// band, status snapshots the environment, history lists past runs,
// and backend manages the render container.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/renderpilot/renderpilot/pkg/config"
	"github.com/renderpilot/renderpilot/pkg/infra/logger"
)

var (
	cliVersion   = "dev"
	cliBuildDate = "unknown"
	cliGitCommit = "unknown"
)

// SetVersion injects build metadata from main.
func SetVersion(version, buildDate, gitCommit string) {
	cliVersion = version
	cliBuildDate = buildDate
	cliGitCommit = gitCommit
}

type RootCommand struct {
	cmd       *cobra.Command
	cfg       *config.Config
	opts      *OutputOptions
	formatStr string
}

func NewRootCommand() *RootCommand {
	root := &RootCommand{
		opts: NewOutputOptions(),
	}

	cmd := &cobra.Command{
		Use:   "renderpilot",
		Short: "RenderPilot - episode render automation",
		Long: `RenderPilot automates the episode rendering workflow: it notifies
the planning service that new beats are ready, waits for derived image
prompts, gates on GPU readiness, ensures the render backend is running,
and triggers image generation.`,
		PersistentPreRunE: root.persistentPreRunE,
		SilenceUsage:      true,
	}

	pflags := cmd.PersistentFlags()

	pflags.StringVarP(&root.formatStr, "output", "o", "table", "Output format (table, json, yaml)")
	pflags.BoolVarP(&root.opts.Quiet, "quiet", "q", false, "Suppress output")
	pflags.String("config", "", "Config file path (default: built-in defaults + RENDERPILOT_* env)")

	viper.BindPFlag("output", pflags.Lookup("output"))
	viper.BindPFlag("quiet", pflags.Lookup("quiet"))
	viper.BindPFlag("config", pflags.Lookup("config"))

	root.cmd = cmd

	cmd.AddCommand(NewRunCommand(root))
	cmd.AddCommand(NewStatusCommand(root))
	cmd.AddCommand(NewListenCommand(root))
	cmd.AddCommand(NewHistoryCommand(root))
	cmd.AddCommand(NewBackendCommand(root))
	cmd.AddCommand(NewVersionCommand(root))

	return root
}

func (r *RootCommand) persistentPreRunE(cmd *cobra.Command, args []string) error {
	r.opts.Format = OutputFormat(r.formatStr)

	cfgPath := viper.GetString("config")
	var err error
	r.cfg, err = config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger.Init(logger.Config{
		Level:  r.cfg.Logging.Level,
		Format: r.cfg.Logging.Format,
	})

	return nil
}

func (r *RootCommand) Config() *config.Config {
	return r.cfg
}

func (r *RootCommand) OutputOptions() *OutputOptions {
	return r.opts
}

// Execute runs the root command.
func Execute() {
	root := NewRootCommand()
	if err := root.cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
