package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/dotsetgreg/dotfocus/pkg/config"
	"github.com/dotsetgreg/dotfocus/pkg/logger"
	"github.com/dotsetgreg/dotfocus/pkg/session"
)

type rootOptions struct {
	configPath string
	debug      bool
}

func executeCLI() error {
	root := buildRootCommand()
	if err := root.Execute(); err != nil {
		return err
	}
	return nil
}

func buildRootCommand() *cobra.Command {
	var showVersion bool
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   appName,
		Short: "Chat with a token-budgeted, relevance-focused conversation history",
		Long: strings.TrimSpace(`dotfocus keeps a long conversation inside a fixed token budget.

Every turn is scored against the current query and packed at full, compressed
or placeholder fidelity, oldest first, until the budget is spent.`),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if showVersion {
				printVersion(cmd.OutOrStdout())
				return nil
			}
			_ = cmd.Help()
			return fmt.Errorf("a subcommand is required")
		},
	}
	root.CompletionOptions.DisableDefaultCmd = true
	root.Flags().BoolVarP(&showVersion, "version", "v", false, "Show build/version metadata")
	root.PersistentFlags().StringVar(&opts.configPath, "config", config.DefaultPath, "Config file (.json, .yaml or .yml)")
	root.PersistentFlags().BoolVar(&opts.debug, "debug", false, "Enable debug logging")

	root.AddCommand(newChatCommand(opts))
	root.AddCommand(newDemoCommand(opts))
	root.AddCommand(newConfigCommand(opts))
	root.AddCommand(newVersionCommand())

	return root
}

// loadCLIConfig loads the configuration and applies its log level, which
// --debug overrides.
func loadCLIConfig(opts *rootOptions) (*config.Config, error) {
	cfg, err := config.LoadConfig(opts.configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if opts.debug {
		logger.SetLevel(logger.DEBUG)
		return cfg, nil
	}
	level, err := logger.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return nil, err
	}
	logger.SetLevel(level)
	return cfg, nil
}

func newChatCommand(opts *rootOptions) *cobra.Command {
	var (
		budget  int
		offline bool
		message string
	)
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive focused chat session",
		Long: strings.TrimSpace(`Start an interactive chat. Each user turn is answered from the history
packed under the token budget. Type exit, quit or "end the convo" to finish
and print the final context, token stats and memory summary.`),
		Example: "  dotfocus chat\n  dotfocus chat --budget 300 --offline\n  dotfocus chat -m \"Plan a weekend in Seattle\"",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadCLIConfig(opts)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("budget") {
				cfg.Session.Budget = budget
			}
			return runChat(cmd, cfg, offline, message)
		},
	}
	cmd.Flags().IntVar(&budget, "budget", 0, "Token budget per packed context (default from config)")
	cmd.Flags().BoolVar(&offline, "offline", false, "Use local hashing, heuristic compression and echo replies")
	cmd.Flags().StringVarP(&message, "message", "m", "", "Send a single message and exit")
	return cmd
}

func newDemoCommand(opts *rootOptions) *cobra.Command {
	var (
		budget int
		query  string
	)
	cmd := &cobra.Command{
		Use:     "demo",
		Short:   "Pack a canned travel-planning conversation offline",
		Long:    "Seed a short travel-planning conversation and print the packed context and token stats for a query, using local strategies only.",
		Example: "  dotfocus demo\n  dotfocus demo --budget 120 --query \"gluten-free dinner in Chicago\"",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadCLIConfig(opts)
			if err != nil {
				return err
			}
			return runDemo(cmd.Context(), cmd.OutOrStdout(), cfg, budget, query)
		},
	}
	cmd.Flags().IntVar(&budget, "budget", session.DemoBudget, "Token budget for the packed context")
	cmd.Flags().StringVar(&query, "query", session.DemoQuery, "Query to focus the context on")
	return cmd
}

func newConfigCommand(opts *rootOptions) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show the effective configuration (API keys masked)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadCLIConfig(opts)
			if err != nil {
				return err
			}
			red := cfg.Redacted()
			var data []byte
			if asJSON {
				data, err = json.MarshalIndent(red, "", "  ")
				data = append(data, '\n')
			} else {
				data, err = yaml.Marshal(red)
			}
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON instead of YAML")
	cmd.AddCommand(newConfigInitCommand(opts))
	return cmd
}

func newConfigInitCommand(opts *rootOptions) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:     "init",
		Short:   "Write a default config file",
		Example: "  dotfocus config init\n  dotfocus --config ~/.dotfocus/config.yaml config init --force",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.ExpandHome(opts.configPath)
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("config already exists at %s (use --force to overwrite)", path)
			}
			if err := config.SaveConfig(path, config.DefaultConfig()); err != nil {
				return fmt.Errorf("write config: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Config written to %s\n", path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing config file")
	return cmd
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "version",
		Aliases: []string{"v"},
		Short:   "Show version information",
		Args:    cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			printVersion(cmd.OutOrStdout())
		},
	}
}
