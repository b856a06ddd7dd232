package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/blackmichael/subreddit-relay/internal/app"
	"github.com/blackmichael/subreddit-relay/internal/config"
	"github.com/blackmichael/subreddit-relay/internal/domain"
	"github.com/blackmichael/subreddit-relay/internal/metrics"
)

var version = "dev"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	return newRootCmd(os.Stdout, os.Stderr).ExecuteContext(context.Background())
}

func newRootCmd(out, logOut io.Writer) *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "publish",
		Short:         "Manually drive the subreddit relay",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(out)
	root.PersistentFlags().StringVar(&configPath, "config", os.Getenv("RELAY_CONFIG"), "path to a YAML config file")

	root.AddCommand(
		newSendCmd(&configPath, logOut),
		newFlairCmd(&configPath),
		newVersionCmd(),
	)
	return root
}

func newSendCmd(configPath *string, logOut io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "send <post-id>",
		Short: "Forward one submission through the relay pipeline",
		Long: "Looks up a submission by id (with or without the t3_ prefix) and runs it " +
			"through the same seen check, flair filter, classification and delivery as the server.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			cfg, err := config.Load(*configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logger := app.NewLogger(cfg, logOut)

			store, err := app.OpenStore(ctx, cfg.Storage)
			if err != nil {
				return err
			}
			defer store.Close()

			transport, err := app.NewTransport(cfg, logger)
			if err != nil {
				return fmt.Errorf("create telegram client: %w", err)
			}

			relay, err := app.NewRelayService(cfg, store, transport, metrics.New(), logger)
			if err != nil {
				return fmt.Errorf("create relay service: %w", err)
			}

			post, err := app.NewPoller(cfg, logger).FetchByID(ctx, args[0])
			if err != nil {
				return fmt.Errorf("fetch post: %w", err)
			}

			outcome, err := relay.ProcessPost(ctx, post)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "r/%s %s: %s\n", post.Source, post.ID, outcome)
			return nil
		},
	}
}

func newFlairCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "flair <tag>...",
		Short: "Check flair tags against the configured allow-list",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			filter, err := app.NewTagFilter(cfg)
			if err != nil {
				return err
			}
			switch {
			case cfg.AllowAllFlairs:
				fmt.Fprintln(cmd.OutOrStdout(), "flair filtering is off; every post passes")
			case len(cfg.DesiredFlairs) == 0:
				fmt.Fprintln(cmd.OutOrStdout(), "no desired flairs configured; every post is rejected")
			}

			for _, tag := range args {
				verdict := "rejected"
				if filter.Matches(tag) {
					verdict = "accepted"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%q (%q): %s\n", tag, domain.CleanFlair(tag), verdict)
			}
			return nil
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "subreddit-relay %s\n", version)
		},
	}
}
