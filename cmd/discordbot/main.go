package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/igo95862/DiscordBot-lib-sub000/events"
	"github.com/igo95862/DiscordBot-lib-sub000/internal/bot"
	"github.com/igo95862/DiscordBot-lib-sub000/internal/config"
	"github.com/igo95862/DiscordBot-lib-sub000/internal/logger"
	"github.com/igo95862/DiscordBot-lib-sub000/internal/storage"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// Version is set by the build system via -ldflags.
var Version = "dev"

func main() {
	if err := newRoot().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRoot() *cobra.Command {
	root := &cobra.Command{
		Use:          "discordbot",
		Short:        "Chat platform bot client: gateway, guild state and event journal",
		SilenceUsage: true,
	}
	root.AddCommand(
		runCmd(),
		tailCmd(),
		journalCmd(),
		healthcheckCmd(),
		versionCmd(),
	)
	return root
}

// runCmd is the main daemon command.
func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Start the bot daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemon()
		},
	}
}

func runDaemon() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := buildLogger(cfg)
	log.Info().Str("version", Version).Msg("discordbot starting")

	bot.BinaryVersion = Version
	b, err := bot.New(cfg, log)
	if err != nil {
		return fmt.Errorf("build bot: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	return b.Run(ctx)
}

// tailCmd connects and prints dispatches as JSON lines.
func tailCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tail [types...]",
		Short: "Print gateway dispatches as JSON lines (all types when none given)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			// Tail never tracks guilds or writes the journal.
			cfg.GuildIDs = nil
			cfg.JournalEnabled = false
			cfg.MetricsEnabled = false

			log := buildLogger(cfg)
			bot.BinaryVersion = Version
			b, err := bot.New(cfg, log)
			if err != nil {
				return err
			}

			types := args
			if len(types) == 0 {
				types = []string{events.All}
			}

			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			sub := b.Client().Streams(ctx, types...)
			defer sub.Close()

			errc := make(chan error, 1)
			go func() {
				errc <- b.Client().Run(ctx)
				cancel()
			}()
			if err := printEvents(ctx, sub.C, cmd.OutOrStdout()); err != nil {
				return err
			}
			return <-errc
		},
	}
}

// journalCmd lists journaled dispatches.
func journalCmd() *cobra.Command {
	var (
		typ   string
		since time.Duration
		limit int
	)
	cmd := &cobra.Command{
		Use:   "journal",
		Short: "List journaled dispatches from DATA_DIR",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			store, err := storage.NewBboltStore(cfg.DataDir)
			if err != nil {
				return err
			}
			defer store.Close()

			f := storage.Filter{Type: typ, Limit: limit}
			if since > 0 {
				f.Since = time.Now().Add(-since)
			}
			recs, err := store.List(f)
			if err != nil {
				return err
			}
			return writeRecords(cmd.OutOrStdout(), recs)
		},
	}
	cmd.Flags().StringVar(&typ, "type", "", "only this dispatch type")
	cmd.Flags().DurationVar(&since, "since", 0, "only records newer than this age")
	cmd.Flags().IntVar(&limit, "limit", 100, "newest N records; 0 = all")
	return cmd
}

// healthcheckCmd exits 0 if the health endpoint reports ready.
func healthcheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "healthcheck",
		Short: "Check health endpoint and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			resp, err := http.Get("http://" + cfg.HealthAddr + "/healthz") //nolint:noctx
			if err != nil {
				fmt.Fprintf(os.Stderr, "healthcheck failed: %v\n", err)
				os.Exit(1)
			}
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				fmt.Fprintf(os.Stderr, "healthcheck returned %d\n", resp.StatusCode)
				os.Exit(1)
			}
			fmt.Println("healthy")
			return nil
		},
	}
}

// versionCmd prints the version and exits.
func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version and exit",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "discordbot %s\n", Version)
		},
	}
}

// buildLogger constructs a zerolog.Logger based on config.
func buildLogger(cfg *config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}

	var base zerolog.Logger
	if cfg.LogFormat == "text" {
		cw := zerolog.NewConsoleWriter()
		cw.Out = logger.NewRedactWriter(os.Stderr)
		base = zerolog.New(cw).Level(level).With().Timestamp().Logger()
	} else {
		redactWriter := logger.NewRedactWriter(os.Stderr)
		base = zerolog.New(redactWriter).Level(level).With().Timestamp().Logger()
	}
	return base
}
