package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	triagebot "github.com/twitchax/triage-bot"
	"github.com/twitchax/triage-bot/config"
	"github.com/twitchax/triage-bot/core"
	"github.com/twitchax/triage-bot/metrics"
)

var (
	version = "0.1.0"
	cfgFile string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "triage-bot",
		Short: "LLM-backed triage bot for team chat channels",
		Long: `triage-bot watches chat events, classifies and answers them with a
language model, maintains per-channel directives and context, and can invoke
externally registered tools over subprocess or HTTP transports.`,
		RunE: runServe,
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML, optional)")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("triage-bot version %s\n", version)
		},
	})

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// inboundEvent is one chat event on the stdin feed, using the platform's
// field names so an event forwarder can pipe payloads through unchanged.
type inboundEvent struct {
	Channel  string `json:"channel"`
	ThreadTS string `json:"thread_ts"`
	TS       string `json:"ts"`
	User     string `json:"user"`
	Text     string `json:"text"`
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	bot, err := triagebot.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer bot.Close()

	if cfg.Metrics.Enabled {
		srv := metrics.NewServer(cfg.Metrics.Addr)
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				fmt.Fprintf(os.Stderr, "metrics server: %v\n", err)
			}
		}()
		defer srv.Shutdown(context.Background()) //nolint:errcheck
	}

	// Events arrive as JSON lines on stdin, one per event. A platform
	// listener (Slack socket-mode forwarder or similar) produces the feed.
	return feedEvents(ctx, os.Stdin, bot.Dispatch)
}

// feedEvents reads JSON-lines chat events from r until EOF or ctx
// cancellation and hands each to dispatch. In-flight events keep running
// after a shutdown signal: cancellation stops the feed loop only, and
// dispatch receives a context detached from it so Bot.Close can drain what
// was already accepted.
func feedEvents(ctx context.Context, r io.Reader, dispatch func(context.Context, core.ChatEvent)) error {
	eventCtx := context.WithoutCancel(ctx)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		if ctx.Err() != nil {
			break
		}

		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var in inboundEvent
		if err := json.Unmarshal(line, &in); err != nil {
			fmt.Fprintf(os.Stderr, "skipping malformed event: %v\n", err)
			continue
		}

		threadID := in.ThreadTS
		if threadID == "" {
			threadID = in.TS
		}

		raw := make(json.RawMessage, len(line))
		copy(raw, line)

		dispatch(eventCtx, core.NewChatEvent(in.Channel, threadID, in.User, in.Text, raw))
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read event feed: %w", err)
	}
	return nil
}
