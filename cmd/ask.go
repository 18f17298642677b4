package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/akiyama0/storemind/internal/agent"
)

func newAskCmd() *cobra.Command {
	var (
		storeID        string
		includeHistory bool
	)

	cmd := &cobra.Command{
		Use:   "ask <query>",
		Short: "Ask a one-shot question from the terminal",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return runAsk(storeID, strings.Join(args, " "), includeHistory)
		},
	}
	cmd.Flags().StringVar(&storeID, "store", "", "store identifier (required)")
	cmd.Flags().BoolVar(&includeHistory, "history", false, "include recent conversation history")
	_ = cmd.MarkFlagRequired("store")

	return cmd
}

func runAsk(storeID, query string, includeHistory bool) error {
	logger := initLogger()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := setup(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	session, err := a.sessions.Get(cfg.ModelName, cfg.Temperature, os.Getenv("OPENAI_API_KEY"))
	if err != nil {
		return fmt.Errorf("initializing session: %w", err)
	}

	result, err := session.Ask(ctx, agent.Request{
		TenantID:       storeID,
		Query:          query,
		IncludeHistory: includeHistory,
	}, func(ev agent.Event) {
		switch ev.Type {
		case agent.EventToolCall:
			if data, ok := ev.Data.(agent.ToolCallData); ok {
				fmt.Fprintf(os.Stderr, "[tool] %s %s\n", data.Name, data.Arguments)
			}
		case agent.EventContent:
			if token, ok := ev.Data.(string); ok {
				fmt.Print(token)
			}
		}
	})
	if err != nil {
		fmt.Println(result.Answer)
		return err
	}

	fmt.Println()
	return nil
}
