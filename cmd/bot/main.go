package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/DoyleJ11/monster-duel-backend/internal/bot"
	"github.com/DoyleJ11/monster-duel-backend/internal/logging"
)

var (
	serverURL string
	baseName  string
	count     int
	thinkTime time.Duration
	logLevel  string
)

var rootCmd = &cobra.Command{
	Use:   "bot",
	Short: "Play scripted battles against a monster-duel server",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if count < 1 {
			return fmt.Errorf("--count must be at least 1")
		}
		log, err := logging.New(logLevel, "console")
		if err != nil {
			return err
		}
		defer log.Sync()

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		g, ctx := errgroup.WithContext(ctx)
		for i := range count {
			name := baseName
			if count > 1 {
				name = fmt.Sprintf("%s-%d", baseName, i+1)
			}
			g.Go(func() error {
				out, err := bot.Run(ctx, bot.Config{URL: serverURL, Name: name, ThinkTime: thinkTime, Logger: log})
				if err != nil {
					return fmt.Errorf("%s: %w", name, err)
				}
				log.Info("result",
					zap.String("bot", name),
					zap.Bool("won", out.Won(name)),
					zap.String("winner", out.Winner),
					zap.String("reason", out.Reason),
					zap.Int("rounds", out.Rounds))
				return nil
			})
		}
		return g.Wait()
	},
}

func init() {
	rootCmd.Flags().StringVar(&serverURL, "url", "ws://localhost:8080/ws", "websocket endpoint")
	rootCmd.Flags().StringVar(&baseName, "name", "bot", "display name (suffixed when --count > 1)")
	rootCmd.Flags().IntVar(&count, "count", 2, "number of bots to run concurrently")
	rootCmd.Flags().DurationVar(&thinkTime, "think", 500*time.Millisecond, "delay before each move")
	rootCmd.Flags().StringVar(&logLevel, "log-level", "info", "debug, info, warn or error")
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
