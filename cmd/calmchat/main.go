package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alexschlessinger/calmchat/internal/log"
	"github.com/alexschlessinger/calmchat/llm"
	"github.com/alexschlessinger/calmchat/server"
	"github.com/alexschlessinger/calmchat/sessions"
	"github.com/joho/godotenv"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	// .env is optional
	_ = godotenv.Load()

	app := &cli.Command{
		Name:   "calmchat",
		Usage:  "Serve a supportive chat assistant backed by an LLM provider",
		Flags:  defineFlags(),
		Action: runCommand,
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// defineFlags builds the flag set. Defaults read the environment, so it
// must run after .env is loaded.
func defineFlags() []cli.Flag {
	return []cli.Flag{
		// Server configuration
		&cli.StringFlag{
			Name:  "addr",
			Usage: "HTTP listen address",
			Value: getEnvOrDefault("CALMCHAT_ADDR", ":8080"),
		},
		&cli.StringFlag{
			Name:  "config",
			Usage: "YAML file with session settings",
			Value: getEnvOrDefault("CALMCHAT_CONFIG", ""),
		},

		// Model configuration
		&cli.StringFlag{
			Name:    "model",
			Aliases: []string{"m"},
			Usage:   "Model to use (provider/model format)",
			Value:   getEnvOrDefault("CALMCHAT_MODEL", server.DefaultModel),
		},
		&cli.Float64Flag{
			Name:  "temp",
			Usage: "Temperature for sampling",
			Value: getEnvFloat("CALMCHAT_TEMP", 0.7),
		},
		&cli.IntFlag{
			Name:  "maxtokens",
			Usage: "Maximum tokens to generate",
			Value: getEnvInt("CALMCHAT_MAXTOKENS", server.DefaultMaxTokens),
		},
		&cli.DurationFlag{
			Name:  "timeout",
			Usage: "Upstream request timeout",
			Value: getEnvDuration("CALMCHAT_TIMEOUT", server.DefaultTimeout),
		},
		&cli.StringFlag{
			Name:  "baseurl",
			Usage: "Base URL for API (for OpenAI-compatible endpoints or Ollama)",
			Value: getEnvOrDefault("CALMCHAT_BASEURL", ""),
		},

		// Session configuration; these override the config file
		&cli.IntFlag{
			Name:    "max-history",
			Usage:   "Messages kept per session",
			Value:   sessions.DefaultMaxHistory,
			Sources: cli.EnvVars("CALMCHAT_MAXHISTORY"),
		},
		&cli.IntFlag{
			Name:    "context-window",
			Usage:   "Prior messages included in each prompt",
			Value:   sessions.DefaultContextWindow,
			Sources: cli.EnvVars("CALMCHAT_CONTEXTWINDOW"),
		},
		&cli.DurationFlag{
			Name:    "ttl",
			Usage:   "Idle time before a session expires (0 disables expiry)",
			Value:   sessions.DefaultTTL,
			Sources: cli.EnvVars("CALMCHAT_TTL"),
		},
		&cli.DurationFlag{
			Name:    "sweep-interval",
			Usage:   "How often expired sessions are removed",
			Value:   sessions.DefaultSweepInterval,
			Sources: cli.EnvVars("CALMCHAT_SWEEPINTERVAL"),
		},
		&cli.StringFlag{
			Name:    "system",
			Aliases: []string{"s"},
			Usage:   "System prompt (assistant persona)",
			Value:   sessions.DefaultSystemPrompt,
			Sources: cli.EnvVars("CALMCHAT_SYSTEM"),
		},

		// Output configuration
		&cli.BoolFlag{
			Name:    "debug",
			Aliases: []string{"d"},
			Usage:   "Enable debug logging",
			Sources: cli.EnvVars("CALMCHAT_DEBUG"),
		},
	}
}

func runCommand(ctx context.Context, cmd *cli.Command) error {
	config, err := parseConfig(cmd)
	if err != nil {
		return err
	}

	log.InitLogger(config.Debug)
	defer log.Sync()

	upstream := llm.NewMultiPass(loadAPIKeys(), config.BaseURL)
	if err := upstream.CheckCredentials(config.Model); err != nil {
		// Keep serving; chat requests fail with a configuration error until fixed
		zap.S().Warnw("upstream_not_configured", "model", config.Model, "error", err)
	}

	store := sessions.NewStore(config.Session)
	handler, err := server.NewHandler(store, upstream, server.Config{
		Model:        config.Model,
		Temperature:  float32(config.Temperature),
		MaxTokens:    config.MaxTokens,
		Timeout:      config.Timeout,
		SystemPrompt: config.Session.SystemPrompt,
	})
	if err != nil {
		return err
	}

	httpServer, err := server.NewHTTPServer(server.HTTPServerConfig{
		Address:      config.Address,
		Handler:      handler,
		WriteTimeout: config.Timeout + 30*time.Second,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	zap.S().Infow("calmchat_starting",
		"address", config.Address,
		"model", config.Model,
		"max_history", config.Session.MaxHistory,
		"context_window", config.Session.ContextWindow,
		"ttl", config.Session.TTL,
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return httpServer.Serve(gctx)
	})
	if config.Session.TTL > 0 {
		sweeper := sessions.NewSweeper(store)
		g.Go(func() error {
			return sweeper.Run(gctx)
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	zap.S().Infow("calmchat_stopped", "sessions", store.Len())
	return nil
}
