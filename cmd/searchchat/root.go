package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/zhouzirui/searchchat/internal/config"
	"github.com/zhouzirui/searchchat/internal/service/ai"
	"github.com/zhouzirui/searchchat/internal/service/resolver"
	"github.com/zhouzirui/searchchat/internal/service/search"
	"github.com/zhouzirui/searchchat/pkg/log"
)

var (
	debug   bool
	envFile string
)

var rootCmd = &cobra.Command{
	Use:           "searchchat",
	Short:         "Chatbot with web search fallback",
	Long:          `searchchat answers questions with a hosted LLM and falls back to web search when the model does not know.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before reading the environment")

	rootCmd.AddCommand(serveCmd, askCmd)
}

// bootstrap loads configuration and builds the resolver. Missing credentials are
// fatal here, before any input is accepted.
func bootstrap(ctx context.Context) (context.Context, *config.Config, *resolver.Resolver, error) {
	envErr := godotenv.Load(envFile)

	cfg, err := config.Load()
	if err != nil {
		return ctx, nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	ctx = log.NewContextWithLogger(ctx, debug || cfg.Debug)
	logger := log.FromCtx(ctx)
	if envErr != nil {
		logger.Debug().Err(envErr).Str("file", envFile).Msg("no dotenv file, using process environment only")
	}

	llm, err := ai.NewLanguageModel(ctx, cfg.LLM)
	if err != nil {
		return ctx, nil, nil, fmt.Errorf("failed to initialize language model: %w", err)
	}

	r := resolver.New(llm, search.NewTavily(cfg.Search), resolver.Options{
		ResultCount:    cfg.Search.Results,
		LLMTimeout:     cfg.LLM.Timeout,
		SearchTimeout:  cfg.Search.Timeout,
		OnSearchFailed: resolver.Policy(cfg.Search.FailurePolicy),
	})

	logger.Info().
		Str("provider", cfg.LLM.Provider).
		Str("model", cfg.LLM.Model).
		Str("search_failure_policy", cfg.Search.FailurePolicy).
		Msg("resolver ready")

	return ctx, cfg, r, nil
}
