package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"

	"AssistantChat/internal/assistants"
	"AssistantChat/internal/chatbot"
	"AssistantChat/internal/config"
	"AssistantChat/internal/telemetry"
)

func main() {
	var (
		configPath  string
		apiKey      string
		assistantID string
		appName     string
		theme       string
		debug       bool
		autoConnect bool
	)

	defaultPath, err := config.DefaultPath()
	if err != nil {
		defaultPath = ""
	}

	flag.StringVar(&configPath, "config", defaultPath, "Path to a TOML or YAML config file")
	flag.StringVar(&apiKey, "api-key", "", "OpenAI API key (overrides config and OPENAI_API_KEY)")
	flag.StringVar(&assistantID, "assistant", "", "Assistant ID (overrides config and OPENAI_ASSISTANT_ID)")
	flag.StringVar(&appName, "name", "", "Application name shown in the header")
	flag.StringVar(&theme, "theme", "", "Color theme (light|dark|blue|green)")
	flag.BoolVar(&debug, "debug", false, "Enable debug logging")
	flag.BoolVar(&autoConnect, "connect", false, "Connect on startup using the configured credentials")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	cfg.ApplyEnv()

	// Flags override env
	if apiKey != "" {
		cfg.APIKey = apiKey
	}
	if assistantID != "" {
		cfg.AssistantID = assistantID
	}
	if appName != "" {
		cfg.AppName = appName
	}
	if theme != "" {
		cfg.Theme = theme
	}
	if debug {
		cfg.Debug = true
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid config: %v\n", err)
		os.Exit(1)
	}

	if err := run(cfg, autoConnect); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, autoConnect bool) error {
	logger, closeLog, err := telemetry.InitLogger(cfg.LogDir, cfg.Debug)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer closeLog()

	ctx := context.Background()
	tracer, meter, shutdown, err := telemetry.InitTelemetry(ctx, cfg.LogDir)
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer shutdown()

	if cfg.Debug {
		logger.Info("Debug mode enabled")
	}

	httpClient := &http.Client{Timeout: cfg.Polling.RequestTimeout}
	ctrl := chatbot.NewController(chatbot.Options{
		NewAPI: func(credential string) chatbot.API {
			return assistants.NewClient(credential,
				assistants.WithBaseURL(cfg.BaseURL),
				assistants.WithHTTPClient(httpClient),
				assistants.WithRateLimit(cfg.RateLimit),
				assistants.WithLogger(logger),
				assistants.WithTracer(tracer),
				assistants.WithMeter(meter),
			)
		},
		Poll: chatbot.PollPolicy{
			Interval:    cfg.Polling.Interval,
			MaxAttempts: cfg.Polling.MaxAttempts,
			Timeout:     cfg.Polling.Timeout,
		},
		Logger: logger,
		Tracer: tracer,
		Meter:  meter,
	})

	repl := chatbot.NewREPL(ctrl, chatbot.SettingsFromConfig(cfg), os.Stdin, os.Stdout, logger)

	if autoConnect {
		if _, err := ctrl.Connect(ctx, cfg.APIKey, cfg.AssistantID, cfg.AppName); err != nil {
			fmt.Fprintf(os.Stdout, "Error: %v\n", err)
		}
	}

	return repl.Run(ctx)
}
