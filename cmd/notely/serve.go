package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"reflect"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/kadirpekel/notely"
	"github.com/kadirpekel/notely/pkg/chat"
	"github.com/kadirpekel/notely/pkg/config"
	"github.com/kadirpekel/notely/pkg/logger"
	"github.com/kadirpekel/notely/pkg/model"
	"github.com/kadirpekel/notely/pkg/model/gemini"
	"github.com/kadirpekel/notely/pkg/observability"
	"github.com/kadirpekel/notely/pkg/ratelimit"
	"github.com/kadirpekel/notely/pkg/server"
)

// ServeCmd starts the HTTP server.
type ServeCmd struct {
	Port  int  `help:"Port to listen on (overrides config)."`
	Watch bool `help:"Watch config file for changes."`
}

func (c *ServeCmd) Run(cli *CLI) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cli.Config != "" {
		_ = config.LoadDotEnvForConfig(cli.Config)
	}

	// The reload callback needs the settings of the running instance.
	var (
		current  *config.Config
		settings logSettings
	)
	onChange := func(next *config.Config) {
		if c.Port != 0 {
			next.Server.Port = c.Port
		}
		if !settings.LevelPinned {
			if lvl, err := logger.ParseLevel(next.Logger.Level); err == nil {
				logger.SetLevel(lvl)
			}
		}
		for _, section := range restartRequired(current, next) {
			slog.Warn("Config section changed; restart to apply", "section", section)
		}
		slog.Info("Configuration reloaded")
	}

	cfg, loader, err := loadConfig(ctx, cli.Config, config.WithOnChange(onChange))
	if err != nil {
		return err
	}
	if loader != nil {
		defer loader.Close()
	}
	current = cfg

	if c.Port != 0 {
		cfg.Server.Port = c.Port
	}

	settings, err = resolveLogSettings(cli.LogLevel, cli.LogFile, cli.LogFormat, &cfg.Logger)
	if err != nil {
		return err
	}
	cleanup, err := settings.apply()
	if err != nil {
		return err
	}
	defer cleanup()

	obs := observability.NewManager(cfg.Observability)
	if err := obs.Initialize(ctx); err != nil {
		return fmt.Errorf("failed to initialize observability: %w", err)
	}
	defer func() {
		if err := obs.Shutdown(context.Background()); err != nil {
			slog.Warn("Observability shutdown error", "error", err)
		}
	}()

	limiter, err := ratelimit.New(cfg.RateLimit.Limiter(), ratelimit.WithRecorder(obs.Metrics()))
	if err != nil {
		return fmt.Errorf("failed to create rate limiter: %w", err)
	}
	defer limiter.Close()

	llm, err := newModel(cfg.LLM)
	if err != nil {
		return err
	}
	defer llm.Close()

	chatService, err := chat.NewService(llm,
		chat.WithMetrics(obs.Metrics()),
		chat.WithTracer(obs.Tracer("notely/chat")),
	)
	if err != nil {
		return err
	}

	srv, err := server.NewHTTPServer(cfg.Server, limiter, chatService,
		server.WithObservability(obs),
		server.WithVersion(notely.Version),
	)
	if err != nil {
		return err
	}

	slog.Info("Starting notely",
		"version", notely.Version,
		"address", srv.Address(),
		"model", llm.Name(),
		"requests_per_minute", cfg.RateLimit.RequestsPerMinute,
		"requests_per_day", cfg.RateLimit.RequestsPerDay,
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Start(gctx)
	})
	if c.Watch {
		if loader == nil {
			slog.Warn("--watch ignored: no config file")
		} else {
			g.Go(func() error {
				return loader.Watch(gctx)
			})
		}
	}

	if err := g.Wait(); err != nil {
		return err
	}
	slog.Info("Shutdown complete")
	return nil
}

// loadConfig reads the config file, or builds the zero-config defaults when
// no path is given.
func loadConfig(ctx context.Context, path string, opts ...config.LoaderOption) (*config.Config, *config.Loader, error) {
	if path == "" {
		cfg := config.Default()
		if err := cfg.Validate(); err != nil {
			return nil, nil, fmt.Errorf("config validation failed: %w", err)
		}
		return cfg, nil, nil
	}

	cfg, loader, err := config.LoadConfigFile(ctx, path, opts...)
	if err != nil {
		return nil, nil, err
	}
	return cfg, loader, nil
}

// newModel creates the configured LLM provider.
func newModel(cfg config.LLMConfig) (model.LLM, error) {
	switch cfg.Provider {
	case config.LLMProviderGemini:
		llm, err := gemini.New(gemini.Config{
			APIKey:          cfg.APIKey,
			Model:           cfg.Model,
			BaseURL:         cfg.BaseURL,
			Temperature:     cfg.Temperature,
			TopP:            cfg.TopP,
			TopK:            cfg.TopK,
			MaxOutputTokens: cfg.MaxOutputTokens,
			Timeout:         cfg.Timeout,
			MaxQPS:          cfg.MaxQPS,
			Burst:           cfg.Burst,
			MaxRetries:      maxRetries(cfg.MaxRetries),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create %s model: %w", cfg.Provider, err)
		}
		return llm, nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.Provider)
	}
}

func maxRetries(n *int) int {
	if n == nil {
		return config.DefaultMaxRetries
	}
	return *n
}

// restartRequired lists the config sections that differ between the running
// config and next but are only read at startup. Only the log level is applied
// live.
func restartRequired(old, next *config.Config) []string {
	if old == nil || next == nil {
		return nil
	}

	var sections []string
	if !reflect.DeepEqual(old.Server, next.Server) {
		sections = append(sections, "server")
	}
	if old.RateLimit != next.RateLimit {
		sections = append(sections, "rate_limit")
	}
	if !reflect.DeepEqual(old.LLM, next.LLM) {
		sections = append(sections, "llm")
	}
	if !reflect.DeepEqual(old.Observability, next.Observability) {
		sections = append(sections, "observability")
	}
	return sections
}
