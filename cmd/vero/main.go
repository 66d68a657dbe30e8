// Command vero runs one agent query against an OpenAI-compatible API using
// the configured reasoning strategy.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/time/rate"

	"vero/internal/adapter/llm"
	"vero/internal/adapter/tool"
	"vero/internal/adapter/tool/builtin"
	"vero/internal/agent"
	"vero/internal/domain"
	"vero/internal/infra/config"
	"vero/internal/infra/logger"
	"vero/internal/infra/tracer"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "vero:", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath = flag.String("config", "config.yaml", "path to the YAML config file")
		strategy   = flag.String("agent", "", "reasoning strategy: simple, react, or funccall (overrides config)")
		query      = flag.String("query", "", "user query to run")
		maxTurns   = flag.Int("max-turns", 0, "reasoning turn budget (overrides config)")
		stream     = flag.Bool("stream", false, "stream the model reply directly, bypassing the agent loop")
	)
	flag.Parse()

	if *query == "" {
		return domain.NewDomainError("main", domain.ErrInvalidInput, "-query is required")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if *strategy != "" {
		cfg.Agent.Strategy = *strategy
	}
	if *maxTurns > 0 {
		cfg.Agent.MaxTurns = *maxTurns
	}
	if err := config.Validate(cfg); err != nil {
		return err
	}

	log, closeLog, err := logger.New(cfg.Logger)
	if err != nil {
		return err
	}
	defer closeLog()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := tracer.Setup(ctx, cfg.Tracer)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracer(shutdownCtx); err != nil {
			log.Warn("tracer shutdown failed", "error", err)
		}
	}()

	client, err := buildClient(cfg, log)
	if err != nil {
		return err
	}

	if *stream {
		return streamQuery(ctx, client, cfg, *query)
	}

	a, err := agent.New(cfg.Agent.Strategy, agent.Config{
		Name:         cfg.Agent.Name,
		Client:       client,
		Tools:        buildTools(cfg, log),
		SystemPrompt: cfg.Agent.SystemPrompt,
		MaxTurns:     cfg.Agent.MaxTurns,
		Temperature:  cfg.Agent.Temperature,
		Logger:       log,
	})
	if err != nil {
		return err
	}

	log.Info("running agent", "agent", cfg.Agent.Name, "strategy", cfg.Agent.Strategy)
	answer, err := a.Run(ctx, *query)
	if err != nil {
		return err
	}

	fmt.Println(answer)
	return nil
}

// buildClient assembles the chat client, wrapped in a circuit breaker when
// enabled.
func buildClient(cfg *config.Config, log *slog.Logger) (domain.ChatClient, error) {
	client, err := llm.NewOpenAIClient(cfg.LLM, log)
	if err != nil {
		return nil, err
	}
	if cfg.LLM.CircuitBreaker.Enabled {
		return llm.NewCircuitBreakerClient(client, cfg.LLM.CircuitBreaker, log), nil
	}
	return client, nil
}

// buildTools assembles the enabled builtin tools through a registry. The
// search tool is rate limited so a runaway loop cannot hammer the backend.
func buildTools(cfg *config.Config, log *slog.Logger) []domain.Tool {
	var opts []tool.RegistryOption
	if cfg.Tools.SchemaValidation {
		opts = append(opts, tool.WithValidation())
	}
	reg := tool.NewRegistry(log, opts...)

	if cfg.Tools.Calculator {
		reg.Register(builtin.NewCalculator())
	}
	if cfg.Tools.Search {
		var ddgOpts []builtin.DuckDuckGoOption
		if cfg.Tools.SearchBaseURL != "" {
			ddgOpts = append(ddgOpts, builtin.WithBaseURL(cfg.Tools.SearchBaseURL))
		}
		var search domain.Tool = builtin.NewSearch(builtin.NewDuckDuckGo(ddgOpts...))
		if cfg.Tools.SearchPerMinute > 0 {
			limit := rate.Every(time.Minute / time.Duration(cfg.Tools.SearchPerMinute))
			search = tool.WithRateLimit(search, limit, cfg.Tools.SearchPerMinute)
		}
		reg.Register(search)
	}

	return reg.Tools()
}

// streamQuery sends the query directly to the model and prints fragments as
// they arrive. The agent loops consume complete responses only; streaming is
// a direct-to-caller capability.
func streamQuery(ctx context.Context, client domain.ChatClient, cfg *config.Config, query string) error {
	sc, ok := client.(domain.StreamingChatClient)
	if !ok {
		return fmt.Errorf("client %q does not support streaming", client.Name())
	}

	messages := []domain.Message{domain.UserMessage(query)}
	if cfg.Agent.SystemPrompt != "" {
		messages = append([]domain.Message{domain.SystemMessage(cfg.Agent.SystemPrompt)}, messages...)
	}

	ch, err := sc.ChatStream(ctx, domain.ChatRequest{
		Messages:    messages,
		Temperature: cfg.Agent.Temperature,
	})
	if err != nil {
		return err
	}

	for delta := range ch {
		if delta.Err != nil {
			return domain.WrapOp("stream", delta.Err)
		}
		fmt.Print(delta.Content)
	}
	fmt.Println()
	return nil
}
