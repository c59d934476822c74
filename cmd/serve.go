package cmd

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/tanpawarit/Chative-Commerce-Tools/agent/assistant"
	"github.com/tanpawarit/Chative-Commerce-Tools/agent/llm"
	"github.com/tanpawarit/Chative-Commerce-Tools/agent/prompt"
	statex "github.com/tanpawarit/Chative-Commerce-Tools/agent/state"
	"github.com/tanpawarit/Chative-Commerce-Tools/api"
	configx "github.com/tanpawarit/Chative-Commerce-Tools/pkg/config"
	openrouterx "github.com/tanpawarit/Chative-Commerce-Tools/pkg/openrouter"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP API, the tool endpoint and the assistant",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := log.Logger.WithContext(cmd.Context())

		app, err := configx.New[AppConfig]("APP")
		if err != nil {
			return err
		}
		c, err := buildCore(ctx, *app)
		if err != nil {
			return err
		}
		defer c.Close()

		deps := api.Deps{
			Catalog:    c.catalog,
			Orders:     c.orders,
			Registry:   c.registry,
			Dispatcher: c.dispatcher,
			Metrics:    promhttp.HandlerFor(c.metrics, promhttp.HandlerOpts{}),
			Health:     c.health,
		}

		asst, err := buildAssistant(ctx, c)
		if err != nil {
			return err
		}
		if asst != nil {
			deps.Assistant = asst
		}

		srv, err := api.NewServer(deps)
		if err != nil {
			return err
		}
		return listen(ctx, app.Addr, srv.Handler())
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

// buildAssistant returns nil when no model key is configured.
func buildAssistant(ctx context.Context, c *core) (*assistant.Assistant, error) {
	logger := zerolog.Ctx(ctx)

	cfg, err := configx.New[llm.Config]("LLM")
	if err != nil {
		return nil, err
	}
	if !cfg.Enabled() {
		logger.Info().Msg("LLM_API_KEY not set, assistant disabled")
		return nil, nil
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	orCfg := cfg.OpenRouter()
	probeCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()
	if n, err := openrouterx.Ping(probeCtx, openrouterx.NewClient(orCfg)); err != nil {
		logger.Warn().Err(err).Msg("model endpoint probe failed, continuing")
	} else {
		logger.Info().Int("models", n).Str("model", orCfg.Model).Msg("model endpoint reachable")
	}

	chatModel, err := openrouterx.NewChatModel(ctx, orCfg)
	if err != nil {
		return nil, err
	}

	shop, err := configx.New[prompt.Shop]("SHOP")
	if err != nil {
		return nil, err
	}
	prompts, err := prompt.LoadPromptSet(*shop)
	if err != nil {
		return nil, err
	}

	return assistant.New(chatModel, c.registry.Infos(), c.dispatcher, conversationStore(ctx, cfg.HistoryTTL), assistant.Config{
		SystemPrompt: prompts.Assistant,
		MaxSteps:     cfg.MaxSteps,
		HistoryTurns: cfg.HistoryTurns,
	})
}

// conversationStore prefers Upstash when it is configured and falls back to process memory.
func conversationStore(ctx context.Context, ttl time.Duration) statex.Store {
	logger := zerolog.Ctx(ctx)
	if strings.TrimSpace(os.Getenv("UPSTASH_REDIS_URL")) != "" {
		cfg, err := configx.New[statex.UpstashRedisConfig]("UPSTASH_REDIS")
		if err == nil {
			var s *statex.UpstashRedisStore
			if s, err = statex.NewUpstashRedisStore(*cfg, statex.WithTTL(ttl)); err == nil {
				logger.Info().Msg("conversation history in upstash redis")
				return s
			}
		}
		logger.Warn().Err(err).Msg("upstash redis unavailable, keeping history in memory")
	}
	return statex.NewMemoryStore(ttl)
}

func listen(ctx context.Context, addr string, h http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}

	errCh := make(chan error, 1)
	go func() {
		zerolog.Ctx(ctx).Info().Str("addr", addr).Msg("http server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	zerolog.Ctx(ctx).Info().Msg("shutting down http server")
	return srv.Shutdown(shutdownCtx)
}
