package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"chat-relay/internal/config"
	"chat-relay/internal/database"
	"chat-relay/internal/events"
	"chat-relay/internal/handlers"
	"chat-relay/internal/history"
	"chat-relay/internal/logging"
	"chat-relay/internal/providers"
	"chat-relay/internal/router"
	"chat-relay/internal/services"
	"chat-relay/internal/websocket"
)

// Bots registered in the history store. A bot without a provider answers
// with "Bot not implemented".
var registeredBots = []string{"gpt-4", "claude", "qwen", "mixtral", "gemini"}

func main() {
	// ──── Step 1: Load Environment Variables ────
	cfg := config.Load()

	log, err := logging.Setup(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "✗ logger setup failed: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		log.WithError(err).Fatal("✗ invalid configuration")
	}
	log.Info("🚀 Starting chat relay...")
	logCredentials(log, cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ──── Step 2: Build Provider Registry ────
	registry, closeProviders, err := buildRegistry(ctx, cfg)
	if err != nil {
		log.WithError(err).Fatal("✗ provider setup failed")
	}
	defer closeProviders()
	log.WithField("bots", registry.Bots()).Info("✓ Providers registered")

	// ──── Step 3: Initialize History Store ────
	store := history.NewStore(registeredBots, history.WithMaxTurns(cfg.HistoryMaxTurns))
	log.WithField("bots", store.Bots()).Info("✓ History store initialized")

	// ──── Step 4: Optional Redis Event Stream ────
	var publisher events.Publisher = events.Nop{}
	var wsHub *websocket.Hub
	if cfg.RedisURL != "" {
		redisClient, err := database.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			log.WithError(err).Fatal("✗ Redis connection failed")
		}
		defer redisClient.Close()

		publisher = events.NewRedisPublisher(redisClient)
		wsHub = startHub(ctx, redisClient, cfg.FrontendURL, log)
		log.Info("✓ Redis connected, exchange events enabled")
	}

	// ──── Step 5: Start HTTP Server ────
	dispatcher := services.NewDispatcher(store, registry, publisher, cfg.ProviderTimeout())
	chatHandler := handlers.NewChatHandler(dispatcher)
	r := router.New(chatHandler, wsHub, cfg.FrontendURL, log)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.ProviderTimeout() + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}
	if cfg.ProviderTimeoutSeconds == 0 {
		server.WriteTimeout = 0
	}

	// Graceful shutdown
	go func() {
		<-ctx.Done()
		log.Info("Shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	log.Infof("✓ Chat relay ready on http://localhost:%s", cfg.Port)
	log.Infof("  Chat: POST http://localhost:%s/chat (origin %s)", cfg.Port, cfg.FrontendURL)

	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		log.WithError(err).Fatal("Server error")
	}
}

// buildRegistry binds each bot to its adapter. gpt-4, claude and qwen are
// always bound; gemini and mixtral only when their credentials or endpoint are
// configured.
func buildRegistry(ctx context.Context, cfg *config.Config) (*providers.Registry, func(), error) {
	registry := providers.NewRegistry()
	closers := []func() error{}
	closeAll := func() {
		for _, c := range closers {
			c()
		}
	}

	bindings := map[string]providers.Provider{
		"gpt-4":  providers.NewOpenAIChat(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.OpenAIModel),
		"claude": providers.NewAnthropicMessages(cfg.AnthropicAPIKey, cfg.AnthropicBaseURL, cfg.AnthropicModel),
		"qwen":   providers.NewInferenceEndpoint("qwen", cfg.QwenEndpointURL, cfg.HuggingFaceToken, cfg.InferenceMaxNewTokens, nil),
	}
	if cfg.MixtralEndpointURL != "" {
		bindings["mixtral"] = providers.NewInferenceEndpoint("mixtral", cfg.MixtralEndpointURL, cfg.HuggingFaceToken, cfg.InferenceMaxNewTokens, nil)
	}
	if cfg.GoogleAPIKey != "" {
		gemini, err := providers.NewGeminiChat(ctx, cfg.GoogleAPIKey, cfg.GeminiModel)
		if err != nil {
			return nil, closeAll, err
		}
		closers = append(closers, gemini.Close)
		bindings["gemini"] = gemini
	}

	bots := make([]string, 0, len(bindings))
	for bot := range bindings {
		bots = append(bots, bot)
	}
	sort.Strings(bots)
	for _, bot := range bots {
		if err := registry.Register(bot, bindings[bot]); err != nil {
			return nil, closeAll, err
		}
	}
	return registry, closeAll, nil
}

func startHub(ctx context.Context, client *redis.Client, origin string, log *logrus.Logger) *websocket.Hub {
	hub := websocket.NewHub(client, origin, log)
	go hub.Run(ctx)
	return hub
}

func logCredentials(log *logrus.Logger, cfg *config.Config) {
	creds := cfg.Credentials()
	keys := make([]string, 0, len(creds))
	for k := range creds {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if creds[k] {
			log.Infof("%s is set", k)
		} else {
			log.Warnf("%s is not set", k)
		}
	}
}
