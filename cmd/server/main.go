package main

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/jurisdesk/jurisdesk/internal/activity"
	"github.com/jurisdesk/jurisdesk/internal/ai"
	"github.com/jurisdesk/jurisdesk/internal/backup"
	"github.com/jurisdesk/jurisdesk/internal/chat"
	"github.com/jurisdesk/jurisdesk/internal/config"
	"github.com/jurisdesk/jurisdesk/internal/db"
	"github.com/jurisdesk/jurisdesk/internal/httpapi"
	"github.com/jurisdesk/jurisdesk/internal/httpapi/handlers"
	"github.com/jurisdesk/jurisdesk/internal/settings"
	"github.com/jurisdesk/jurisdesk/internal/store/rabbitmq"
	"github.com/jurisdesk/jurisdesk/internal/store/redisstore"
)

func main() {
	cfg := config.Load()

	log, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	gdb, err := db.Connect(cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		log.Fatal("open database", zap.Error(err))
	}
	if err := db.Migrate(gdb); err != nil {
		log.Fatal("migrate", zap.Error(err))
	}

	// Redis is optional: without it unlock throttling and backup debouncing
	// degrade, nothing else breaks.
	rds := redisstore.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	{
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		if err := rds.Ping(ctx); err != nil {
			log.Warn("redis unavailable, continuing without it", zap.Error(err))
			_ = rds.Close()
			rds = nil
		}
		cancel()
	}

	// The broker is optional too; activity falls back to direct writes and
	// backups are skipped.
	pub, err := rabbitmq.NewPublisher(cfg.RabbitURL, cfg.RabbitQueue)
	if err != nil {
		log.Warn("rabbitmq unavailable, continuing without it", zap.Error(err))
		pub = nil
	} else {
		defer pub.Close()
	}

	st := settings.NewService(gdb)
	actRepo := activity.NewRepo(gdb)

	reg := ai.NewRegistry()
	reg.Register("ollama", func(ctx context.Context, model string) (ai.Provider, error) {
		m := strings.TrimSpace(model)
		if m == "" {
			m = cfg.OllamaModel
		}
		return ai.NewOllamaProvider(cfg.OllamaBaseURL, m), nil
	})
	// Keys are read per request so a key saved through the settings
	// endpoint works immediately.
	reg.Register("claude", func(ctx context.Context, model string) (ai.Provider, error) {
		m := strings.TrimSpace(model)
		if m == "" {
			m = cfg.ClaudeModel
		}
		return ai.NewClaudeProvider(cfg.ClaudeBaseURL, st.APIKey(ctx, "claude"), m), nil
	})
	reg.Register("openai", func(ctx context.Context, model string) (ai.Provider, error) {
		m := strings.TrimSpace(model)
		if m == "" {
			m = cfg.OpenAIModel
		}
		return ai.NewOpenAIProvider(cfg.OpenAIBaseURL, st.APIKey(ctx, "openai"), m), nil
	})
	reg.Register("gemini", func(ctx context.Context, model string) (ai.Provider, error) {
		m := strings.TrimSpace(model)
		if m == "" {
			m = cfg.GeminiModel
		}
		return ai.NewGeminiProvider(cfg.GeminiBaseURL, st.APIKey(ctx, "gemini"), m), nil
	})

	ctrl := chat.NewController(chat.ControllerDeps{
		Repo:        chat.NewRepo(gdb),
		Registry:    reg,
		Activity:    activity.NewRecorder(pub, actRepo, log),
		Backup:      backup.NewTrigger(rds, pub, log),
		Usage:       activity.NewLedger(actRepo),
		Toggles:     st,
		ContextSize: cfg.ChatContextWindowSize,
		Logger:      log,
	})

	h := handlers.NewHandler(cfg, ctrl, reg, st, actRepo, rds, log)
	r := httpapi.NewRouter(cfg, h)

	log.Info("server listening", zap.String("addr", cfg.ListenAddr))
	if err := r.Run(cfg.ListenAddr); err != nil {
		log.Fatal("server exited", zap.Error(err))
	}
}
