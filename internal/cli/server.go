package cli

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"trivia-session-service/internal/app"
	"trivia-session-service/internal/avatar"
	"trivia-session-service/internal/config"
	"trivia-session-service/internal/domain"
	"trivia-session-service/internal/infra/memory"
	pgloader "trivia-session-service/internal/infra/postgres"
	redisinfra "trivia-session-service/internal/infra/redis"
	"trivia-session-service/internal/mechanics"
	transport "trivia-session-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the trivia session server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	log, err := zap.NewProduction()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg, log); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}
	sessionTTL := config.TTLDuration(cfg.Redis.TTL, 4*time.Hour)
	catalogTTL := config.TTLDuration(cfg.Quiz.CatalogTTL, 10*time.Minute)

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
	}

	var loader redisinfra.CatalogLoader = memory.NewStaticCatalog(demoQuestions())
	if pool != nil {
		loader = pgloader.NewQuestionLoader(pool)
	}

	var catalog app.QuestionCatalog
	var store app.SessionStore
	var locker app.Locker
	if redisClient != nil {
		catalog = redisinfra.NewCatalogCache(redisClient, loader, catalogTTL)
		store = redisinfra.NewSessionStore(redisClient, sessionTTL)
		locker = redisinfra.NewLock(redisClient, log)
	} else {
		// Single-process fallback for local development; the memory twins
		// honor the same contracts as the Redis implementations.
		catalog = memory.NewStaticCatalog(demoQuestions())
		store = memory.NewSessionStore()
		locker = memory.NewLocker()
	}

	service := app.NewSessionService(
		store,
		catalog,
		mechanics.NewRegistry(log),
		locker,
		avatar.NewValidator(cfg.Avatar.AllowedSchemes),
		log,
		app.Config{
			QuestionsPerSession: cfg.Quiz.QuestionsPerSession,
			PostgameWindow:      config.TTLDuration(cfg.Quiz.PostgameWindow, 15*time.Minute),
			LockTTL:             config.TTLDuration(cfg.Quiz.LockTTL, 10*time.Second),
		},
	)

	router := mux.NewRouter()
	router.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	transport.NewHandler(service, log).Register(router)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Info("starting trivia session service", zap.String("port", finalPort))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("failed to start server", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Info("shutting down server...")
	case <-ctx.Done():
		log.Info("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// demoQuestions provides a minimal built-in collection; production setups
// load questions from Postgres instead.
func demoQuestions() []domain.Question {
	return []domain.Question{
		{
			ID:            101,
			CollectionID:  "party-quizz",
			Prompt:        "What is the capital of France?",
			MechanicsType: "simple4",
			Answer:        "Paris",
			Wrong1:        "Rome",
			Wrong2:        "Berlin",
			Wrong3:        "Madrid",
			Cost:          10,
			Comment:       "Paris has been the capital since 987.",
			PromptText:    "Pick one of four options, answerCost points each",
		},
		{
			ID:            102,
			CollectionID:  "party-quizz",
			Prompt:        "Which planet is known as the Red Planet?",
			MechanicsType: "simple4",
			Answer:        "Mars",
			Wrong1:        "Venus",
			Wrong2:        "Jupiter",
			Wrong3:        "Mercury",
			Cost:          10,
			Comment:       "Iron oxide gives Mars its color.",
			PromptText:    "Pick one of four options, answerCost points each",
		},
		{
			ID:            103,
			CollectionID:  "party-quizz",
			Prompt:        "How many strings does a classical guitar have?",
			MechanicsType: "simple4",
			Answer:        "6",
			Wrong1:        "4",
			Wrong2:        "5",
			Wrong3:        "7",
			Cost:          5,
			Comment:       "Six strings, tuned E-A-D-G-B-E.",
			PromptText:    "Pick one of four options, answerCost points each",
		},
	}
}
