package cli

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	"quiz-score-service/internal/app"
	"quiz-score-service/internal/config"
	"quiz-score-service/internal/domain"
	"quiz-score-service/internal/infra/memory"
	pgstore "quiz-score-service/internal/infra/postgres"
	rediscache "quiz-score-service/internal/infra/redis"
	transport "quiz-score-service/internal/transport/http"
)

// NewServerCmd builds the CLI subcommand to start the server.
func NewServerCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "server",
		Short: "Start the quiz scoring server",
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

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
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
	cacheTTL := config.TTLDuration(cfg.Quiz.CacheTTL, 10*time.Minute)

	var pool *pgxpool.Pool
	var bunDB *bun.DB
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(cfg.Postgres.URL)))
		bunDB = bun.NewDB(sqldb, pgdialect.New())
	}

	var loader memory.QuizLoader = memory.NewStaticQuizLoader(sampleQuizzes())
	if pool != nil {
		loader = pgstore.NewQuizLoader(pool)
	}

	var quizRepo app.QuizRepository
	if redisClient != nil {
		quizRepo = rediscache.NewQuizRepository(redisClient, loader, cacheTTL)
	} else {
		quizRepo = memory.NewQuizRepository(loader, cacheTTL)
	}

	var attempts app.AttemptRepository
	if bunDB != nil {
		attempts = pgstore.NewAttemptRepository(bunDB)
	} else {
		attempts = memory.NewAttemptStore()
	}

	service := app.NewQuizService(quizRepo, attempts)
	restHandler := transport.NewRESTHandler(service)
	wsHandler := transport.NewWSHandler(service)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	restHandler.Register(mux)
	mux.HandleFunc("/ws/stats", wsHandler.ServeStats)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Printf("starting quiz score service on :%s", finalPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("failed to start server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Println("shutting down server...")
	case <-ctx.Done():
		log.Println("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// sampleQuizzes provides demo content for running without Postgres; with a
// database configured, the content store is authoritative.
func sampleQuizzes() map[int64]domain.Quiz {
	return map[int64]domain.Quiz{
		1: {
			ID:         1,
			Title:      "Basic Arithmetic",
			Difficulty: domain.DifficultyEasy,
			Category:   "math",
			Questions: []domain.Question{
				{
					ID:     1,
					Text:   "What is 2 + 2?",
					Type:   domain.QuestionSingle,
					Points: 1,
					Answers: []domain.Answer{
						{ID: 1, Text: "3"},
						{ID: 2, Text: "4", Correct: true, Explanation: "2 + 2 = 4"},
						{ID: 3, Text: "5"},
					},
				},
				{
					ID:     2,
					Text:   "Which of these are even numbers?",
					Type:   domain.QuestionMultiple,
					Points: 2,
					Answers: []domain.Answer{
						{ID: 4, Text: "2", Correct: true},
						{ID: 5, Text: "3"},
						{ID: 6, Text: "8", Correct: true},
					},
				},
			},
		},
	}
}
