package integration

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"

	"quiz-score-service/internal/app"
	"quiz-score-service/internal/domain"
	pgstore "quiz-score-service/internal/infra/postgres"
	pgmigrations "quiz-score-service/internal/infra/postgres/migrations"
	infraredis "quiz-score-service/internal/infra/redis"
)

func TestSubmitAndStatsEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	db := seedQuiz(t, ctx, pgURL, sampleQuiz())
	defer db.Close()

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	loader := pgstore.NewQuizLoader(pool)

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	quizRepo := infraredis.NewQuizRepository(redisClient, loader, 5*time.Minute)
	attempts := pgstore.NewAttemptRepository(db)
	service := app.NewQuizService(quizRepo, attempts)

	// First submission: half right.
	half, err := service.Submit(ctx, "u1", 1, domain.SubmittedAnswerSet{1: {2}, 2: {5}}, time.Now().Add(-30*time.Second))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if half.Score != 50.0 || half.EarnedPoints != 1 || half.TotalPoints != 2 {
		t.Fatalf("expected 50.0 (1/2), got %+v", half)
	}
	if half.ElapsedSeconds == nil || *half.ElapsedSeconds < 29 {
		t.Fatalf("expected elapsed around 30s, got %v", half.ElapsedSeconds)
	}

	// Second submission: all right; the quiz now comes from the Redis cache.
	full, err := service.Submit(ctx, "u1", 1, domain.SubmittedAnswerSet{1: {2}, 2: {4, 5}}, time.Time{})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if full.Score != 100.0 {
		t.Fatalf("expected 100.0, got %+v", full)
	}
	if full.ID == half.ID {
		t.Fatalf("attempts must be independent rows, both id %d", full.ID)
	}

	stats, err := service.Stats(ctx, "u1")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.TotalAttempts != 2 || stats.AverageScore != 75.0 || stats.HighestScore != 100.0 {
		t.Fatalf("expected total=2 avg=75.0 high=100.0, got %+v", stats)
	}

	// The breakdown rows must have landed with the attempt.
	var resultCount int
	if err := db.NewSelect().Table("attempt_results").ColumnExpr("count(*)").Where("attempt_id = ?", full.ID).Scan(ctx, &resultCount); err != nil {
		t.Fatalf("count results: %v", err)
	}
	if resultCount != 2 {
		t.Fatalf("expected 2 result rows for attempt %d, got %d", full.ID, resultCount)
	}
}

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "quiz", "POSTGRES_PASSWORD": "quizpass", "POSTGRES_DB": "quizdb"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForListeningPort("5432/tcp").WithStartupTimeout(60 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start postgres: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("port: %v", err)
	}
	dsn := fmt.Sprintf("postgres://quiz:quizpass@%s:%s/quizdb?sslmode=disable", host, port.Port())
	return dsn, func() {
		_ = container.Terminate(ctx)
	}
}

func startRedis(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(30 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start redis: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("redis host: %v", err)
	}
	port, err := container.MappedPort(ctx, "6379/tcp")
	if err != nil {
		t.Fatalf("redis port: %v", err)
	}
	url := fmt.Sprintf("redis://%s:%s", host, port.Port())
	return url, func() {
		_ = container.Terminate(ctx)
	}
}

func seedQuiz(t *testing.T, ctx context.Context, dsn string, quiz domain.Quiz) *bun.DB {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())

	migrator := migrate.NewMigrator(db, pgmigrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		t.Fatalf("migrator init: %v", err)
	}
	if _, err := migrator.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	data, err := json.Marshal(quiz)
	if err != nil {
		t.Fatalf("marshal quiz: %v", err)
	}
	if _, err := db.ExecContext(ctx, `INSERT INTO quizzes (id, data) VALUES (?, ?::jsonb) ON CONFLICT (id) DO UPDATE SET data=EXCLUDED.data`, quiz.ID, string(data)); err != nil {
		t.Fatalf("insert quiz: %v", err)
	}
	return db
}

func sampleQuiz() domain.Quiz {
	return domain.Quiz{
		ID:    1,
		Title: "Integration sample",
		Questions: []domain.Question{
			{
				ID:     1,
				Text:   "What is 2 + 2?",
				Type:   domain.QuestionSingle,
				Points: 1,
				Answers: []domain.Answer{
					{ID: 1, Text: "3"},
					{ID: 2, Text: "4", Correct: true},
					{ID: 3, Text: "5"},
				},
			},
			{
				ID:     2,
				Text:   "Which are prime?",
				Type:   domain.QuestionMultiple,
				Points: 1,
				Answers: []domain.Answer{
					{ID: 4, Text: "2", Correct: true},
					{ID: 5, Text: "3", Correct: true},
					{ID: 6, Text: "4"},
				},
			},
		},
	}
}

func redisClientFromURL(url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return goredis.NewClient(&goredis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	}), nil
}

func requireDocker(t *testing.T) {
	t.Helper()
	if _, err := tc.NewDockerProvider(); err != nil {
		t.Skipf("docker not available: %v", err)
	}
}
