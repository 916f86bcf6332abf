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
	"go.uber.org/zap"

	"trivia-session-service/internal/app"
	"trivia-session-service/internal/avatar"
	"trivia-session-service/internal/domain"
	pgloader "trivia-session-service/internal/infra/postgres"
	pgmigrations "trivia-session-service/internal/infra/postgres/migrations"
	infraredis "trivia-session-service/internal/infra/redis"
	"trivia-session-service/internal/mechanics"
)

func TestGameFlowEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	seedQuestions(t, ctx, pgURL, sampleQuestions())

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}

	catalog := infraredis.NewCatalogCache(redisClient, pgloader.NewQuestionLoader(pool), 5*time.Minute)
	service := app.NewSessionService(
		infraredis.NewSessionStore(redisClient, 5*time.Minute),
		catalog,
		mechanics.NewRegistry(zap.NewNop()),
		infraredis.NewLock(redisClient, zap.NewNop()),
		avatar.NewValidator(nil),
		zap.NewNop(),
		app.Config{QuestionsPerSession: 15, PostgameWindow: 15 * time.Minute, LockTTL: 10 * time.Second},
	)

	roomID, err := service.Create(ctx, "party-quizz", "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	annID, err := service.Join(ctx, roomID, "", "Ann", "ok://avatar")
	if err != nil {
		t.Fatalf("join ann: %v", err)
	}
	bobID, err := service.Join(ctx, roomID, "", "Bob", "/avatars/cat.svg")
	if err != nil {
		t.Fatalf("join bob: %v", err)
	}

	view, err := service.Start(ctx, roomID)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if view.Total != 2 || len(view.Options) != 4 {
		t.Fatalf("expected 2 questions with 4 options each, got %+v", view)
	}

	// Ann answers correctly, Bob answers wrong; the reveal flips once both
	// have answered.
	outcome, err := service.Answer(ctx, roomID, annID, view.Question.Answer)
	if err != nil {
		t.Fatalf("answer ann: %v", err)
	}
	if !outcome.IsCorrect || outcome.AllAnswered {
		t.Fatalf("expected correct answer waiting on bob, got %+v", outcome)
	}
	wrong := ""
	for _, option := range view.Options {
		if option != view.Question.Answer {
			wrong = option
			break
		}
	}
	outcome, err = service.Answer(ctx, roomID, bobID, wrong)
	if err != nil {
		t.Fatalf("answer bob: %v", err)
	}
	if outcome.IsCorrect || !outcome.AllAnswered {
		t.Fatalf("expected wrong answer closing the question, got %+v", outcome)
	}

	// Play the remaining question and enter the postgame window.
	advance, err := service.Next(ctx, roomID)
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if advance.PostgamePending {
		t.Fatalf("expected a second question, got %+v", advance)
	}
	if _, err := service.Answer(ctx, roomID, annID, advance.Question.Question.Answer); err != nil {
		t.Fatalf("answer ann q2: %v", err)
	}
	if _, err := service.Answer(ctx, roomID, bobID, advance.Question.Question.Answer); err != nil {
		t.Fatalf("answer bob q2: %v", err)
	}
	advance, err = service.Next(ctx, roomID)
	if err != nil {
		t.Fatalf("final next: %v", err)
	}
	if !advance.PostgamePending || advance.Results == nil {
		t.Fatalf("expected postgame with results, got %+v", advance)
	}
	if len(advance.Results.Winners) != 1 || advance.Results.Winners[0].PlayerID != annID {
		t.Fatalf("expected ann leading, got %+v", advance.Results.Winners)
	}

	results, err := service.Finish(ctx, roomID)
	if err != nil {
		t.Fatalf("finish: %v", err)
	}
	if results.Fastest == nil {
		t.Fatalf("expected a fastest player, got %+v", results)
	}

	snapshot, err := service.GetSnapshot(ctx, roomID)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if snapshot.Phase != domain.PhaseFinished {
		t.Fatalf("expected finished, got %s", snapshot.Phase)
	}
}

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "trivia", "POSTGRES_PASSWORD": "triviapass", "POSTGRES_DB": "triviadb"},
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
	dsn := fmt.Sprintf("postgres://trivia:triviapass@%s:%s/triviadb?sslmode=disable", host, port.Port())
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

func seedQuestions(t *testing.T, ctx context.Context, dsn string, questions []domain.Question) {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())
	defer db.Close()

	migrator := migrate.NewMigrator(db, pgmigrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		t.Fatalf("migrator init: %v", err)
	}
	if _, err := migrator.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	for _, q := range questions {
		data, err := json.Marshal(q)
		if err != nil {
			t.Fatalf("marshal question: %v", err)
		}
		if _, err := db.ExecContext(ctx,
			`INSERT INTO questions (question_id, collection_id, data) VALUES (?, ?, ?::jsonb) ON CONFLICT (question_id) DO UPDATE SET data=EXCLUDED.data`,
			q.ID, q.CollectionID, string(data)); err != nil {
			t.Fatalf("insert question: %v", err)
		}
	}
}

func sampleQuestions() []domain.Question {
	return []domain.Question{
		{
			ID: 101, CollectionID: "party-quizz", Prompt: "What is the capital of France?",
			MechanicsType: "simple4", Answer: "Paris",
			Wrong1: "Rome", Wrong2: "Berlin", Wrong3: "Madrid", Cost: 10,
		},
		{
			ID: 102, CollectionID: "party-quizz", Prompt: "Which planet is the Red Planet?",
			MechanicsType: "simple4", Answer: "Mars",
			Wrong1: "Venus", Wrong2: "Jupiter", Wrong3: "Mercury", Cost: 10,
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
