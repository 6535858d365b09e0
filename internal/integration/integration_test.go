package integration

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"timed-quiz-service/internal/app"
	"timed-quiz-service/internal/domain"
	"timed-quiz-service/internal/infra/postgres"
	infraredis "timed-quiz-service/internal/infra/redis"
	"timed-quiz-service/internal/infra/sqlstore"
)

func TestAttemptFlowOnPostgresAndRedis(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	db, err := sqlstore.Open(sqlstore.DriverPostgres, pgURL)
	if err != nil {
		t.Fatalf("open postgres: %v", err)
	}
	defer db.Close()
	if err := sqlstore.Migrate(ctx, db, logger); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	// a second run must be a no-op
	if err := sqlstore.Migrate(ctx, db, logger); err != nil {
		t.Fatalf("second migrate: %v", err)
	}
	store := sqlstore.NewStore(db)

	pool, err := postgres.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	defer redisClient.Close()

	lockers := map[string]app.Locker{
		"postgres": postgres.NewLocker(pool, logger),
		"redis":    infraredis.NewLocker(redisClient, 5*time.Second, logger),
	}
	cache := infraredis.NewLeaderboardCache(redisClient, time.Minute)

	teacher, err := store.CreateUser(ctx, domain.User{Username: "teacher", PasswordHash: "x", Role: domain.RoleTeacher, CreatedAt: time.Now().UTC()})
	if err != nil {
		t.Fatalf("create teacher: %v", err)
	}

	for name, locker := range lockers {
		t.Run(name, func(t *testing.T) {
			service := app.NewQuizService(store, locker, cache, app.NewHub(), logger)
			quiz, err := service.CreateQuiz(ctx, teacher, "Integration "+name, 10)
			if err != nil {
				t.Fatalf("create quiz: %v", err)
			}
			q1, err := service.AddQuestion(ctx, teacher, quiz.ID, domain.QuestionDraft{Text: "2+2?", OptionA: "3", OptionB: "4", OptionC: "5", OptionD: "6", CorrectAnswer: "B"})
			if err != nil {
				t.Fatalf("add question: %v", err)
			}
			// last_modified must be strictly before the attempt start
			time.Sleep(10 * time.Millisecond)

			student, err := store.CreateUser(ctx, domain.User{Username: "student-" + name, PasswordHash: "x", Role: domain.RoleStudent, CreatedAt: time.Now().UTC()})
			if err != nil {
				t.Fatalf("create student: %v", err)
			}

			// concurrent opens share one attempt
			const workers = 8
			views := make([]app.AttemptView, workers)
			var wg sync.WaitGroup
			for i := 0; i < workers; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					view, err := service.OpenAttempt(ctx, student, quiz.ID)
					if err != nil {
						t.Errorf("open attempt: %v", err)
						return
					}
					views[i] = view
				}(i)
			}
			wg.Wait()
			for _, v := range views {
				if v.Attempt.ID != views[0].Attempt.ID {
					t.Fatalf("expected one shared attempt, got %d and %d", v.Attempt.ID, views[0].Attempt.ID)
				}
			}

			before, err := service.Leaderboard(ctx, quiz.ID)
			if err != nil {
				t.Fatalf("leaderboard: %v", err)
			}
			if len(before.Entries) != 0 {
				t.Fatalf("expected empty leaderboard, got %+v", before.Entries)
			}

			// concurrent submits record exactly one result
			answers := map[string]string{strconv.FormatInt(q1.ID, 10): "B"}
			var successes, rejected int
			var mu sync.Mutex
			for i := 0; i < workers; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					_, err := service.Submit(ctx, student, quiz.ID, views[0].Attempt.ID, answers)
					mu.Lock()
					defer mu.Unlock()
					switch {
					case err == nil:
						successes++
					case errors.Is(err, domain.ErrAlreadyAttempted), errors.Is(err, domain.ErrInvalidAttempt):
						rejected++
					default:
						t.Errorf("submit: %v", err)
					}
				}()
			}
			wg.Wait()
			if successes != 1 || rejected != workers-1 {
				t.Fatalf("expected 1 success and %d rejections, got %d and %d", workers-1, successes, rejected)
			}

			after, err := service.Leaderboard(ctx, quiz.ID)
			if err != nil {
				t.Fatalf("leaderboard: %v", err)
			}
			if len(after.Entries) != 1 || after.Entries[0].Score != 1 || after.Entries[0].Username != student.Username {
				t.Fatalf("expected cache to reflect the new result, got %+v", after.Entries)
			}
		})
	}
}

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "quiz", "POSTGRES_PASSWORD": "quizpass", "POSTGRES_DB": "quizdb"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForLog("database system is ready to accept connections").WithOccurrence(2).WithStartupTimeout(60 * time.Second),
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

func redisClientFromURL(url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return goredis.NewClient(opts), nil
}

func requireDocker(t *testing.T) {
	t.Helper()
	if _, err := tc.NewDockerProvider(); err != nil {
		t.Skipf("docker not available: %v", err)
	}
}
