package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"keynow/db"
	"keynow/models"
	"keynow/service"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestRepo(t *testing.T) *db.Repo {
	t.Helper()

	conn, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db.NewRepo(conn)
}

// fakeMessenger records every reply and push so tests can assert exactly
// what went out. Pushes to ids in failTo fail, simulating delivery errors.
type fakeMessenger struct {
	mu      sync.Mutex
	replies []string
	pushes  []sentPush
	failTo  map[string]bool
}

type sentPush struct {
	To   string
	Text string
}

func (m *fakeMessenger) Reply(_ context.Context, _, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.replies = append(m.replies, text)
	return nil
}

func (m *fakeMessenger) Push(_ context.Context, to, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failTo[to] {
		return errors.New("delivery failed")
	}
	m.pushes = append(m.pushes, sentPush{To: to, Text: text})
	return nil
}

func (m *fakeMessenger) lastReply(t *testing.T) string {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.replies) == 0 {
		t.Fatal("expected a reply, got none")
	}
	return m.replies[len(m.replies)-1]
}

func (m *fakeMessenger) pushCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pushes)
}

type fakeRoster struct {
	names map[string]string
}

func (f *fakeRoster) Resolve(_ context.Context, code string) (string, error) {
	if name, ok := f.names[code]; ok {
		return name, nil
	}
	return "", service.ErrCodeNotFound
}

type fakeSchedule struct {
	hours []int
	err   error
}

func (f *fakeSchedule) EndHoursFor(_ context.Context, _ time.Time) ([]int, error) {
	return f.hours, f.err
}

// newTestEngine wires an Engine over in-memory stores with one registered
// user (U1/山田) and one enrolled broadcast group (G1).
func newTestEngine(t *testing.T) (*service.Engine, *db.Repo, *fakeMessenger) {
	t.Helper()

	repo := newTestRepo(t)
	msgr := &fakeMessenger{}
	eng := service.NewEngine(repo, msgr, &fakeRoster{names: map[string]string{"B1234": "山田"}}, 30, 10)

	ctx := context.Background()
	err := repo.CreateUser(ctx, &models.User{LineID: "U1", StudentNo: "B1234", Name: "山田"})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	if err := repo.AddGroup(ctx, "G1"); err != nil {
		t.Fatalf("add group: %v", err)
	}
	return eng, repo, msgr
}

func countLogs(t *testing.T, repo *db.Repo) int {
	t.Helper()
	logs, err := repo.ListLogsSince(context.Background(), time.Now().AddDate(0, 0, -1))
	if err != nil {
		t.Fatalf("list logs: %v", err)
	}
	return len(logs)
}
