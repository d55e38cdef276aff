package db_test

import (
	"context"
	"testing"
	"time"

	"keynow/db"
	"keynow/models"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newTestRepo builds a Repo over an in-memory SQLite database so the real
// GORM transactions run without a Postgres server. A single connection keeps
// concurrent transactions serialized the way the production store does.
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

func registerUser(t *testing.T, r *db.Repo, lineID, studentNo, name string) {
	t.Helper()
	err := r.CreateUser(context.Background(), &models.User{
		LineID:    lineID,
		StudentNo: studentNo,
		Name:      name,
	})
	if err != nil {
		t.Fatalf("create user %s: %v", lineID, err)
	}
}

func mustBorrow(t *testing.T, r *db.Repo, keys []string, holderID string, at time.Time) {
	t.Helper()
	if err := r.BorrowKeys(context.Background(), keys, holderID, at); err != nil {
		t.Fatalf("borrow %v for %s: %v", keys, holderID, err)
	}
}
