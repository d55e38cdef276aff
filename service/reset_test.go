package service_test

import (
	"context"
	"io"
	"log"
	"strings"
	"testing"
	"time"

	"keynow/models"
	"keynow/service"
)

func TestDailyReset_ClearsAndBroadcasts(t *testing.T) {
	repo := newTestRepo(t)
	msgr := &fakeMessenger{}
	ctx := context.Background()
	if err := repo.AddGroup(ctx, "G1"); err != nil {
		t.Fatalf("add group: %v", err)
	}
	if err := repo.BorrowKeys(ctx, []string{models.KeyOtokura, models.KeyOnren}, "U1", time.Now()); err != nil {
		t.Fatalf("seed borrow: %v", err)
	}

	d := service.NewDailyReset(repo, msgr, log.New(io.Discard, "", 0))
	d.Run(ctx)

	hs, _ := repo.ListHoldings(ctx)
	if len(hs) != 0 {
		t.Errorf("expected registry cleared, got %+v", hs)
	}
	if msgr.pushCount() != 1 {
		t.Fatalf("expected 1 broadcast, got %d", msgr.pushCount())
	}
	if !strings.Contains(msgr.pushes[0].Text, "鍵保有情報をリセットしました") {
		t.Errorf("unexpected broadcast text: %q", msgr.pushes[0].Text)
	}

	// No audit rows for the individual releases.
	logs, _ := repo.ListLogsSince(ctx, time.Now().Add(-time.Minute))
	if len(logs) != 0 {
		t.Errorf("reset must not audit individual releases: %+v", logs)
	}

	// Safe to run again on an empty registry.
	d.Run(ctx)
	if msgr.pushCount() != 2 {
		t.Errorf("no-op reset should still announce, got %d pushes", msgr.pushCount())
	}
}
