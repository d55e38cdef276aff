// Package service holds the key-lending core: the reservation engine that
// executes borrow/return/handover commands, and the two background jobs
// (overdue scanner, daily reset). External collaborators are consumed
// through the small interfaces below so the core stays testable without
// LINE or Google Sheets.
package service

import (
	"context"
	"errors"
	"log"
	"time"

	"keynow/db"
)

// Messenger delivers outbound chat messages. Implementations retry with a
// bounded backoff and report the final failure; a delivery failure never
// rolls back committed state.
type Messenger interface {
	Reply(ctx context.Context, replyToken, text string) error
	Push(ctx context.Context, to, text string) error
}

// Roster resolves a registration code to a display name.
type Roster interface {
	// Resolve returns ErrCodeNotFound when the code is not on the roster.
	Resolve(ctx context.Context, code string) (string, error)
}

// ErrCodeNotFound is returned by Roster.Resolve for unknown codes.
var ErrCodeNotFound = errors.New("registration code not found")

// Schedule supplies the per-day end-of-use hours the overdue scanner works
// from. EndHoursFor returns every parseable end hour recorded for the date;
// an empty slice means no usable entry.
type Schedule interface {
	EndHoursFor(ctx context.Context, date time.Time) ([]int, error)
}

// pushToGroups broadcasts to every enrolled group. Best effort: a failed
// target is logged and skipped, never aborting the rest.
func pushToGroups(ctx context.Context, repo *db.Repo, m Messenger, text string) {
	groups, err := repo.ListGroups(ctx)
	if err != nil {
		log.Printf("broadcast: list groups: %v", err)
		return
	}
	for _, g := range groups {
		if err := m.Push(ctx, g, text); err != nil {
			log.Printf("broadcast to %s failed: %v", g, err)
		}
	}
}
