package service

import (
	"context"
	"log"
	"time"

	"keynow/db"
)

// DailyReset clears every key holding at local midnight and announces the
// reset to the enrolled groups. The individual releases are not audited.
type DailyReset struct {
	Repo   *db.Repo
	Msgr   Messenger
	Logger *log.Logger

	// Now is swapped out in tests.
	Now func() time.Time

	cancel context.CancelFunc
	done   chan struct{}
}

func NewDailyReset(repo *db.Repo, m Messenger, logger *log.Logger) *DailyReset {
	return &DailyReset{
		Repo:   repo,
		Msgr:   m,
		Logger: logger,
		Now:    time.Now,
		done:   make(chan struct{}),
	}
}

// Start arms a timer for the next local midnight and re-arms it after each
// firing. The loop exits when ctx is cancelled or Stop is called.
func (d *DailyReset) Start(ctx context.Context) {
	ctx, d.cancel = context.WithCancel(ctx)
	go d.loop(ctx)
	d.Logger.Printf("daily reset scheduled (next at %s)", nextMidnight(d.Now()).Format("2006/01/02 15:04"))
}

// Stop signals the job to exit and waits for it to finish.
func (d *DailyReset) Stop() {
	if d.cancel != nil {
		d.cancel()
	}
	<-d.done
}

func (d *DailyReset) loop(ctx context.Context) {
	defer close(d.done)

	for {
		timer := time.NewTimer(time.Until(nextMidnight(d.Now())))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			d.Run(ctx)
		}
	}
}

// Run performs one scheduled reset. Exported so tests can drive it directly.
func (d *DailyReset) Run(ctx context.Context) {
	if err := d.Repo.ReleaseAll(ctx); err != nil {
		d.Logger.Printf("daily reset failed: %v", err)
		return
	}
	pushToGroups(ctx, d.Repo, d.Msgr, "24時を過ぎました。(若しくは手動操作により)本日の鍵保有情報をリセットしました。")
	d.Logger.Printf("daily reset: all key holdings cleared")
}

func nextMidnight(now time.Time) time.Time {
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location()).AddDate(0, 0, 1)
}
