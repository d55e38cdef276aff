package service

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"keynow/db"
	"keynow/models"
)

// OverdueScanner polls the registry and notifies holders whose keys are out
// past the day's cutoff. At most one notification per (holder, key, day):
// the audit log is the dedup index, so a restart mid-day cannot re-notify.
type OverdueScanner struct {
	Repo     *db.Repo
	Msgr     Messenger
	Schedule Schedule
	Interval time.Duration
	Logger   *log.Logger

	// Now is swapped out in tests.
	Now func() time.Time

	defaultCutoff int // minutes since midnight

	cancel context.CancelFunc
	done   chan struct{}
}

// cutoffCeilingHour: schedule entries ending at or after this hour are
// ignored and the configured default stands.
const cutoffCeilingHour = 21

// NewOverdueScanner creates a scanner but does not start it. defaultCutoff
// is "HH:MM"; an unparseable value falls back to 20:55.
func NewOverdueScanner(repo *db.Repo, m Messenger, sched Schedule, defaultCutoff string, interval time.Duration, logger *log.Logger) *OverdueScanner {
	if interval <= 0 {
		interval = 3 * time.Minute
	}
	return &OverdueScanner{
		Repo:          repo,
		Msgr:          m,
		Schedule:      sched,
		Interval:      interval,
		Logger:        logger,
		Now:           time.Now,
		defaultCutoff: parseClock(defaultCutoff, 20*60+55),
		done:          make(chan struct{}),
	}
}

func parseClock(s string, def int) int {
	hh, mm, ok := strings.Cut(s, ":")
	if !ok {
		return def
	}
	h, err1 := strconv.Atoi(hh)
	m, err2 := strconv.Atoi(mm)
	if err1 != nil || err2 != nil || h < 0 || h > 23 || m < 0 || m > 59 {
		return def
	}
	return h*60 + m
}

// Start begins the background scan loop. The loop exits when ctx is
// cancelled or Stop is called.
func (s *OverdueScanner) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	go s.loop(ctx)
	s.Logger.Printf("overdue scanner started (interval=%s)", s.Interval)
}

// Stop signals the scanner to exit and waits for it to finish.
func (s *OverdueScanner) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	<-s.done
}

func (s *OverdueScanner) loop(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Scan(ctx)
		}
	}
}

// Scan runs one overdue pass. Exported so tests can drive it directly.
func (s *OverdueScanner) Scan(ctx context.Context) {
	now := s.Now()

	holdings, err := s.Repo.ListHoldings(ctx)
	if err != nil {
		s.Logger.Printf("overdue scan: list holdings: %v", err)
		return
	}
	if len(holdings) == 0 {
		return
	}

	cutoff := s.cutoffFor(ctx, now)
	if now.Hour()*60+now.Minute() <= cutoff {
		return
	}

	// Group overdue keys by holder, keeping the repo's key order stable.
	var holders []string
	byHolder := make(map[string][]string)
	for _, h := range holdings {
		if _, seen := byHolder[h.HolderID]; !seen {
			holders = append(holders, h.HolderID)
		}
		byHolder[h.HolderID] = append(byHolder[h.HolderID], h.KeyName)
	}

	for _, holderID := range holders {
		if err := s.notifyHolder(ctx, holderID, byHolder[holderID], now); err != nil {
			// One holder's failure must not block the rest of the scan.
			s.Logger.Printf("overdue notify failed (%s): %v", holderID, err)
		}
	}
}

func (s *OverdueScanner) notifyHolder(ctx context.Context, holderID string, keys []string, now time.Time) error {
	name := s.Repo.UserName(ctx, holderID)

	var pending []string
	for _, k := range keys {
		notified, err := s.Repo.HasNotifyOn(ctx, k, name, now)
		if err != nil {
			return fmt.Errorf("dedup probe for %s: %w", k, err)
		}
		if !notified {
			pending = append(pending, k)
		}
	}
	if len(pending) == 0 {
		return nil
	}

	keyStr := strings.Join(pending, "・")
	direct := fmt.Sprintf("%sの返却期限が過ぎています。%s さん、返却してください。", keyStr, name)
	summary := fmt.Sprintf("%sの返却期限が過ぎています。%s さんへ通知しました。", keyStr, name)

	if err := s.Msgr.Push(ctx, holderID, direct); err != nil {
		return fmt.Errorf("push to holder: %w", err)
	}
	pushToGroups(ctx, s.Repo, s.Msgr, summary)

	for _, k := range pending {
		if err := s.Repo.LogKeyAction(ctx, models.ActionNotify, k, name, now); err != nil {
			return fmt.Errorf("record notify for %s: %w", k, err)
		}
	}
	s.Logger.Printf("overdue notice: %s (holder %s)", keyStr, name)
	return nil
}

// cutoffFor resolves the day's cutoff in minutes since midnight. Among the
// schedule's end hours for the date, the last one below the ceiling wins;
// a lookup failure or no usable entry keeps the default.
func (s *OverdueScanner) cutoffFor(ctx context.Context, date time.Time) int {
	hours, err := s.Schedule.EndHoursFor(ctx, date)
	if err != nil {
		s.Logger.Printf("overdue scan: schedule lookup failed, using default cutoff: %v", err)
		return s.defaultCutoff
	}
	cutoff := s.defaultCutoff
	for _, h := range hours {
		if h < cutoffCeilingHour {
			cutoff = h * 60
		}
	}
	return cutoff
}
