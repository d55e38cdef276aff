package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"keynow/db"
	"keynow/models"

	"gorm.io/gorm"
)

// Engine is the reservation core. Every inbound command lands here; each
// successful mutation appends exactly one audit entry, replies to the
// requester and broadcasts to the enrolled groups, while every failure
// produces only a reply.
type Engine struct {
	Repo   *db.Repo
	Msgr   Messenger
	Roster Roster

	HistoryDays int
	PurgeDays   int

	// Now is swapped out in tests.
	Now func() time.Time
}

func NewEngine(repo *db.Repo, m Messenger, roster Roster, historyDays, purgeDays int) *Engine {
	return &Engine{
		Repo:        repo,
		Msgr:        m,
		Roster:      roster,
		HistoryDays: historyDays,
		PurgeDays:   purgeDays,
		Now:         time.Now,
	}
}

func (e *Engine) reply(ctx context.Context, replyToken, text string) {
	if err := e.Msgr.Reply(ctx, replyToken, text); err != nil {
		log.Printf("reply failed: %v", err)
	}
}

// Broadcast pushes a state-change notification to every enrolled group.
func (e *Engine) Broadcast(ctx context.Context, text string) {
	pushToGroups(ctx, e.Repo, e.Msgr, text)
}

// Execute runs a borrow/return/handover command for one key label.
// action must be one of models.ActionBorrow/ActionReturn/ActionHandover.
func (e *Engine) Execute(ctx context.Context, action, keyLabel, userID, replyToken string) {
	keys, ok := models.ExpandLabel(keyLabel)
	if !ok {
		e.reply(ctx, replyToken, "鍵の種類は「音倉」「音練」「両方」のいずれかを記入してください。")
		return
	}

	registered, err := e.Repo.IsUserRegistered(ctx, userID)
	if err != nil {
		e.reply(ctx, replyToken, fmt.Sprintf("操作中にエラーが発生しました: %v", err))
		return
	}
	if !registered {
		e.reply(ctx, replyToken, "学籍番号が登録されていません。まず「番号:あなたの学籍番号」で登録してください。")
		return
	}

	now := e.Now()
	name := e.Repo.UserName(ctx, userID)
	label := models.AuditLabel(keys)

	var success string
	switch action {
	case models.ActionBorrow:
		err = e.Repo.BorrowKeys(ctx, keys, userID, now)
		success = fmt.Sprintf("%s を %s さんが借りました。", label, name)
	case models.ActionReturn:
		err = e.Repo.ReturnKeys(ctx, keys, userID)
		success = fmt.Sprintf("%s を %s さんが返却しました。", label, name)
	case models.ActionHandover:
		err = e.Repo.HandoverKeys(ctx, keys, userID, now)
		success = fmt.Sprintf("%s を %s さんに引き継ぎました。", label, name)
	default:
		e.reply(ctx, replyToken, "鍵の種類は「音倉」「音練」「両方」のいずれかを記入してください。")
		return
	}

	if err != nil {
		e.reply(ctx, replyToken, e.conflictMessage(ctx, action, keys, err))
		return
	}

	if err := e.Repo.LogKeyAction(ctx, action, label, name, now); err != nil {
		log.Printf("audit append failed: %v", err)
	}
	e.reply(ctx, replyToken, success)
	e.Broadcast(ctx, success)
}

// conflictMessage renders a repo rejection as the user-facing reply, naming
// the current holder where known.
func (e *Engine) conflictMessage(ctx context.Context, action string, keys []string, err error) string {
	var conflict *db.BorrowConflictError
	switch {
	case errors.As(err, &conflict):
		if len(keys) == 2 {
			return "音倉または音練のどちらかが既に借りられています。"
		}
		holder := db.UnknownUserName
		if len(conflict.Holdings) > 0 {
			holder = e.Repo.UserName(ctx, conflict.Holdings[0].HolderID)
		}
		return fmt.Sprintf("%s は既に %s さんが借りています。", keys[0], holder)

	case errors.Is(err, db.ErrNotHeld), errors.Is(err, db.ErrHolderMismatch):
		return fmt.Sprintf("%s は借りられていません、または他のユーザーが所有しています。", keys[0])

	case errors.Is(err, db.ErrSplitHolders):
		if action == models.ActionHandover {
			return "音倉と音練は同じ所有者でないため、同時に引き継ぎできません。"
		}
		return "音倉と音練は同じ所有者でないため、同時に返却できません。"
	}
	return fmt.Sprintf("操作中にエラーが発生しました: %v", err)
}

// Register enrolls a LINE user under a roster registration code.
func (e *Engine) Register(ctx context.Context, userID, code, replyToken string) {
	code = strings.ToUpper(strings.TrimSpace(code))

	if _, err := e.Repo.FindUserByLineID(ctx, userID); err == nil {
		e.reply(ctx, replyToken, "すでに登録済みです。")
		return
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		e.reply(ctx, replyToken, fmt.Sprintf("エラーが発生しました：%v", err))
		return
	}

	name, err := e.Roster.Resolve(ctx, code)
	if errors.Is(err, ErrCodeNotFound) {
		e.reply(ctx, replyToken, "学籍番号が見つかりません。")
		return
	}
	if err != nil {
		e.reply(ctx, replyToken, fmt.Sprintf("エラーが発生しました：%v", err))
		return
	}

	u := &models.User{LineID: userID, StudentNo: code, Name: name}
	if err := e.Repo.CreateUser(ctx, u); err != nil {
		e.reply(ctx, replyToken, fmt.Sprintf("エラーが発生しました：%v", err))
		return
	}
	e.reply(ctx, replyToken, fmt.Sprintf("登録完了：%s（%s）", name, code))
}

// EnrollGroup adds a group to the broadcast targets. Idempotent.
func (e *Engine) EnrollGroup(ctx context.Context, groupID, replyToken string) {
	if err := e.Repo.AddGroup(ctx, groupID); err != nil {
		e.reply(ctx, replyToken, fmt.Sprintf("エラーが発生しました：%v", err))
		return
	}
	e.reply(ctx, replyToken, "このグループを認証済みに登録しました。")
}

// RemoveGroup drops a group from the broadcast targets. Idempotent.
func (e *Engine) RemoveGroup(ctx context.Context, groupID, replyToken string) {
	if err := e.Repo.RemoveGroup(ctx, groupID); err != nil {
		e.reply(ctx, replyToken, fmt.Sprintf("エラーが発生しました：%v", err))
		return
	}
	e.reply(ctx, replyToken, "このグループを認証済みグループから削除しました。")
}

// Status replies with a snapshot of the registry: one line per held key.
func (e *Engine) Status(ctx context.Context, replyToken string) {
	hs, err := e.Repo.ListHoldings(ctx)
	if err != nil {
		e.reply(ctx, replyToken, fmt.Sprintf("エラーが発生しました：%v", err))
		return
	}
	if len(hs) == 0 {
		e.reply(ctx, replyToken, "現在、貸出中の鍵はありません。")
		return
	}
	lines := make([]string, 0, len(hs))
	for _, h := range hs {
		name := e.Repo.UserName(ctx, h.HolderID)
		lines = append(lines, fmt.Sprintf("%s → %s (%s)", h.KeyName, name, h.BorrowedAt.Format("2006/01/02 15:04")))
	}
	e.reply(ctx, replyToken, strings.Join(lines, "\n"))
}

// History replies with the audit trail of the configured window, newest first.
func (e *Engine) History(ctx context.Context, replyToken string) {
	since := e.Now().AddDate(0, 0, -e.HistoryDays)
	logs, err := e.Repo.ListLogsSince(ctx, since)
	if err != nil {
		e.reply(ctx, replyToken, fmt.Sprintf("エラーが発生しました：%v", err))
		return
	}
	if len(logs) == 0 {
		e.reply(ctx, replyToken, fmt.Sprintf("過去%d日間の操作履歴はありません。", e.HistoryDays))
		return
	}
	lines := make([]string, 0, len(logs))
	for _, l := range logs {
		lines = append(lines, fmt.Sprintf("%s - %s: %s が %s",
			l.OccurredAt.Format("2006/01/02 15:04:05"), l.KeyName, l.UserName, l.Action))
	}
	e.reply(ctx, replyToken, fmt.Sprintf("過去%d日間の履歴:\n%s", e.HistoryDays, strings.Join(lines, "\n")))
}

// PurgeHistory deletes audit entries older than the purge window.
func (e *Engine) PurgeHistory(ctx context.Context, replyToken string) {
	cutoff := e.Now().AddDate(0, 0, -e.PurgeDays)
	deleted, err := e.Repo.PurgeLogsBefore(ctx, cutoff)
	if err != nil {
		e.reply(ctx, replyToken, fmt.Sprintf("履歴削除中にエラーが発生しました: %v", err))
		return
	}
	log.Printf("history purge: deleted %d rows older than %s", deleted, cutoff.Format("2006/01/02"))
	e.reply(ctx, replyToken, fmt.Sprintf("%d日以前の履歴を削除しました。", e.PurgeDays))
}

// ResetHoldings is the on-demand lease reset: clears every holding, replies
// to the requester only, no broadcast and no per-key audit entries.
func (e *Engine) ResetHoldings(ctx context.Context, replyToken string) {
	if err := e.Repo.ReleaseAll(ctx); err != nil {
		e.reply(ctx, replyToken, fmt.Sprintf("リセット中にエラーが発生しました: %v", err))
		return
	}
	log.Printf("key holdings reset by operator command")
	e.reply(ctx, replyToken, "鍵の保有情報をリセットしました。")
}
