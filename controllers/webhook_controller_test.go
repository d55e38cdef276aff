package controllers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"keynow/config"
	"keynow/controllers"
	"keynow/db"
	"keynow/models"
	"keynow/routes"
	"keynow/service"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type recordingMessenger struct {
	mu      sync.Mutex
	replies []string
	pushes  []string
}

func (m *recordingMessenger) Reply(_ context.Context, _, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.replies = append(m.replies, text)
	return nil
}

func (m *recordingMessenger) Push(_ context.Context, _, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pushes = append(m.pushes, text)
	return nil
}

type staticRoster map[string]string

func (r staticRoster) Resolve(_ context.Context, code string) (string, error) {
	if name, ok := r[code]; ok {
		return name, nil
	}
	return "", service.ErrCodeNotFound
}

func newTestRouter(t *testing.T) (*gin.Engine, *db.Repo, *recordingMessenger) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	conn, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, _ := conn.DB()
	sqlDB.SetMaxOpenConns(1)
	if err := db.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	repo := db.NewRepo(conn)
	msgr := &recordingMessenger{}
	cfg := config.Config{
		GroupEnrollSecret: "OPUS#2024&",
		GroupDeleteToken:  "OPUS&Delete",
		HistoryDays:       30,
		PurgeDays:         10,
	}
	s := &controllers.Srv{
		Repo:   repo,
		Engine: service.NewEngine(repo, msgr, staticRoster{"B1234": "山田"}, cfg.HistoryDays, cfg.PurgeDays),
		Cfg:    cfg,
	}

	r := gin.New()
	routes.RegisterRoutes(r, s)
	return r, repo, msgr
}

func postWebhook(t *testing.T, r *gin.Engine, events ...map[string]any) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(map[string]any{"events": events})
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func textEvent(text, userID, groupID string) map[string]any {
	return map[string]any{
		"type":       "message",
		"replyToken": "rt",
		"source":     map[string]any{"type": "user", "userId": userID, "groupId": groupID},
		"message":    map[string]any{"type": "text", "text": text},
	}
}

func TestWebhook_BorrowCommand(t *testing.T) {
	r, repo, msgr := newTestRouter(t)
	ctx := context.Background()
	err := repo.CreateUser(ctx, &models.User{LineID: "U1", StudentNo: "B1234", Name: "山田"})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}

	w := postWebhook(t, r, textEvent("借りる 音倉", "U1", ""))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	hs, _ := repo.ListHoldings(ctx)
	if len(hs) != 1 || hs[0].HolderID != "U1" {
		t.Fatalf("expected 音倉 held by U1, got %+v", hs)
	}
	if len(msgr.replies) != 1 || msgr.replies[0] != "音倉 を 山田 さんが借りました。" {
		t.Errorf("unexpected replies: %v", msgr.replies)
	}
}

func TestWebhook_Registration(t *testing.T) {
	r, repo, msgr := newTestRouter(t)

	postWebhook(t, r, textEvent("番号:b1234", "U2", ""))

	if len(msgr.replies) != 1 || msgr.replies[0] != "登録完了：山田（B1234）" {
		t.Fatalf("unexpected replies: %v", msgr.replies)
	}
	if _, err := repo.FindUserByLineID(context.Background(), "U2"); err != nil {
		t.Errorf("user not persisted: %v", err)
	}
}

func TestWebhook_GroupEnrollment(t *testing.T) {
	r, repo, msgr := newTestRouter(t)

	postWebhook(t, r, textEvent("OPUS#2024&", "U1", "G1"))
	if len(msgr.replies) != 1 || msgr.replies[0] != "このグループを認証済みに登録しました。" {
		t.Fatalf("unexpected replies: %v", msgr.replies)
	}
	ok, _ := repo.IsAuthorizedGroup(context.Background(), "G1")
	if !ok {
		t.Error("G1 should be enrolled")
	}

	postWebhook(t, r, textEvent("OPUS&Delete", "U1", "G1"))
	ok, _ = repo.IsAuthorizedGroup(context.Background(), "G1")
	if ok {
		t.Error("G1 should be removed")
	}
}

func TestWebhook_OperatorCommandsNeedEnrolledGroup(t *testing.T) {
	r, _, msgr := newTestRouter(t)

	for _, cmd := range []string{"履歴確認", "リセット鍵情報", "履歴削除"} {
		postWebhook(t, r, textEvent(cmd, "U1", "G-unauthorized"))
	}

	if len(msgr.replies) != 3 {
		t.Fatalf("expected 3 rejections, got %v", msgr.replies)
	}
	for _, got := range msgr.replies {
		if got != "このグループは認証されていません。" {
			t.Errorf("unexpected reply: %q", got)
		}
	}
}

func TestWebhook_IgnoresChatterAndNonText(t *testing.T) {
	r, _, msgr := newTestRouter(t)

	w := postWebhook(t, r,
		textEvent("おはよう", "U1", ""),
		map[string]any{"type": "follow"},
		map[string]any{
			"type":       "message",
			"replyToken": "rt",
			"source":     map[string]any{"type": "user", "userId": "U1"},
			"message":    map[string]any{"type": "sticker"},
		},
	)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if len(msgr.replies) != 0 {
		t.Errorf("chatter must not be replied to: %v", msgr.replies)
	}
}

func TestWebhook_StatusQuery(t *testing.T) {
	r, repo, msgr := newTestRouter(t)

	postWebhook(t, r, textEvent("鍵確認", "U1", ""))
	if len(msgr.replies) != 1 || msgr.replies[0] != "現在、貸出中の鍵はありません。" {
		t.Fatalf("unexpected replies: %v", msgr.replies)
	}

	err := repo.CreateUser(context.Background(), &models.User{LineID: "U1", StudentNo: "B1234", Name: "山田"})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	postWebhook(t, r, textEvent("借りる 両方", "U1", ""))
	postWebhook(t, r, textEvent("鍵確認", "U1", ""))

	last := msgr.replies[len(msgr.replies)-1]
	if last == "現在、貸出中の鍵はありません。" {
		t.Errorf("status should list the holdings, got %q", last)
	}
}
