package controllers

import (
	"context"
	"log"
	"net/http"
	"strings"

	"keynow/app"
	"keynow/models"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type WebhookController struct{ *Srv }

func NewWebhookController(s *Srv) *WebhookController { return &WebhookController{Srv: s} }

// LINE webhook envelope, trimmed to the fields the bot reads.
type webhookEnvelope struct {
	Events []webhookEvent `json:"events"`
}

type webhookEvent struct {
	Type           string `json:"type"`
	ReplyToken     string `json:"replyToken"`
	WebhookEventID string `json:"webhookEventId"`
	Source         struct {
		Type    string `json:"type"`
		UserID  string `json:"userId"`
		GroupID string `json:"groupId"`
	} `json:"source"`
	Message struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"message"`
}

// Handle processes one webhook delivery. Events are handled in order within
// a delivery; concurrent deliveries are independent units of work.
func (wc *WebhookController) Handle(c *gin.Context) {
	var in webhookEnvelope
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, app.H{"error": err.Error()})
		return
	}

	for _, ev := range in.Events {
		wc.handleEvent(c.Request.Context(), ev)
	}
	c.JSON(http.StatusOK, app.H{"status": "ok"})
}

func (wc *WebhookController) handleEvent(ctx context.Context, ev webhookEvent) {
	if ev.Type != "message" || ev.Message.Type != "text" {
		return
	}

	// LINE may redeliver an event; a replayed borrow must not run twice.
	deliveryID := ev.WebhookEventID
	if deliveryID == "" {
		deliveryID = uuid.NewString()
	}
	if wc.Dedup != nil {
		if first, err := wc.Dedup.FirstDelivery(ctx, deliveryID); err != nil {
			log.Printf("webhook dedup check failed (%s): %v", deliveryID, err)
		} else if !first {
			log.Printf("webhook event %s already handled, skipping", deliveryID)
			return
		}
	}

	text := strings.TrimSpace(ev.Message.Text)
	userID := ev.Source.UserID
	groupID := ev.Source.GroupID
	replyToken := ev.ReplyToken
	eng := wc.Engine

	switch {
	case userID != "" && strings.HasPrefix(text, "番号:"):
		eng.Register(ctx, userID, strings.TrimPrefix(text, "番号:"), replyToken)

	case groupID != "" && strings.HasPrefix(text, wc.Cfg.GroupEnrollSecret):
		eng.EnrollGroup(ctx, groupID, replyToken)

	case groupID != "" && text == wc.Cfg.GroupDeleteToken:
		eng.RemoveGroup(ctx, groupID, replyToken)

	case text == "鍵確認":
		eng.Status(ctx, replyToken)

	case text == "履歴確認":
		if wc.authorized(ctx, groupID, replyToken) {
			eng.History(ctx, replyToken)
		}

	case text == "リセット鍵情報":
		if wc.authorized(ctx, groupID, replyToken) {
			eng.ResetHoldings(ctx, replyToken)
		}

	case text == "履歴削除":
		if wc.authorized(ctx, groupID, replyToken) {
			eng.PurgeHistory(ctx, replyToken)
		}

	default:
		parts := strings.Fields(text)
		if len(parts) == 2 && isKeyAction(parts[0]) {
			eng.Execute(ctx, parts[0], parts[1], userID, replyToken)
		}
		// Anything else is ordinary chatter: no reply.
	}
}

func isKeyAction(s string) bool {
	switch s {
	case models.ActionBorrow, models.ActionReturn, models.ActionHandover:
		return true
	}
	return false
}

// authorized gates the operator commands to enrolled groups.
func (wc *WebhookController) authorized(ctx context.Context, groupID, replyToken string) bool {
	ok, err := wc.Repo.IsAuthorizedGroup(ctx, groupID)
	if err != nil {
		log.Printf("group auth check failed (%s): %v", groupID, err)
		return false
	}
	if !ok {
		if err := wc.Engine.Msgr.Reply(ctx, replyToken, "このグループは認証されていません。"); err != nil {
			log.Printf("reply failed: %v", err)
		}
	}
	return ok
}
