package controllers

import (
	"net/http"
	"strconv"
	"time"

	"keynow/app"

	"github.com/gin-gonic/gin"
)

// KeysController serves the read-only JSON views used by the status page.
type KeysController struct{ *Srv }

func NewKeysController(s *Srv) *KeysController { return &KeysController{Srv: s} }

type holdingView struct {
	KeyName    string    `json:"keyName"`
	HolderName string    `json:"holderName"`
	BorrowedAt time.Time `json:"borrowedAt"`
}

func (kc *KeysController) ListHoldings(c *gin.Context) {
	hs, err := kc.Repo.ListHoldings(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, app.H{"error": err.Error()})
		return
	}
	views := make([]holdingView, 0, len(hs))
	for _, h := range hs {
		views = append(views, holdingView{
			KeyName:    h.KeyName,
			HolderName: kc.Repo.UserName(c.Request.Context(), h.HolderID),
			BorrowedAt: h.BorrowedAt,
		})
	}
	c.JSON(http.StatusOK, app.H{"keys": views})
}

func (kc *KeysController) ListLogs(c *gin.Context) {
	days, _ := strconv.Atoi(c.DefaultQuery("days", strconv.Itoa(kc.Cfg.HistoryDays)))
	if days <= 0 || days > kc.Cfg.HistoryDays {
		days = kc.Cfg.HistoryDays
	}
	logs, err := kc.Repo.ListLogsSince(c.Request.Context(), time.Now().AddDate(0, 0, -days))
	if err != nil {
		c.JSON(http.StatusInternalServerError, app.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, app.H{"logs": logs})
}
