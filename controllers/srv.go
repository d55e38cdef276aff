package controllers

import (
	"keynow/app"
	"keynow/config"
	"keynow/db"
	"keynow/dedup"
	"keynow/service"
)

// Srv bundles what the controllers need.
type Srv struct {
	Repo   *db.Repo
	Engine *service.Engine
	Dedup  *dedup.Store
	Cfg    config.Config
}

func GetSrv(a *app.App) *Srv {
	repo := db.NewRepo(a.DB)
	return &Srv{
		Repo:   repo,
		Engine: service.NewEngine(repo, a.Line, a.Sheets, a.Config.HistoryDays, a.Config.PurgeDays),
		Dedup:  dedup.NewStore(a.RDB, a.Config.WebhookDedupTTL),
		Cfg:    a.Config,
	}
}
