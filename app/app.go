package app

import (
	"context"
	"log"
	"time"

	"keynow/config"
	"keynow/db"
	"keynow/line"
	"keynow/sheets"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Aliases so handlers can stay short.
type Ctx = gin.Context
type H = gin.H

// App aggregates the process-wide dependencies.
type App struct {
	Router *gin.Engine
	DB     *gorm.DB
	RDB    *redis.Client
	Line   *line.Client
	Sheets *sheets.Client
	Config config.Config
}

func MustNew() *App {
	cfg := config.Load()

	// --- DB: Postgres ---
	dbConn := db.ConnectDB(cfg)

	// --- Redis ---
	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPwd, DB: 0})
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatalf("redis: %v", err)
	}

	// --- Collaborators: LINE + Google Sheets ---
	lineClient := line.NewClient(cfg.LineChannelToken, cfg.LineReplyURL, cfg.LinePushURL)

	sheetsClient := sheets.NewClient(
		cfg.SheetsAPIKey,
		cfg.RosterSpreadsheetID, cfg.RosterRange,
		cfg.ScheduleSpreadsheetID, cfg.ScheduleRange,
	)
	// An unreachable roster or schedule sheet is a startup error, not
	// something to degrade around.
	pingCtx, pingCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer pingCancel()
	if err := sheetsClient.Ping(pingCtx); err != nil {
		log.Fatalf("sheets: %v", err)
	}
	log.Println("Google Sheets reachable")

	// --- Gin ---
	r := gin.Default()
	useCORS(r, cfg.WebOrigin)

	return &App{
		Router: r,
		DB:     dbConn,
		RDB:    rdb,
		Line:   lineClient,
		Sheets: sheetsClient,
		Config: cfg,
	}
}

func (a *App) Close() { _ = a.RDB.Close() }
