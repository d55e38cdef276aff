package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config 从环境变量读取
type Config struct {
	Port string

	DBHost     string
	DBUser     string
	DBPassword string
	DBName     string
	DBPort     string

	RedisAddr string
	RedisPwd  string

	WebOrigin string

	LineChannelToken string
	LineReplyURL     string
	LinePushURL      string

	GroupEnrollSecret string
	GroupDeleteToken  string

	SheetsAPIKey          string
	RosterSpreadsheetID   string
	RosterRange           string
	ScheduleSpreadsheetID string
	ScheduleRange         string

	DefaultCutoff   string // "HH:MM", overdue fallback when the schedule has no usable entry
	ScanInterval    time.Duration
	HistoryDays     int
	PurgeDays       int
	WebhookDedupTTL time.Duration
}

func LoadEnv() {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, using process environment")
	}
}

func Load() Config {
	get := func(k, def string) string {
		v := os.Getenv(k)
		if v == "" {
			return def
		}
		return v
	}
	getInt := func(k string, def int) int {
		if n, err := strconv.Atoi(os.Getenv(k)); err == nil && n > 0 {
			return n
		}
		return def
	}

	return Config{
		Port: get("PORT", "5050"),

		DBHost:     get("DB_HOST", "127.0.0.1"),
		DBUser:     get("DB_USER", "postgres"),
		DBPassword: os.Getenv("DB_PASSWORD"),
		DBName:     get("DB_NAME", "keynow"),
		DBPort:     get("DB_PORT", "5432"),

		RedisAddr: get("REDIS_ADDR", "127.0.0.1:6379"),
		RedisPwd:  os.Getenv("REDIS_PASSWORD"),

		WebOrigin: get("WEB_ORIGIN", "http://localhost:3000"),

		LineChannelToken: os.Getenv("LINE_CHANNEL_TOKEN"),
		LineReplyURL:     get("LINE_REPLY_URL", "https://api.line.me/v2/bot/message/reply"),
		LinePushURL:      get("LINE_PUSH_URL", "https://api.line.me/v2/bot/message/push"),

		GroupEnrollSecret: get("GROUP_ENROLL_SECRET", "OPUS#2024&"),
		GroupDeleteToken:  get("GROUP_DELETE_TOKEN", "OPUS&Delete"),

		SheetsAPIKey:          os.Getenv("SHEETS_API_KEY"),
		RosterSpreadsheetID:   os.Getenv("ROSTER_SPREADSHEET_ID"),
		RosterRange:           get("ROSTER_RANGE", "名簿!A:B"),
		ScheduleSpreadsheetID: os.Getenv("SCHEDULE_SPREADSHEET_ID"),
		ScheduleRange:         get("SCHEDULE_RANGE", "予約!A:B"),

		DefaultCutoff:   get("DEFAULT_CUTOFF", "20:55"),
		ScanInterval:    time.Duration(getInt("SCAN_INTERVAL_MINUTES", 3)) * time.Minute,
		HistoryDays:     getInt("HISTORY_DAYS", 30),
		PurgeDays:       getInt("PURGE_DAYS", 10),
		WebhookDedupTTL: time.Duration(getInt("WEBHOOK_DEDUP_TTL_MINUTES", 60)) * time.Minute,
	}
}
