package models

import "time"

const LogTable = "keynow_key_logs"

// Audit actions. The overdue scanner is the only writer of ActionNotify;
// the reservation engine writes the other three.
const (
	ActionBorrow   = "借りる"
	ActionReturn   = "返却"
	ActionHandover = "引き継ぎ"
	ActionNotify   = "通知"
)

// KeyLog is the append-only audit trail. Rows are never updated; the only
// deletion path is the operator purge command. It doubles as the durable
// dedup index for overdue notifications.
type KeyLog struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	Action     string    `gorm:"size:16;not null" json:"action"`
	KeyName    string    `gorm:"size:64;not null" json:"keyName"`
	UserName   string    `gorm:"size:120;not null" json:"userName"`
	OccurredAt time.Time `gorm:"index;not null" json:"occurredAt"`
}

func (KeyLog) TableName() string { return LogTable }
