package models

import "time"

const UserTable = "keynow_users"
const GroupTable = "keynow_groups"

// User links a LINE account to a roster entry. Created on first successful
// registration, never updated or deleted afterwards.
type User struct {
	LineID    string    `gorm:"primaryKey;size:64" json:"lineId"`
	StudentNo string    `gorm:"size:32;not null" json:"studentNo"`
	Name      string    `gorm:"size:120;not null" json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

// Group is an authorized broadcast target: every state-change notification
// is pushed to each enrolled group.
type Group struct {
	GroupID   string    `gorm:"primaryKey;size:64" json:"groupId"`
	CreatedAt time.Time `json:"createdAt"`
}

func (User) TableName() string  { return UserTable }
func (Group) TableName() string { return GroupTable }
