package db

import (
	"context"

	"keynow/models"

	"gorm.io/gorm"
)

// UnknownUserName stands in wherever a holder id no longer resolves to a
// registered user.
const UnknownUserName = "不明なユーザー"

type Repo struct{ DB *gorm.DB }

func NewRepo(conn *gorm.DB) *Repo { return &Repo{DB: conn} }

// Users

func (r *Repo) FindUserByLineID(ctx context.Context, lineID string) (*models.User, error) {
	var u models.User
	if err := r.DB.WithContext(ctx).First(&u, "line_id = ?", lineID).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *Repo) IsUserRegistered(ctx context.Context, lineID string) (bool, error) {
	var n int64
	err := r.DB.WithContext(ctx).Model(&models.User{}).
		Where("line_id = ?", lineID).
		Count(&n).Error
	return n > 0, err
}

func (r *Repo) CreateUser(ctx context.Context, u *models.User) error {
	return r.DB.WithContext(ctx).Create(u).Error
}

// UserName resolves a holder id to a display name, falling back to
// UnknownUserName so message rendering never blocks on a missing row.
func (r *Repo) UserName(ctx context.Context, lineID string) string {
	u, err := r.FindUserByLineID(ctx, lineID)
	if err != nil {
		return UnknownUserName
	}
	return u.Name
}
