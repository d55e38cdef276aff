package db

import (
	"context"

	"keynow/models"

	"gorm.io/gorm/clause"
)

// Groups (authorized broadcast targets). Enrollment and removal are both
// idempotent: enrolling twice leaves one row, removing an absent group is a
// no-op success.

func (r *Repo) AddGroup(ctx context.Context, groupID string) error {
	return r.DB.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.Group{GroupID: groupID}).Error
}

func (r *Repo) RemoveGroup(ctx context.Context, groupID string) error {
	return r.DB.WithContext(ctx).
		Delete(&models.Group{}, "group_id = ?", groupID).Error
}

func (r *Repo) IsAuthorizedGroup(ctx context.Context, groupID string) (bool, error) {
	if groupID == "" {
		return false, nil
	}
	var n int64
	err := r.DB.WithContext(ctx).Model(&models.Group{}).
		Where("group_id = ?", groupID).
		Count(&n).Error
	return n > 0, err
}

func (r *Repo) ListGroups(ctx context.Context) ([]string, error) {
	var ids []string
	err := r.DB.WithContext(ctx).Model(&models.Group{}).
		Order("created_at").
		Pluck("group_id", &ids).Error
	return ids, err
}
