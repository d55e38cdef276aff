package db

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"keynow/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	// ErrNotHeld: the key has no current holder (or, for a handover pair,
	// not every key of the pair is out).
	ErrNotHeld = errors.New("key is not borrowed")
	// ErrHolderMismatch: a single-key return by someone other than the holder.
	ErrHolderMismatch = errors.New("key held by another user")
	// ErrSplitHolders: a composite operation found the pair partially held or
	// held by two different users.
	ErrSplitHolders = errors.New("keys are not held by the same user")
)

// BorrowConflictError reports which holdings blocked a borrow.
type BorrowConflictError struct {
	Holdings []models.KeyHolding
}

func (e *BorrowConflictError) Error() string {
	names := make([]string, 0, len(e.Holdings))
	for _, h := range e.Holdings {
		names = append(names, h.KeyName)
	}
	return fmt.Sprintf("already borrowed: %s", strings.Join(names, ","))
}

func (r *Repo) ListHoldings(ctx context.Context) ([]models.KeyHolding, error) {
	var hs []models.KeyHolding
	err := r.DB.WithContext(ctx).Order("key_name").Find(&hs).Error
	return hs, err
}

func (r *Repo) HoldingsFor(ctx context.Context, keys []string) ([]models.KeyHolding, error) {
	var hs []models.KeyHolding
	err := r.DB.WithContext(ctx).
		Where("key_name IN ?", keys).
		Order("key_name").
		Find(&hs).Error
	return hs, err
}

// BorrowKeys assigns every key in the set to holderID with one shared
// timestamp. The whole set succeeds or none of it does: if any key is
// already out the transaction rolls back with *BorrowConflictError.
func (r *Repo) BorrowKeys(ctx context.Context, keys []string, holderID string, at time.Time) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var held []models.KeyHolding
		if err := tx.Where("key_name IN ?", keys).Find(&held).Error; err != nil {
			return err
		}
		if len(held) > 0 {
			return &BorrowConflictError{Holdings: held}
		}

		rows := make([]models.KeyHolding, 0, len(keys))
		for _, k := range keys {
			rows = append(rows, models.KeyHolding{KeyName: k, HolderID: holderID, BorrowedAt: at})
		}
		// DO NOTHING plus the RowsAffected check closes the window between
		// the read above and the insert: a concurrent winner makes this
		// transaction roll back instead of half-applying.
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&rows)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected != int64(len(keys)) {
			return &BorrowConflictError{Holdings: held}
		}
		return nil
	})
}

// ReturnKeys releases the key set. A single key must be returned by its
// holder; a pair may be returned by anyone but only while both keys are out
// and held by one identical user.
func (r *Repo) ReturnKeys(ctx context.Context, keys []string, actorID string) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		held, err := loadSet(tx, keys)
		if err != nil {
			return err
		}

		q := tx.Where("key_name IN ?", keys)
		if len(keys) == 1 {
			if len(held) == 0 {
				return ErrNotHeld
			}
			if held[0].HolderID != actorID {
				return ErrHolderMismatch
			}
			q = q.Where("holder_id = ?", actorID)
		} else {
			if err := sameHolder(held, keys); err != nil {
				return err
			}
			q = q.Where("holder_id = ?", held[0].HolderID)
		}

		res := q.Delete(&models.KeyHolding{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected != int64(len(keys)) {
			return ErrSplitHolders
		}
		return nil
	})
}

// HandoverKeys reassigns the key set to newHolderID with a fresh timestamp.
// Every key of the set must be out, and a pair must share one holder.
func (r *Repo) HandoverKeys(ctx context.Context, keys []string, newHolderID string, at time.Time) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		held, err := loadSet(tx, keys)
		if err != nil {
			return err
		}

		if len(keys) == 1 {
			if len(held) == 0 {
				return ErrNotHeld
			}
		} else if err := sameHolder(held, keys); err != nil {
			return err
		}

		res := tx.Model(&models.KeyHolding{}).
			Where("key_name IN ? AND holder_id = ?", keys, held[0].HolderID).
			Updates(map[string]any{"holder_id": newHolderID, "borrowed_at": at})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected != int64(len(keys)) {
			return ErrSplitHolders
		}
		return nil
	})
}

// ReleaseAll clears every holding. Reserved for the lease reset; safe on an
// already empty registry.
func (r *Repo) ReleaseAll(ctx context.Context) error {
	return r.DB.WithContext(ctx).
		Where("key_name IS NOT NULL").
		Delete(&models.KeyHolding{}).Error
}

func loadSet(tx *gorm.DB, keys []string) ([]models.KeyHolding, error) {
	var held []models.KeyHolding
	err := tx.Where("key_name IN ?", keys).Order("key_name").Find(&held).Error
	return held, err
}

func sameHolder(held []models.KeyHolding, keys []string) error {
	if len(held) != len(keys) {
		return ErrSplitHolders
	}
	for _, h := range held[1:] {
		if h.HolderID != held[0].HolderID {
			return ErrSplitHolders
		}
	}
	return nil
}
