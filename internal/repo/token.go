package repo

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/soft-connect/server/internal/models"
)

// CreateTokenPair inserts both ledger rows of a session in one transaction,
// so a crash mid-issuance never leaves a half-created session behind.
func (r *GormRepo) CreateTokenPair(ctx context.Context, access, refresh *models.Token) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(access).Error; err != nil {
			return err
		}
		return tx.Create(refresh).Error
	})
}

func (r *GormRepo) CreateToken(ctx context.Context, t *models.Token) error {
	return r.DB.WithContext(ctx).Create(t).Error
}

// ActiveToken looks up the ledger row for a raw token string. A row exists
// only while it is unused; expiry is checked against the row, not the
// claims, so a tampered expiry cannot extend a session.
func (r *GormRepo) ActiveToken(ctx context.Context, raw, tokenType string) (*models.Token, error) {
	var t models.Token
	err := r.DB.WithContext(ctx).
		Where("token = ? AND token_type = ? AND used = ?", raw, tokenType, false).
		First(&t).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTokenRevoked
		}
		return nil, err
	}
	if time.Now().After(t.ExpiresAt) {
		return nil, ErrTokenRevoked
	}
	return &t, nil
}

// RevokeUserSessions marks every unused access and refresh token of the
// user as used: logout is a "log out everywhere" sweep, not a per-pair
// revocation. Marking an already-used row again is a no-op, which keeps
// concurrent logouts idempotent.
func (r *GormRepo) RevokeUserSessions(ctx context.Context, userID uuid.UUID) error {
	return r.DB.WithContext(ctx).Model(&models.Token{}).
		Where("user_id = ? AND used = ? AND token_type IN ?",
			userID, false, []string{models.TokenTypeAccess, models.TokenTypeRefresh}).
		Update("used", true).Error
}

func (r *GormRepo) CountUserTokens(ctx context.Context, userID uuid.UUID, used bool) (int64, error) {
	var count int64
	err := r.DB.WithContext(ctx).Model(&models.Token{}).
		Where("user_id = ? AND used = ?", userID, used).
		Count(&count).Error
	return count, err
}
