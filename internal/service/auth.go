package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/soft-connect/server/internal/hash"
	"github.com/soft-connect/server/internal/logging"
	"github.com/soft-connect/server/internal/models"
	"github.com/soft-connect/server/internal/repo"
	"github.com/soft-connect/server/internal/tokens"
)

// AuthService owns the session lifecycle: register, login, refresh, logout.
// It is built once with its dependencies resolved.
type AuthService struct {
	Repo   *repo.GormRepo
	Secret []byte
}

type TokenPair struct {
	AccessToken  string
	RefreshToken string
	AccessExp    time.Time
	RefreshExp   time.Time
}

// issuePair signs an access+refresh pair and records both ledger rows
// atomically. Login and register each produce exactly one pair.
func (s *AuthService) issuePair(ctx context.Context, userID uuid.UUID) (*TokenPair, error) {
	accessToken, accessExp, err := tokens.Sign(userID, models.TokenTypeAccess, s.Secret)
	if err != nil {
		return nil, err
	}
	refreshToken, refreshExp, err := tokens.Sign(userID, models.TokenTypeRefresh, s.Secret)
	if err != nil {
		return nil, err
	}

	access := &models.Token{
		Token:     accessToken,
		UserID:    userID,
		TokenType: models.TokenTypeAccess,
		ExpiresAt: accessExp,
	}
	refresh := &models.Token{
		Token:     refreshToken,
		UserID:    userID,
		TokenType: models.TokenTypeRefresh,
		ExpiresAt: refreshExp,
	}
	if err := s.Repo.CreateTokenPair(ctx, access, refresh); err != nil {
		return nil, err
	}

	return &TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		AccessExp:    accessExp,
		RefreshExp:   refreshExp,
	}, nil
}

func (s *AuthService) Register(ctx context.Context, email, password string) (*models.User, *TokenPair, error) {
	l := logging.FromContext(ctx).With("svc", "auth.register")

	pwHash, err := hash.HashPassword(password)
	if err != nil {
		l.Error("register failed", "reason", "cannot hash password", "error", err)
		return nil, nil, err
	}

	user := &models.User{
		Email:    email,
		Password: pwHash,
		Role:     models.RoleStudent,
		Status:   models.StatusPending,
	}
	if err := s.Repo.CreateUserIfNotExists(ctx, user); err != nil {
		l.Warn("register failed", "error", err)
		return nil, nil, err
	}

	pair, err := s.issuePair(ctx, user.ID)
	if err != nil {
		l.Error("register failed", "reason", "token issuance", "error", err)
		return nil, nil, err
	}

	l.Info("user registered", "user_id", user.ID)
	return user, pair, nil
}

func (s *AuthService) Login(ctx context.Context, email, password string) (*models.User, *TokenPair, error) {
	l := logging.FromContext(ctx).With("svc", "auth.login")

	user, err := s.Repo.UserByCredentials(ctx, email, password)
	if err != nil {
		l.Warn("login failed", "error", err)
		return nil, nil, err
	}

	pair, err := s.issuePair(ctx, user.ID)
	if err != nil {
		l.Error("login failed", "reason", "token issuance", "error", err)
		return nil, nil, err
	}

	l.Info("user logged in", "user_id", user.ID)
	return user, pair, nil
}

// Refresh mints a new access token from a valid refresh token. The refresh
// token itself is not rotated: it stays valid until its own expiry or a
// logout sweep.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (string, time.Time, uuid.UUID, error) {
	l := logging.FromContext(ctx).With("svc", "auth.refresh")

	claims, err := tokens.Parse(refreshToken, s.Secret)
	if err != nil {
		return "", time.Time{}, uuid.Nil, tokens.ErrInvalidToken
	}
	if claims.Type != models.TokenTypeRefresh {
		return "", time.Time{}, uuid.Nil, tokens.ErrInvalidToken
	}
	userID, err := claims.UserID()
	if err != nil {
		return "", time.Time{}, uuid.Nil, tokens.ErrInvalidToken
	}

	if _, err := s.Repo.ActiveToken(ctx, refreshToken, models.TokenTypeRefresh); err != nil {
		l.Warn("refresh rejected", "user_id", userID, "error", err)
		return "", time.Time{}, uuid.Nil, err
	}

	accessToken, accessExp, err := tokens.Sign(userID, models.TokenTypeAccess, s.Secret)
	if err != nil {
		return "", time.Time{}, uuid.Nil, err
	}
	row := &models.Token{
		Token:     accessToken,
		UserID:    userID,
		TokenType: models.TokenTypeAccess,
		ExpiresAt: accessExp,
	}
	if err := s.Repo.CreateToken(ctx, row); err != nil {
		return "", time.Time{}, uuid.Nil, err
	}

	l.Info("access token refreshed", "user_id", userID)
	return accessToken, accessExp, userID, nil
}

// Logout revokes every open session of the token's subject. An access token
// that no longer parses means the session is already gone, so that case is
// a no-op rather than an error.
func (s *AuthService) Logout(ctx context.Context, accessToken string) error {
	l := logging.FromContext(ctx).With("svc", "auth.logout")

	claims, err := tokens.Parse(accessToken, s.Secret)
	if err != nil {
		l.Warn("logout with invalid access token, nothing to revoke")
		return nil
	}
	userID, err := claims.UserID()
	if err != nil {
		return nil
	}

	if err := s.Repo.RevokeUserSessions(ctx, userID); err != nil {
		l.Error("logout failed", "user_id", userID, "error", err)
		return err
	}

	l.Info("user logged out", "user_id", userID)
	return nil
}
