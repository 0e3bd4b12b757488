package repo

import (
	"errors"

	"gorm.io/gorm"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserAlreadyExists  = errors.New("user already exists")
	ErrNotFound           = errors.New("record not found")
	ErrTokenRevoked       = errors.New("token revoked or expired")
)

type GormRepo struct {
	DB *gorm.DB
}
