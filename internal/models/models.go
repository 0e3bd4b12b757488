package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	RoleAdmin   = "admin"
	RoleStudent = "student"
)

const (
	StatusActive   = "active"
	StatusInactive = "inactive"
	StatusPending  = "pending"
)

const (
	TokenTypeAccess       = "access"
	TokenTypeRefresh      = "refresh"
	TokenTypeReset        = "reset"
	TokenTypeVerification = "verification"
)

const (
	PostStatusActive  = "active"
	PostStatusClosed  = "closed"
	PostStatusDeleted = "deleted"
)

type User struct {
	ID        uuid.UUID      `gorm:"type:uuid;primaryKey"                   json:"id"`
	FirstName string         `gorm:"size:42"                                json:"first_name,omitempty"`
	LastName  string         `gorm:"size:42"                                json:"last_name,omitempty"`
	Email     string         `gorm:"size:100;uniqueIndex;not null"          json:"email"`
	Password  string         `gorm:"size:60;not null"                       json:"-"`
	Role      string         `gorm:"size:16;not null;default:student;index" json:"role"`
	Status    string         `gorm:"size:16;not null;default:pending;index" json:"status"`
	Active    bool           `gorm:"not null;default:true"                  json:"active"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index"                                  json:"-"`

	Tokens []Token `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	Posts  []Post  `gorm:"foreignKey:AuthorID"                           json:"-"`
}

func (u *User) BeforeCreate(*gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}

// Token is one row of the token ledger: every issued credential is kept
// here so the server can revoke tokens whose signatures are still valid.
// Revoked rows are marked used, never deleted.
type Token struct {
	ID        uuid.UUID      `gorm:"type:uuid;primaryKey"     json:"id"`
	Token     string         `gorm:"type:text;not null;index" json:"token"`
	UserID    uuid.UUID      `gorm:"type:uuid;not null;index" json:"user_id"`
	TokenType string         `gorm:"size:16;not null"         json:"token_type"`
	ExpiresAt time.Time      `gorm:"not null;index"           json:"expires_at"`
	Used      bool           `gorm:"not null;default:false"   json:"used"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index"                    json:"-"`
}

func (t *Token) BeforeCreate(*gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}

type Post struct {
	ID           uuid.UUID      `gorm:"type:uuid;primaryKey"                  json:"id"`
	Title        string         `gorm:"size:255;not null"                     json:"title"`
	Description  string         `gorm:"type:text;not null"                    json:"description"`
	AuthorID     uuid.UUID      `gorm:"type:uuid;not null;index"              json:"author_id"`
	Views        int            `gorm:"not null;default:0"                    json:"views"`
	LikesCount   int            `gorm:"not null;default:0"                    json:"likes_count"`
	AnswersCount int            `gorm:"not null;default:0"                    json:"answers_count"`
	Status       string         `gorm:"size:16;not null;default:active;index" json:"status"`
	IsSolved     bool           `gorm:"not null;default:false"                json:"is_solved"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index"                                 json:"-"`

	Author  *User    `gorm:"foreignKey:AuthorID"                           json:"author,omitempty"`
	Answers []Answer `gorm:"foreignKey:PostID;constraint:OnDelete:CASCADE" json:"-"`
	Likes   []Like   `gorm:"foreignKey:PostID;constraint:OnDelete:CASCADE" json:"-"`
}

func (p *Post) BeforeCreate(*gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

type Answer struct {
	ID        uuid.UUID      `gorm:"type:uuid;primaryKey"     json:"id"`
	Content   string         `gorm:"type:text;not null"       json:"content"`
	PostID    uuid.UUID      `gorm:"type:uuid;not null;index" json:"post_id"`
	AuthorID  uuid.UUID      `gorm:"type:uuid;not null;index" json:"author_id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index"                    json:"-"`

	Author *User `gorm:"foreignKey:AuthorID" json:"author,omitempty"`
	Post   *Post `gorm:"foreignKey:PostID"   json:"post,omitempty"`
}

func (a *Answer) BeforeCreate(*gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}

// Like targets either a post or an answer, never both. One like per user
// per target.
type Like struct {
	ID       uuid.UUID  `gorm:"type:uuid;primaryKey"                              json:"id"`
	PostID   *uuid.UUID `gorm:"type:uuid;index;uniqueIndex:uniq_like_post_user"   json:"post_id,omitempty"`
	AnswerID *uuid.UUID `gorm:"type:uuid;index;uniqueIndex:uniq_like_answer_user" json:"answer_id,omitempty"`
	UserID   uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:uniq_like_post_user;uniqueIndex:uniq_like_answer_user" json:"user_id"`

	CreatedAt time.Time `json:"created_at"`
}

func (l *Like) BeforeCreate(*gorm.DB) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	return nil
}
