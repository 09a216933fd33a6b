package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/postroom/postroom/models"

	"gorm.io/gorm"
)

var (
	ErrOwnerNotFound   = errors.New("owner account not found")
	ErrAccountNotFound = errors.New("account not found")
	ErrEmailTaken      = errors.New("email already registered")
)

// PostRepository is durable post storage. Listings are ordered by creation
// time descending, with ties broken by descending id.
type PostRepository interface {
	Insert(ctx context.Context, owner models.Uid, text string) (*models.Post, error)
	ListByOwner(ctx context.Context, owner models.Uid) ([]models.Post, error)
	// DeleteByIDAndOwner reports whether a post was removed. Posts owned by
	// someone else are never removed, even when the id matches.
	DeleteByIDAndOwner(ctx context.Context, postID uint64, owner models.Uid) (bool, error)
	CountByOwner(ctx context.Context, owner models.Uid) (int64, error)
}

type AccountRepository interface {
	CreateAccount(ctx context.Context, email, passwordHash string) (*models.Account, error)
	AccountByEmail(ctx context.Context, email string) (*models.Account, error)
	AccountExists(ctx context.Context, id models.Uid) (bool, error)
	// DeleteAccount removes the account along with all of its posts.
	DeleteAccount(ctx context.Context, id models.Uid) error
}

type GormStore struct {
	db *gorm.DB
}

var (
	_ PostRepository    = (*GormStore)(nil)
	_ AccountRepository = (*GormStore)(nil)
)

func NewGormStore(db *gorm.DB) (*GormStore, error) {
	if err := db.AutoMigrate(&models.Account{}, &models.Post{}); err != nil {
		return nil, fmt.Errorf("migrating schema: %w", err)
	}
	return &GormStore{db: db}, nil
}

func (s *GormStore) Ping(ctx context.Context) error {
	return s.db.WithContext(ctx).Exec("SELECT 1").Error
}
