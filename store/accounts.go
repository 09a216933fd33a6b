package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/postroom/postroom/models"

	"gorm.io/gorm"
)

func (s *GormStore) CreateAccount(ctx context.Context, email, passwordHash string) (*models.Account, error) {
	db := s.db.WithContext(ctx)

	var existing models.Account
	if err := db.Find(&existing, "email = ?", email).Error; err != nil {
		return nil, fmt.Errorf("checking for existing account: %w", err)
	}
	if existing.ID != 0 {
		return nil, ErrEmailTaken
	}

	acct := models.Account{
		Email:    email,
		Password: passwordHash,
	}
	if err := db.Create(&acct).Error; err != nil {
		// lost a race with a concurrent signup for the same email
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("creating account: %w", err)
	}
	return &acct, nil
}

func (s *GormStore) AccountByEmail(ctx context.Context, email string) (*models.Account, error) {
	var acct models.Account
	if err := s.db.WithContext(ctx).First(&acct, "email = ?", email).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("looking up account: %w", err)
	}
	return &acct, nil
}

func (s *GormStore) AccountExists(ctx context.Context, id models.Uid) (bool, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&models.Account{}).Where("id = ?", id).Count(&n).Error; err != nil {
		return false, fmt.Errorf("looking up account %d: %w", id, err)
	}
	return n > 0, nil
}

func (s *GormStore) DeleteAccount(ctx context.Context, id models.Uid) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// posts go explicitly too; not every dialect enforces the cascade
		if err := tx.Where("owner_id = ?", id).Delete(&models.Post{}).Error; err != nil {
			return fmt.Errorf("deleting posts of account %d: %w", id, err)
		}
		res := tx.Where("id = ?", id).Delete(&models.Account{})
		if res.Error != nil {
			return fmt.Errorf("deleting account %d: %w", id, res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrAccountNotFound
		}
		return nil
	})
}
