package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/postroom/postroom/models"

	"gorm.io/gorm"
)

func (s *GormStore) Insert(ctx context.Context, owner models.Uid, text string) (*models.Post, error) {
	post := models.Post{
		Text:    text,
		OwnerID: owner,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&models.Account{}).Where("id = ?", owner).Count(&n).Error; err != nil {
			return err
		}
		if n == 0 {
			return ErrOwnerNotFound
		}
		return tx.Create(&post).Error
	})
	if errors.Is(err, ErrOwnerNotFound) || errors.Is(err, gorm.ErrForeignKeyViolated) {
		return nil, ErrOwnerNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("inserting post: %w", err)
	}

	return &post, nil
}

func (s *GormStore) ListByOwner(ctx context.Context, owner models.Uid) ([]models.Post, error) {
	posts := []models.Post{}
	if err := s.db.WithContext(ctx).
		Where("owner_id = ?", owner).
		Order("created_at desc").
		Order("id desc").
		Find(&posts).Error; err != nil {
		return nil, fmt.Errorf("listing posts: %w", err)
	}
	return posts, nil
}

func (s *GormStore) DeleteByIDAndOwner(ctx context.Context, postID uint64, owner models.Uid) (bool, error) {
	res := s.db.WithContext(ctx).Where("id = ? AND owner_id = ?", postID, owner).Delete(&models.Post{})
	if res.Error != nil {
		return false, fmt.Errorf("deleting post %d: %w", postID, res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (s *GormStore) CountByOwner(ctx context.Context, owner models.Uid) (int64, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&models.Post{}).Where("owner_id = ?", owner).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("counting posts: %w", err)
	}
	return n, nil
}
