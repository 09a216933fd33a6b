package models

import (
	"time"
)

// Uid identifies a local account. Posts carry the Uid of their owner.
type Uid uint64

type Account struct {
	ID        Uid    `gorm:"primarykey"`
	Email     string `gorm:"uniqueIndex;size:255;not null"`
	Password  string `gorm:"size:255;not null" json:"-"`
	CreatedAt time.Time
	UpdatedAt time.Time

	Posts []Post `gorm:"foreignKey:OwnerID;constraint:OnDelete:CASCADE"`
}

// Post is a single text post. OwnerID is set at creation and never changes.
type Post struct {
	ID        uint64    `gorm:"primarykey" json:"id"`
	Text      string    `gorm:"type:text;not null" json:"text"`
	OwnerID   Uid       `gorm:"not null;index:idx_post_owner_created,priority:1" json:"user_id"`
	CreatedAt time.Time `gorm:"not null;index:idx_post_owner_created,priority:2" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}
