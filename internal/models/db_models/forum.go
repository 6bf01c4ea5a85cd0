package db_models

import "github.com/google/uuid"

type ForumPost struct {
	BaseModel
	Title          string    `gorm:"not null"`
	Body           string    `gorm:"not null"`
	AuthorID       uuid.UUID `gorm:"type:uuid;index"`
	AuthorUsername string
	Comments       []ForumComment `gorm:"foreignKey:PostID;constraint:OnDelete:CASCADE"`
}

type ForumComment struct {
	BaseModel
	PostID         uuid.UUID `gorm:"type:uuid;index;not null"`
	Body           string    `gorm:"not null"`
	AuthorID       uuid.UUID `gorm:"type:uuid"`
	AuthorUsername string
}
