package repositories

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"clubhouse/internal/models/db_models"
)

type ForumRepository interface {
	CreatePost(ctx context.Context, post *db_models.ForumPost) error
	ListPosts(ctx context.Context, page, pageSize int) ([]db_models.ForumPost, int64, error)
	FindPostById(ctx context.Context, id uuid.UUID) (*db_models.ForumPost, error)
	DeletePost(ctx context.Context, id uuid.UUID) error
	AddComment(ctx context.Context, comment *db_models.ForumComment) error
}

type forumRepository struct {
	db *gorm.DB
}

func NewForumRepository(db *gorm.DB) ForumRepository {
	return &forumRepository{db: db}
}

func (f *forumRepository) CreatePost(ctx context.Context, post *db_models.ForumPost) error {
	return f.db.WithContext(ctx).Create(post).Error
}

func (f *forumRepository) ListPosts(ctx context.Context, page, pageSize int) ([]db_models.ForumPost, int64, error) {
	var (
		posts []db_models.ForumPost
		total int64
	)
	if err := f.db.WithContext(ctx).Model(&db_models.ForumPost{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	offset := (page - 1) * pageSize
	err := f.db.WithContext(ctx).
		Order("created_at DESC").
		Offset(offset).
		Limit(pageSize).
		Find(&posts).Error
	return posts, total, err
}

func (f *forumRepository) FindPostById(ctx context.Context, id uuid.UUID) (*db_models.ForumPost, error) {
	var post db_models.ForumPost
	err := f.db.WithContext(ctx).
		Preload("Comments", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at")
		}).
		First(&post, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &post, nil
}

// DeletePost removes comments explicitly; SQLite does not enforce the cascade without a pragma.
func (f *forumRepository) DeletePost(ctx context.Context, id uuid.UUID) error {
	return f.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("post_id = ?", id).Delete(&db_models.ForumComment{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", id).Delete(&db_models.ForumPost{}).Error
	})
}

func (f *forumRepository) AddComment(ctx context.Context, comment *db_models.ForumComment) error {
	return f.db.WithContext(ctx).Create(comment).Error
}
