package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"clubhouse/internal/models/db_models"
	"clubhouse/internal/models/request_models"
	"clubhouse/internal/models/response_models"
	"clubhouse/internal/repositories"
	"clubhouse/pkg/utils"
)

const maxForumPageSize = 100

type ForumService interface {
	ListPosts(ctx context.Context, page, pageSize int) (*response_models.PageResponse[db_models.ForumPost], error)
	CreatePost(ctx context.Context, requester Requester, request request_models.CreatePostRequest) (*db_models.ForumPost, error)
	GetPost(ctx context.Context, id uuid.UUID) (*db_models.ForumPost, error)
	DeletePost(ctx context.Context, requester Requester, id uuid.UUID) error
	AddComment(ctx context.Context, requester Requester, postID uuid.UUID, request request_models.CreateCommentRequest) (*db_models.ForumComment, error)
}

type forumService struct {
	forumRepo repositories.ForumRepository
}

func NewForumService(forumRepo repositories.ForumRepository) ForumService {
	return &forumService{forumRepo: forumRepo}
}

func (f *forumService) ListPosts(ctx context.Context, page, pageSize int) (*response_models.PageResponse[db_models.ForumPost], error) {
	if page < 1 {
		return nil, utils.ErrInvalidPage
	}
	if pageSize < 1 || pageSize > maxForumPageSize {
		return nil, utils.ErrInvalidPageSize
	}

	posts, total, err := f.forumRepo.ListPosts(ctx, page, pageSize)
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", utils.ErrDatabaseError)
	}
	if posts == nil {
		posts = []db_models.ForumPost{}
	}
	return &response_models.PageResponse[db_models.ForumPost]{
		Items:    posts,
		Total:    total,
		Page:     page,
		PageSize: pageSize,
	}, nil
}

func (f *forumService) CreatePost(ctx context.Context, requester Requester, request request_models.CreatePostRequest) (*db_models.ForumPost, error) {
	post := &db_models.ForumPost{
		Title:          request.Title,
		Body:           request.Body,
		AuthorID:       requester.AccountID,
		AuthorUsername: requester.Username,
	}
	if err := f.forumRepo.CreatePost(ctx, post); err != nil {
		return nil, fmt.Errorf("create post: %w", utils.ErrDatabaseError)
	}
	return post, nil
}

func (f *forumService) GetPost(ctx context.Context, id uuid.UUID) (*db_models.ForumPost, error) {
	post, err := f.forumRepo.FindPostById(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("lookup post: %w", utils.ErrDatabaseError)
	}
	if post == nil {
		return nil, utils.ErrPostNotFound
	}
	return post, nil
}

// DeletePost is limited to the author and admins.
func (f *forumService) DeletePost(ctx context.Context, requester Requester, id uuid.UUID) error {
	post, err := f.GetPost(ctx, id)
	if err != nil {
		return err
	}
	if post.AuthorID != requester.AccountID && !requester.IsAdmin {
		return utils.ErrForbidden
	}
	if err := f.forumRepo.DeletePost(ctx, id); err != nil {
		return fmt.Errorf("delete post: %w", utils.ErrDatabaseError)
	}
	return nil
}

func (f *forumService) AddComment(ctx context.Context, requester Requester, postID uuid.UUID, request request_models.CreateCommentRequest) (*db_models.ForumComment, error) {
	if _, err := f.GetPost(ctx, postID); err != nil {
		return nil, err
	}
	comment := &db_models.ForumComment{
		PostID:         postID,
		Body:           request.Body,
		AuthorID:       requester.AccountID,
		AuthorUsername: requester.Username,
	}
	if err := f.forumRepo.AddComment(ctx, comment); err != nil {
		return nil, fmt.Errorf("add comment: %w", utils.ErrDatabaseError)
	}
	return comment, nil
}
