package controllers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"clubhouse/internal/models/request_models"
	"clubhouse/internal/services"
	"clubhouse/pkg/utils"
)

type ForumController struct {
	forumService services.ForumService
}

func NewForumController(forumService services.ForumService) *ForumController {
	return &ForumController{forumService: forumService}
}

// ListPosts godoc
// @Summary List forum posts
// @Tags Forum
// @Produce json
// @Param page query int false "Page number" default(1)
// @Param pageSize query int false "Page size" default(20)
// @Success 200 {object} utils.APIResponse
// @Security BearerAuth
// @Router /forum/posts [get]
func (f *ForumController) ListPosts(c *gin.Context) {
	pageStr := c.DefaultQuery("page", "1")
	pageSizeStr := c.DefaultQuery("pageSize", "20")

	page, err := strconv.Atoi(pageStr)
	if err != nil || page < 1 {
		utils.RespondError(c, http.StatusBadRequest, "Invalid page number")
		return
	}

	pageSize, err := strconv.Atoi(pageSizeStr)
	if err != nil || pageSize < 1 || pageSize > 100 {
		utils.RespondError(c, http.StatusBadRequest, "Invalid page size (must be 1-100)")
		return
	}

	posts, err := f.forumService.ListPosts(c.Request.Context(), page, pageSize)
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}
	utils.RespondSuccess(c, posts, "Posts fetched successfully")
}

// CreatePost godoc
// @Summary Create a forum post
// @Tags Forum
// @Accept json
// @Produce json
// @Param request body request_models.CreatePostRequest true "Post"
// @Success 201 {object} utils.APIResponse
// @Security BearerAuth
// @Router /forum/posts [post]
func (f *ForumController) CreatePost(c *gin.Context) {
	var req request_models.CreatePostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, "Invalid request format")
		return
	}

	post, err := f.forumService.CreatePost(c.Request.Context(), requester(c), req)
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}
	utils.RespondCreated(c, post, "Post created")
}

// GetPost godoc
// @Summary Get a post with its comments
// @Tags Forum
// @Produce json
// @Param id path string true "Post id"
// @Success 200 {object} utils.APIResponse
// @Failure 404 {object} utils.APIResponse
// @Security BearerAuth
// @Router /forum/posts/{id} [get]
func (f *ForumController) GetPost(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	post, err := f.forumService.GetPost(c.Request.Context(), id)
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}
	utils.RespondSuccess(c, post, "Post fetched successfully")
}

// DeletePost godoc
// @Summary Delete a post
// @Description Authors and admins only
// @Tags Forum
// @Produce json
// @Param id path string true "Post id"
// @Success 200 {object} utils.APIResponse
// @Failure 403 {object} utils.APIResponse
// @Security BearerAuth
// @Router /forum/posts/{id} [delete]
func (f *ForumController) DeletePost(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	if err := f.forumService.DeletePost(c.Request.Context(), requester(c), id); err != nil {
		utils.HandleServiceError(c, err)
		return
	}
	utils.RespondSuccess(c, nil, "Post deleted")
}

// AddComment godoc
// @Summary Comment on a post
// @Tags Forum
// @Accept json
// @Produce json
// @Param id path string true "Post id"
// @Param request body request_models.CreateCommentRequest true "Comment"
// @Success 201 {object} utils.APIResponse
// @Failure 404 {object} utils.APIResponse
// @Security BearerAuth
// @Router /forum/posts/{id}/comments [post]
func (f *ForumController) AddComment(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	var req request_models.CreateCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, "Invalid request format")
		return
	}

	comment, err := f.forumService.AddComment(c.Request.Context(), requester(c), id, req)
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}
	utils.RespondCreated(c, comment, "Comment added")
}
