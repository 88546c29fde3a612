package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/mcuredefined/backend/internal/services"
	appErrors "github.com/mcuredefined/backend/pkg/errors"
	"github.com/mcuredefined/backend/pkg/response"
)

// UserHandler exposes the liked-content APIs.
type UserHandler struct {
	svc *services.UserService
}

// NewUserHandler constructs a handler using the provided service.
func NewUserHandler(svc *services.UserService) *UserHandler {
	return &UserHandler{svc: svc}
}

func userIDParam(c *gin.Context) (string, bool) {
	id := strings.TrimSpace(c.Param("userId"))
	if id == "" {
		response.Error(c, appErrors.NewBadRequest("userId is required"))
		return "", false
	}
	return id, true
}

// LikedBlogs pages through the blog posts a user has liked.
func (h *UserHandler) LikedBlogs(c *gin.Context) {
	userID, ok := userIDParam(c)
	if !ok {
		return
	}
	page := parseIntQuery(c, "page", 1)
	limit := parseIntQuery(c, "limit", 10)

	result, err := h.svc.LikedBlogs(requestContext(c), userID, page, limit)
	if err != nil {
		response.Error(c, err)
		return
	}

	meta := pageMeta(result.Page, limit, result.Total, result.TotalPages)
	response.SuccessWithMeta(c, http.StatusOK, result.Items, meta)
}

// LikedReviews pages through the reviews a user has liked.
func (h *UserHandler) LikedReviews(c *gin.Context) {
	userID, ok := userIDParam(c)
	if !ok {
		return
	}
	page := parseIntQuery(c, "page", 1)
	limit := parseIntQuery(c, "limit", 10)

	result, err := h.svc.LikedReviews(requestContext(c), userID, page, limit)
	if err != nil {
		response.Error(c, err)
		return
	}

	meta := pageMeta(result.Page, limit, result.Total, result.TotalPages)
	response.SuccessWithMeta(c, http.StatusOK, result.Items, meta)
}

// LikedBlogAuthors returns the author names across a user's liked posts.
func (h *UserHandler) LikedBlogAuthors(c *gin.Context) {
	userID, ok := userIDParam(c)
	if !ok {
		return
	}

	authors, err := h.svc.LikedBlogAuthors(requestContext(c), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, authors)
}

// LikedBlogTags returns the tag union across a user's liked posts.
func (h *UserHandler) LikedBlogTags(c *gin.Context) {
	userID, ok := userIDParam(c)
	if !ok {
		return
	}

	tags, err := h.svc.LikedBlogTags(requestContext(c), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, tags)
}

// LikedReviewAuthors returns the author names across a user's liked reviews.
func (h *UserHandler) LikedReviewAuthors(c *gin.Context) {
	userID, ok := userIDParam(c)
	if !ok {
		return
	}

	authors, err := h.svc.LikedReviewAuthors(requestContext(c), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, authors)
}

// LikedReviewTags returns the tag union across a user's liked reviews.
func (h *UserHandler) LikedReviewTags(c *gin.Context) {
	userID, ok := userIDParam(c)
	if !ok {
		return
	}

	tags, err := h.svc.LikedReviewTags(requestContext(c), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, tags)
}

func likedSearchFromQuery(c *gin.Context) services.LikedSearch {
	return services.LikedSearch{
		Query:  c.Query("query"),
		Tags:   splitListQuery(c, "tags"),
		Author: c.Query("author"),
		Page:   parseIntQuery(c, "page", 1),
		Limit:  parseIntQuery(c, "limit", 10),
	}
}

// SearchLikedBlogs filters a user's liked posts by every given criterion.
func (h *UserHandler) SearchLikedBlogs(c *gin.Context) {
	userID, ok := userIDParam(c)
	if !ok {
		return
	}
	q := likedSearchFromQuery(c)

	result, err := h.svc.SearchLikedBlogs(requestContext(c), userID, q)
	if err != nil {
		response.Error(c, err)
		return
	}

	meta := pageMeta(result.Page, q.Limit, result.Total, result.TotalPages)
	response.SuccessWithMeta(c, http.StatusOK, result.Items, meta)
}

// SearchLikedReviews filters a user's liked reviews by every given
// criterion.
func (h *UserHandler) SearchLikedReviews(c *gin.Context) {
	userID, ok := userIDParam(c)
	if !ok {
		return
	}
	q := likedSearchFromQuery(c)

	result, err := h.svc.SearchLikedReviews(requestContext(c), userID, q)
	if err != nil {
		response.Error(c, err)
		return
	}

	meta := pageMeta(result.Page, q.Limit, result.Total, result.TotalPages)
	response.SuccessWithMeta(c, http.StatusOK, result.Items, meta)
}
