package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mcuredefined/backend/internal/models"
	"github.com/mcuredefined/backend/internal/repository"
	"github.com/mcuredefined/backend/internal/services"
	appErrors "github.com/mcuredefined/backend/pkg/errors"
	"github.com/mcuredefined/backend/pkg/response"
)

// ContentHandler exposes the HTTP surface of one content kind. The same
// handler type serves blog posts and reviews; only the bound service
// differs.
type ContentHandler[T models.Content] struct {
	svc  *services.ContentService[T]
	kind string
}

// NewContentHandler constructs a handler using the provided service. kind is
// used in not-found messages.
func NewContentHandler[T models.Content](svc *services.ContentService[T], kind string) *ContentHandler[T] {
	return &ContentHandler[T]{svc: svc, kind: kind}
}

type contentPayload struct {
	Title       string   `json:"title" binding:"required" validate:"required,max=255"`
	Author      string   `json:"author" binding:"required" validate:"required,max=30"`
	AuthorID    *string  `json:"author_id"`
	Description string   `json:"description"`
	Content     any      `json:"content"`
	Thumbnail   any      `json:"thumbnail"`
	Tags        []string `json:"tags"`
}

func (p contentPayload) input() services.ContentInput {
	return services.ContentInput{
		Title:       p.Title,
		Author:      p.Author,
		AuthorID:    p.AuthorID,
		Description: p.Description,
		Content:     p.Content,
		Thumbnail:   p.Thumbnail,
		Tags:        p.Tags,
	}
}

// List returns one listing page plus pagination metadata.
func (h *ContentHandler[T]) List(c *gin.Context) {
	page := parseIntQuery(c, "page", 1)
	limit := parseIntQuery(c, "limit", 10)

	ctx := requestContext(c)
	items, err := h.svc.List(ctx, page, limit)
	if err != nil {
		response.Error(c, err)
		return
	}

	total, err := h.svc.Count(ctx)
	if err != nil {
		response.Error(c, err)
		return
	}

	meta := pageMeta(page, limit, int(total), computeTotalPages(total, limit))
	response.SuccessWithMeta(c, http.StatusOK, items, meta)
}

// Count returns the total number of items of this kind.
func (h *ContentHandler[T]) Count(c *gin.Context) {
	total, err := h.svc.Count(requestContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"count": total})
}

// Latest returns trimmed listing cards for the newest items.
func (h *ContentHandler[T]) Latest(c *gin.Context) {
	limit := parseIntQuery(c, "limit", 3)

	items, err := h.svc.Latest(requestContext(c), limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, items)
}

// Recent returns the single newest item.
func (h *ContentHandler[T]) Recent(c *gin.Context) {
	record, found, err := h.svc.Recent(requestContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	if !found {
		response.Error(c, appErrors.NewNotFound("no "+h.kind+" yet"))
		return
	}
	response.Success(c, http.StatusOK, record)
}

// Search filters items by tags, author id, author name or free text.
func (h *ContentHandler[T]) Search(c *gin.Context) {
	query := repository.SearchQuery{
		Query:    c.Query("query"),
		Tags:     splitListQuery(c, "tags"),
		Author:   c.Query("author"),
		AuthorID: c.Query("authorId"),
		Page:     parseIntQuery(c, "page", 1),
		Limit:    parseIntQuery(c, "limit", 10),
	}

	result, err := h.svc.Search(requestContext(c), query)
	if err != nil {
		response.Error(c, err)
		return
	}

	meta := pageMeta(result.Page, query.Limit, result.Total, result.TotalPages)
	response.SuccessWithMeta(c, http.StatusOK, result.Items, meta)
}

// Tags returns the kind's tag vocabulary.
func (h *ContentHandler[T]) Tags(c *gin.Context) {
	tags, err := h.svc.AllTags(requestContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, tags)
}

// Authors returns the kind's author names.
func (h *ContentHandler[T]) Authors(c *gin.Context) {
	authors, err := h.svc.AllAuthors(requestContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, authors)
}

// Get returns one item by id.
func (h *ContentHandler[T]) Get(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	record, found, err := h.svc.Get(requestContext(c), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	if !found {
		response.Error(c, appErrors.NewNotFound(h.kind+" not found"))
		return
	}
	response.Success(c, http.StatusOK, record)
}

// Create stores a new item.
func (h *ContentHandler[T]) Create(c *gin.Context) {
	var payload contentPayload
	if !bindAndValidate(c, &payload) {
		return
	}

	record, err := h.svc.Create(requestContext(c), payload.input())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, record)
}

// Update replaces an item's fields and tag set.
func (h *ContentHandler[T]) Update(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var payload contentPayload
	if !bindAndValidate(c, &payload) {
		return
	}

	record, found, err := h.svc.Update(requestContext(c), id, payload.input())
	if err != nil {
		response.Error(c, err)
		return
	}
	if !found {
		response.Error(c, appErrors.NewNotFound(h.kind+" not found"))
		return
	}
	response.Success(c, http.StatusOK, record)
}

// Delete removes an item.
func (h *ContentHandler[T]) Delete(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	found, err := h.svc.Delete(requestContext(c), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	if !found {
		response.Error(c, appErrors.NewNotFound(h.kind+" not found"))
		return
	}
	response.Success(c, http.StatusOK, gin.H{"deleted": id})
}
