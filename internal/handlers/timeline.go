package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/mcuredefined/backend/internal/services"
	appErrors "github.com/mcuredefined/backend/pkg/errors"
	"github.com/mcuredefined/backend/pkg/response"
)

// TimelineHandler exposes the release timeline APIs.
type TimelineHandler struct {
	svc *services.TimelineService
}

// NewTimelineHandler constructs a handler using the provided service.
func NewTimelineHandler(svc *services.TimelineService) *TimelineHandler {
	return &TimelineHandler{svc: svc}
}

type timelinePayload struct {
	Title       string  `json:"title" binding:"required" validate:"required,max=255"`
	Author      string  `json:"author" binding:"required" validate:"required,max=30"`
	AuthorID    *string `json:"author_id"`
	Description string  `json:"description"`
	Content     any     `json:"content"`
	Thumbnail   any     `json:"thumbnail"`
	Phase       int     `json:"phase" binding:"required" validate:"required,min=1,max=9"`
	ReleaseDate string  `json:"release_date"`
}

func (p timelinePayload) input() services.TimelineInput {
	return services.TimelineInput{
		Title:       p.Title,
		Author:      p.Author,
		AuthorID:    p.AuthorID,
		Description: p.Description,
		Content:     p.Content,
		Thumbnail:   p.Thumbnail,
		Phase:       p.Phase,
		ReleaseDate: p.ReleaseDate,
	}
}

// All returns the full timeline in phase order.
func (h *TimelineHandler) All(c *gin.Context) {
	items, err := h.svc.All(requestContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, items)
}

// Paginated returns one phase-ordered page.
func (h *TimelineHandler) Paginated(c *gin.Context) {
	page := parseIntQuery(c, "page", 1)
	limit := parseIntQuery(c, "limit", 10)

	ctx := requestContext(c)
	items, err := h.svc.Paginated(ctx, page, limit)
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

// Count returns the number of timeline entries.
func (h *TimelineHandler) Count(c *gin.Context) {
	total, err := h.svc.Count(requestContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"count": total})
}

// ByPhase returns the entries of one release phase.
func (h *TimelineHandler) ByPhase(c *gin.Context) {
	phase, err := strconv.Atoi(c.Param("phase"))
	if err != nil {
		response.Error(c, appErrors.NewBadRequest("phase must be an integer"))
		return
	}

	items, err := h.svc.ByPhase(requestContext(c), phase)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, items)
}

// Search filters entries by free text, optionally restricted to one phase.
func (h *TimelineHandler) Search(c *gin.Context) {
	phase := parseIntQuery(c, "phase", 0)
	page := parseIntQuery(c, "page", 1)
	limit := parseIntQuery(c, "limit", 10)

	result, err := h.svc.Search(requestContext(c), c.Query("query"), phase, page, limit)
	if err != nil {
		response.Error(c, err)
		return
	}

	meta := pageMeta(result.Page, limit, result.Total, result.TotalPages)
	response.SuccessWithMeta(c, http.StatusOK, result.Items, meta)
}

// Get returns one timeline entry by id.
func (h *TimelineHandler) Get(c *gin.Context) {
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
		response.Error(c, appErrors.NewNotFound("timeline entry not found"))
		return
	}
	response.Success(c, http.StatusOK, record)
}

// Create stores a new timeline entry.
func (h *TimelineHandler) Create(c *gin.Context) {
	var payload timelinePayload
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

// Update replaces a timeline entry's fields.
func (h *TimelineHandler) Update(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var payload timelinePayload
	if !bindAndValidate(c, &payload) {
		return
	}

	record, found, err := h.svc.Update(requestContext(c), id, payload.input())
	if err != nil {
		response.Error(c, err)
		return
	}
	if !found {
		response.Error(c, appErrors.NewNotFound("timeline entry not found"))
		return
	}
	response.Success(c, http.StatusOK, record)
}

// Delete removes a timeline entry.
func (h *TimelineHandler) Delete(c *gin.Context) {
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
		response.Error(c, appErrors.NewNotFound("timeline entry not found"))
		return
	}
	response.Success(c, http.StatusOK, gin.H{"deleted": id})
}
