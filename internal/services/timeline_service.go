package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	appErrors "github.com/mcuredefined/backend/pkg/errors"
	"gorm.io/gorm"

	"github.com/mcuredefined/backend/internal/bridge"
	"github.com/mcuredefined/backend/internal/cache"
	"github.com/mcuredefined/backend/internal/models"
	"github.com/mcuredefined/backend/internal/repository"
	"github.com/mcuredefined/backend/pkg/logger"
)

// Timeline cache windows. The full timeline is small and nearly static, so it
// keeps the longest TTL; per-phase slices sit on landing pages and refresh
// faster.
const (
	timelineAllTTL   = 300 * time.Second
	timelinePageTTL  = 120 * time.Second
	timelinePhaseTTL = 60 * time.Second
)

// Release phases run 1 through 9; anything outside is a client error.
const (
	MinPhase = 1
	MaxPhase = 9
)

// TimelineService serves the release timeline: the phase-ordered project
// list. Entries carry no tags; ordering is phase then insertion order rather
// than recency.
type TimelineService struct {
	repo    *repository.Repository[models.TimelineEntry]
	db      *gorm.DB
	store   *cache.Cache
	pool    *bridge.Pool
	authors *AuthorService
	clock   func() time.Time
	log     *zap.Logger
}

// NewTimelineService wires the timeline over the shared content database.
func NewTimelineService(db *gorm.DB, store *cache.Cache, pool *bridge.Pool, authors *AuthorService) (*TimelineService, error) {
	if authors == nil {
		return nil, errors.New("services: nil author service")
	}

	repo, err := repository.New[models.TimelineEntry](db, store, pool, repository.Config{
		CachePrefix: "timeline",
		Order:       "phase ASC, id ASC",
	})
	if err != nil {
		return nil, err
	}

	return &TimelineService{
		repo:    repo,
		db:      db,
		store:   store,
		pool:    pool,
		authors: authors,
		clock:   time.Now,
		log:     logger.WithModule("timeline_service"),
	}, nil
}

// Count returns the number of timeline entries.
func (s *TimelineService) Count(ctx context.Context) (int64, error) {
	return s.repo.Count(ctx)
}

// All returns every entry in phase order.
func (s *TimelineService) All(ctx context.Context) ([]models.Record, error) {
	const key = "timeline_all"
	if value, ok := s.store.GetSync(key); ok {
		if items, ok := value.([]models.Record); ok {
			return models.CloneRecords(items), nil
		}
	}

	rows, err := bridge.Do(ctx, s.pool, func() ([]models.TimelineEntry, error) {
		var out []models.TimelineEntry
		err := s.db.WithContext(ctx).Order("phase ASC, id ASC").Find(&out).Error
		return out, err
	})
	if err != nil {
		return nil, err
	}

	items := entryRecords(rows)
	s.store.SetSync(key, items, timelineAllTTL)
	return models.CloneRecords(items), nil
}

// Paginated returns one phase-ordered page, decorated with author info.
func (s *TimelineService) Paginated(ctx context.Context, page, limit int) ([]models.Record, error) {
	key := fmt.Sprintf("timeline_page:%d:%d", page, limit)
	if value, ok := s.store.GetSync(key); ok {
		if items, ok := value.([]models.Record); ok {
			return models.CloneRecords(items), nil
		}
	}

	items, err := s.repo.Paginated(ctx, page, limit)
	if err != nil {
		return nil, err
	}
	s.authors.Decorate(ctx, items)

	s.store.SetSync(key, items, timelinePageTTL)
	return models.CloneRecords(items), nil
}

// ByPhase returns the entries of one release phase in insertion order.
func (s *TimelineService) ByPhase(ctx context.Context, phase int) ([]models.Record, error) {
	if phase < MinPhase || phase > MaxPhase {
		return nil, appErrors.NewBadRequest(fmt.Sprintf("phase must be between %d and %d", MinPhase, MaxPhase))
	}

	key := fmt.Sprintf("timeline_phase:%d", phase)
	if value, ok := s.store.GetSync(key); ok {
		if items, ok := value.([]models.Record); ok {
			return models.CloneRecords(items), nil
		}
	}

	rows, err := bridge.Do(ctx, s.pool, func() ([]models.TimelineEntry, error) {
		var out []models.TimelineEntry
		err := s.db.WithContext(ctx).Where("phase = ?", phase).Order("id ASC").Find(&out).Error
		return out, err
	})
	if err != nil {
		return nil, err
	}

	items := entryRecords(rows)
	s.store.SetSync(key, items, timelinePhaseTTL)
	return models.CloneRecords(items), nil
}

// Get returns one timeline entry with author info attached.
func (s *TimelineService) Get(ctx context.Context, id uint) (models.Record, bool, error) {
	record, found, err := s.repo.ByID(ctx, id)
	if err != nil || !found {
		return nil, found, err
	}
	s.authors.DecorateOne(ctx, record)
	return record, true, nil
}

// Search filters entries by free text over title and description, optionally
// restricted to one phase. Results stay in phase order.
func (s *TimelineService) Search(ctx context.Context, query string, phase, page, limit int) (*repository.Page, error) {
	query = strings.TrimSpace(query)
	if query == "" && phase == 0 {
		return &repository.Page{Items: []models.Record{}, Page: page}, nil
	}
	if phase != 0 && (phase < MinPhase || phase > MaxPhase) {
		return nil, appErrors.NewBadRequest(fmt.Sprintf("phase must be between %d and %d", MinPhase, MaxPhase))
	}
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 10
	}

	type result struct {
		rows  []models.TimelineEntry
		total int64
	}
	res, err := bridge.Do(ctx, s.pool, func() (result, error) {
		var out result

		scope := s.db.WithContext(ctx).Model(&models.TimelineEntry{})
		if query != "" {
			needle := "%" + strings.ToLower(query) + "%"
			scope = scope.Where("LOWER(title) LIKE ? OR LOWER(description) LIKE ?", needle, needle)
		}
		if phase != 0 {
			scope = scope.Where("phase = ?", phase)
		}

		if err := scope.Count(&out.total).Error; err != nil {
			return out, err
		}
		err := scope.Order("phase ASC, id ASC").
			Offset((page - 1) * limit).
			Limit(limit).
			Find(&out.rows).Error
		return out, err
	})
	if err != nil {
		return nil, err
	}

	total := int(res.total)
	totalPages := 0
	if total > 0 {
		totalPages = (total + limit - 1) / limit
	}
	return &repository.Page{
		Items:      entryRecords(res.rows),
		Total:      total,
		TotalPages: totalPages,
		Page:       page,
	}, nil
}

// TimelineInput is the write payload for a timeline entry.
type TimelineInput struct {
	Title       string
	Author      string
	AuthorID    *string
	Description string
	Content     any
	Thumbnail   any
	Phase       int
	ReleaseDate string
}

// Create stores a new entry and returns its record.
func (s *TimelineService) Create(ctx context.Context, input TimelineInput) (models.Record, error) {
	if input.Phase < MinPhase || input.Phase > MaxPhase {
		return nil, appErrors.NewBadRequest(fmt.Sprintf("phase must be between %d and %d", MinPhase, MaxPhase))
	}

	now := s.clock().Format(models.TimeFormat)

	content, err := jsonColumn(input.Content)
	if err != nil {
		return nil, fmt.Errorf("encode content: %w", err)
	}
	thumbnail, err := jsonColumn(input.Thumbnail)
	if err != nil {
		return nil, fmt.Errorf("encode thumbnail: %w", err)
	}

	entry := models.TimelineEntry{
		ContentItem: models.ContentItem{
			Title:         input.Title,
			Author:        input.Author,
			AuthorID:      input.AuthorID,
			Description:   input.Description,
			Content:       content,
			ThumbnailPath: thumbnail,
			CreatedAt:     now,
			UpdatedAt:     now,
		},
		Phase:       input.Phase,
		ReleaseDate: input.ReleaseDate,
	}

	id, err := s.repo.Create(ctx, &entry, nil)
	if err != nil {
		return nil, err
	}
	s.invalidateViews()

	s.log.Info("timeline entry created", zap.Uint("id", id), zap.Int("phase", input.Phase))

	record, found, err := s.repo.ByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("timeline entry %d disappeared before it could be reloaded", id)
	}
	return record, nil
}

// Update replaces an entry's fields. A missing id reports found=false with a
// nil error.
func (s *TimelineService) Update(ctx context.Context, id uint, input TimelineInput) (models.Record, bool, error) {
	if input.Phase < MinPhase || input.Phase > MaxPhase {
		return nil, false, appErrors.NewBadRequest(fmt.Sprintf("phase must be between %d and %d", MinPhase, MaxPhase))
	}

	now := s.clock().Format(models.TimeFormat)

	content, err := jsonColumn(input.Content)
	if err != nil {
		return nil, false, fmt.Errorf("encode content: %w", err)
	}
	thumbnail, err := jsonColumn(input.Thumbnail)
	if err != nil {
		return nil, false, fmt.Errorf("encode thumbnail: %w", err)
	}

	found, err := s.repo.Update(ctx, id, func(entry *models.TimelineEntry) {
		entry.Title = input.Title
		entry.Author = input.Author
		if input.AuthorID != nil {
			entry.AuthorID = input.AuthorID
		}
		entry.Description = input.Description
		if content != nil {
			entry.Content = content
		}
		if thumbnail != nil {
			entry.ThumbnailPath = thumbnail
		}
		entry.Phase = input.Phase
		entry.ReleaseDate = input.ReleaseDate
		entry.UpdatedAt = now
	}, nil)
	if err != nil || !found {
		return nil, found, err
	}
	s.invalidateViews()

	record, found, err := s.repo.ByID(ctx, id)
	if err != nil {
		return nil, found, err
	}
	return record, found, nil
}

// Delete removes an entry. A missing id reports found=false with a nil
// error.
func (s *TimelineService) Delete(ctx context.Context, id uint) (bool, error) {
	found, err := s.repo.Delete(ctx, id)
	if err != nil || !found {
		return found, err
	}
	s.invalidateViews()
	return true, nil
}

// invalidateViews drops the timeline-specific cached views on top of the
// repository's own invalidation. The shared prefix makes one pattern delete
// cover both key families.
func (s *TimelineService) invalidateViews() {
	s.store.DeletePatternSync("timeline_")
}

func entryRecords(rows []models.TimelineEntry) []models.Record {
	items := make([]models.Record, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.ToRecord())
	}
	return items
}
