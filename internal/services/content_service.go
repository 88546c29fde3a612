package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/mcuredefined/backend/internal/models"
	"github.com/mcuredefined/backend/internal/repository"
	"github.com/mcuredefined/backend/pkg/logger"
)

// ImageStore uploads and removes thumbnail images. Process accepts either a
// base64 data URI, which it uploads, or an already-hosted link, which it
// passes through, and returns a {link, key} record.
type ImageStore interface {
	Process(ctx context.Context, payload any) (models.Record, error)
	Delete(ctx context.Context, key string) error
}

// ContentInput is the write payload shared by blog posts and reviews.
// Thumbnail may be a data URI, a plain link or nil; Content is an arbitrary
// JSON document.
type ContentInput struct {
	Title       string
	Author      string
	AuthorID    *string
	Description string
	Content     any
	Thumbnail   any
	Tags        []string
}

// ContentService orchestrates one content kind: repository access, author
// decoration, thumbnail handling and write timestamps.
type ContentService[T models.Content] struct {
	repo    *repository.Repository[T]
	authors *AuthorService
	images  ImageStore
	wrap    func(models.ContentItem) T
	clock   func() time.Time
	log     *zap.Logger
}

// NewContentService wires a service for one kind. wrap lifts the shared
// columns into the kind's model type. images may be nil, in which case
// thumbnails are stored as given.
func NewContentService[T models.Content](
	repo *repository.Repository[T],
	authors *AuthorService,
	images ImageStore,
	wrap func(models.ContentItem) T,
) (*ContentService[T], error) {
	if repo == nil {
		return nil, errors.New("services: nil repository")
	}
	if authors == nil {
		return nil, errors.New("services: nil author service")
	}
	if wrap == nil {
		return nil, errors.New("services: nil model constructor")
	}
	return &ContentService[T]{
		repo:    repo,
		authors: authors,
		images:  images,
		wrap:    wrap,
		clock:   time.Now,
		log:     logger.WithModule(repo.Prefix() + "_service"),
	}, nil
}

// Count returns the total number of items.
func (s *ContentService[T]) Count(ctx context.Context) (int64, error) {
	return s.repo.Count(ctx)
}

// List returns one listing page with author info attached.
func (s *ContentService[T]) List(ctx context.Context, page, limit int) ([]models.Record, error) {
	items, err := s.repo.Paginated(ctx, page, limit)
	if err != nil {
		return nil, err
	}
	s.authors.Decorate(ctx, items)
	return items, nil
}

// Get returns one item with author info attached.
func (s *ContentService[T]) Get(ctx context.Context, id uint) (models.Record, bool, error) {
	record, found, err := s.repo.ByID(ctx, id)
	if err != nil || !found {
		return nil, found, err
	}
	s.authors.DecorateOne(ctx, record)
	return record, true, nil
}

// Search runs a criteria search and decorates the matches.
func (s *ContentService[T]) Search(ctx context.Context, q repository.SearchQuery) (*repository.Page, error) {
	page, err := s.repo.Search(ctx, q)
	if err != nil {
		return nil, err
	}
	s.authors.Decorate(ctx, page.Items)
	return page, nil
}

// ByIDs pages through an explicit id list and decorates the matches.
func (s *ContentService[T]) ByIDs(ctx context.Context, ids []uint, page, limit int) (*repository.Page, error) {
	result, err := s.repo.ByIDs(ctx, ids, page, limit)
	if err != nil {
		return nil, err
	}
	s.authors.Decorate(ctx, result.Items)
	return result, nil
}

// AllTags returns the kind's tag vocabulary.
func (s *ContentService[T]) AllTags(ctx context.Context) ([]string, error) {
	return s.repo.AllTags(ctx)
}

// AllAuthors returns the kind's author names.
func (s *ContentService[T]) AllAuthors(ctx context.Context) ([]string, error) {
	return s.repo.AllAuthors(ctx)
}

// AuthorsByIDs returns the author names among an id list.
func (s *ContentService[T]) AuthorsByIDs(ctx context.Context, ids []uint) ([]string, error) {
	return s.repo.AuthorsByIDs(ctx, ids)
}

// TagsByIDs returns the tag union of an id list.
func (s *ContentService[T]) TagsByIDs(ctx context.Context, ids []uint) ([]string, error) {
	return s.repo.TagsByIDs(ctx, ids)
}

// Latest returns trimmed listing cards for the newest items, decorated.
func (s *ContentService[T]) Latest(ctx context.Context, limit int) ([]models.Record, error) {
	items, err := s.repo.Latest(ctx, limit)
	if err != nil {
		return nil, err
	}
	s.authors.Decorate(ctx, items)
	return items, nil
}

// Recent returns the single newest item, decorated.
func (s *ContentService[T]) Recent(ctx context.Context) (models.Record, bool, error) {
	record, found, err := s.repo.Recent(ctx)
	if err != nil || !found {
		return nil, found, err
	}
	s.authors.DecorateOne(ctx, record)
	return record, true, nil
}

// Create stores a new item and returns its full record.
func (s *ContentService[T]) Create(ctx context.Context, input ContentInput) (models.Record, error) {
	now := s.clock().Format(models.TimeFormat)

	thumbnail, err := s.processThumbnail(ctx, input.Thumbnail)
	if err != nil {
		return nil, err
	}

	body, err := s.processContent(ctx, input.Content)
	if err != nil {
		return nil, err
	}
	content, err := jsonColumn(body)
	if err != nil {
		return nil, fmt.Errorf("encode content: %w", err)
	}

	item := s.wrap(models.ContentItem{
		Title:         input.Title,
		Author:        input.Author,
		AuthorID:      input.AuthorID,
		Description:   input.Description,
		Content:       content,
		ThumbnailPath: thumbnail,
		CreatedAt:     now,
		UpdatedAt:     now,
	})

	id, err := s.repo.Create(ctx, &item, input.Tags)
	if err != nil {
		return nil, err
	}

	s.log.Info("content created", zap.Uint("id", id), zap.String("title", input.Title))

	record, found, err := s.repo.ByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("content %d disappeared before it could be reloaded", id)
	}
	return record, nil
}

// Update replaces an item's fields and tag set. The previous thumbnail is
// removed from the image store when a new upload displaces it. A missing id
// reports found=false with a nil error.
func (s *ContentService[T]) Update(ctx context.Context, id uint, input ContentInput) (models.Record, bool, error) {
	now := s.clock().Format(models.TimeFormat)

	var thumbnail datatypes.JSON
	if input.Thumbnail != nil {
		var err error
		thumbnail, err = s.processThumbnail(ctx, input.Thumbnail)
		if err != nil {
			return nil, false, err
		}
	}

	var content datatypes.JSON
	if input.Content != nil {
		body, err := s.processContent(ctx, input.Content)
		if err != nil {
			return nil, false, err
		}
		content, err = jsonColumn(body)
		if err != nil {
			return nil, false, fmt.Errorf("encode content: %w", err)
		}
	}

	var previousThumbnail datatypes.JSON
	found, err := s.repo.Update(ctx, id, func(row *T) {
		item := (*row).Item()
		previousThumbnail = item.ThumbnailPath

		item.Title = input.Title
		item.Author = input.Author
		if input.AuthorID != nil {
			item.AuthorID = input.AuthorID
		}
		item.Description = input.Description
		if content != nil {
			item.Content = content
		}
		if thumbnail != nil {
			item.ThumbnailPath = thumbnail
		}
		item.UpdatedAt = now

		*row = s.wrap(item)
	}, input.Tags)
	if err != nil || !found {
		return nil, found, err
	}

	if thumbnail != nil {
		s.removeStoredImage(ctx, previousThumbnail)
	}

	s.log.Info("content updated", zap.Uint("id", id))

	record, found, err := s.repo.ByID(ctx, id)
	if err != nil {
		return nil, found, err
	}
	return record, found, nil
}

// Delete removes an item and its stored thumbnail. A missing id reports
// found=false with a nil error.
func (s *ContentService[T]) Delete(ctx context.Context, id uint) (bool, error) {
	record, found, err := s.repo.ByID(ctx, id)
	if err != nil || !found {
		return found, err
	}

	found, err = s.repo.Delete(ctx, id)
	if err != nil || !found {
		return found, err
	}

	if raw, ok := record["thumbnail_path"]; ok {
		s.removeDecodedImage(ctx, raw)
	}

	s.log.Info("content deleted", zap.Uint("id", id))
	return true, nil
}

func (s *ContentService[T]) processThumbnail(ctx context.Context, payload any) (datatypes.JSON, error) {
	if s.images == nil {
		return jsonColumn(payload)
	}

	record, err := s.images.Process(ctx, payload)
	if err != nil {
		return nil, fmt.Errorf("process thumbnail: %w", err)
	}
	return jsonColumn(record)
}

// processContent uploads base64 image blocks inside a block-list content
// document and replaces them with their stored {link, key} descriptors.
// Documents of any other shape pass through unchanged.
func (s *ContentService[T]) processContent(ctx context.Context, payload any) (any, error) {
	if s.images == nil || payload == nil {
		return payload, nil
	}
	blocks, ok := payload.([]any)
	if !ok {
		return payload, nil
	}

	for i, raw := range blocks {
		block, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		if kind, _ := block["type"].(string); kind != "image" {
			continue
		}

		processed, err := s.images.Process(ctx, block["content"])
		if err != nil {
			return nil, fmt.Errorf("process image block: %w", err)
		}
		block["content"] = processed
		blocks[i] = block
	}
	return blocks, nil
}

// removeStoredImage deletes the uploaded object referenced by a raw
// thumbnail column, if any.
func (s *ContentService[T]) removeStoredImage(ctx context.Context, column datatypes.JSON) {
	if s.images == nil || len(column) == 0 {
		return
	}
	var decoded map[string]any
	if err := json.Unmarshal(column, &decoded); err != nil {
		return
	}
	s.removeDecodedImage(ctx, decoded)
}

func (s *ContentService[T]) removeDecodedImage(ctx context.Context, raw any) {
	if s.images == nil {
		return
	}
	decoded, ok := raw.(map[string]any)
	if !ok {
		return
	}
	key, _ := decoded["key"].(string)
	if key == "" {
		return
	}
	if err := s.images.Delete(ctx, key); err != nil {
		s.log.Warn("orphaned thumbnail left in image store",
			zap.String("key", key), zap.Error(err))
	}
}

func jsonColumn(v any) (datatypes.JSON, error) {
	if v == nil {
		return nil, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(raw), nil
}
