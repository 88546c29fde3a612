package services

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/mcuredefined/backend/internal/bridge"
	"github.com/mcuredefined/backend/internal/models"
	"github.com/mcuredefined/backend/internal/repository"
	"github.com/mcuredefined/backend/pkg/logger"
)

// UserService answers liked-content queries: which blog posts and reviews a
// user has liked, and filtered views over those sets. Like rows live in the
// user database while the content itself lives in the content database, so
// every operation is a two-store join done in application code.
type UserService struct {
	userDB  *gorm.DB
	blogs   *ContentService[models.BlogPost]
	reviews *ContentService[models.Review]
	pool    *bridge.Pool
	log     *zap.Logger
}

// NewUserService wires the liked-content queries over both stores.
func NewUserService(userDB *gorm.DB, blogs *ContentService[models.BlogPost], reviews *ContentService[models.Review], pool *bridge.Pool) (*UserService, error) {
	if userDB == nil {
		return nil, errors.New("services: nil user database")
	}
	if blogs == nil || reviews == nil {
		return nil, errors.New("services: nil content service")
	}
	return &UserService{
		userDB:  userDB,
		blogs:   blogs,
		reviews: reviews,
		pool:    pool,
		log:     logger.WithModule("user_service"),
	}, nil
}

// LikedBlogIDs returns the ids of the blog posts userID has liked, newest
// like first.
func (s *UserService) LikedBlogIDs(ctx context.Context, userID string) ([]uint, error) {
	return s.likedIDs(ctx, "bloglikes", "blog_id", userID)
}

// LikedReviewIDs returns the ids of the reviews userID has liked, newest
// like first.
func (s *UserService) LikedReviewIDs(ctx context.Context, userID string) ([]uint, error) {
	return s.likedIDs(ctx, "reviewlikes", "review_id", userID)
}

// LikedProjectIDs returns the ids of the timeline entries userID has liked.
func (s *UserService) LikedProjectIDs(ctx context.Context, userID string) ([]uint, error) {
	return s.likedIDs(ctx, "projectlikes", "project_id", userID)
}

func (s *UserService) likedIDs(ctx context.Context, table, column, userID string) ([]uint, error) {
	if userID == "" {
		return []uint{}, nil
	}

	ids, err := bridge.Do(ctx, s.pool, func() ([]uint, error) {
		var out []uint
		err := s.userDB.WithContext(ctx).Table(table).
			Where("user_id = ?", userID).
			Order("created_at DESC").
			Pluck(column, &out).Error
		return out, err
	})
	if err != nil {
		return nil, err
	}
	if ids == nil {
		ids = []uint{}
	}
	return ids, nil
}

// LikedBlogs pages through the blog posts userID has liked.
func (s *UserService) LikedBlogs(ctx context.Context, userID string, page, limit int) (*repository.Page, error) {
	ids, err := s.LikedBlogIDs(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.blogs.ByIDs(ctx, ids, page, limit)
}

// LikedReviews pages through the reviews userID has liked.
func (s *UserService) LikedReviews(ctx context.Context, userID string, page, limit int) (*repository.Page, error) {
	ids, err := s.LikedReviewIDs(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.reviews.ByIDs(ctx, ids, page, limit)
}

// LikedBlogAuthors returns the author names across the user's liked posts.
func (s *UserService) LikedBlogAuthors(ctx context.Context, userID string) ([]string, error) {
	ids, err := s.LikedBlogIDs(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.blogs.AuthorsByIDs(ctx, ids)
}

// LikedBlogTags returns the tag union across the user's liked posts.
func (s *UserService) LikedBlogTags(ctx context.Context, userID string) ([]string, error) {
	ids, err := s.LikedBlogIDs(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.blogs.TagsByIDs(ctx, ids)
}

// LikedReviewAuthors returns the author names across the user's liked
// reviews.
func (s *UserService) LikedReviewAuthors(ctx context.Context, userID string) ([]string, error) {
	ids, err := s.LikedReviewIDs(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.reviews.AuthorsByIDs(ctx, ids)
}

// LikedReviewTags returns the tag union across the user's liked reviews.
func (s *UserService) LikedReviewTags(ctx context.Context, userID string) ([]string, error) {
	ids, err := s.LikedReviewIDs(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.reviews.TagsByIDs(ctx, ids)
}

// LikedSearch narrows a user's liked set by every criterion present at once,
// unlike the catalog search where the most selective criterion wins. The
// liked set is small enough to filter in memory after fetching.
type LikedSearch struct {
	Query  string
	Tags   []string
	Author string
	Page   int
	Limit  int
}

// SearchLikedBlogs filters the user's liked posts.
func (s *UserService) SearchLikedBlogs(ctx context.Context, userID string, q LikedSearch) (*repository.Page, error) {
	ids, err := s.LikedBlogIDs(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.searchLiked(ctx, s.blogs.ByIDs, ids, q)
}

// SearchLikedReviews filters the user's liked reviews.
func (s *UserService) SearchLikedReviews(ctx context.Context, userID string, q LikedSearch) (*repository.Page, error) {
	ids, err := s.LikedReviewIDs(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.searchLiked(ctx, s.reviews.ByIDs, ids, q)
}

func (s *UserService) searchLiked(
	ctx context.Context,
	fetch func(context.Context, []uint, int, int) (*repository.Page, error),
	ids []uint,
	q LikedSearch,
) (*repository.Page, error) {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Limit < 1 {
		q.Limit = 10
	}

	// Fetch the whole liked set in one page, then filter and re-paginate.
	all, err := fetch(ctx, ids, 1, maxInt(len(ids), 1))
	if err != nil {
		return nil, err
	}

	matched := make([]models.Record, 0, len(all.Items))
	for _, record := range all.Items {
		if matchesLikedSearch(record, q) {
			matched = append(matched, record)
		}
	}

	total := len(matched)
	totalPages := 0
	if total > 0 {
		totalPages = (total + q.Limit - 1) / q.Limit
	}

	start := (q.Page - 1) * q.Limit
	if start > total {
		start = total
	}
	end := start + q.Limit
	if end > total {
		end = total
	}

	return &repository.Page{
		Items:      matched[start:end],
		Total:      total,
		TotalPages: totalPages,
		Page:       q.Page,
	}, nil
}

func matchesLikedSearch(record models.Record, q LikedSearch) bool {
	if q.Query != "" {
		title, _ := record["title"].(string)
		description, _ := record["description"].(string)
		needle := strings.ToLower(q.Query)
		if !strings.Contains(strings.ToLower(title), needle) &&
			!strings.Contains(strings.ToLower(description), needle) {
			return false
		}
	}

	if q.Author != "" {
		author, _ := record["author"].(string)
		if !strings.Contains(strings.ToLower(author), strings.ToLower(q.Author)) {
			return false
		}
	}

	if len(q.Tags) > 0 {
		tags, _ := record["tags"].([]string)
		have := make(map[string]bool, len(tags))
		for _, tag := range tags {
			have[tag] = true
		}
		for _, want := range q.Tags {
			if !have[want] {
				return false
			}
		}
	}

	return true
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
