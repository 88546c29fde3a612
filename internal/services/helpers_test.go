package services

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/mcuredefined/backend/internal/cache"
	"github.com/mcuredefined/backend/internal/database"
	"github.com/mcuredefined/backend/internal/models"
	"github.com/mcuredefined/backend/internal/repository"
)

func openContentDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.OpenContent(database.Config{Driver: "sqlite", Path: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close(db) })
	return db
}

func openUserDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.Open(database.Config{Driver: "sqlite", Path: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close(db) })

	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.BlogLike{},
		&models.ReviewLike{},
		&models.ProjectLike{},
	))
	return db
}

func seedUser(t *testing.T, db *gorm.DB, id, name, username string) {
	t.Helper()
	require.NoError(t, db.Create(&models.User{
		ID:          id,
		Name:        name,
		Email:       username + "@example.com",
		Username:    username,
		DisplayName: name,
	}).Error)
}

// fakeImages records Process and Delete calls and hands out deterministic
// keys.
type fakeImages struct {
	processed []any
	deleted   []string
}

func (f *fakeImages) Process(_ context.Context, payload any) (models.Record, error) {
	f.processed = append(f.processed, payload)
	key := fmt.Sprintf("uploads/img-%d", len(f.processed))
	link, _ := payload.(string)
	if link == "" {
		link = "https://images.example.com/" + key
	}
	return models.Record{"link": link, "key": key}, nil
}

func (f *fakeImages) Delete(_ context.Context, key string) error {
	f.deleted = append(f.deleted, key)
	return nil
}

func newBlogService(t *testing.T, contentDB, userDB *gorm.DB, store *cache.Cache, images ImageStore) (*ContentService[models.BlogPost], *AuthorService) {
	t.Helper()

	authors, err := NewAuthorService(userDB, store, nil)
	require.NoError(t, err)

	repo, err := repository.New[models.BlogPost](contentDB, store, nil, repository.Config{
		CachePrefix: "blog",
		TagTable:    "blog_tags",
		TagFK:       "blog_id",
	})
	require.NoError(t, err)

	svc, err := NewContentService[models.BlogPost](repo, authors, images,
		func(item models.ContentItem) models.BlogPost {
			return models.BlogPost{ContentItem: item}
		})
	require.NoError(t, err)
	return svc, authors
}

func newReviewService(t *testing.T, contentDB, userDB *gorm.DB, store *cache.Cache) *ContentService[models.Review] {
	t.Helper()

	authors, err := NewAuthorService(userDB, store, nil)
	require.NoError(t, err)

	repo, err := repository.New[models.Review](contentDB, store, nil, repository.Config{
		CachePrefix: "review",
		TagTable:    "review_tags",
		TagFK:       "review_id",
	})
	require.NoError(t, err)

	svc, err := NewContentService[models.Review](repo, authors, nil,
		func(item models.ContentItem) models.Review {
			return models.Review{ContentItem: item}
		})
	require.NoError(t, err)
	return svc
}
