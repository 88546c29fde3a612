package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/mcuredefined/backend/internal/cache"
	"github.com/mcuredefined/backend/internal/models"
)

func newUserServiceEnv(t *testing.T) (*UserService, *ContentService[models.BlogPost], *gorm.DB) {
	t.Helper()

	contentDB := openContentDB(t)
	userDB := openUserDB(t)
	store := cache.New(0)

	blogs, _ := newBlogService(t, contentDB, userDB, store, nil)
	reviews := newReviewService(t, contentDB, userDB, store)

	svc, err := NewUserService(userDB, blogs, reviews, nil)
	require.NoError(t, err)
	return svc, blogs, userDB
}

func likeBlog(t *testing.T, userDB *gorm.DB, userID string, blogID uint, at time.Time) {
	t.Helper()
	require.NoError(t, userDB.Create(&models.BlogLike{
		UserID: userID, BlogID: blogID, CreatedAt: at,
	}).Error)
}

func TestLikedBlogsNewestLikeFirst(t *testing.T) {
	svc, blogs, userDB := newUserServiceEnv(t)

	var ids []uint
	for _, title := range []string{"A", "B", "C"} {
		record, err := blogs.Create(context.Background(), ContentInput{Title: title, Author: "sam"})
		require.NoError(t, err)
		ids = append(ids, record["id"].(uint))
	}

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	likeBlog(t, userDB, "user-1", ids[0], base)
	likeBlog(t, userDB, "user-1", ids[2], base.Add(2*time.Hour))
	likeBlog(t, userDB, "user-1", ids[1], base.Add(time.Hour))

	page, err := svc.LikedBlogs(context.Background(), "user-1", 1, 10)
	require.NoError(t, err)
	require.Equal(t, 3, page.Total)
	require.Equal(t, "C", page.Items[0]["title"])
	require.Equal(t, "B", page.Items[1]["title"])
	require.Equal(t, "A", page.Items[2]["title"])
}

func TestLikedBlogsEmptyForUnknownUser(t *testing.T) {
	svc, _, _ := newUserServiceEnv(t)

	page, err := svc.LikedBlogs(context.Background(), "nobody", 1, 10)
	require.NoError(t, err)
	require.Zero(t, page.Total)
	require.Empty(t, page.Items)

	page, err = svc.LikedBlogs(context.Background(), "", 1, 10)
	require.NoError(t, err)
	require.Zero(t, page.Total)
}

func TestLikedBlogAuthorsAndTags(t *testing.T) {
	svc, blogs, userDB := newUserServiceEnv(t)

	a, err := blogs.Create(context.Background(), ContentInput{
		Title: "One", Author: "zoe", Tags: []string{"film"},
	})
	require.NoError(t, err)
	b, err := blogs.Create(context.Background(), ContentInput{
		Title: "Two", Author: "alice", Tags: []string{"series"},
	})
	require.NoError(t, err)
	_, err = blogs.Create(context.Background(), ContentInput{
		Title: "Unliked", Author: "carol", Tags: []string{"tv"},
	})
	require.NoError(t, err)

	now := time.Now()
	likeBlog(t, userDB, "user-1", a["id"].(uint), now)
	likeBlog(t, userDB, "user-1", b["id"].(uint), now.Add(time.Minute))

	authors, err := svc.LikedBlogAuthors(context.Background(), "user-1")
	require.NoError(t, err)
	require.Equal(t, []string{"alice", "zoe"}, authors)

	tags, err := svc.LikedBlogTags(context.Background(), "user-1")
	require.NoError(t, err)
	require.Equal(t, []string{"film", "series"}, tags)
}

func TestSearchLikedBlogsConjunction(t *testing.T) {
	svc, blogs, userDB := newUserServiceEnv(t)

	match, err := blogs.Create(context.Background(), ContentInput{
		Title: "Multiverse Deep Dive", Author: "alice", Tags: []string{"film", "phase-4"},
	})
	require.NoError(t, err)
	wrongAuthor, err := blogs.Create(context.Background(), ContentInput{
		Title: "Multiverse Recap", Author: "bob", Tags: []string{"film", "phase-4"},
	})
	require.NoError(t, err)
	wrongTags, err := blogs.Create(context.Background(), ContentInput{
		Title: "Multiverse Theory", Author: "alice", Tags: []string{"series"},
	})
	require.NoError(t, err)

	now := time.Now()
	likeBlog(t, userDB, "user-1", match["id"].(uint), now)
	likeBlog(t, userDB, "user-1", wrongAuthor["id"].(uint), now.Add(time.Second))
	likeBlog(t, userDB, "user-1", wrongTags["id"].(uint), now.Add(2*time.Second))

	page, err := svc.SearchLikedBlogs(context.Background(), "user-1", LikedSearch{
		Query:  "multiverse",
		Author: "alice",
		Tags:   []string{"film", "phase-4"},
		Page:   1,
		Limit:  10,
	})
	require.NoError(t, err)
	require.Equal(t, 1, page.Total)
	require.Equal(t, "Multiverse Deep Dive", page.Items[0]["title"])
}

func TestSearchLikedBlogsPagination(t *testing.T) {
	svc, blogs, userDB := newUserServiceEnv(t)

	now := time.Now()
	for i := 0; i < 5; i++ {
		record, err := blogs.Create(context.Background(), ContentInput{
			Title: "Post", Author: "sam",
		})
		require.NoError(t, err)
		likeBlog(t, userDB, "user-1", record["id"].(uint), now.Add(time.Duration(i)*time.Second))
	}

	page, err := svc.SearchLikedBlogs(context.Background(), "user-1", LikedSearch{
		Query: "post", Page: 2, Limit: 2,
	})
	require.NoError(t, err)
	require.Equal(t, 5, page.Total)
	require.Equal(t, 3, page.TotalPages)
	require.Len(t, page.Items, 2)

	page, err = svc.SearchLikedBlogs(context.Background(), "user-1", LikedSearch{
		Query: "post", Page: 9, Limit: 2,
	})
	require.NoError(t, err)
	require.Empty(t, page.Items)
}
