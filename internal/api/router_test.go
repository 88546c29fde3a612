package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/mcuredefined/backend/internal/app"
	"github.com/mcuredefined/backend/internal/cache"
	"github.com/mcuredefined/backend/internal/database"
	"github.com/mcuredefined/backend/internal/models"
	"github.com/mcuredefined/backend/internal/repository"
	"github.com/mcuredefined/backend/internal/services"
)

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	contentDB, err := database.OpenContent(database.Config{Driver: "sqlite", Path: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close(contentDB) })

	userDB, err := database.Open(database.Config{Driver: "sqlite", Path: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close(userDB) })
	require.NoError(t, userDB.AutoMigrate(&models.User{}, &models.BlogLike{}, &models.ReviewLike{}))

	store := cache.New(0)

	authors, err := services.NewAuthorService(userDB, store, nil)
	require.NoError(t, err)

	blogRepo, err := repository.New[models.BlogPost](contentDB, store, nil, repository.Config{
		CachePrefix: "blog", TagTable: "blog_tags", TagFK: "blog_id",
	})
	require.NoError(t, err)
	blogs, err := services.NewContentService[models.BlogPost](blogRepo, authors, nil,
		func(item models.ContentItem) models.BlogPost { return models.BlogPost{ContentItem: item} })
	require.NoError(t, err)

	reviewRepo, err := repository.New[models.Review](contentDB, store, nil, repository.Config{
		CachePrefix: "review", TagTable: "review_tags", TagFK: "review_id",
	})
	require.NoError(t, err)
	reviews, err := services.NewContentService[models.Review](reviewRepo, authors, nil,
		func(item models.ContentItem) models.Review { return models.Review{ContentItem: item} })
	require.NoError(t, err)

	timeline, err := services.NewTimelineService(contentDB, store, nil, authors)
	require.NoError(t, err)

	users, err := services.NewUserService(userDB, blogs, reviews, nil)
	require.NoError(t, err)

	cfg := &app.Config{}
	cfg.RateLimit.Enabled = false

	router, err := NewRouter(cfg, contentDB, userDB, Services{
		Blogs:    blogs,
		Reviews:  reviews,
		Timeline: timeline,
		Users:    users,
	})
	require.NoError(t, err)
	return router
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestHealthAndRoot(t *testing.T) {
	r := newTestRouter(t)

	w := doJSON(t, r, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	data := body["data"].(map[string]any)
	require.Equal(t, "ok", data["status"])
	require.Equal(t, "up", data["content_db"])

	w = doJSON(t, r, http.MethodGet, "/", nil)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestBlogCRUDOverHTTP(t *testing.T) {
	r := newTestRouter(t)

	w := doJSON(t, r, http.MethodPost, "/blogs", gin.H{
		"title":  "First Post",
		"author": "alice",
		"tags":   []string{"film"},
	})
	require.Equal(t, http.StatusCreated, w.Code)
	created := decodeBody(t, w)["data"].(map[string]any)
	id := int(created["id"].(float64))

	w = doJSON(t, r, http.MethodGet, fmt.Sprintf("/blogs/%d", id), nil)
	require.Equal(t, http.StatusOK, w.Code)
	fetched := decodeBody(t, w)["data"].(map[string]any)
	require.Equal(t, "First Post", fetched["title"])

	w = doJSON(t, r, http.MethodPut, fmt.Sprintf("/blogs/%d", id), gin.H{
		"title":  "Renamed",
		"author": "alice",
		"tags":   []string{"series"},
	})
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, r, http.MethodGet, "/blogs?page=1&limit=10", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	require.Len(t, body["data"].([]any), 1)
	meta := body["meta"].(map[string]any)
	require.EqualValues(t, 1, meta["total"])

	w = doJSON(t, r, http.MethodDelete, fmt.Sprintf("/blogs/%d", id), nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, r, http.MethodGet, fmt.Sprintf("/blogs/%d", id), nil)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestBlogValidation(t *testing.T) {
	r := newTestRouter(t)

	w := doJSON(t, r, http.MethodPost, "/blogs", gin.H{"author": "alice"})
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Contains(t, w.Body.String(), "BAD_REQUEST")

	w = doJSON(t, r, http.MethodGet, "/blogs/not-a-number", nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestBlogSearchOverHTTP(t *testing.T) {
	r := newTestRouter(t)

	for _, post := range []gin.H{
		{"title": "Multiverse Saga", "author": "alice", "tags": []string{"film"}},
		{"title": "Other Topic", "author": "bob", "tags": []string{"series"}},
	} {
		w := doJSON(t, r, http.MethodPost, "/blogs", post)
		require.Equal(t, http.StatusCreated, w.Code)
	}

	w := doJSON(t, r, http.MethodGet, "/blogs/search?tags=film", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	require.Len(t, body["data"].([]any), 1)

	w = doJSON(t, r, http.MethodGet, "/blogs/search?query=multiverse", nil)
	body = decodeBody(t, w)
	require.Len(t, body["data"].([]any), 1)

	w = doJSON(t, r, http.MethodGet, "/blogs/tags", nil)
	body = decodeBody(t, w)
	require.ElementsMatch(t, []any{"film", "series"}, body["data"].([]any))
}

func TestBlogLatestDefaultsToThree(t *testing.T) {
	r := newTestRouter(t)

	for i := 1; i <= 4; i++ {
		w := doJSON(t, r, http.MethodPost, "/blogs", gin.H{
			"title":  fmt.Sprintf("Post %d", i),
			"author": "alice",
		})
		require.Equal(t, http.StatusCreated, w.Code)
	}

	w := doJSON(t, r, http.MethodGet, "/blogs/latest", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, decodeBody(t, w)["data"].([]any), 3)
}

func TestTimelineOverHTTP(t *testing.T) {
	r := newTestRouter(t)

	w := doJSON(t, r, http.MethodPost, "/release-slate", gin.H{
		"title":        "Iron Man",
		"author":       "kevin",
		"phase":        1,
		"release_date": "2008/05/02",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(t, r, http.MethodPost, "/release-slate", gin.H{
		"title":  "Bad Phase",
		"author": "kevin",
		"phase":  12,
	})
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, r, http.MethodGet, "/release-slate", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, decodeBody(t, w)["data"].([]any), 1)

	w = doJSON(t, r, http.MethodGet, "/release-slate/phase/1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, decodeBody(t, w)["data"].([]any), 1)

	w = doJSON(t, r, http.MethodGet, "/release-slate/phase/99", nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestImageEndpointsWithoutStorage(t *testing.T) {
	r := newTestRouter(t)

	w := doJSON(t, r, http.MethodPost, "/topic-images/upload", gin.H{
		"image": "data:image/png;base64,AAAA",
	})
	require.Equal(t, http.StatusServiceUnavailable, w.Code)

	// Validation needs no storage backend.
	w = doJSON(t, r, http.MethodPost, "/topic-images/validate", gin.H{
		"image": "https://cdn.example.com/a.png",
	})
	require.Equal(t, http.StatusOK, w.Code)
	data := decodeBody(t, w)["data"].(map[string]any)
	require.Equal(t, false, data["uploadable"])
}

func TestUnknownRouteIsJSON404(t *testing.T) {
	r := newTestRouter(t)

	w := doJSON(t, r, http.MethodGet, "/nope", nil)
	require.Equal(t, http.StatusNotFound, w.Code)
	require.Contains(t, w.Body.String(), "NOT_FOUND")
}
