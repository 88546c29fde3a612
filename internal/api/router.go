// Package api assembles the Gin engine: global middleware and the route
// table over the handler layer.
package api

import (
	"fmt"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/mcuredefined/backend/internal/app"
	"github.com/mcuredefined/backend/internal/handlers"
	"github.com/mcuredefined/backend/internal/middleware"
	"github.com/mcuredefined/backend/internal/models"
	"github.com/mcuredefined/backend/internal/services"
)

// Paths that bypass rate limiting: probes and the metrics scraper.
var limiterExempt = []string{"/", "/health", "/metrics"}

// Services groups the wired business services the router exposes.
type Services struct {
	Blogs    *services.ContentService[models.BlogPost]
	Reviews  *services.ContentService[models.Review]
	Timeline *services.TimelineService
	Users    *services.UserService
	// Images may be nil when no object storage is configured; the image
	// endpoints then answer 503.
	Images services.ImageStore
}

// NewRouter builds the Gin engine, wires middleware and registers routes.
func NewRouter(cfg *app.Config, contentDB, userDB *gorm.DB, svcs Services) (*gin.Engine, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must be provided")
	}
	if svcs.Blogs == nil || svcs.Reviews == nil || svcs.Timeline == nil {
		return nil, fmt.Errorf("content services must be provided")
	}

	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics())
	r.Use(middleware.CORS(cfg.CORS.AllowedOrigins...))
	r.Use(gzip.Gzip(gzip.DefaultCompression))

	if cfg.RateLimit.Enabled {
		limiter := middleware.NewLimiter(middleware.Limits{
			PerSecond: cfg.RateLimit.PerSecond,
			PerMinute: cfg.RateLimit.PerMinute,
		})
		r.Use(middleware.RateLimit(limiter, limiterExempt...))
	}

	// Probes and metrics
	r.GET("/", handlers.Root)
	r.GET("/health", handlers.Health(contentDB, userDB))
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	blogHandler := handlers.NewContentHandler(svcs.Blogs, "blog post")
	blogs := r.Group("/blogs")
	{
		blogs.GET("", blogHandler.List)
		blogs.GET("/count", blogHandler.Count)
		blogs.GET("/latest", blogHandler.Latest)
		blogs.GET("/recent", blogHandler.Recent)
		blogs.GET("/search", blogHandler.Search)
		blogs.GET("/tags", blogHandler.Tags)
		blogs.GET("/authors", blogHandler.Authors)
		blogs.GET("/:id", blogHandler.Get)
		blogs.POST("", blogHandler.Create)
		blogs.PUT("/:id", blogHandler.Update)
		blogs.DELETE("/:id", blogHandler.Delete)
	}

	reviewHandler := handlers.NewContentHandler(svcs.Reviews, "review")
	reviews := r.Group("/reviews")
	{
		reviews.GET("", reviewHandler.List)
		reviews.GET("/count", reviewHandler.Count)
		reviews.GET("/latest", reviewHandler.Latest)
		reviews.GET("/recent", reviewHandler.Recent)
		reviews.GET("/search", reviewHandler.Search)
		reviews.GET("/tags", reviewHandler.Tags)
		reviews.GET("/authors", reviewHandler.Authors)
		reviews.GET("/:id", reviewHandler.Get)
		reviews.POST("", reviewHandler.Create)
		reviews.PUT("/:id", reviewHandler.Update)
		reviews.DELETE("/:id", reviewHandler.Delete)
	}

	timelineHandler := handlers.NewTimelineHandler(svcs.Timeline)
	timeline := r.Group("/release-slate")
	{
		timeline.GET("", timelineHandler.All)
		timeline.GET("/paginated", timelineHandler.Paginated)
		timeline.GET("/count", timelineHandler.Count)
		timeline.GET("/search", timelineHandler.Search)
		timeline.GET("/phase/:phase", timelineHandler.ByPhase)
		timeline.GET("/:id", timelineHandler.Get)
		timeline.POST("", timelineHandler.Create)
		timeline.PUT("/:id", timelineHandler.Update)
		timeline.DELETE("/:id", timelineHandler.Delete)
	}

	if svcs.Users != nil {
		userHandler := handlers.NewUserHandler(svcs.Users)
		liked := r.Group("/users/:userId/liked")
		{
			liked.GET("/blogs", userHandler.LikedBlogs)
			liked.GET("/blogs/authors", userHandler.LikedBlogAuthors)
			liked.GET("/blogs/tags", userHandler.LikedBlogTags)
			liked.GET("/blogs/search", userHandler.SearchLikedBlogs)
			liked.GET("/reviews", userHandler.LikedReviews)
			liked.GET("/reviews/authors", userHandler.LikedReviewAuthors)
			liked.GET("/reviews/tags", userHandler.LikedReviewTags)
			liked.GET("/reviews/search", userHandler.SearchLikedReviews)
		}
	}

	imageHandler := handlers.NewImageHandler(svcs.Images)
	images := r.Group("/topic-images")
	{
		images.POST("/upload", imageHandler.Upload)
		images.POST("/validate", imageHandler.Validate)
		images.DELETE("", imageHandler.Delete)
	}

	r.NoRoute(middleware.NotFoundHandler)

	return r, nil
}
