package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/mcuredefined/backend/internal/api"
	"github.com/mcuredefined/backend/internal/app"
	"github.com/mcuredefined/backend/internal/bridge"
	"github.com/mcuredefined/backend/internal/cache"
	"github.com/mcuredefined/backend/internal/database"
	"github.com/mcuredefined/backend/internal/models"
	"github.com/mcuredefined/backend/internal/repository"
	"github.com/mcuredefined/backend/internal/services"
	"github.com/mcuredefined/backend/internal/storage"
	"github.com/mcuredefined/backend/pkg/logger"
)

const shutdownTimeout = 15 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	if err := run(ctx, os.Args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("mcu-server", flag.ContinueOnError)
	fs.SetOutput(os.Stdout)

	var configPath string
	fs.StringVar(&configPath, "config", "", "Path to configuration directory or file")

	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadApplicationConfig(configPath)
	if err != nil {
		return err
	}

	if err := app.ConfigureLogging(cfg.Server.LogLevel); err != nil {
		return fmt.Errorf("configure logging: %w", err)
	}
	defer logger.Sync() // best effort

	log := logger.WithModule("bootstrap")

	contentDB, err := database.OpenContent(cfg.ContentDB.Connection())
	if err != nil {
		return fmt.Errorf("open content database: %w", err)
	}
	defer closeDatabase(contentDB, "content", log)

	// The user database is optional: without it the service still serves
	// content, just without author profiles or liked-content routes.
	var userDB *gorm.DB
	if cfg.UserDB.Enabled {
		userDB, err = database.OpenUser(cfg.UserDB.Connection())
		if err != nil {
			log.Warn("user database unavailable, author resolution disabled", zap.Error(err))
			userDB = nil
		} else {
			defer closeDatabase(userDB, "user", log)
		}
	}

	store := cache.New(cfg.Cache.DefaultTTL)

	pool := bridge.NewPool(cfg.Bridge.Workers)
	defer pool.Shutdown()

	var images services.ImageStore
	if cfg.Storage.AccountID != "" {
		r2, storageErr := storage.New(ctx, cfg.Storage)
		if storageErr != nil {
			log.Warn("image storage unavailable, uploads disabled", zap.Error(storageErr))
		} else {
			images = r2
		}
	}

	svcs, err := buildServices(contentDB, userDB, store, pool, images)
	if err != nil {
		return err
	}

	router, err := api.NewRouter(cfg, contentDB, userDB, svcs)
	if err != nil {
		return fmt.Errorf("build api router: %w", err)
	}

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	var shutdownErrs error
	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		shutdownErrs = multierr.Append(shutdownErrs, fmt.Errorf("graceful shutdown: %w", err))
	}

	// Let queued store work finish before the databases close.
	pool.Shutdown()

	if err, ok := <-serverErr; ok && err != nil {
		shutdownErrs = multierr.Append(shutdownErrs, fmt.Errorf("server error: %w", err))
	}

	if shutdownErrs != nil {
		return shutdownErrs
	}

	log.Info("server stopped gracefully")
	return nil
}

func buildServices(contentDB, userDB *gorm.DB, store *cache.Cache, pool *bridge.Pool, images services.ImageStore) (api.Services, error) {
	authors, err := services.NewAuthorService(userDB, store, pool)
	if err != nil {
		return api.Services{}, fmt.Errorf("initialise author service: %w", err)
	}

	blogRepo, err := repository.New[models.BlogPost](contentDB, store, pool, repository.Config{
		CachePrefix: "blog",
		TagTable:    "blog_tags",
		TagFK:       "blog_id",
	})
	if err != nil {
		return api.Services{}, fmt.Errorf("initialise blog repository: %w", err)
	}
	blogs, err := services.NewContentService[models.BlogPost](blogRepo, authors, images,
		func(item models.ContentItem) models.BlogPost { return models.BlogPost{ContentItem: item} })
	if err != nil {
		return api.Services{}, fmt.Errorf("initialise blog service: %w", err)
	}

	reviewRepo, err := repository.New[models.Review](contentDB, store, pool, repository.Config{
		CachePrefix: "review",
		TagTable:    "review_tags",
		TagFK:       "review_id",
	})
	if err != nil {
		return api.Services{}, fmt.Errorf("initialise review repository: %w", err)
	}
	reviews, err := services.NewContentService[models.Review](reviewRepo, authors, images,
		func(item models.ContentItem) models.Review { return models.Review{ContentItem: item} })
	if err != nil {
		return api.Services{}, fmt.Errorf("initialise review service: %w", err)
	}

	timeline, err := services.NewTimelineService(contentDB, store, pool, authors)
	if err != nil {
		return api.Services{}, fmt.Errorf("initialise timeline service: %w", err)
	}

	svcs := api.Services{
		Blogs:    blogs,
		Reviews:  reviews,
		Timeline: timeline,
		Images:   images,
	}

	if userDB != nil {
		users, err := services.NewUserService(userDB, blogs, reviews, pool)
		if err != nil {
			return api.Services{}, fmt.Errorf("initialise user service: %w", err)
		}
		svcs.Users = users
	}

	return svcs, nil
}

func loadApplicationConfig(path string) (*app.Config, error) {
	switch {
	case strings.TrimSpace(path) == "":
		return app.LoadConfig()
	default:
		info, err := os.Stat(path)
		if err == nil {
			if info.IsDir() {
				return app.LoadConfig(path)
			}
			return app.LoadConfig(filepath.Dir(path))
		}
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("config path %q does not exist", path)
		}
		return nil, fmt.Errorf("stat config path: %w", err)
	}
}

func closeDatabase(db *gorm.DB, name string, log *zap.Logger) {
	if err := database.Close(db); err != nil {
		log.Warn("close database", zap.String("db", name), zap.Error(err))
	}
}
