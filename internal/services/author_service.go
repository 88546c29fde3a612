// Package services holds the business layer between the HTTP handlers and
// the repositories: author profile resolution across the two databases,
// per-kind content orchestration, the release timeline views and the
// liked-content queries.
package services

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/mcuredefined/backend/internal/bridge"
	"github.com/mcuredefined/backend/internal/cache"
	"github.com/mcuredefined/backend/internal/models"
	"github.com/mcuredefined/backend/pkg/logger"
)

// authorInfoTTL is long on purpose: profile fields change rarely and the
// resolver sits on every listing response.
const authorInfoTTL = 300 * time.Second

const authorKeyPrefix = "author_info:"

// AuthorService resolves author ids from the content database into profile
// records from the separate user database.
//
// Resolution fails open: when the user store is unreachable the affected
// authors resolve to nothing and the content response still goes out. A
// missing profile and an unreachable store are indistinguishable to callers.
type AuthorService struct {
	userDB *gorm.DB
	store  *cache.Cache
	pool   *bridge.Pool
	log    *zap.Logger
}

// NewAuthorService builds the resolver. userDB may be nil when the deployment
// runs without a user database; every lookup then resolves to nothing.
func NewAuthorService(userDB *gorm.DB, store *cache.Cache, pool *bridge.Pool) (*AuthorService, error) {
	if store == nil {
		return nil, errors.New("services: nil cache")
	}
	return &AuthorService{
		userDB: userDB,
		store:  store,
		pool:   pool,
		log:    logger.WithModule("author_service"),
	}, nil
}

// Resolve returns the profile record for one author id, or found=false when
// the profile is unknown or the user store cannot answer.
func (s *AuthorService) Resolve(ctx context.Context, id string) (models.Record, bool) {
	if id == "" {
		return nil, false
	}
	results := s.ResolveBatch(ctx, []string{id})
	record, ok := results[id]
	return record, ok
}

// ResolveBatch resolves a set of author ids in one pass. Duplicates collapse
// to a single lookup, cached profiles skip the database entirely and the
// remainder is fetched with a single IN query. The returned map only holds
// the ids that resolved.
func (s *AuthorService) ResolveBatch(ctx context.Context, ids []string) map[string]models.Record {
	results := make(map[string]models.Record, len(ids))

	uncached := make([]string, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true

		if value, ok := s.store.GetSync(authorKeyPrefix + id); ok {
			if record, ok := value.(models.Record); ok {
				results[id] = record
				continue
			}
		}
		uncached = append(uncached, id)
	}

	if len(uncached) == 0 || s.userDB == nil {
		return results
	}

	users, err := bridge.Do(ctx, s.pool, func() ([]models.User, error) {
		var out []models.User
		err := s.userDB.WithContext(ctx).Where("id IN ?", uncached).Find(&out).Error
		return out, err
	})
	if err != nil {
		s.log.Warn("user store lookup failed, serving content without author info",
			zap.Int("authors", len(uncached)),
			zap.Error(err))
		return results
	}

	for _, user := range users {
		record := user.ToRecord()
		s.store.SetSync(authorKeyPrefix+user.ID, record, authorInfoTTL)
		results[user.ID] = record
	}
	return results
}

// Decorate attaches an author_info field to every record that carries a
// non-empty author_id. Records whose author does not resolve get an explicit
// nil so the response shape stays stable.
func (s *AuthorService) Decorate(ctx context.Context, records []models.Record) {
	ids := make([]string, 0, len(records))
	for _, record := range records {
		if id := authorIDOf(record); id != "" {
			ids = append(ids, id)
		}
	}

	resolved := s.ResolveBatch(ctx, ids)
	for _, record := range records {
		id := authorIDOf(record)
		if id == "" {
			record["author_info"] = nil
			continue
		}
		if info, ok := resolved[id]; ok {
			record["author_info"] = info
		} else {
			record["author_info"] = nil
		}
	}
}

// DecorateOne is Decorate for a single record.
func (s *AuthorService) DecorateOne(ctx context.Context, record models.Record) {
	if record == nil {
		return
	}
	s.Decorate(ctx, []models.Record{record})
}

// Invalidate drops the cached profile for one author id, forcing the next
// resolution to hit the user store.
func (s *AuthorService) Invalidate(id string) {
	if id == "" {
		return
	}
	s.store.DeleteSync(authorKeyPrefix + id)
}

func authorIDOf(record models.Record) string {
	id, _ := record["author_id"].(string)
	return id
}
