// Package repository implements the cached data-access layer shared by every
// content kind. One generic type covers blog posts, reviews and timeline
// entries; the per-kind differences (table names, tag join table, cache key
// prefix, listing order) live in a Config so each kind is a configuration of
// the same machinery rather than a copy of it.
package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/mcuredefined/backend/internal/bridge"
	"github.com/mcuredefined/backend/internal/cache"
	"github.com/mcuredefined/backend/internal/models"
	"github.com/mcuredefined/backend/pkg/metrics"
)

// Cache TTLs per result shape. Counts and vocabulary lists are cheap to serve
// stale, single items are not, so the by-id window is the shortest.
const (
	countTTL     = 60 * time.Second
	paginatedTTL = 30 * time.Second
	byIDTTL      = 10 * time.Second
	tagsByIDTTL  = 30 * time.Second
	listingTTL   = 60 * time.Second
)

// Invalidation sweeps over this page/limit grid cover the page sizes the
// frontend actually requests. Cached pages outside the grid go stale until
// their TTL passes, which the short paginated TTL bounds at 30 seconds.
var (
	invalidatePages  = 9
	invalidateLimits = []int{3, 5, 10}
)

// Config selects the per-kind wiring of a Repository.
type Config struct {
	// CachePrefix namespaces every cache key this repository writes.
	CachePrefix string
	// TagTable and TagFK name the tag join table and its foreign key column.
	// An empty TagTable means the kind carries no tags and every tag
	// operation degrades to the empty set.
	TagTable string
	TagFK    string
	// Order is the SQL order clause for listings. Empty defaults to
	// newest-first on the string timestamp column.
	Order string
}

// SearchQuery carries the supported search criteria. When several are set the
// most selective one wins: tags, then author id, then author name, then free
// text over title and description.
type SearchQuery struct {
	Query    string
	Tags     []string
	Author   string
	AuthorID string
	Page     int
	Limit    int
}

// Page is a paginated result slice together with its totals.
type Page struct {
	Items      []models.Record `json:"items"`
	Total      int             `json:"total"`
	TotalPages int             `json:"total_pages"`
	Page       int             `json:"page"`
}

// Repository is the cached store for one content kind. All database access
// runs on the bridge pool; cache reads and writes happen inline on the
// caller's goroutine.
//
// Cached records are cloned before they leave a read method, so callers may
// attach fields to results without racing other readers of the same cache
// entry.
type Repository[T models.Content] struct {
	db    *gorm.DB
	store *cache.Cache
	pool  *bridge.Pool
	cfg   Config
}

// New validates cfg and builds a repository. The pool may be nil, in which
// case database work runs inline.
func New[T models.Content](db *gorm.DB, store *cache.Cache, pool *bridge.Pool, cfg Config) (*Repository[T], error) {
	if db == nil {
		return nil, errors.New("repository: nil database handle")
	}
	if store == nil {
		return nil, errors.New("repository: nil cache")
	}
	if cfg.CachePrefix == "" {
		return nil, errors.New("repository: cache prefix is required")
	}
	if cfg.TagTable != "" && cfg.TagFK == "" {
		return nil, fmt.Errorf("repository: tag table %s needs a foreign key column", cfg.TagTable)
	}
	if cfg.Order == "" {
		cfg.Order = "created_at DESC"
	}

	return &Repository[T]{db: db, store: store, pool: pool, cfg: cfg}, nil
}

// Prefix returns the cache key namespace of this repository.
func (r *Repository[T]) Prefix() string { return r.cfg.CachePrefix }

func (r *Repository[T]) key(parts ...any) string {
	var b strings.Builder
	b.WriteString(r.cfg.CachePrefix)
	for i, part := range parts {
		if i == 0 {
			b.WriteString("_")
		} else {
			b.WriteString(":")
		}
		fmt.Fprintf(&b, "%v", part)
	}
	return b.String()
}

func (r *Repository[T]) cached(key string) (any, bool) {
	value, ok := r.store.GetSync(key)
	outcome := "miss"
	if ok {
		outcome = "hit"
	}
	metrics.CacheOperations.WithLabelValues(r.cfg.CachePrefix, outcome).Inc()
	return value, ok
}

func (r *Repository[T]) model(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Model(new(T))
}

// Count returns the number of rows of this kind, served from cache for up to
// a minute.
func (r *Repository[T]) Count(ctx context.Context) (int64, error) {
	key := r.key("count")
	if value, ok := r.cached(key); ok {
		if total, ok := value.(int64); ok {
			return total, nil
		}
	}

	total, err := bridge.Do(ctx, r.pool, func() (int64, error) {
		var n int64
		if err := r.model(ctx).Count(&n).Error; err != nil {
			return 0, err
		}
		return n, nil
	})
	if err != nil {
		return 0, err
	}

	r.store.SetSync(key, total, countTTL)
	return total, nil
}

// Paginated returns one listing page in the configured order. A page past the
// end of the data is an empty slice, not an error.
func (r *Repository[T]) Paginated(ctx context.Context, page, limit int) ([]models.Record, error) {
	page, limit = normalizePage(page, limit)

	key := r.key("paginated", page, limit)
	if value, ok := r.cached(key); ok {
		if items, ok := value.([]models.Record); ok {
			return models.CloneRecords(items), nil
		}
	}

	total, err := r.Count(ctx)
	if err != nil {
		return nil, err
	}

	offset := (page - 1) * limit
	if int64(offset) >= total {
		empty := []models.Record{}
		r.store.SetSync(key, empty, paginatedTTL)
		return empty, nil
	}

	rows, err := bridge.Do(ctx, r.pool, func() ([]T, error) {
		var out []T
		err := r.model(ctx).Order(r.cfg.Order).Offset(offset).Limit(limit).Find(&out).Error
		return out, err
	})
	if err != nil {
		return nil, err
	}

	items, err := r.processRows(ctx, rows)
	if err != nil {
		return nil, err
	}

	r.store.SetSync(key, items, paginatedTTL)
	return models.CloneRecords(items), nil
}

// ByID returns one item with its tags attached. A missing id reports
// found=false with a nil error.
func (r *Repository[T]) ByID(ctx context.Context, id uint) (models.Record, bool, error) {
	key := r.key("by_id", id)
	if value, ok := r.cached(key); ok {
		if record, ok := value.(models.Record); ok {
			return record.Clone(), true, nil
		}
	}

	row, found, err := r.fetchRow(ctx, id)
	if err != nil || !found {
		return nil, found, err
	}

	record, err := r.processRow(ctx, row)
	if err != nil {
		return nil, false, err
	}

	r.store.SetSync(key, record, byIDTTL)
	return record.Clone(), true, nil
}

// ByIDs pages through an explicit id list, preserving its order. The total is
// the length of the list; ids that no longer resolve are dropped from the
// page without shrinking the total.
func (r *Repository[T]) ByIDs(ctx context.Context, ids []uint, page, limit int) (*Page, error) {
	page, limit = normalizePage(page, limit)

	total := len(ids)
	if total == 0 {
		return &Page{Items: []models.Record{}, Page: page}, nil
	}

	start := (page - 1) * limit
	if start >= total {
		return &Page{Items: []models.Record{}, Total: total, TotalPages: totalPages(total, limit), Page: page}, nil
	}
	end := start + limit
	if end > total {
		end = total
	}

	rows, err := bridge.Do(ctx, r.pool, func() ([]T, error) {
		out := make([]T, 0, end-start)
		for _, id := range ids[start:end] {
			var row T
			err := r.db.WithContext(ctx).First(&row, "id = ?", id).Error
			if errors.Is(err, gorm.ErrRecordNotFound) {
				continue
			}
			if err != nil {
				return nil, err
			}
			out = append(out, row)
		}
		return out, nil
	})
	if err != nil {
		return nil, err
	}

	items, err := r.processRows(ctx, rows)
	if err != nil {
		return nil, err
	}

	return &Page{Items: items, Total: total, TotalPages: totalPages(total, limit), Page: page}, nil
}

// Search runs the highest-priority criterion present in q. With no criteria
// set it returns an empty page with a zero total.
func (r *Repository[T]) Search(ctx context.Context, q SearchQuery) (*Page, error) {
	q.Page, q.Limit = normalizePage(q.Page, q.Limit)

	switch {
	case len(q.Tags) > 0:
		return r.searchByTags(ctx, q)
	case q.AuthorID != "":
		return r.searchWhere(ctx, q, "author_id = ?", q.AuthorID)
	case q.Author != "":
		return r.searchWhere(ctx, q, "LOWER(author) LIKE ?", "%"+strings.ToLower(q.Author)+"%")
	case q.Query != "":
		needle := "%" + strings.ToLower(q.Query) + "%"
		return r.searchWhere(ctx, q, "LOWER(title) LIKE ? OR LOWER(description) LIKE ?", needle, needle)
	default:
		return &Page{Items: []models.Record{}, Page: q.Page}, nil
	}
}

func (r *Repository[T]) searchWhere(ctx context.Context, q SearchQuery, cond string, args ...any) (*Page, error) {
	type result struct {
		rows  []T
		total int64
	}

	res, err := bridge.Do(ctx, r.pool, func() (result, error) {
		var out result
		if err := r.model(ctx).Where(cond, args...).Count(&out.total).Error; err != nil {
			return out, err
		}
		err := r.model(ctx).Where(cond, args...).
			Order(r.cfg.Order).
			Offset((q.Page - 1) * q.Limit).
			Limit(q.Limit).
			Find(&out.rows).Error
		return out, err
	})
	if err != nil {
		return nil, err
	}

	items, err := r.processRows(ctx, res.rows)
	if err != nil {
		return nil, err
	}

	total := int(res.total)
	return &Page{Items: items, Total: total, TotalPages: totalPages(total, q.Limit), Page: q.Page}, nil
}

// searchByTags pages the intersection of the per-tag id sets. The matched ids
// are sorted ascending before slicing so repeated queries paginate the same
// underlying order.
func (r *Repository[T]) searchByTags(ctx context.Context, q SearchQuery) (*Page, error) {
	if r.cfg.TagTable == "" {
		return &Page{Items: []models.Record{}, Page: q.Page}, nil
	}

	ids, err := bridge.Do(ctx, r.pool, func() ([]uint, error) {
		var matched map[uint]bool
		for _, tag := range q.Tags {
			var tagged []uint
			err := r.db.WithContext(ctx).Table(r.cfg.TagTable).
				Where("tag = ?", tag).
				Pluck(r.cfg.TagFK, &tagged).Error
			if err != nil {
				return nil, err
			}

			next := make(map[uint]bool, len(tagged))
			for _, id := range tagged {
				if matched == nil || matched[id] {
					next[id] = true
				}
			}
			matched = next
			if len(matched) == 0 {
				break
			}
		}

		out := make([]uint, 0, len(matched))
		for id := range matched {
			out = append(out, id)
		}
		sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
		return out, nil
	})
	if err != nil {
		return nil, err
	}

	return r.ByIDs(ctx, ids, q.Page, q.Limit)
}

// AllTags returns the sorted distinct tag vocabulary of this kind.
func (r *Repository[T]) AllTags(ctx context.Context) ([]string, error) {
	if r.cfg.TagTable == "" {
		return []string{}, nil
	}

	key := r.key("all_tags")
	if value, ok := r.cached(key); ok {
		if tags, ok := value.([]string); ok {
			return tags, nil
		}
	}

	tags, err := bridge.Do(ctx, r.pool, func() ([]string, error) {
		var out []string
		err := r.db.WithContext(ctx).Table(r.cfg.TagTable).
			Distinct("tag").
			Order("tag").
			Pluck("tag", &out).Error
		return out, err
	})
	if err != nil {
		return nil, err
	}
	if tags == nil {
		tags = []string{}
	}

	r.store.SetSync(key, tags, listingTTL)
	return tags, nil
}

// AllAuthors returns the sorted distinct author names of this kind.
func (r *Repository[T]) AllAuthors(ctx context.Context) ([]string, error) {
	key := r.key("all_authors")
	if value, ok := r.cached(key); ok {
		if authors, ok := value.([]string); ok {
			return authors, nil
		}
	}

	authors, err := bridge.Do(ctx, r.pool, func() ([]string, error) {
		var out []string
		err := r.model(ctx).Distinct("author").Order("author").Pluck("author", &out).Error
		return out, err
	})
	if err != nil {
		return nil, err
	}
	if authors == nil {
		authors = []string{}
	}

	r.store.SetSync(key, authors, listingTTL)
	return authors, nil
}

// AuthorsByIDs returns the sorted distinct author names among the given ids.
func (r *Repository[T]) AuthorsByIDs(ctx context.Context, ids []uint) ([]string, error) {
	if len(ids) == 0 {
		return []string{}, nil
	}

	authors, err := bridge.Do(ctx, r.pool, func() ([]string, error) {
		var out []string
		err := r.model(ctx).Where("id IN ?", ids).
			Distinct("author").
			Order("author").
			Pluck("author", &out).Error
		return out, err
	})
	if err != nil {
		return nil, err
	}
	if authors == nil {
		authors = []string{}
	}
	return authors, nil
}

// TagsByIDs returns the sorted union of the tags attached to the given ids.
func (r *Repository[T]) TagsByIDs(ctx context.Context, ids []uint) ([]string, error) {
	if r.cfg.TagTable == "" || len(ids) == 0 {
		return []string{}, nil
	}

	tags, err := bridge.Do(ctx, r.pool, func() ([]string, error) {
		var out []string
		err := r.db.WithContext(ctx).Table(r.cfg.TagTable).
			Where(r.cfg.TagFK+" IN ?", ids).
			Distinct("tag").
			Order("tag").
			Pluck("tag", &out).Error
		return out, err
	})
	if err != nil {
		return nil, err
	}
	if tags == nil {
		tags = []string{}
	}
	return tags, nil
}

// Latest returns up to limit newest items as trimmed records carrying only the
// fields a listing card needs.
func (r *Repository[T]) Latest(ctx context.Context, limit int) ([]models.Record, error) {
	if limit <= 0 {
		limit = 3
	}

	key := r.key("latest", limit)
	if value, ok := r.cached(key); ok {
		if items, ok := value.([]models.Record); ok {
			return models.CloneRecords(items), nil
		}
	}

	rows, err := bridge.Do(ctx, r.pool, func() ([]T, error) {
		var out []T
		err := r.model(ctx).Order("created_at DESC").Limit(limit).Find(&out).Error
		return out, err
	})
	if err != nil {
		return nil, err
	}

	items := make([]models.Record, 0, len(rows))
	for _, row := range rows {
		items = append(items, summaryRecord(row.Item()))
	}

	r.store.SetSync(key, items, listingTTL)
	return models.CloneRecords(items), nil
}

// Recent returns the single newest item, or found=false on an empty table.
func (r *Repository[T]) Recent(ctx context.Context) (models.Record, bool, error) {
	key := r.key("recent")
	if value, ok := r.cached(key); ok {
		if record, ok := value.(models.Record); ok {
			return record.Clone(), true, nil
		}
	}

	type result struct {
		row   T
		found bool
	}
	res, err := bridge.Do(ctx, r.pool, func() (result, error) {
		var out result
		err := r.model(ctx).Order("created_at DESC").First(&out.row).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out.found = true
		return out, nil
	})
	if err != nil || !res.found {
		return nil, false, err
	}

	record, err := r.processRow(ctx, res.row)
	if err != nil {
		return nil, false, err
	}

	r.store.SetSync(key, record, listingTTL)
	return record.Clone(), true, nil
}

// Create inserts item, replaces its tag set and invalidates the listing
// caches. It returns the assigned id.
func (r *Repository[T]) Create(ctx context.Context, item *T, tags []string) (uint, error) {
	id, err := bridge.Do(ctx, r.pool, func() (uint, error) {
		if err := r.db.WithContext(ctx).Create(item).Error; err != nil {
			return 0, err
		}
		return (*item).ItemID(), nil
	})
	if err != nil {
		return 0, err
	}

	if err := r.replaceTags(ctx, id, tags); err != nil {
		return id, err
	}

	r.invalidate(0)
	return id, nil
}

// Update loads the item, lets apply mutate it, saves it and replaces its tag
// set. A missing id reports found=false with a nil error.
func (r *Repository[T]) Update(ctx context.Context, id uint, apply func(*T), tags []string) (bool, error) {
	found, err := bridge.Do(ctx, r.pool, func() (bool, error) {
		var row T
		err := r.db.WithContext(ctx).First(&row, "id = ?", id).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		if err != nil {
			return false, err
		}

		if apply != nil {
			apply(&row)
		}
		return true, r.db.WithContext(ctx).Save(&row).Error
	})
	if err != nil || !found {
		return found, err
	}

	if err := r.replaceTags(ctx, id, tags); err != nil {
		return true, err
	}

	r.invalidate(id)
	return true, nil
}

// Delete removes the item and its tag rows. A missing id reports found=false
// with a nil error.
func (r *Repository[T]) Delete(ctx context.Context, id uint) (bool, error) {
	found, err := bridge.Do(ctx, r.pool, func() (bool, error) {
		res := r.db.WithContext(ctx).Delete(new(T), "id = ?", id)
		if res.Error != nil {
			return false, res.Error
		}
		if res.RowsAffected == 0 {
			return false, nil
		}

		if r.cfg.TagTable != "" {
			err := r.db.WithContext(ctx).Table(r.cfg.TagTable).
				Where(r.cfg.TagFK+" = ?", id).
				Delete(nil).Error
			if err != nil {
				return true, err
			}
		}
		return true, nil
	})
	if err != nil || !found {
		return found, err
	}

	r.invalidate(id)
	return true, nil
}

// Invalidate drops the cached views touching id plus every listing key. An id
// of zero skips the per-item keys.
func (r *Repository[T]) Invalidate(id uint) { r.invalidate(id) }

func (r *Repository[T]) invalidate(id uint) {
	keys := []string{
		r.key("count"),
		r.key("all_tags"),
		r.key("all_authors"),
	}
	for page := 1; page <= invalidatePages; page++ {
		for _, limit := range invalidateLimits {
			keys = append(keys, r.key("paginated", page, limit))
		}
	}
	if id != 0 {
		keys = append(keys, r.key("by_id", id), r.key("tags_by_id", id))
	}

	r.store.DeleteSync(keys...)
	metrics.CacheOperations.WithLabelValues(r.cfg.CachePrefix, "invalidate").Inc()
}

// replaceTags swaps the full tag set of one item. Duplicates in the incoming
// slice collapse to a single row.
func (r *Repository[T]) replaceTags(ctx context.Context, id uint, tags []string) error {
	if r.cfg.TagTable == "" {
		return nil
	}

	unique := make([]string, 0, len(tags))
	seen := make(map[string]bool, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" || seen[tag] {
			continue
		}
		seen[tag] = true
		unique = append(unique, tag)
	}

	_, err := bridge.Do(ctx, r.pool, func() (struct{}, error) {
		err := r.db.WithContext(ctx).Table(r.cfg.TagTable).
			Where(r.cfg.TagFK+" = ?", id).
			Delete(nil).Error
		if err != nil {
			return struct{}{}, err
		}

		for _, tag := range unique {
			row := map[string]any{r.cfg.TagFK: id, "tag": tag}
			if err := r.db.WithContext(ctx).Table(r.cfg.TagTable).Create(row).Error; err != nil {
				return struct{}{}, err
			}
		}
		return struct{}{}, nil
	})
	if err != nil {
		return err
	}

	r.store.DeleteSync(r.key("tags_by_id", id), r.key("all_tags"))
	return nil
}

// tagsFor returns the tags of one item, cached for a short window.
func (r *Repository[T]) tagsFor(ctx context.Context, id uint) ([]string, error) {
	if r.cfg.TagTable == "" {
		return nil, nil
	}

	key := r.key("tags_by_id", id)
	if value, ok := r.cached(key); ok {
		if tags, ok := value.([]string); ok {
			return tags, nil
		}
	}

	tags, err := bridge.Do(ctx, r.pool, func() ([]string, error) {
		var out []string
		err := r.db.WithContext(ctx).Table(r.cfg.TagTable).
			Where(r.cfg.TagFK+" = ?", id).
			Order("tag").
			Pluck("tag", &out).Error
		return out, err
	})
	if err != nil {
		return nil, err
	}
	if tags == nil {
		tags = []string{}
	}

	r.store.SetSync(key, tags, tagsByIDTTL)
	return tags, nil
}

func (r *Repository[T]) fetchRow(ctx context.Context, id uint) (T, bool, error) {
	type result struct {
		row   T
		found bool
	}
	res, err := bridge.Do(ctx, r.pool, func() (result, error) {
		var out result
		err := r.db.WithContext(ctx).First(&out.row, "id = ?", id).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out.found = true
		return out, nil
	})
	return res.row, res.found, err
}

// processRow converts a row to its wire record and attaches tags for kinds
// that carry them.
func (r *Repository[T]) processRow(ctx context.Context, row T) (models.Record, error) {
	record := row.ToRecord()
	if r.cfg.TagTable == "" {
		return record, nil
	}

	tags, err := r.tagsFor(ctx, row.ItemID())
	if err != nil {
		return nil, err
	}
	record["tags"] = tags
	return record, nil
}

func (r *Repository[T]) processRows(ctx context.Context, rows []T) ([]models.Record, error) {
	items := make([]models.Record, 0, len(rows))
	for _, row := range rows {
		record, err := r.processRow(ctx, row)
		if err != nil {
			return nil, err
		}
		items = append(items, record)
	}
	return items, nil
}

// summaryRecord is the trimmed listing-card shape used by Latest.
func summaryRecord(item models.ContentItem) models.Record {
	full := item.ToRecord()
	return models.Record{
		"id":             full["id"],
		"title":          full["title"],
		"author":         full["author"],
		"author_id":      full["author_id"],
		"created_at":     full["created_at"],
		"thumbnail_path": full["thumbnail_path"],
	}
}

func normalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 10
	}
	return page, limit
}

func totalPages(total, limit int) int {
	if total <= 0 || limit <= 0 {
		return 0
	}
	return (total + limit - 1) / limit
}
