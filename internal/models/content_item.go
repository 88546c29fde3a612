package models

import (
	"gorm.io/datatypes"
)

// TimeFormat is the fixed timestamp layout stored in content rows. Timestamps
// are persisted as strings, not native temporal types; lexicographic order on
// this layout matches chronological order, which the newest-first pagination
// relies on.
const TimeFormat = "2006/01/02 15:04:05"

// Content constrains the generic repository to the content model types.
type Content interface {
	ItemID() uint
	Item() ContentItem
	RecordConvertible
}

// ContentItem carries the columns shared by every content kind.
//
// Author is a denormalized copy of the owner's display name; AuthorID is a
// weak reference into the separate user store and may be nil on legacy rows.
// The two can drift apart from the live user record and are only repaired by
// explicit updates.
type ContentItem struct {
	ID            uint           `gorm:"primaryKey" json:"id"`
	Title         string         `gorm:"size:255;not null;index" json:"title"`
	Author        string         `gorm:"size:30;not null;index" json:"author"`
	AuthorID      *string        `gorm:"type:text;index" json:"author_id"`
	Description   string         `gorm:"type:text" json:"description"`
	Content       datatypes.JSON `json:"content"`
	ThumbnailPath datatypes.JSON `json:"thumbnail_path"`
	CreatedAt     string         `gorm:"size:75;index;autoCreateTime:false" json:"created_at"`
	UpdatedAt     string         `gorm:"size:75;autoUpdateTime:false" json:"updated_at"`
}

// ItemID returns the store-assigned identifier.
func (c ContentItem) ItemID() uint { return c.ID }

// Item exposes the shared columns to code generic over content kinds.
func (c ContentItem) Item() ContentItem { return c }

// AuthorRef returns the denormalized author name and the cross-database
// author id (empty when the row has no owner reference).
func (c ContentItem) AuthorRef() (string, string) {
	id := ""
	if c.AuthorID != nil {
		id = *c.AuthorID
	}
	return c.Author, id
}

// ToRecord implements RecordConvertible.
func (c ContentItem) ToRecord() Record {
	var authorID any
	if c.AuthorID != nil {
		authorID = *c.AuthorID
	}

	return Record{
		"id":             c.ID,
		"title":          c.Title,
		"author":         c.Author,
		"author_id":      authorID,
		"description":    c.Description,
		"content":        decodeJSONColumn(c.Content),
		"thumbnail_path": decodeJSONColumn(c.ThumbnailPath),
		"created_at":     c.CreatedAt,
		"updated_at":     c.UpdatedAt,
	}
}
