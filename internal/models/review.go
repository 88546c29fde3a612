package models

// Review is a film/show review in the content store.
type Review struct {
	ContentItem
}

// TableName keeps the legacy table name used by the content database.
func (Review) TableName() string { return "reviews" }

// ReviewTag associates one tag with one review, replace-all semantics as with
// BlogTag.
type ReviewTag struct {
	ID       uint   `gorm:"primaryKey" json:"id"`
	ReviewID uint   `gorm:"not null;index" json:"review_id"`
	Tag      string `gorm:"size:50;not null;index" json:"tag"`
}

// TableName keeps the legacy table name used by the content database.
func (ReviewTag) TableName() string { return "review_tags" }
