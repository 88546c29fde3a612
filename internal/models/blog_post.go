package models

// BlogPost is a long-form post in the content store.
type BlogPost struct {
	ContentItem
}

// TableName keeps the legacy table name used by the content database.
func (BlogPost) TableName() string { return "blog_posts" }

// BlogTag associates one tag with one blog post. The full set for a post is
// replaced wholesale on every create/update.
type BlogTag struct {
	ID     uint   `gorm:"primaryKey" json:"id"`
	BlogID uint   `gorm:"not null;index" json:"blog_id"`
	Tag    string `gorm:"size:50;not null;index" json:"tag"`
}

// TableName keeps the legacy table name used by the content database.
func (BlogTag) TableName() string { return "blog_tags" }
