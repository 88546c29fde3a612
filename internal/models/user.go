package models

import "time"

// User mirrors the profile table owned by the external auth service in the
// user database. This backend only ever reads it.
type User struct {
	ID          string  `gorm:"primaryKey;type:text" json:"id"`
	Name        string  `gorm:"not null" json:"name"`
	Email       string  `gorm:"uniqueIndex;not null" json:"email"`
	Image       *string `gorm:"type:text" json:"image"`
	Username    string  `gorm:"type:text;uniqueIndex;not null" json:"username"`
	DisplayName string  `gorm:"column:display_name;type:text;not null" json:"display_name"`
	Role        string  `gorm:"type:text;not null;default:user" json:"role"`
}

// TableName matches the auth service's singular table name.
func (User) TableName() string { return "user" }

// ToRecord implements RecordConvertible.
func (u User) ToRecord() Record {
	var image any
	if u.Image != nil {
		image = *u.Image
	}
	return Record{
		"id":           u.ID,
		"name":         u.Name,
		"username":     u.Username,
		"display_name": u.DisplayName,
		"image":        image,
	}
}

// BlogLike marks a blog post as liked by a user.
type BlogLike struct {
	UserID    string    `gorm:"primaryKey;type:text" json:"user_id"`
	BlogID    uint      `gorm:"primaryKey" json:"blog_id"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName matches the auth service's table name.
func (BlogLike) TableName() string { return "bloglikes" }

// ReviewLike marks a review as liked by a user.
type ReviewLike struct {
	UserID    string    `gorm:"primaryKey;type:text" json:"user_id"`
	ReviewID  uint      `gorm:"primaryKey" json:"review_id"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName matches the auth service's table name.
func (ReviewLike) TableName() string { return "reviewlikes" }

// ProjectLike marks a timeline entry as liked by a user.
type ProjectLike struct {
	UserID    string    `gorm:"primaryKey;type:text" json:"user_id"`
	ProjectID uint      `gorm:"primaryKey" json:"project_id"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName matches the auth service's table name.
func (ProjectLike) TableName() string { return "projectlikes" }
