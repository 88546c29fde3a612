package models

// TimelineEntry is one project on the release timeline. It shares the common
// content columns and adds the release metadata; timeline entries carry no
// tags.
type TimelineEntry struct {
	ContentItem

	Phase       int    `gorm:"not null;index" json:"phase"`
	ReleaseDate string `gorm:"size:75" json:"release_date"`
}

// TableName keeps the legacy table name used by the content database.
func (TimelineEntry) TableName() string { return "timeline_entries" }

// ToRecord implements RecordConvertible, extending the shared record with the
// release metadata.
func (t TimelineEntry) ToRecord() Record {
	record := t.ContentItem.ToRecord()
	record["phase"] = t.Phase
	record["release_date"] = t.ReleaseDate
	return record
}
