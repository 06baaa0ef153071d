package domain

import "time"

// SnapDateLayout is the calendar-date layout used in exported tables and
// persisted rows.
const SnapDateLayout = "20060102"

// NewsRecord is one news article handed to the extraction pipeline.
// Records are created by a news source and never mutated afterwards.
type NewsRecord struct {
	SnapDate       time.Time `json:"snap_date"`
	RecordID       string    `json:"news_id"`
	Text           string    `json:"content"`
	RelatedProduct string    `json:"related_product"`
}

// SnapDateKey returns the record's snap date in SnapDateLayout.
func (r NewsRecord) SnapDateKey() string {
	return r.SnapDate.Format(SnapDateLayout)
}

// NewsArticle is a row of the upstream news table.
type NewsArticle struct {
	NewsID         string    `gorm:"column:news_id;type:text;primaryKey" json:"news_id"`
	NewsDate       time.Time `gorm:"column:news_date;index:idx_news_date" json:"news_date"`
	Subject        string    `gorm:"column:subject;type:text" json:"subject"`
	Content        string    `gorm:"column:content;type:text" json:"content"`
	RelatedProduct string    `gorm:"column:related_product;type:text" json:"related_product"`
	NewsType       string    `gorm:"column:news_type;type:text" json:"news_type"`
}

// TableName returns the database table name for NewsArticle.
func (NewsArticle) TableName() string {
	return "news"
}
