package models

import "time"

// DailyStat is one row written by the aggregator per calendar day.
type DailyStat struct {
	Day              time.Time `gorm:"column:day;primaryKey;type:date" json:"day"`
	Total            int64     `gorm:"column:total" json:"total"`
	Verified         int64     `gorm:"column:verified" json:"verified"`
	Rejected         int64     `gorm:"column:rejected" json:"rejected"`
	MeanConfidence   float64   `gorm:"column:mean_confidence" json:"mean_confidence"`
	StdDevConfidence float64   `gorm:"column:stddev_confidence" json:"stddev_confidence"`
	Trend            float64   `gorm:"column:trend" json:"trend"`
	UpdatedAt        time.Time `gorm:"column:updated_at" json:"updated_at"`
}

func (DailyStat) TableName() string { return "detection_daily_stats" }
