package models

import "time"

type DetectionStatus string

const (
	StatusPending  DetectionStatus = "pending"
	StatusVerified DetectionStatus = "verified"
	StatusRejected DetectionStatus = "rejected"
)

// GeoPoint is a longitude/latitude pair. The zero value is the [0,0] default
// used when a request carries no coordinates.
type GeoPoint struct {
	Longitude float64 `gorm:"column:longitude;not null;default:0;index:idx_detection_records_location" json:"longitude"`
	Latitude  float64 `gorm:"column:latitude;not null;default:0;index:idx_detection_records_location" json:"latitude"`
}

type DetectionRecord struct {
	ID          uint            `gorm:"column:id;primaryKey" json:"id"`
	UserID      uint            `gorm:"column:user_id;not null;index" json:"user_id"`
	PlateNumber string          `gorm:"column:plate_number;not null;index" json:"plate_number"`
	Confidence  float64         `gorm:"column:confidence;not null" json:"confidence"`
	VehicleType string          `gorm:"column:vehicle_type" json:"vehicle_type,omitempty"`
	Province    string          `gorm:"column:province;index" json:"province,omitempty"`
	ImageURL    string          `gorm:"column:image_url" json:"image_url,omitempty"`
	Location    GeoPoint        `gorm:"embedded" json:"location"`
	Status      DetectionStatus `gorm:"column:status;type:varchar(20);not null;default:pending;index" json:"status"`
	VerifiedBy  *uint           `gorm:"column:verified_by" json:"verified_by,omitempty"`
	VerifiedAt  *time.Time      `gorm:"column:verified_at" json:"verified_at,omitempty"`
	Notes       string          `gorm:"column:notes" json:"notes,omitempty"`
	CreatedAt   time.Time       `gorm:"column:created_at;autoCreateTime;index" json:"timestamp"`
}

func (DetectionRecord) TableName() string { return "detection_records" }

// ValidVerdict reports whether s is a status the verification workflow may set.
func ValidVerdict(s DetectionStatus) bool {
	return s == StatusVerified || s == StatusRejected
}
