// Package store persists detection records, users and daily statistics.
package store

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/Topaz-Oz/Lience-Plate-Detect/models"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrDuplicate = errors.New("already exists")
)

// Filter selects detection records. Zero values mean "any". Page is 1-based.
type Filter struct {
	UserID    uint
	From      *time.Time
	To        *time.Time
	Plate     string
	Province  string
	Status    models.DetectionStatus
	Query     string
	SortBy    string
	Ascending bool
	Page      int
	Limit     int
}

// sortColumns maps accepted sort keys to columns.
var sortColumns = map[string]string{
	"timestamp":    "created_at",
	"created_at":   "created_at",
	"confidence":   "confidence",
	"plate_number": "plate_number",
	"province":     "province",
	"status":       "status",
}

func (f Filter) sortColumn() string {
	if col, ok := sortColumns[f.SortBy]; ok {
		return col
	}
	return "created_at"
}

func (f Filter) offset() int {
	if f.Page < 1 || f.Limit < 1 {
		return 0
	}
	return (f.Page - 1) * f.Limit
}

type Count struct {
	Key   string `json:"key"`
	Count int64  `json:"count"`
}

type Analytics struct {
	TotalDetections    int64   `json:"total_detections"`
	VerifiedDetections int64   `json:"verified_detections"`
	VerificationRate   float64 `json:"verification_rate"`
	ByProvince         []Count `json:"province_stats"`
	ByVehicleType      []Count `json:"vehicle_type_stats"`
	Daily              []Count `json:"daily_stats"`
}

type DetectionStore interface {
	Create(ctx context.Context, rec *models.DetectionRecord) error
	FindByID(ctx context.Context, id uint) (*models.DetectionRecord, error)
	List(ctx context.Context, f Filter) ([]models.DetectionRecord, int64, error)
	Verify(ctx context.Context, id uint, status models.DetectionStatus, verifier uint, notes string) (*models.DetectionRecord, error)
	Analytics(ctx context.Context, from, to *time.Time) (*Analytics, error)
	Near(ctx context.Context, at models.GeoPoint, radiusMeters float64, limit int) ([]models.DetectionRecord, error)
	Export(ctx context.Context, from, to *time.Time) ([]models.DetectionRecord, error)
	DailyStats(ctx context.Context, from, to *time.Time) ([]models.DailyStat, error)
}

// UserStore is the local identity collaborator.
type UserStore interface {
	CreateUser(ctx context.Context, u *models.User) error
	FindUserByEmail(ctx context.Context, email string) (*models.User, error)
	FindUserByID(ctx context.Context, id uint) (*models.User, error)
	TouchLogin(ctx context.Context, id uint, at time.Time) error
	UpdateProfile(ctx context.Context, id uint, p ProfileUpdate) (*models.User, error)
	ListUsers(ctx context.Context) ([]models.User, error)
	SetRole(ctx context.Context, id uint, role string) (*models.User, error)
	SetActive(ctx context.Context, id uint, active bool) (*models.User, error)
	UserStats(ctx context.Context) (*UserStats, error)
}

// ProfileUpdate holds the self-editable profile fields. Nil leaves a field
// unchanged.
type ProfileUpdate struct {
	Name        *string
	PhoneNumber *string
	Address     *string
}

func (p ProfileUpdate) apply(u *models.User) {
	if p.Name != nil {
		u.Name = *p.Name
	}
	if p.PhoneNumber != nil {
		u.PhoneNumber = *p.PhoneNumber
	}
	if p.Address != nil {
		u.Address = *p.Address
	}
}

type UserStats struct {
	TotalUsers    int64 `json:"totalUsers"`
	ActiveUsers   int64 `json:"activeUsers"`
	InactiveUsers int64 `json:"inactiveUsers"`
	AdminUsers    int64 `json:"adminUsers"`
	RegularUsers  int64 `json:"regularUsers"`
}

func verificationRate(verified, total int64) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(verified)/float64(total)*10000) / 100
}

const earthRadiusMeters = 6371000.0

// Distance returns the great-circle distance between a and b in meters.
func Distance(a, b models.GeoPoint) float64 {
	lat1 := a.Latitude * math.Pi / 180
	lat2 := b.Latitude * math.Pi / 180
	dLat := lat2 - lat1
	dLon := (b.Longitude - a.Longitude) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusMeters * math.Asin(math.Sqrt(h))
}
