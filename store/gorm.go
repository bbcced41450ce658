package store

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/Topaz-Oz/Lience-Plate-Detect/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const textSearchExpr = "to_tsvector('simple', plate_number || ' ' || coalesce(province, '') || ' ' || coalesce(notes, ''))"

const haversineExpr = "6371000 * 2 * asin(sqrt(power(sin(radians(latitude - ?) / 2), 2) + " +
	"cos(radians(?)) * cos(radians(latitude)) * power(sin(radians(longitude - ?) / 2), 2)))"

// Gorm implements DetectionStore and UserStore on PostgreSQL.
type Gorm struct {
	db *gorm.DB
}

func NewGorm(db *gorm.DB) *Gorm {
	return &Gorm{db: db}
}

// Migrate creates the tables and the full-text index.
func (s *Gorm) Migrate() error {
	if err := s.db.AutoMigrate(&models.User{}, &models.DetectionRecord{}, &models.DailyStat{}); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	idx := "CREATE INDEX IF NOT EXISTS idx_detection_records_text ON detection_records USING GIN (" + textSearchExpr + ")"
	if err := s.db.Exec(idx).Error; err != nil {
		return fmt.Errorf("create text index: %w", err)
	}
	return nil
}

func (s *Gorm) Create(ctx context.Context, rec *models.DetectionRecord) error {
	if rec.Status == "" {
		rec.Status = models.StatusPending
	}
	return s.db.WithContext(ctx).Create(rec).Error
}

func (s *Gorm) FindByID(ctx context.Context, id uint) (*models.DetectionRecord, error) {
	var rec models.DetectionRecord
	if err := s.db.WithContext(ctx).First(&rec, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &rec, nil
}

func (s *Gorm) filtered(ctx context.Context, from, to *time.Time) *gorm.DB {
	q := s.db.WithContext(ctx).Model(&models.DetectionRecord{})
	if from != nil {
		q = q.Where("created_at >= ?", *from)
	}
	if to != nil {
		q = q.Where("created_at <= ?", *to)
	}
	return q
}

func (s *Gorm) List(ctx context.Context, f Filter) ([]models.DetectionRecord, int64, error) {
	q := s.filtered(ctx, f.From, f.To)
	if f.UserID != 0 {
		q = q.Where("user_id = ?", f.UserID)
	}
	if f.Plate != "" {
		q = q.Where("plate_number ILIKE ?", "%"+f.Plate+"%")
	}
	if f.Province != "" {
		q = q.Where("province = ?", f.Province)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.Query != "" {
		q = q.Where(textSearchExpr+" @@ plainto_tsquery('simple', ?)", f.Query)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []models.DetectionRecord
	q = q.Order(clause.OrderByColumn{Column: clause.Column{Name: f.sortColumn()}, Desc: !f.Ascending}).
		Order("id DESC").
		Offset(f.offset())
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

func (s *Gorm) Verify(ctx context.Context, id uint, status models.DetectionStatus, verifier uint, notes string) (*models.DetectionRecord, error) {
	rec, err := s.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	err = s.db.WithContext(ctx).Model(rec).Updates(map[string]any{
		"status":      status,
		"verified_by": verifier,
		"verified_at": now,
		"notes":       notes,
	}).Error
	if err != nil {
		return nil, err
	}
	rec.Status = status
	rec.VerifiedBy = &verifier
	rec.VerifiedAt = &now
	rec.Notes = notes
	return rec, nil
}

func (s *Gorm) Analytics(ctx context.Context, from, to *time.Time) (*Analytics, error) {
	a := &Analytics{}
	if err := s.filtered(ctx, from, to).Count(&a.TotalDetections).Error; err != nil {
		return nil, err
	}
	if err := s.filtered(ctx, from, to).Where("status = ?", models.StatusVerified).Count(&a.VerifiedDetections).Error; err != nil {
		return nil, err
	}
	a.VerificationRate = verificationRate(a.VerifiedDetections, a.TotalDetections)

	groups := []struct {
		expr string
		dest *[]Count
	}{
		{"province", &a.ByProvince},
		{"vehicle_type", &a.ByVehicleType},
	}
	for _, g := range groups {
		err := s.filtered(ctx, from, to).
			Select(g.expr + " AS key, count(*) AS count").
			Group(g.expr).Order("count DESC").
			Scan(g.dest).Error
		if err != nil {
			return nil, err
		}
	}

	err := s.filtered(ctx, from, to).
		Select("to_char(created_at, 'YYYY-MM-DD') AS key, count(*) AS count").
		Group("key").Order("key").
		Scan(&a.Daily).Error
	if err != nil {
		return nil, err
	}
	return a, nil
}

// Near returns records within radiusMeters of at, closest first. A bounding
// box on the (longitude, latitude) index narrows the haversine scan.
func (s *Gorm) Near(ctx context.Context, at models.GeoPoint, radiusMeters float64, limit int) ([]models.DetectionRecord, error) {
	dLat := radiusMeters / 111320
	dLon := radiusMeters / (111320 * math.Max(math.Cos(at.Latitude*math.Pi/180), 0.01))

	var rows []models.DetectionRecord
	err := s.db.WithContext(ctx).
		Where("latitude BETWEEN ? AND ?", at.Latitude-dLat, at.Latitude+dLat).
		Where("longitude BETWEEN ? AND ?", at.Longitude-dLon, at.Longitude+dLon).
		Where(haversineExpr+" <= ?", at.Latitude, at.Latitude, at.Longitude, radiusMeters).
		Order(clause.OrderBy{Expression: clause.Expr{
			SQL:                haversineExpr,
			Vars:               []any{at.Latitude, at.Latitude, at.Longitude},
			WithoutParentheses: true,
		}}).
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

func (s *Gorm) Export(ctx context.Context, from, to *time.Time) ([]models.DetectionRecord, error) {
	var rows []models.DetectionRecord
	err := s.filtered(ctx, from, to).Order("created_at DESC").Find(&rows).Error
	return rows, err
}

func (s *Gorm) DailyStats(ctx context.Context, from, to *time.Time) ([]models.DailyStat, error) {
	q := s.db.WithContext(ctx).Model(&models.DailyStat{})
	if from != nil {
		q = q.Where("day >= ?", *from)
	}
	if to != nil {
		q = q.Where("day <= ?", *to)
	}
	var rows []models.DailyStat
	err := q.Order("day").Find(&rows).Error
	return rows, err
}

func (s *Gorm) CreateUser(ctx context.Context, u *models.User) error {
	if u.Role == "" {
		u.Role = "user"
	}
	u.IsActive = true
	if err := s.db.WithContext(ctx).Create(u).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

func (s *Gorm) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	if err := s.db.WithContext(ctx).Where("email = ?", email).First(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

func (s *Gorm) FindUserByID(ctx context.Context, id uint) (*models.User, error) {
	var u models.User
	if err := s.db.WithContext(ctx).First(&u, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

func (s *Gorm) TouchLogin(ctx context.Context, id uint, at time.Time) error {
	return s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Update("last_login", at).Error
}

// updateUser applies updates to one user and returns the stored row.
func (s *Gorm) updateUser(ctx context.Context, id uint, updates map[string]any) (*models.User, error) {
	var u models.User
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&u, id).Error; err != nil {
			return err
		}
		if len(updates) == 0 {
			return nil
		}
		return tx.Model(&u).Updates(updates).Error
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *Gorm) UpdateProfile(ctx context.Context, id uint, p ProfileUpdate) (*models.User, error) {
	updates := map[string]any{}
	if p.Name != nil {
		updates["name"] = *p.Name
	}
	if p.PhoneNumber != nil {
		updates["phone_number"] = *p.PhoneNumber
	}
	if p.Address != nil {
		updates["address"] = *p.Address
	}
	return s.updateUser(ctx, id, updates)
}

func (s *Gorm) ListUsers(ctx context.Context) ([]models.User, error) {
	var users []models.User
	err := s.db.WithContext(ctx).Order("created_at DESC").Find(&users).Error
	return users, err
}

func (s *Gorm) SetRole(ctx context.Context, id uint, role string) (*models.User, error) {
	return s.updateUser(ctx, id, map[string]any{"role": role})
}

func (s *Gorm) SetActive(ctx context.Context, id uint, active bool) (*models.User, error) {
	return s.updateUser(ctx, id, map[string]any{"is_active": active})
}

func (s *Gorm) UserStats(ctx context.Context) (*UserStats, error) {
	var st UserStats
	err := s.db.WithContext(ctx).Model(&models.User{}).Select(
		"count(*) AS total_users, " +
			"count(*) FILTER (WHERE is_active) AS active_users, " +
			"count(*) FILTER (WHERE role = 'admin') AS admin_users",
	).Scan(&st).Error
	if err != nil {
		return nil, err
	}
	st.InactiveUsers = st.TotalUsers - st.ActiveUsers
	st.RegularUsers = st.TotalUsers - st.AdminUsers
	return &st, nil
}
