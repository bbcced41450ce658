package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Topaz-Oz/Lience-Plate-Detect/models"
)

// Memory is an in-process DetectionStore and UserStore for tests and local
// development.
type Memory struct {
	mu      sync.RWMutex
	records []models.DetectionRecord
	users   []models.User
	stats   map[string]models.DailyStat
	nextRec uint
	nextUsr uint
}

func NewMemory() *Memory {
	return &Memory{stats: make(map[string]models.DailyStat)}
}

func (m *Memory) Create(_ context.Context, rec *models.DetectionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextRec++
	rec.ID = m.nextRec
	if rec.Status == "" {
		rec.Status = models.StatusPending
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	m.records = append(m.records, *rec)
	return nil
}

func (m *Memory) FindByID(_ context.Context, id uint) (*models.DetectionRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for i := range m.records {
		if m.records[i].ID == id {
			rec := m.records[i]
			return &rec, nil
		}
	}
	return nil, ErrNotFound
}

func inRange(t time.Time, from, to *time.Time) bool {
	if from != nil && t.Before(*from) {
		return false
	}
	if to != nil && t.After(*to) {
		return false
	}
	return true
}

func containsFold(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}

func (f Filter) matches(r *models.DetectionRecord) bool {
	if f.UserID != 0 && r.UserID != f.UserID {
		return false
	}
	if !inRange(r.CreatedAt, f.From, f.To) {
		return false
	}
	if f.Plate != "" && !containsFold(r.PlateNumber, f.Plate) {
		return false
	}
	if f.Province != "" && r.Province != f.Province {
		return false
	}
	if f.Status != "" && r.Status != f.Status {
		return false
	}
	if f.Query != "" {
		text := r.PlateNumber + " " + r.Province + " " + r.Notes
		for _, word := range strings.Fields(f.Query) {
			if !containsFold(text, word) {
				return false
			}
		}
	}
	return true
}

func less(col string, a, b *models.DetectionRecord) bool {
	switch col {
	case "confidence":
		return a.Confidence < b.Confidence
	case "plate_number":
		return a.PlateNumber < b.PlateNumber
	case "province":
		return a.Province < b.Province
	case "status":
		return a.Status < b.Status
	}
	if a.CreatedAt.Equal(b.CreatedAt) {
		return a.ID < b.ID
	}
	return a.CreatedAt.Before(b.CreatedAt)
}

func (m *Memory) List(_ context.Context, f Filter) ([]models.DetectionRecord, int64, error) {
	m.mu.RLock()
	var rows []models.DetectionRecord
	for i := range m.records {
		if f.matches(&m.records[i]) {
			rows = append(rows, m.records[i])
		}
	}
	m.mu.RUnlock()

	col := f.sortColumn()
	sort.SliceStable(rows, func(i, j int) bool {
		if f.Ascending {
			return less(col, &rows[i], &rows[j])
		}
		return less(col, &rows[j], &rows[i])
	})

	total := int64(len(rows))
	start := f.offset()
	if start > len(rows) {
		start = len(rows)
	}
	rows = rows[start:]
	if f.Limit > 0 && len(rows) > f.Limit {
		rows = rows[:f.Limit]
	}
	return rows, total, nil
}

func (m *Memory) Verify(_ context.Context, id uint, status models.DetectionStatus, verifier uint, notes string) (*models.DetectionRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.records {
		if m.records[i].ID != id {
			continue
		}
		now := time.Now()
		v := verifier
		m.records[i].Status = status
		m.records[i].VerifiedBy = &v
		m.records[i].VerifiedAt = &now
		m.records[i].Notes = notes
		rec := m.records[i]
		return &rec, nil
	}
	return nil, ErrNotFound
}

func (m *Memory) Analytics(_ context.Context, from, to *time.Time) (*Analytics, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	a := &Analytics{}
	provinces := map[string]int64{}
	vehicles := map[string]int64{}
	days := map[string]int64{}
	for i := range m.records {
		r := &m.records[i]
		if !inRange(r.CreatedAt, from, to) {
			continue
		}
		a.TotalDetections++
		if r.Status == models.StatusVerified {
			a.VerifiedDetections++
		}
		provinces[r.Province]++
		vehicles[r.VehicleType]++
		days[r.CreatedAt.Format("2006-01-02")]++
	}
	a.VerificationRate = verificationRate(a.VerifiedDetections, a.TotalDetections)
	a.ByProvince = byCountDesc(provinces)
	a.ByVehicleType = byCountDesc(vehicles)
	a.Daily = byKey(days)
	return a, nil
}

func byCountDesc(m map[string]int64) []Count {
	out := byKey(m)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	return out
}

func byKey(m map[string]int64) []Count {
	out := make([]Count, 0, len(m))
	for k, v := range m {
		out = append(out, Count{Key: k, Count: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

func (m *Memory) Near(_ context.Context, at models.GeoPoint, radiusMeters float64, limit int) ([]models.DetectionRecord, error) {
	m.mu.RLock()
	type hit struct {
		rec  models.DetectionRecord
		dist float64
	}
	var hits []hit
	for _, r := range m.records {
		if d := Distance(at, r.Location); d <= radiusMeters {
			hits = append(hits, hit{rec: r, dist: d})
		}
	}
	m.mu.RUnlock()

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].dist < hits[j].dist })
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	rows := make([]models.DetectionRecord, len(hits))
	for i, h := range hits {
		rows[i] = h.rec
	}
	return rows, nil
}

func (m *Memory) Export(ctx context.Context, from, to *time.Time) ([]models.DetectionRecord, error) {
	rows, _, err := m.List(ctx, Filter{From: from, To: to})
	return rows, err
}

// SaveDailyStat upserts one aggregated day.
func (m *Memory) SaveDailyStat(s models.DailyStat) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stats[s.Day.Format("2006-01-02")] = s
}

func (m *Memory) DailyStats(_ context.Context, from, to *time.Time) ([]models.DailyStat, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var rows []models.DailyStat
	for _, s := range m.stats {
		if inRange(s.Day, from, to) {
			rows = append(rows, s)
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Day.Before(rows[j].Day) })
	return rows, nil
}

func (m *Memory) CreateUser(_ context.Context, u *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		if strings.EqualFold(existing.Email, u.Email) {
			return ErrDuplicate
		}
	}
	m.nextUsr++
	u.ID = m.nextUsr
	if u.Role == "" {
		u.Role = "user"
	}
	u.IsActive = true
	u.CreatedAt = time.Now()
	m.users = append(m.users, *u)
	return nil
}

func (m *Memory) FindUserByEmail(_ context.Context, email string) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.users {
		if strings.EqualFold(u.Email, email) {
			return &u, nil
		}
	}
	return nil, ErrNotFound
}

func (m *Memory) FindUserByID(_ context.Context, id uint) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.users {
		if u.ID == id {
			return &u, nil
		}
	}
	return nil, ErrNotFound
}

func (m *Memory) TouchLogin(_ context.Context, id uint, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u := m.user(id)
	if u == nil {
		return ErrNotFound
	}
	u.LastLogin = &at
	return nil
}

// user returns a pointer into m.users; callers hold m.mu.
func (m *Memory) user(id uint) *models.User {
	for i := range m.users {
		if m.users[i].ID == id {
			return &m.users[i]
		}
	}
	return nil
}

func (m *Memory) UpdateProfile(_ context.Context, id uint, p ProfileUpdate) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u := m.user(id)
	if u == nil {
		return nil, ErrNotFound
	}
	p.apply(u)
	out := *u
	return &out, nil
}

func (m *Memory) ListUsers(_ context.Context) ([]models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.User, len(m.users))
	copy(out, m.users)
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *Memory) SetRole(_ context.Context, id uint, role string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u := m.user(id)
	if u == nil {
		return nil, ErrNotFound
	}
	u.Role = role
	out := *u
	return &out, nil
}

func (m *Memory) SetActive(_ context.Context, id uint, active bool) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u := m.user(id)
	if u == nil {
		return nil, ErrNotFound
	}
	u.IsActive = active
	out := *u
	return &out, nil
}

func (m *Memory) UserStats(_ context.Context) (*UserStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var st UserStats
	for _, u := range m.users {
		st.TotalUsers++
		if u.IsActive {
			st.ActiveUsers++
		}
		if u.Role == "admin" {
			st.AdminUsers++
		}
	}
	st.InactiveUsers = st.TotalUsers - st.ActiveUsers
	st.RegularUsers = st.TotalUsers - st.AdminUsers
	return &st, nil
}
