package store

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/Topaz-Oz/Lience-Plate-Detect/models"
)

func seed(t *testing.T) *Memory {
	t.Helper()
	m := NewMemory()
	base := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	recs := []models.DetectionRecord{
		{UserID: 1, PlateNumber: "30A-12345", Confidence: 0.9, Province: "Hà Nội", VehicleType: "car", CreatedAt: base},
		{UserID: 1, PlateNumber: "51G-67890", Confidence: 0.7, Province: "TP. Hồ Chí Minh", VehicleType: "car", CreatedAt: base.Add(24 * time.Hour)},
		{UserID: 2, PlateNumber: "43A-1111", Confidence: 0.8, Province: "Đà Nẵng", VehicleType: "motorbike", CreatedAt: base.Add(48 * time.Hour),
			Location: models.GeoPoint{Longitude: 108.2022, Latitude: 16.0544}},
	}
	for i := range recs {
		if err := m.Create(context.Background(), &recs[i]); err != nil {
			t.Fatalf("Create() error: %v", err)
		}
	}
	return m
}

func TestMemoryCreateAssignsDefaults(t *testing.T) {
	m := NewMemory()
	rec := &models.DetectionRecord{PlateNumber: "30A-12345"}
	if err := m.Create(context.Background(), rec); err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	if rec.ID != 1 {
		t.Errorf("ID = %d, want 1", rec.ID)
	}
	if rec.Status != models.StatusPending {
		t.Errorf("Status = %q, want pending", rec.Status)
	}
	if rec.Location != (models.GeoPoint{}) {
		t.Errorf("Location = %+v, want [0,0]", rec.Location)
	}
}

func TestMemoryList(t *testing.T) {
	m := seed(t)
	from := time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		name      string
		filter    Filter
		wantTotal int64
		wantFirst string
	}{
		{"all newest first", Filter{}, 3, "43A-1111"},
		{"by user", Filter{UserID: 1}, 2, "51G-67890"},
		{"plate substring", Filter{Plate: "30a"}, 1, "30A-12345"},
		{"from date", Filter{From: &from}, 2, "43A-1111"},
		{"query", Filter{Query: "nẵng"}, 1, "43A-1111"},
		{"ascending confidence", Filter{SortBy: "confidence", Ascending: true}, 3, "51G-67890"},
		{"second page", Filter{Page: 2, Limit: 2}, 3, "30A-12345"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows, total, err := m.List(context.Background(), tt.filter)
			if err != nil {
				t.Fatalf("List() error: %v", err)
			}
			if total != tt.wantTotal {
				t.Errorf("total = %d, want %d", total, tt.wantTotal)
			}
			if len(rows) == 0 || rows[0].PlateNumber != tt.wantFirst {
				t.Errorf("first = %+v, want %s", rows, tt.wantFirst)
			}
		})
	}
}

func TestMemoryVerify(t *testing.T) {
	m := seed(t)
	rec, err := m.Verify(context.Background(), 2, models.StatusVerified, 9, "checked")
	if err != nil {
		t.Fatalf("Verify() error: %v", err)
	}
	if rec.Status != models.StatusVerified || rec.VerifiedBy == nil || *rec.VerifiedBy != 9 || rec.VerifiedAt == nil {
		t.Errorf("Verify() = %+v", rec)
	}
	if _, err := m.Verify(context.Background(), 99, models.StatusRejected, 9, ""); !errors.Is(err, ErrNotFound) {
		t.Errorf("Verify(missing) error = %v, want ErrNotFound", err)
	}
}

func TestMemoryAnalytics(t *testing.T) {
	m := seed(t)
	if _, err := m.Verify(context.Background(), 1, models.StatusVerified, 9, ""); err != nil {
		t.Fatal(err)
	}
	a, err := m.Analytics(context.Background(), nil, nil)
	if err != nil {
		t.Fatalf("Analytics() error: %v", err)
	}
	if a.TotalDetections != 3 || a.VerifiedDetections != 1 {
		t.Errorf("totals = %d/%d, want 3/1", a.TotalDetections, a.VerifiedDetections)
	}
	if a.VerificationRate != 33.33 {
		t.Errorf("VerificationRate = %v, want 33.33", a.VerificationRate)
	}
	if len(a.Daily) != 3 || a.Daily[0].Key != "2024-05-01" {
		t.Errorf("Daily = %+v", a.Daily)
	}
	if len(a.ByVehicleType) == 0 || a.ByVehicleType[0] != (Count{Key: "car", Count: 2}) {
		t.Errorf("ByVehicleType = %+v", a.ByVehicleType)
	}
}

func TestMemoryNear(t *testing.T) {
	m := seed(t)
	rows, err := m.Near(context.Background(), models.GeoPoint{Longitude: 108.2030, Latitude: 16.0550}, 1000, 10)
	if err != nil {
		t.Fatalf("Near() error: %v", err)
	}
	if len(rows) != 1 || rows[0].PlateNumber != "43A-1111" {
		t.Errorf("Near() = %+v, want only 43A-1111", rows)
	}
}

func TestMemoryUsers(t *testing.T) {
	m := NewMemory()
	u := &models.User{Email: "a@example.com", Password: "hash"}
	if err := m.CreateUser(context.Background(), u); err != nil {
		t.Fatalf("CreateUser() error: %v", err)
	}
	if err := m.CreateUser(context.Background(), &models.User{Email: "A@example.com"}); !errors.Is(err, ErrDuplicate) {
		t.Errorf("CreateUser(dup) error = %v, want ErrDuplicate", err)
	}
	got, err := m.FindUserByEmail(context.Background(), "a@example.com")
	if err != nil || got.ID != u.ID || got.Role != "user" {
		t.Errorf("FindUserByEmail() = %+v, %v", got, err)
	}
	if _, err := m.FindUserByID(context.Background(), 42); !errors.Is(err, ErrNotFound) {
		t.Errorf("FindUserByID(missing) error = %v, want ErrNotFound", err)
	}
}

func TestMemoryUserAdmin(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	a := &models.User{Email: "a@example.com", Name: "An"}
	b := &models.User{Email: "b@example.com", Role: "admin"}
	m.CreateUser(ctx, a)
	m.CreateUser(ctx, b)

	phone := "0901234567"
	got, err := m.UpdateProfile(ctx, a.ID, ProfileUpdate{PhoneNumber: &phone})
	if err != nil || got.PhoneNumber != phone || got.Name != "An" {
		t.Errorf("UpdateProfile() = %+v, %v", got, err)
	}
	if got, err = m.SetRole(ctx, a.ID, "admin"); err != nil || got.Role != "admin" {
		t.Errorf("SetRole() = %+v, %v", got, err)
	}
	if got, err = m.SetActive(ctx, b.ID, false); err != nil || got.IsActive {
		t.Errorf("SetActive() = %+v, %v", got, err)
	}
	for _, err := range []error{
		func() error { _, err := m.UpdateProfile(ctx, 42, ProfileUpdate{}); return err }(),
		func() error { _, err := m.SetRole(ctx, 42, "user"); return err }(),
		func() error { _, err := m.SetActive(ctx, 42, true); return err }(),
	} {
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("missing user error = %v, want ErrNotFound", err)
		}
	}

	users, _ := m.ListUsers(ctx)
	if len(users) != 2 {
		t.Fatalf("ListUsers() len = %d, want 2", len(users))
	}
	st, _ := m.UserStats(ctx)
	want := UserStats{TotalUsers: 2, ActiveUsers: 1, InactiveUsers: 1, AdminUsers: 2, RegularUsers: 0}
	if *st != want {
		t.Errorf("UserStats() = %+v, want %+v", *st, want)
	}
}

func TestDistance(t *testing.T) {
	hanoi := models.GeoPoint{Longitude: 105.8542, Latitude: 21.0285}
	hcm := models.GeoPoint{Longitude: 106.6297, Latitude: 10.8231}
	d := Distance(hanoi, hcm) / 1000
	if math.Abs(d-1137) > 15 {
		t.Errorf("Distance() = %.0f km, want about 1137 km", d)
	}
	if Distance(hanoi, hanoi) != 0 {
		t.Error("Distance to self should be 0")
	}
}
