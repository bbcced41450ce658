package main

import (
	"math"
	"os"
	"testing"
	"time"

	"github.com/Topaz-Oz/Lience-Plate-Detect/models"
)

func TestFitLinearRegression(t *testing.T) {
	t.Run("perfect positive trend", func(t *testing.T) {
		xs := []float64{0, 1, 2, 3, 4, 5}
		ys := []float64{10, 12, 14, 16, 18, 20}
		slope, intercept := fitLinearRegression(xs, ys)
		if math.Abs(slope-2) > 0.001 {
			t.Errorf("slope = %v, want ~2", slope)
		}
		if math.Abs(intercept-10) > 0.001 {
			t.Errorf("intercept = %v, want ~10", intercept)
		}
	})

	t.Run("flat trend", func(t *testing.T) {
		xs := []float64{0, 1, 2, 3}
		ys := []float64{5, 5, 5, 5}
		slope, intercept := fitLinearRegression(xs, ys)
		if math.Abs(slope) > 0.001 {
			t.Errorf("slope = %v, want ~0", slope)
		}
		if math.Abs(intercept-5) > 0.001 {
			t.Errorf("intercept = %v, want ~5", intercept)
		}
	})

	t.Run("falling volume", func(t *testing.T) {
		slope, _ := fitLinearRegression([]float64{0, 1, 2, 3}, []float64{40, 30, 20, 10})
		if slope >= 0 {
			t.Errorf("slope = %v, should be negative", slope)
		}
	})

	t.Run("single point fallback", func(t *testing.T) {
		slope, intercept := fitLinearRegression([]float64{0}, []float64{7})
		if slope != 0 || intercept != 7 {
			t.Errorf("got (%v, %v), want (0, 7)", slope, intercept)
		}
	})

	t.Run("no points", func(t *testing.T) {
		slope, intercept := fitLinearRegression(nil, nil)
		if slope != 0 || intercept != 0 {
			t.Errorf("got (%v, %v), want (0, 0)", slope, intercept)
		}
	})
}

func TestMeanStdDev(t *testing.T) {
	tests := []struct {
		name     string
		in       []float64
		wantMean float64
		wantStd  float64
	}{
		{"empty", nil, 0, 0},
		{"single", []float64{0.8}, 0.8, 0},
		{"pair", []float64{0.7, 0.9}, 0.8, math.Sqrt(0.02)},
		{"constant", []float64{0.9, 0.9, 0.9}, 0.9, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mean, std := meanStdDev(tt.in)
			if math.Abs(mean-tt.wantMean) > 1e-9 {
				t.Errorf("mean = %v, want %v", mean, tt.wantMean)
			}
			if math.Abs(std-tt.wantStd) > 1e-9 {
				t.Errorf("stddev = %v, want %v", std, tt.wantStd)
			}
		})
	}
}

func TestBuildDailyStats(t *testing.T) {
	from := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2025, 5, 3, 17, 45, 0, 0, time.UTC)
	at := func(d, h int) time.Time { return from.Add(time.Duration(d)*day + time.Duration(h)*time.Hour) }

	samples := []sample{
		{At: at(0, 1), Status: models.StatusVerified, Confidence: 0.7},
		{At: at(0, 9), Status: models.StatusRejected, Confidence: 0.9},
		{At: at(2, 3), Status: models.StatusPending, Confidence: 0.8},
		{At: at(2, 4), Status: models.StatusVerified, Confidence: 0.8},
		{At: at(2, 5), Status: models.StatusPending, Confidence: 0.8},
		{At: at(2, 6), Status: models.StatusPending, Confidence: 0.8},
		{At: at(-1, 0), Status: models.StatusPending, Confidence: 0.99},
		{At: at(5, 0), Status: models.StatusPending, Confidence: 0.99},
	}

	stats := buildDailyStats(samples, from, to)
	if len(stats) != 3 {
		t.Fatalf("len = %d, want 3 days", len(stats))
	}

	for i, s := range stats {
		if want := from.Add(time.Duration(i) * day); !s.Day.Equal(want) {
			t.Errorf("day %d = %v, want %v", i, s.Day, want)
		}
	}

	first := stats[0]
	if first.Total != 2 || first.Verified != 1 || first.Rejected != 1 {
		t.Errorf("day 0 counts = %+v", first)
	}
	if math.Abs(first.MeanConfidence-0.8) > 1e-9 {
		t.Errorf("day 0 mean = %v, want 0.8", first.MeanConfidence)
	}
	if first.Trend != 0 {
		t.Errorf("day 0 trend = %v, want 0", first.Trend)
	}

	empty := stats[1]
	if empty.Total != 0 || empty.MeanConfidence != 0 || empty.StdDevConfidence != 0 {
		t.Errorf("day 1 should be an empty row, got %+v", empty)
	}

	last := stats[2]
	if last.Total != 4 || last.Verified != 1 || last.Rejected != 0 {
		t.Errorf("day 2 counts = %+v", last)
	}
	if last.StdDevConfidence > 1e-9 {
		t.Errorf("day 2 stddev = %v, want 0", last.StdDevConfidence)
	}
	// totals 2, 0, 4 -> slope 1
	if math.Abs(last.Trend-1) > 1e-9 {
		t.Errorf("day 2 trend = %v, want 1", last.Trend)
	}
}

func TestBuildDailyStatsEmptyWindow(t *testing.T) {
	now := time.Now().UTC()
	if got := buildDailyStats(nil, now, now.Add(-2*day)); got != nil {
		t.Errorf("inverted window = %v, want nil", got)
	}
}

func TestGetEnvInt(t *testing.T) {
	t.Run("returns fallback when unset", func(t *testing.T) {
		os.Unsetenv("TEST_AGG_INT")
		if got := getEnvInt("TEST_AGG_INT", 42); got != 42 {
			t.Errorf("got %d, want 42", got)
		}
	})

	t.Run("parses valid int", func(t *testing.T) {
		os.Setenv("TEST_AGG_INT", "7")
		defer os.Unsetenv("TEST_AGG_INT")
		if got := getEnvInt("TEST_AGG_INT", 42); got != 7 {
			t.Errorf("got %d, want 7", got)
		}
	})

	t.Run("invalid int returns fallback", func(t *testing.T) {
		os.Setenv("TEST_AGG_INT", "abc")
		defer os.Unsetenv("TEST_AGG_INT")
		if got := getEnvInt("TEST_AGG_INT", 42); got != 42 {
			t.Errorf("got %d, want 42", got)
		}
	})
}
