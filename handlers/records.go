package handlers

import (
	"context"
	"encoding/csv"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/Topaz-Oz/Lience-Plate-Detect/middleware"
	"github.com/Topaz-Oz/Lience-Plate-Detect/models"
	"github.com/Topaz-Oz/Lience-Plate-Detect/services"
	"github.com/Topaz-Oz/Lience-Plate-Detect/store"

	"github.com/gin-gonic/gin"
)

const (
	analyticsTTL        = 60 * time.Second
	analyticsKeyPattern = "records:analytics:*"
)

// ResultCache holds computed responses. *services.CacheService implements it.
type ResultCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeletePattern(ctx context.Context, pattern string) error
}

type RecordsHandler struct {
	detections store.DetectionStore
	cache      ResultCache
}

func NewRecordsHandler(detections store.DetectionStore, cache ResultCache) *RecordsHandler {
	return &RecordsHandler{detections: detections, cache: cache}
}

type VerifyRequest struct {
	Status models.DetectionStatus `json:"status"`
	Notes  string                 `json:"notes"`
}

func (h *RecordsHandler) List(c *gin.Context) {
	p := ParsePagination(c)
	from, to, err := ParseDateRange(c)
	if err != nil {
		badRequest(c, "invalid date: %v", err)
		return
	}

	f := store.Filter{
		From:      from,
		To:        to,
		Plate:     c.Query("plateNumber"),
		Province:  c.Query("province"),
		Status:    models.DetectionStatus(c.Query("status")),
		Query:     c.Query("q"),
		SortBy:    c.DefaultQuery("sortBy", "timestamp"),
		Ascending: c.Query("sortOrder") == "asc",
		Page:      p.Page,
		Limit:     p.Limit,
	}
	rows, total, err := h.detections.List(c.Request.Context(), f)
	if err != nil {
		respondError(c, services.PersistenceError(err))
		return
	}
	if rows == nil {
		rows = []models.DetectionRecord{}
	}
	c.JSON(http.StatusOK, NewPageResponse(rows, total, p))
}

func (h *RecordsHandler) Analytics(c *gin.Context) {
	from, to, err := ParseDateRange(c)
	if err != nil {
		badRequest(c, "invalid date: %v", err)
		return
	}

	cacheKey := fmt.Sprintf("records:analytics:%s:%s", c.Query("startDate"), c.Query("endDate"))
	var cached store.Analytics
	if err := h.cache.Get(c.Request.Context(), cacheKey, &cached); err == nil {
		c.JSON(http.StatusOK, cached)
		return
	}

	a, err := h.detections.Analytics(c.Request.Context(), from, to)
	if err != nil {
		respondError(c, services.PersistenceError(err))
		return
	}
	go h.cache.Set(context.Background(), cacheKey, a, analyticsTTL)

	c.JSON(http.StatusOK, a)
}

func (h *RecordsHandler) Verify(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		badRequest(c, "invalid record id")
		return
	}
	var req VerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request: %v", err)
		return
	}
	if !models.ValidVerdict(req.Status) {
		badRequest(c, "invalid status %q", req.Status)
		return
	}

	rec, err := h.detections.Verify(c.Request.Context(), uint(id), req.Status, middleware.CurrentUserID(c), req.Notes)
	if err != nil {
		respondError(c, err)
		return
	}
	// verification_rate changed
	if err := h.cache.DeletePattern(c.Request.Context(), analyticsKeyPattern); err != nil {
		log.Printf("invalidate analytics cache: %v", err)
	}
	c.JSON(http.StatusOK, rec)
}

func (h *RecordsHandler) Location(c *gin.Context) {
	lon, err1 := strconv.ParseFloat(c.Query("longitude"), 64)
	lat, err2 := strconv.ParseFloat(c.Query("latitude"), 64)
	if err1 != nil || err2 != nil {
		badRequest(c, "longitude and latitude are required")
		return
	}
	radius, err := strconv.ParseFloat(c.DefaultQuery("radius", "1000"), 64)
	if err != nil || radius <= 0 {
		badRequest(c, "invalid radius")
		return
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "10"))
	if err != nil || limit <= 0 {
		badRequest(c, "invalid limit")
		return
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}

	rows, err := h.detections.Near(c.Request.Context(), models.GeoPoint{Longitude: lon, Latitude: lat}, radius, limit)
	if err != nil {
		respondError(c, services.PersistenceError(err))
		return
	}
	if rows == nil {
		rows = []models.DetectionRecord{}
	}
	c.JSON(http.StatusOK, rows)
}

var exportHeader = []string{
	"plate_number", "timestamp", "confidence", "province", "vehicle_type",
	"status", "verified_by", "verified_at", "notes",
}

func (h *RecordsHandler) Export(c *gin.Context) {
	format := c.DefaultQuery("format", "csv")
	if format != "csv" && format != "json" {
		badRequest(c, "format must be csv or json")
		return
	}
	from, to, err := ParseDateRange(c)
	if err != nil {
		badRequest(c, "invalid date: %v", err)
		return
	}

	rows, err := h.detections.Export(c.Request.Context(), from, to)
	if err != nil {
		respondError(c, services.PersistenceError(err))
		return
	}
	if format == "json" {
		if rows == nil {
			rows = []models.DetectionRecord{}
		}
		c.JSON(http.StatusOK, rows)
		return
	}

	c.Header("Content-Type", "text/csv")
	c.Header("Content-Disposition", "attachment; filename=detection_records.csv")
	c.Status(http.StatusOK)
	w := csv.NewWriter(c.Writer)
	w.Write(exportHeader)
	for _, r := range rows {
		w.Write(csvRow(r))
	}
	w.Flush()
}

func csvRow(r models.DetectionRecord) []string {
	var verifiedBy, verifiedAt string
	if r.VerifiedBy != nil {
		verifiedBy = strconv.FormatUint(uint64(*r.VerifiedBy), 10)
	}
	if r.VerifiedAt != nil {
		verifiedAt = r.VerifiedAt.Format(time.RFC3339)
	}
	return []string{
		r.PlateNumber,
		r.CreatedAt.Format(time.RFC3339),
		strconv.FormatFloat(r.Confidence, 'f', -1, 64),
		r.Province,
		r.VehicleType,
		string(r.Status),
		verifiedBy,
		verifiedAt,
		r.Notes,
	}
}

// DailyStats returns the aggregator's per-day rows.
func (h *RecordsHandler) DailyStats(c *gin.Context) {
	from, to, err := ParseDateRange(c)
	if err != nil {
		badRequest(c, "invalid date: %v", err)
		return
	}
	rows, err := h.detections.DailyStats(c.Request.Context(), from, to)
	if err != nil {
		respondError(c, services.PersistenceError(err))
		return
	}
	if rows == nil {
		rows = []models.DailyStat{}
	}
	c.JSON(http.StatusOK, rows)
}
