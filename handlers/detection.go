package handlers

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/Topaz-Oz/Lience-Plate-Detect/middleware"
	"github.com/Topaz-Oz/Lience-Plate-Detect/models"
	"github.com/Topaz-Oz/Lience-Plate-Detect/plate"
	"github.com/Topaz-Oz/Lience-Plate-Detect/services"
	"github.com/Topaz-Oz/Lience-Plate-Detect/storage"
	"github.com/Topaz-Oz/Lience-Plate-Detect/store"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

var allowedImageExt = map[string]bool{".jpg": true, ".jpeg": true, ".png": true, ".bmp": true, ".webp": true}

type DetectionHandler struct {
	orchestrator *services.Orchestrator
	detections   store.DetectionStore
	images       storage.ImageStore
	tempDir      string
	maxBytes     int64
}

func NewDetectionHandler(o *services.Orchestrator, detections store.DetectionStore, images storage.ImageStore, tempDir string, maxBytes int64) *DetectionHandler {
	if tempDir == "" {
		tempDir = os.TempDir()
	}
	return &DetectionHandler{orchestrator: o, detections: detections, images: images, tempDir: tempDir, maxBytes: maxBytes}
}

type Coordinates struct {
	Longitude float64 `json:"longitude"`
	Latitude  float64 `json:"latitude"`
}

func (c *Coordinates) point() *models.GeoPoint {
	if c == nil {
		return nil
	}
	return &models.GeoPoint{Longitude: c.Longitude, Latitude: c.Latitude}
}

type StreamRequest struct {
	Image       string       `json:"image" binding:"required"`
	Coordinates *Coordinates `json:"coordinates"`
}

type SaveRequest struct {
	PlateNumber string       `json:"plate_number"`
	Confidence  float64      `json:"confidence"`
	VehicleType string       `json:"vehicle_type"`
	Province    string       `json:"province"`
	ImageURL    string       `json:"image_url"`
	Coordinates *Coordinates `json:"coordinates"`
}

// Upload handles POST /detection/upload (multipart "image", optional
// "longitude"/"latitude" form fields). The image is kept in the image store
// only when its reading is accepted. Every failure is also sent to the
// caller's realtime channel.
func (h *DetectionHandler) Upload(c *gin.Context) {
	owner := middleware.CurrentUserID(c)
	fail := func(err error) { respondError(c, h.orchestrator.Reject(owner, err)) }

	if h.maxBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBytes)
	}
	fh, err := c.FormFile("image")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			fail(services.ValidationError("image exceeds %d bytes", h.maxBytes))
			return
		}
		fail(services.ValidationError("no image uploaded"))
		return
	}
	ext := strings.ToLower(filepath.Ext(fh.Filename))
	if ext == "" {
		ext = ".jpg"
	}
	if !allowedImageExt[ext] {
		fail(services.ValidationError("unsupported image type %q", ext))
		return
	}
	coords, err := formCoordinates(c)
	if err != nil {
		fail(err)
		return
	}

	name := uuid.NewString() + ext
	tmp, err := h.persistTemp(fh, name)
	if err != nil {
		fail(err)
		return
	}
	defer func() {
		if err := os.Remove(tmp); err != nil && !os.IsNotExist(err) {
			log.Printf("failed to remove upload %s: %v", tmp, err)
		}
	}()

	src := services.ImageSource{Path: tmp}
	if h.images != nil {
		contentType := fh.Header.Get("Content-Type")
		src.Keep = func(ctx context.Context) (string, error) {
			return h.saveImage(ctx, tmp, name, contentType, fh.Size)
		}
	}
	rec, err := h.orchestrator.Process(c.Request.Context(), src, owner, coords)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

// Stream handles POST /detection/stream with a base64 image, optionally in
// data-URL form.
func (h *DetectionHandler) Stream(c *gin.Context) {
	owner := middleware.CurrentUserID(c)
	fail := func(err error) { respondError(c, h.orchestrator.Reject(owner, err)) }

	var req StreamRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(services.ValidationError("invalid request: %v", err))
		return
	}
	data, err := decodeImage(req.Image)
	if err != nil {
		fail(err)
		return
	}
	if h.maxBytes > 0 && int64(len(data)) > h.maxBytes {
		fail(services.ValidationError("image exceeds %d bytes", h.maxBytes))
		return
	}

	rec, err := h.orchestrator.Process(c.Request.Context(),
		services.ImageSource{Data: data}, owner, req.Coordinates.point())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

// History handles GET /detection/history for the calling user.
func (h *DetectionHandler) History(c *gin.Context) {
	p := ParsePagination(c)
	from, to, err := ParseDateRange(c)
	if err != nil {
		badRequest(c, "invalid date: %v", err)
		return
	}

	rows, total, err := h.detections.List(c.Request.Context(), store.Filter{
		UserID: middleware.CurrentUserID(c),
		From:   from,
		To:     to,
		Page:   p.Page,
		Limit:  p.Limit,
	})
	if err != nil {
		respondError(c, services.PersistenceError(err))
		return
	}
	if rows == nil {
		rows = []models.DetectionRecord{}
	}
	c.JSON(http.StatusOK, NewPageResponse(rows, total, p))
}

// Save handles POST /detection/save: a manually entered record. The plate is
// stored as given, without recognizer validation.
func (h *DetectionHandler) Save(c *gin.Context) {
	var req SaveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request: %v", err)
		return
	}
	if req.PlateNumber == "" || req.Confidence == 0 {
		badRequest(c, "missing required fields")
		return
	}
	if req.Confidence < 0 || req.Confidence > 1 {
		badRequest(c, "confidence must be between 0 and 1")
		return
	}

	rec := &models.DetectionRecord{
		UserID:      middleware.CurrentUserID(c),
		PlateNumber: req.PlateNumber,
		Confidence:  req.Confidence,
		VehicleType: req.VehicleType,
		Province:    req.Province,
		ImageURL:    req.ImageURL,
		Status:      models.StatusPending,
	}
	if rec.Province == "" {
		rec.Province = plate.ProvinceOf(rec.PlateNumber)
	}
	if p := req.Coordinates.point(); p != nil {
		rec.Location = *p
	}
	if err := h.detections.Create(c.Request.Context(), rec); err != nil {
		respondError(c, services.PersistenceError(err))
		return
	}
	c.JSON(http.StatusCreated, rec)
}

func (h *DetectionHandler) persistTemp(fh *multipart.FileHeader, name string) (string, error) {
	src, err := fh.Open()
	if err != nil {
		return "", services.ValidationError("read upload: %v", err)
	}
	defer src.Close()

	path := filepath.Join(h.tempDir, "upload-"+name)
	dst, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(path)
		return "", fmt.Errorf("write temp file: %w", err)
	}
	if err := dst.Close(); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("close temp file: %w", err)
	}
	return path, nil
}

func (h *DetectionHandler) saveImage(ctx context.Context, path, name, contentType string, size int64) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("reopen upload: %w", err)
	}
	defer f.Close()
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return h.images.Save(ctx, name, f, size, contentType)
}

func formCoordinates(c *gin.Context) (*models.GeoPoint, error) {
	lonStr, latStr := c.PostForm("longitude"), c.PostForm("latitude")
	if lonStr == "" && latStr == "" {
		return nil, nil
	}
	lon, err1 := strconv.ParseFloat(lonStr, 64)
	lat, err2 := strconv.ParseFloat(latStr, 64)
	if err1 != nil || err2 != nil {
		return nil, services.ValidationError("longitude and latitude must both be numbers")
	}
	return &models.GeoPoint{Longitude: lon, Latitude: lat}, nil
}

// decodeImage accepts raw base64 or a "data:image/...;base64," URL.
func decodeImage(s string) ([]byte, error) {
	if strings.HasPrefix(s, "data:") {
		i := strings.Index(s, ",")
		if i < 0 {
			return nil, services.ValidationError("malformed data URL")
		}
		s = s[i+1:]
	}
	data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return nil, services.ValidationError("image is not valid base64")
	}
	if len(data) == 0 {
		return nil, services.ValidationError("image is empty")
	}
	return data, nil
}
