package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/Topaz-Oz/Lience-Plate-Detect/models"
	"github.com/Topaz-Oz/Lience-Plate-Detect/plate"
	"github.com/Topaz-Oz/Lience-Plate-Detect/store"

	"github.com/google/uuid"
)

// ImageSource is either a file already on disk (Path) or raw bytes (Data)
// that are spooled to a temporary file for the recognizer.
type ImageSource struct {
	Path     string
	Data     []byte
	ImageURL string
	// Keep, when set, stores the image once its reading is accepted and
	// returns the public URL recorded in place of ImageURL.
	Keep func(ctx context.Context) (string, error)
}

// Orchestrator runs one detection: recognize, validate, persist, and report
// progress to the owner's realtime channel.
type Orchestrator struct {
	recognizer Recognizer
	store      store.DetectionStore
	notifier   *Notifier
	tempDir    string
}

func NewOrchestrator(recognizer Recognizer, st store.DetectionStore, notifier *Notifier, tempDir string) *Orchestrator {
	if tempDir == "" {
		tempDir = os.TempDir()
	}
	return &Orchestrator{recognizer: recognizer, store: st, notifier: notifier, tempDir: tempDir}
}

// Process returns the persisted record, or a tagged *Error. Every failure is
// also sent to the owner as an error message; nothing is persisted on failure.
// A detection runs to completion once started: cancelling ctx does not stop
// the recognizer, the save or the result message.
func (o *Orchestrator) Process(ctx context.Context, src ImageSource, owner uint, coords *models.GeoPoint) (*models.DetectionRecord, error) {
	ctx = context.WithoutCancel(ctx)
	rec, err := o.process(ctx, src, owner, coords)
	if err != nil {
		return nil, o.Reject(owner, err)
	}
	detectionsTotal.WithLabelValues("success").Inc()
	o.notifier.Result(owner, rec)
	return rec, nil
}

// Reject counts and logs a failed detection and sends it to the owner as an
// error message. Untagged errors are reported as INTERNAL_ERROR without
// their detail. The returned error is what the caller should respond with.
func (o *Orchestrator) Reject(owner uint, err error) error {
	log.Printf("detection for user %d failed: %v", owner, err)
	var e *Error
	if !errors.As(err, &e) {
		err = &Error{Kind: KindInternal, Err: errInternal}
	}
	detectionsTotal.WithLabelValues(outcomeLabel(err)).Inc()
	o.notifier.Error(owner, err)
	return err
}

func (o *Orchestrator) process(ctx context.Context, src ImageSource, owner uint, coords *models.GeoPoint) (*models.DetectionRecord, error) {
	o.notifier.Progress(owner, StageDetecting, 0, "Starting detection")

	path := src.Path
	if len(src.Data) > 0 {
		tmp, err := o.spool(src.Data)
		if err != nil {
			return nil, &Error{Kind: KindInternal, Err: err}
		}
		defer o.discard(tmp)
		path = tmp
	}
	if path == "" {
		return nil, ValidationError("no image provided")
	}

	o.notifier.Progress(owner, StageDetecting, 30, "Processing image")
	start := time.Now()
	reading, err := o.recognizer.Recognize(ctx, path)
	recognizerDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, DetectionError(err)
	}

	o.notifier.Progress(owner, StageDetecting, 60, "Validating result")
	valid, err := plate.Validate(reading)
	if err != nil {
		return nil, DetectionError(err)
	}

	o.notifier.Progress(owner, StageDetecting, 90, "Saving detection")
	imageURL := src.ImageURL
	if src.Keep != nil {
		if imageURL, err = src.Keep(ctx); err != nil {
			return nil, PersistenceError(fmt.Errorf("store image: %w", err))
		}
	}
	province := valid.Province
	if province == "" {
		province = plate.ProvinceOf(valid.PlateNumber)
	}
	rec := &models.DetectionRecord{
		UserID:      owner,
		PlateNumber: valid.PlateNumber,
		Confidence:  valid.Confidence,
		VehicleType: valid.VehicleType,
		Province:    province,
		ImageURL:    imageURL,
		Status:      models.StatusPending,
	}
	if coords != nil {
		rec.Location = *coords
	}
	if err := o.store.Create(ctx, rec); err != nil {
		return nil, PersistenceError(fmt.Errorf("save detection: %w", err))
	}
	return rec, nil
}

var errInternal = errors.New("internal server error")

func (o *Orchestrator) spool(data []byte) (string, error) {
	path := filepath.Join(o.tempDir, "detect-"+uuid.NewString()+".jpg")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", fmt.Errorf("write temp image: %w", err)
	}
	return path, nil
}

func (o *Orchestrator) discard(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		log.Printf("failed to remove temp image %s: %v", path, err)
	}
}
