package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/Topaz-Oz/Lience-Plate-Detect/config"
	"github.com/Topaz-Oz/Lience-Plate-Detect/plate"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/rekognition"
	"github.com/aws/aws-sdk-go-v2/service/rekognition/types"
)

var ErrMalformedOutput = errors.New("recognizer output is not a detection result")

// Recognizer turns an image on disk into a raw plate reading. Implementations
// do not validate the reading.
type Recognizer interface {
	Recognize(ctx context.Context, imagePath string) (*plate.Reading, error)
}

// ScriptRecognizer runs `Command Args... <imagePath>` and parses one JSON
// object from stdout. A non-zero exit or unparsable output fails the call.
type ScriptRecognizer struct {
	Command string
	Args    []string
	Timeout time.Duration
}

// NewRecognizer builds the recognizer named by cfg.Backend.
func NewRecognizer(ctx context.Context, cfg config.RecognizerConfig) (Recognizer, error) {
	switch cfg.Backend {
	case "", "script":
		return NewScriptRecognizer(cfg), nil
	case "rekognition":
		r, err := NewRekognitionRecognizerFromConfig(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return r, nil
	}
	return nil, fmt.Errorf("unknown recognizer backend %q", cfg.Backend)
}

func NewScriptRecognizer(cfg config.RecognizerConfig) *ScriptRecognizer {
	var args []string
	if cfg.Script != "" {
		args = append(args, cfg.Script)
	}
	return &ScriptRecognizer{
		Command: cfg.Command,
		Args:    args,
		Timeout: time.Duration(cfg.TimeoutSec) * time.Second,
	}
}

func (r *ScriptRecognizer) Recognize(ctx context.Context, imagePath string) (*plate.Reading, error) {
	// A started recognizer runs to completion even if the client goes away.
	runCtx := context.WithoutCancel(ctx)
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(runCtx, r.Timeout)
		defer cancel()
	}

	args := append(append([]string{}, r.Args...), imagePath)
	cmd := exec.CommandContext(runCtx, r.Command, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return nil, &Error{
			Kind:   KindDetection,
			Reason: ReasonRecognizerFailed,
			Err:    fmt.Errorf("detection process failed: %s", msg),
		}
	}

	var reading plate.Reading
	if err := json.Unmarshal(bytes.TrimSpace(stdout.Bytes()), &reading); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedOutput, err)
	}
	return &reading, nil
}

// TextDetector is the slice of the Rekognition client used here.
type TextDetector interface {
	DetectText(ctx context.Context, in *rekognition.DetectTextInput, opts ...func(*rekognition.Options)) (*rekognition.DetectTextOutput, error)
}

// RekognitionRecognizer reads plates with AWS Rekognition text detection.
type RekognitionRecognizer struct {
	client TextDetector
}

func NewRekognitionRecognizer(client TextDetector) *RekognitionRecognizer {
	return &RekognitionRecognizer{client: client}
}

// NewRekognitionRecognizerFromConfig loads AWS credentials from the default
// chain for the configured region.
func NewRekognitionRecognizerFromConfig(ctx context.Context, cfg config.RecognizerConfig) (*RekognitionRecognizer, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return NewRekognitionRecognizer(rekognition.NewFromConfig(awsCfg)), nil
}

func (r *RekognitionRecognizer) Recognize(ctx context.Context, imagePath string) (*plate.Reading, error) {
	data, err := os.ReadFile(imagePath)
	if err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}

	out, err := r.client.DetectText(ctx, &rekognition.DetectTextInput{
		Image: &types.Image{Bytes: data},
	})
	if err != nil {
		return nil, &Error{Kind: KindDetection, Reason: ReasonRecognizerFailed, Err: fmt.Errorf("rekognition: %w", err)}
	}

	best := bestPlateText(out.TextDetections)
	best.Province = plate.ProvinceOf(best.PlateNumber)
	return &best, nil
}

// bestPlateText prefers the most confident well-formed candidate and falls
// back to the most confident line so validation can report why it failed.
func bestPlateText(detections []types.TextDetection) plate.Reading {
	var matched, fallback plate.Reading
	for _, d := range detections {
		if d.DetectedText == nil || d.Confidence == nil {
			continue
		}
		if d.Type != types.TextTypesLine && d.Type != types.TextTypesWord {
			continue
		}
		text := plate.Canonical(*d.DetectedText)
		conf := float64(*d.Confidence) / 100
		if plate.MatchesFormat(text) {
			if conf > matched.Confidence {
				matched = plate.Reading{PlateNumber: text, Confidence: conf}
			}
			continue
		}
		if d.Type == types.TextTypesLine && conf > fallback.Confidence {
			fallback = plate.Reading{PlateNumber: text, Confidence: conf}
		}
	}
	if matched.PlateNumber != "" {
		return matched
	}
	return fallback
}
