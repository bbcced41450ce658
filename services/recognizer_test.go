package services

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/Topaz-Oz/Lience-Plate-Detect/config"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/rekognition"
	"github.com/aws/aws-sdk-go-v2/service/rekognition/types"
)

func writeScript(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell recognizer scripts need /bin/sh")
	}
	path := filepath.Join(t.TempDir(), "recognize.sh")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestScriptRecognizerSuccess(t *testing.T) {
	script := writeScript(t, `echo '{"plateNumber":"30A-12345","confidence":0.93,"vehicleType":"car","province":"Hà Nội"}'`)
	r := NewScriptRecognizer(config.RecognizerConfig{Command: "/bin/sh", Script: script})

	got, err := r.Recognize(context.Background(), "/tmp/image.jpg")
	if err != nil {
		t.Fatalf("Recognize() error: %v", err)
	}
	if got.PlateNumber != "30A-12345" || got.Confidence != 0.93 || got.VehicleType != "car" {
		t.Errorf("Recognize() = %+v", got)
	}
}

func TestScriptRecognizerPassesImagePath(t *testing.T) {
	script := writeScript(t, `printf '{"plateNumber":"%s","confidence":1}' "$1"`)
	r := NewScriptRecognizer(config.RecognizerConfig{Command: "/bin/sh", Script: script})

	got, err := r.Recognize(context.Background(), "30A-99999")
	if err != nil {
		t.Fatalf("Recognize() error: %v", err)
	}
	if got.PlateNumber != "30A-99999" {
		t.Errorf("PlateNumber = %q, want the image argument", got.PlateNumber)
	}
}

func TestScriptRecognizerNonZeroExit(t *testing.T) {
	script := writeScript(t, "echo 'model not found' >&2\nexit 3")
	r := NewScriptRecognizer(config.RecognizerConfig{Command: "/bin/sh", Script: script})

	_, err := r.Recognize(context.Background(), "img.jpg")
	var e *Error
	if !errors.As(err, &e) || e.Reason != ReasonRecognizerFailed {
		t.Fatalf("Recognize() error = %v, want RECOGNIZER_FAILED", err)
	}
	if e.Error() != "detection process failed: model not found" {
		t.Errorf("message = %q", e.Error())
	}
}

func TestScriptRecognizerMalformedOutput(t *testing.T) {
	script := writeScript(t, "echo 'plate: 30A-12345'")
	r := NewScriptRecognizer(config.RecognizerConfig{Command: "/bin/sh", Script: script})

	_, err := r.Recognize(context.Background(), "img.jpg")
	if !errors.Is(err, ErrMalformedOutput) {
		t.Errorf("Recognize() error = %v, want ErrMalformedOutput", err)
	}
}

func TestScriptRecognizerIgnoresCallerCancel(t *testing.T) {
	script := writeScript(t, `sleep 0.2; echo '{"plateNumber":"30A-12345","confidence":0.9}'`)
	r := NewScriptRecognizer(config.RecognizerConfig{Command: "/bin/sh", Script: script})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := r.Recognize(ctx, "img.jpg"); err != nil {
		t.Errorf("Recognize() after cancel error: %v, want run to completion", err)
	}
}

type fakeTextDetector struct {
	out *rekognition.DetectTextOutput
	err error
}

func (f fakeTextDetector) DetectText(context.Context, *rekognition.DetectTextInput, ...func(*rekognition.Options)) (*rekognition.DetectTextOutput, error) {
	return f.out, f.err
}

func TestRekognitionRecognizerPicksPlate(t *testing.T) {
	img := filepath.Join(t.TempDir(), "car.jpg")
	os.WriteFile(img, []byte("jpeg"), 0o600)

	out := &rekognition.DetectTextOutput{TextDetections: []types.TextDetection{
		{DetectedText: aws.String("TOYOTA"), Confidence: aws.Float32(99), Type: types.TextTypesLine},
		{DetectedText: aws.String("51G 123.45"), Confidence: aws.Float32(88), Type: types.TextTypesLine},
		{DetectedText: aws.String("30A12345"), Confidence: aws.Float32(70), Type: types.TextTypesWord},
	}}
	r := NewRekognitionRecognizer(fakeTextDetector{out: out})

	got, err := r.Recognize(context.Background(), img)
	if err != nil {
		t.Fatalf("Recognize() error: %v", err)
	}
	if got.PlateNumber != "51G-12345" || got.Province != "TP. Hồ Chí Minh" {
		t.Errorf("Recognize() = %+v", got)
	}
	if got.Confidence < 0.879 || got.Confidence > 0.881 {
		t.Errorf("Confidence = %v, want 0.88", got.Confidence)
	}
}

func TestRekognitionRecognizerError(t *testing.T) {
	img := filepath.Join(t.TempDir(), "car.jpg")
	os.WriteFile(img, []byte("jpeg"), 0o600)
	r := NewRekognitionRecognizer(fakeTextDetector{err: errors.New("throttled")})

	_, err := r.Recognize(context.Background(), img)
	if KindOf(err) != KindDetection {
		t.Errorf("KindOf(err) = %s, want %s", KindOf(err), KindDetection)
	}
}

func TestNewRecognizer(t *testing.T) {
	r, err := NewRecognizer(context.Background(), config.RecognizerConfig{Backend: "script", Command: "python", Script: "lp_image.py"})
	if err != nil {
		t.Fatalf("NewRecognizer(script) error: %v", err)
	}
	sr, ok := r.(*ScriptRecognizer)
	if !ok || sr.Command != "python" || len(sr.Args) != 1 || sr.Args[0] != "lp_image.py" {
		t.Errorf("NewRecognizer(script) = %#v", r)
	}

	if _, err := NewRecognizer(context.Background(), config.RecognizerConfig{Backend: "tesseract"}); err == nil {
		t.Error("NewRecognizer(unknown) should fail")
	}
}
