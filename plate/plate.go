// Package plate holds the rules a recognized Vietnamese license plate must
// satisfy before it is accepted as a detection.
package plate

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// MinConfidence is the lowest recognizer confidence accepted as a detection.
const MinConfidence = 0.6

// Two digits, one letter, optional digit, hyphen, 4-5 digits (e.g. 30A-12345, 51G1-1234).
var platePattern = regexp.MustCompile(`^[0-9]{2}[A-Z][0-9]?-[0-9]{4,5}$`)

var (
	ErrInvalidResult  = errors.New("invalid detection result")
	ErrLowConfidence  = errors.New("low confidence detection")
	ErrMalformedPlate = errors.New("invalid plate number format")
)

// Reading is the raw outcome a recognizer reports for one image. The JSON
// names follow the recognizer's stdout contract.
type Reading struct {
	PlateNumber string  `json:"plateNumber"`
	Confidence  float64 `json:"confidence"`
	VehicleType string  `json:"vehicleType"`
	Province    string  `json:"province"`
}

// Validate checks a reading and returns it unchanged when it is acceptable.
// Confidence is checked before format, so a low-confidence reading is always
// reported as ErrLowConfidence.
func Validate(r *Reading) (*Reading, error) {
	if r == nil || r.PlateNumber == "" {
		return nil, ErrInvalidResult
	}
	if r.Confidence < MinConfidence {
		return nil, fmt.Errorf("%w: %.2f < %.2f", ErrLowConfidence, r.Confidence, MinConfidence)
	}
	if !MatchesFormat(r.PlateNumber) {
		return nil, fmt.Errorf("%w: %q", ErrMalformedPlate, r.PlateNumber)
	}
	return r, nil
}

// MatchesFormat reports whether s is a well-formed plate number.
func MatchesFormat(s string) bool {
	return platePattern.MatchString(s)
}

// Normalize upper-cases OCR text and strips spaces and dots, so "51g 123.45"
// becomes "51G12345".
func Normalize(s string) string {
	s = strings.ToUpper(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, " ", "")
	return strings.ReplaceAll(s, ".", "")
}

// Canonical inserts the hyphen after the series letter (and optional series
// digit) when OCR dropped it: "30A12345" -> "30A-12345".
func Canonical(s string) string {
	s = Normalize(s)
	if strings.Contains(s, "-") || len(s) < 7 {
		return s
	}
	split := 3
	if len(s) >= 4 && s[3] >= '0' && s[3] <= '9' && len(s)-4 >= 4 && len(s) > 8 {
		split = 4
	}
	return s[:split] + "-" + s[split:]
}
