package services

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	activeConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "platedetect_ws_connections",
		Help: "Realtime channels currently registered",
	})
	detectionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "platedetect_detections_total",
		Help: "Detection requests by outcome",
	}, []string{"outcome"})
	recognizerDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "platedetect_recognizer_duration_seconds",
		Help:    "Time spent in the plate recognizer",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
	})
)

// outcomeLabel is the detections_total label for a failed request.
func outcomeLabel(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Reason != "" {
		return e.Reason
	}
	return string(KindOf(err))
}
