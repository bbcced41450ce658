package services

import (
	"errors"
	"time"

	"github.com/Topaz-Oz/Lience-Plate-Detect/models"
)

// Realtime message types.
const (
	MsgConnection = "connection"
	MsgProgress   = "detection_progress"
	MsgResult     = "detection_result"
	MsgError      = "error"
	MsgPing       = "ping"
	MsgPong       = "pong"
	MsgLive       = "detection_live"
)

const StageDetecting = "detecting"

type Progress struct {
	Stage   string `json:"stage"`
	Percent int    `json:"percent"`
	Message string `json:"message"`
}

type ProgressMessage struct {
	Type     string   `json:"type"`
	Progress Progress `json:"progress"`
}

type ResultMessage struct {
	Type   string                  `json:"type"`
	Result *models.DetectionRecord `json:"result"`
}

type ErrorMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Code    Kind   `json:"code,omitempty"`
	Reason  string `json:"reason,omitempty"`
}

type PongMessage struct {
	Type      string `json:"type"`
	Timestamp int64  `json:"timestamp"`
}

func NewPong(now time.Time) PongMessage {
	return PongMessage{Type: MsgPong, Timestamp: now.UnixMilli()}
}

// Sender delivers one JSON message to a user's channel.
type Sender interface {
	Send(userID uint, v any) bool
}

// Notifier emits the detection message shapes. Delivery is best effort and
// every method reports whether the message was accepted.
type Notifier struct {
	sender Sender
}

func NewNotifier(sender Sender) *Notifier {
	return &Notifier{sender: sender}
}

func (n *Notifier) Progress(userID uint, stage string, percent int, message string) bool {
	return n.sender.Send(userID, ProgressMessage{
		Type:     MsgProgress,
		Progress: Progress{Stage: stage, Percent: percent, Message: message},
	})
}

func (n *Notifier) Result(userID uint, rec *models.DetectionRecord) bool {
	return n.sender.Send(userID, ResultMessage{Type: MsgResult, Result: rec})
}

func (n *Notifier) Error(userID uint, err error) bool {
	msg := ErrorMessage{Type: MsgError, Message: err.Error(), Code: KindOf(err)}
	var e *Error
	if errors.As(err, &e) {
		msg.Reason = e.Reason
	}
	return n.sender.Send(userID, msg)
}
