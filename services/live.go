package services

import (
	"context"
	"encoding/json"
	"log"
)

const (
	LiveChannel  = "platedetect:live"
	StatsChannel = "platedetect:stats"
)

// LiveMessage wraps one detection published by the edge collector.
type LiveMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// Broadcaster fans a message out to every realtime channel.
type Broadcaster interface {
	Broadcast(v any) int
}

// RelayLive forwards every message on LiveChannel to all connected clients
// until ctx is done. It returns immediately when redis is unavailable.
func RelayLive(ctx context.Context, cache *CacheService, b Broadcaster) {
	pubsub := cache.Subscribe(ctx, LiveChannel)
	if pubsub == nil {
		log.Printf("redis unavailable, live relay disabled")
		return
	}
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			relay(b, []byte(msg.Payload))
		}
	}
}

func relay(b Broadcaster, payload []byte) int {
	data := json.RawMessage(payload)
	if !json.Valid(payload) {
		quoted, _ := json.Marshal(string(payload))
		data = quoted
	}
	return b.Broadcast(LiveMessage{Type: MsgLive, Data: data})
}
