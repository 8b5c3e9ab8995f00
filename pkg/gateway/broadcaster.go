package gateway

import (
	"encoding/json"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// EventBroadcaster fans events out to the clients bound to a user
// channel. It implements the approval event sink: delivery is
// fire-and-forget and a failed write never propagates to the caller.
type EventBroadcaster struct {
	clients *ClientRegistry
	logger  zerolog.Logger
	seq     uint64
}

// NewEventBroadcaster creates a new event broadcaster
func NewEventBroadcaster(clients *ClientRegistry, logger zerolog.Logger) *EventBroadcaster {
	return &EventBroadcaster{
		clients: clients,
		logger:  logger,
	}
}

// Send delivers an event to every authenticated client on the channel.
func (b *EventBroadcaster) Send(channel, event string, payload any) {
	msg := EventMessage{
		Type:      "event",
		Event:     event,
		Channel:   channel,
		Data:      payload,
		Timestamp: time.Now().UnixMilli(),
		Seq:       b.nextSeq(),
	}

	jsonData, err := json.Marshal(msg)
	if err != nil {
		b.logger.Error().
			Err(err).
			Str("event", event).
			Str("channel", channel).
			Msg("Failed to marshal event")
		return
	}

	clients := b.clients.GetChannelClients(channel)
	if len(clients) == 0 {
		b.logger.Debug().
			Str("event", event).
			Str("channel", channel).
			Msg("No clients on channel, event dropped")
		return
	}

	successCount := 0
	failureCount := 0
	for _, client := range clients {
		if err := client.WriteMessage(websocket.TextMessage, jsonData); err != nil {
			b.logger.Warn().
				Err(err).
				Str("clientId", client.ID).
				Str("event", event).
				Msg("Failed to deliver event to client")
			failureCount++
		} else {
			successCount++
		}
	}

	b.logger.Debug().
		Str("event", event).
		Str("channel", channel).
		Int("success", successCount).
		Int("failed", failureCount).
		Msg("Event broadcast complete")
}

func (b *EventBroadcaster) nextSeq() int64 {
	return int64(atomic.AddUint64(&b.seq, 1))
}
