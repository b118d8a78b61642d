package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hybridmarkets/resolver/internal/domain"
)

// Pub/sub channels and durable streams carrying engine events. The WebSocket
// hub subscribes to the channels; the streams keep a trimmed replay log.
const (
	ChannelResolution = "ch:resolution"
	ChannelDispute    = "ch:dispute"
	ChannelExtension  = "ch:extension"
	ChannelPayout     = "ch:payout"

	StreamResolution = "stream:resolution"
	StreamDispute    = "stream:dispute"
	StreamExtension  = "stream:extension"
	StreamPayout     = "stream:payout"
)

// Event is the JSON payload published for every completed mutation.
type Event struct {
	Type     string         `json:"type"`
	MarketID string         `json:"market_id"`
	Actor    string         `json:"actor,omitempty"`
	Detail   map[string]any `json:"detail,omitempty"`
	At       time.Time      `json:"at"`
}

// publishEvent serializes the event and sends it to the pub/sub channel and
// its durable stream. Publication failures are logged, never propagated; the
// mutation has already committed.
func publishEvent(ctx context.Context, bus domain.SignalBus, logger *slog.Logger, channel, stream string, ev Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		logger.WarnContext(ctx, "event marshal failed",
			slog.String("type", ev.Type),
			slog.String("error", err.Error()),
		)
		return
	}

	if err := bus.Publish(ctx, channel, payload); err != nil {
		logger.WarnContext(ctx, "event publish failed",
			slog.String("channel", channel),
			slog.String("error", err.Error()),
		)
	}
	if err := bus.StreamAppend(ctx, stream, payload); err != nil {
		logger.WarnContext(ctx, "event stream append failed",
			slog.String("stream", stream),
			slog.String("error", err.Error()),
		)
	}
}
