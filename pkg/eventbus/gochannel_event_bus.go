package eventbus

import (
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

// NewGoChannelEventBus builds an in-process bus. It is the default when
// no broker is configured and the backend used by tests.
func NewGoChannelEventBus(logger *slog.Logger) EventBus {
	channel := gochannel.NewGoChannel(
		gochannel.Config{OutputChannelBuffer: 64},
		watermill.NewSlogLogger(logger),
	)

	return NewWatermillEventBus(channel, channel)
}
