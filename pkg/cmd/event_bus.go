package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/callforge/callflow/pkg/eventbus"
	"github.com/callforge/callflow/pkg/eventbus/kafka"
)

// NewEventBus builds the configured event bus. An empty provider means
// the in-process channel bus, which is also the single-node default.
func NewEventBus(provider string, logger *slog.Logger) (eventbus.EventBus, error) {
	switch provider {
	case "", "gochannel":
		return eventbus.NewGoChannelEventBus(logger), nil
	case "kafka":
		return kafka.NewEventBus(logger, os.Getenv("KAFKA_BROKERS"), os.Getenv("KAFKA_GROUP_ID"))
	default:
		return nil, fmt.Errorf("unsupported event bus provider: %s", provider)
	}
}
