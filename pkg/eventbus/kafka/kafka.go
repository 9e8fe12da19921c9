// Package kafka provides the Kafka-backed event bus used when deployments
// span more than one process.
package kafka

import (
	"errors"
	"log/slog"
	"strings"

	"github.com/IBM/sarama"
	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-kafka/v3/pkg/kafka"

	"github.com/callforge/callflow/pkg/eventbus"
)

const defaultConsumerGroup = "cg-callflow-event-bus"

// NewEventBus wires watermill's Kafka publisher and subscriber into the
// shared event bus. brokers is a comma-separated list; groupID may be
// empty, in which case a stable default is used.
func NewEventBus(logger *slog.Logger, brokers, groupID string) (eventbus.EventBus, error) {
	splitBrokers := strings.Split(brokers, ",")
	if len(splitBrokers) == 0 || (len(splitBrokers) == 1 && splitBrokers[0] == "") {
		return nil, errors.New("no Kafka brokers configured")
	}

	if groupID == "" {
		groupID = defaultConsumerGroup
	}

	wmLogger := watermill.NewSlogLogger(logger)

	publisher, err := kafka.NewPublisher(kafka.PublisherConfig{
		Brokers:   splitBrokers,
		Marshaler: kafka.DefaultMarshaler{},
	}, wmLogger)
	if err != nil {
		return nil, err
	}

	saramaConfig := kafka.DefaultSaramaSubscriberConfig()
	saramaConfig.Consumer.Offsets.Initial = sarama.OffsetOldest

	subscriber, err := kafka.NewSubscriber(kafka.SubscriberConfig{
		Brokers:               splitBrokers,
		Unmarshaler:           kafka.DefaultMarshaler{},
		ConsumerGroup:         groupID,
		OverwriteSaramaConfig: saramaConfig,
	}, wmLogger)
	if err != nil {
		return nil, err
	}

	return eventbus.NewWatermillEventBus(publisher, subscriber), nil
}
