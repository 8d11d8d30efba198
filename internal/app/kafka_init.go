package app

import (
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/retail/internal/domain"
	"github.com/vladislavdragonenkov/retail/internal/messaging/kafka"
)

// messaging — паблишеры outbox поверх одного Kafka producer.
type messaging struct {
	producer   *kafka.Producer
	publisher  domain.OutboxPublisher
	deadLetter domain.OutboxPublisher
}

// initKafka создаёт producer, если заданы брокеры. Ошибка подключения не
// останавливает сервер: outbox копит сообщения до появления Kafka.
func initKafka(cfg Config, logger *log.Entry) (messaging, error) {
	producer, err := initKafkaProducer(cfg.KafkaBrokers, cfg.KafkaClientID, logger)
	if err != nil || producer == nil {
		return messaging{}, err
	}
	return messaging{
		producer:   producer,
		publisher:  kafka.NewOutboxPublisher(producer, cfg.KafkaTopic),
		deadLetter: kafka.NewOutboxPublisher(producer, cfg.KafkaDLQTopic),
	}, nil
}

// initKafkaProducer возвращает nil, nil при пустом списке брокеров.
func initKafkaProducer(brokers []string, clientID string, logger *log.Entry) (*kafka.Producer, error) {
	if len(brokers) == 0 {
		return nil, nil
	}

	producer, err := kafka.NewProducer(brokers, clientID)
	if err != nil {
		logger.WithError(err).Warn("failed to create kafka producer, continuing without kafka")
		return nil, err
	}

	logger.WithField("brokers", brokers).Info("kafka producer initialized")
	return producer, nil
}

// closeKafka закрывает Kafka producer если он не nil.
func closeKafka(producer *kafka.Producer, logger *log.Entry) {
	if producer == nil {
		return
	}

	if err := producer.Close(); err != nil {
		logger.WithError(err).Warn("failed to close kafka producer")
	} else {
		logger.Info("kafka producer closed")
	}
}
