package app

import (
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/orderflow/internal/messaging/kafka"
)

const kafkaClientID = "orderflow"

// newKafkaProducer подменяется в тестах.
var newKafkaProducer = kafka.NewProducer

// initKafka создаёт producer, если заданы брокеры. Ошибка подключения не
// останавливает сервис: события копятся в outbox до появления Kafka.
func initKafka(cfg Config, logger *log.Entry) *kafka.Producer {
	if len(cfg.KafkaBrokers) == 0 {
		logger.Info("kafka brokers not configured, outbox publishing disabled")
		return nil
	}
	producer, err := newKafkaProducer(cfg.KafkaBrokers, kafkaClientID)
	if err != nil {
		logger.WithError(err).Warn("failed to create kafka producer, continuing without kafka")
		return nil
	}
	logger.WithField("brokers", cfg.KafkaBrokers).Info("kafka producer initialized")
	return producer
}

func closeKafka(producer *kafka.Producer, logger *log.Entry) {
	if producer == nil {
		return
	}
	if err := producer.Close(); err != nil {
		logger.WithError(err).Warn("failed to close kafka producer")
		return
	}
	logger.Info("kafka producer closed")
}
