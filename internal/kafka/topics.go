package kafka

import (
	"errors"
	"fmt"
	"net"
	"strconv"

	"ms-admission/internal/config"
	"ms-admission/internal/logger"

	"github.com/segmentio/kafka-go"
)

func TopicNames(topics config.TopicConfig) []string {
	return []string{topics.TicketIssued, topics.TicketCheckedIn, topics.TicketCancelled}
}

// EnsureTopicsExist creates Kafka topics if they don't already exist
func EnsureTopicsExist(brokers []string, topics []string, log *logger.Logger) error {
	if len(brokers) == 0 {
		return errors.New("no kafka brokers configured")
	}

	conn, err := kafka.Dial("tcp", brokers[0])
	if err != nil {
		return err
	}
	defer conn.Close()

	controller, err := conn.Controller()
	if err != nil {
		return err
	}
	controllerConn, err := kafka.Dial("tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	if err != nil {
		return err
	}
	defer controllerConn.Close()

	var failed []error
	for _, topic := range topics {
		err = controllerConn.CreateTopics(kafka.TopicConfig{
			Topic:             topic,
			NumPartitions:     3,
			ReplicationFactor: 1,
		})
		switch {
		case err == nil:
			log.LogKafka("TOPIC_CREATED", topic, "")
		case errors.Is(err, kafka.TopicAlreadyExists):
			log.LogKafka("TOPIC_EXISTS", topic, "")
		default:
			log.LogKafka("TOPIC_FAILED", topic, err.Error())
			failed = append(failed, fmt.Errorf("create topic %s: %w", topic, err))
		}
	}
	return errors.Join(failed...)
}
