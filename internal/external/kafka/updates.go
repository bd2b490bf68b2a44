package eggs

import (
	"context"
	"fmt"
	"os"

	"github.com/segmentio/kafka-go"
)

// События транспорта: шлюз декодирует апдейты Telegram
// и публикует их в топик updates
type KafkaUpdates struct {
	reader *kafka.Reader
}

func GetNewReader(topic string) (reader *KafkaUpdates, err error) {
	// config
	kafkaurl := os.Getenv("KAFKA_UPDATES_URL")
	if kafkaurl == "" {
		return nil, fmt.Errorf("env KAFKA_UPDATES_URL is not set")
	}
	kafkaport := os.Getenv("KAFKA_UPDATES_PORT")
	if kafkaport == "" {
		return nil, fmt.Errorf("env KAFKA_UPDATES_PORT is not set")
	}

	kafkaconfig := kafka.ReaderConfig{
		Brokers: []string{kafkaurl + ":" + kafkaport},
		Topic:   topic,
		GroupID: "eggchain_core",
	}
	return &KafkaUpdates{kafka.NewReader(kafkaconfig)}, nil
}

func (k *KafkaUpdates) GetNewMessage(ctx context.Context) (eventJson string, err error) {
	msg, err := k.reader.ReadMessage(ctx)
	if err != nil {
		return "", err
	}
	return string(msg.Value), nil
}

func (k *KafkaUpdates) CloseReader() {
	k.reader.Close()
}
