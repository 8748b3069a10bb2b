package watch

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
)

// KafkaSource reads Datamart notifications from a Kafka topic.
type KafkaSource struct {
	reader *kafkago.Reader
	logger *slog.Logger
}

// NewKafkaSource creates a consumer for the notification topic under the
// given group id.
func NewKafkaSource(brokers []string, topic, groupID string, logger *slog.Logger) *KafkaSource {
	r := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers: brokers,
		Topic:   topic,
		GroupID: groupID,
	})
	return &KafkaSource{reader: r, logger: logger}
}

// Next blocks for the next notification payload.
func (s *KafkaSource) Next(ctx context.Context) ([]byte, error) {
	msg, err := s.reader.ReadMessage(ctx)
	if err != nil {
		return nil, err
	}
	return msg.Value, nil
}

func (s *KafkaSource) Close() error {
	return s.reader.Close()
}

// GroupID returns the persistent consumer group id `<prefix>.<uuid>`. The
// id is stored under queuesDir so a restarted consumer rejoins its group
// and resumes where it left off instead of re-reading the topic.
func GroupID(queuesDir, prefix string) (string, error) {
	path := filepath.Join(queuesDir, prefix)
	if data, err := os.ReadFile(path); err == nil {
		id := strings.TrimSpace(string(data))
		if strings.HasPrefix(id, prefix+".") {
			return id, nil
		}
	}

	id := fmt.Sprintf("%s.%s", prefix, uuid.New())
	if err := os.MkdirAll(queuesDir, 0o755); err != nil {
		return "", fmt.Errorf("create queues dir: %w", err)
	}
	if err := os.WriteFile(path, []byte(id+"\n"), 0o644); err != nil {
		return "", fmt.Errorf("persist group id: %w", err)
	}
	return id, nil
}
