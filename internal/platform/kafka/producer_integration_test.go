//go:build integration

package kafka_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
	"github.com/twmb/franz-go/pkg/kgo"

	"conforma/internal/platform/config"
	"conforma/internal/platform/kafka"
	audit "conforma/pkg/platform/audit"
	"conforma/pkg/testutil/containers"
)

type ProducerSuite struct {
	suite.Suite
	redpanda *containers.RedpandaContainer
	producer *kafka.Producer
	sink     *kafka.EventSink
	topic    string
}

func TestProducerSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(ProducerSuite))
}

func (s *ProducerSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.redpanda = mgr.GetRedpanda(s.T())

	// Topic per binary run; Redpanda is shared across suites and pub/sub
	// offsets cannot be flushed the way tables can.
	s.topic = "conforma.quality.events." + uuid.NewString()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	producer, err := kafka.NewProducer(config.KafkaConfig{
		Brokers:     s.redpanda.Brokers,
		EventsTopic: s.topic,
		ClientID:    "conforma-test",
	}, logger)
	s.Require().NoError(err)
	s.Require().NotNil(producer, "brokers are configured, producer must not be nil")
	s.producer = producer
	s.sink = kafka.NewEventSink(producer)
}

func (s *ProducerSuite) TearDownSuite() {
	if s.producer != nil {
		s.producer.Close()
	}
}

// consumeN reads records from the suite topic from the beginning until n
// records arrived or the deadline passed.
func (s *ProducerSuite) consumeN(n int) []*kgo.Record {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(s.redpanda.Brokers...),
		kgo.ConsumeTopics(s.topic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	s.Require().NoError(err)
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var records []*kgo.Record
	for len(records) < n {
		fetches := client.PollFetches(ctx)
		s.Require().NoError(fetches.Err0(), "fetch failed before %d records arrived", n)
		fetches.EachRecord(func(r *kgo.Record) {
			records = append(records, r)
		})
	}
	return records
}

// TestHealth verifies broker reachability through the producer's own probe.
func (s *ProducerSuite) TestHealth() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.NoError(s.producer.Health(ctx))
}

// TestSinkWireFormat verifies what a plant consumer actually sees on the
// topic: entity-keyed records whose JSON carries the API vocabulary and
// drops the fields that must not leave the trail store.
func (s *ProducerSuite) TestSinkWireFormat() {
	ctx := context.Background()
	entityID := uuid.NewString()

	events := []audit.TrailEvent{audit.EventNCRCreated, audit.EventNCREscalated, audit.EventNCRClosed}
	base := time.Now().UTC().Truncate(time.Millisecond)
	for i, action := range events {
		err := s.sink.Send(ctx, audit.Event{
			Category:   action.Category(),
			Timestamp:  base.Add(time.Duration(i) * time.Second),
			EntityType: "ncr",
			EntityID:   entityID,
			Number:     "RCV-20250206-1405",
			Action:     string(action),
			Actor:      "qa.lead@conforma.io",
			ClientIP:   "10.4.2.17",
			UserAgent:  "Mozilla/5.0",
		})
		s.Require().NoError(err)
	}

	records := s.consumeN(len(events))
	s.Require().Len(records, len(events))

	for i, record := range records {
		s.Equal("ncr:"+entityID, string(record.Key), "records must be keyed by entity")

		var payload map[string]any
		s.Require().NoError(json.Unmarshal(record.Value, &payload))
		s.Equal(string(events[i]), payload["action"], "per-key order must hold")
		s.Equal("ncr", payload["entityType"])
		s.Equal(entityID, payload["entityId"])
		s.Equal("RCV-20250206-1405", payload["number"])
		s.Equal("qa.lead@conforma.io", payload["actor"])
		s.NotContains(payload, "clientIp", "client IP stays in the trail store")
		s.NotContains(payload, "userAgent", "user agent stays in the trail store")
	}
}
