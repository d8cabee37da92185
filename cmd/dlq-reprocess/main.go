// dlq-reprocess перечитывает мёртвую очередь и возвращает события
// в рабочие топики. По умолчанию работает в режиме dry-run и только
// печатает кандидатов на повтор; с флагом -execute публикует их.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/IBM/sarama"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/salesops/internal/messaging/kafka"
)

const (
	defaultScanLimit   = 100
	defaultIdleTimeout = 2 * time.Second

	aggregateTypeCommission = "commission"
)

type replayConfig struct {
	brokers       []string
	sourceTopic   string
	topicOverride string
	eventType     string
	limit         int
	execute       bool
	fromNewest    bool
	idleTimeout   time.Duration
}

// replayCandidate — готовое к публикации сообщение.
type replayCandidate struct {
	topic     string
	key       string
	eventType string
	value     []byte
}

// Форматы сообщений в DLQ. Первый пишет consumer при ошибке обработки,
// второй — outbox worker после исчерпания попыток публикации.
type consumerDeadLetter struct {
	OriginalTopic string `json:"original_topic"`
	OriginalKey   string `json:"original_key"`
	OriginalValue string `json:"original_value"`
}

type dlqEnvelope struct {
	ID            string          `json:"id"`
	AggregateType string          `json:"aggregate_type"`
	AggregateID   string          `json:"aggregate_id"`
	EventType     string          `json:"event_type"`
	Payload       json.RawMessage `json:"payload"`
}

type deadLetterBody struct {
	OutboxID      string          `json:"outbox_id"`
	AggregateType string          `json:"aggregate_type"`
	AggregateID   string          `json:"aggregate_id"`
	EventType     string          `json:"event_type"`
	Payload       json.RawMessage `json:"payload"`
}

type outboundEnvelope struct {
	ID            string          `json:"id"`
	AggregateType string          `json:"aggregate_type"`
	AggregateID   string          `json:"aggregate_id"`
	EventType     string          `json:"event_type"`
	Payload       json.RawMessage `json:"payload"`
	PublishedAt   time.Time       `json:"published_at"`
}

type offsetReader interface {
	GetOffset(topic string, partition int32, time int64) (int64, error)
	Partitions(topic string) ([]int32, error)
	Close() error
}

type partitionStream interface {
	Messages() <-chan *sarama.ConsumerMessage
	Errors() <-chan *sarama.ConsumerError
	Close() error
}

type streamSource interface {
	ConsumePartition(topic string, partition int32, offset int64) (partitionStream, error)
	Close() error
}

type candidateSink interface {
	SendMessage(msg *sarama.ProducerMessage) (partition int32, offset int64, err error)
	Close() error
}

type saramaStreamSource struct {
	consumer sarama.Consumer
}

func (s saramaStreamSource) ConsumePartition(topic string, partition int32, offset int64) (partitionStream, error) {
	pc, err := s.consumer.ConsumePartition(topic, partition, offset)
	if err != nil {
		return nil, err
	}
	return pc, nil
}

func (s saramaStreamSource) Close() error {
	if s.consumer == nil {
		return nil
	}
	return s.consumer.Close()
}

// connectKafka подменяется в тестах.
var connectKafka = func(cfg replayConfig) (offsetReader, streamSource, candidateSink, error) {
	consumerConfig := sarama.NewConfig()
	consumerConfig.Consumer.Return.Errors = true

	client, err := sarama.NewClient(cfg.brokers, consumerConfig)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("create kafka client: %w", err)
	}

	rawConsumer, err := sarama.NewConsumerFromClient(client)
	if err != nil {
		_ = client.Close()
		return nil, nil, nil, fmt.Errorf("create kafka consumer: %w", err)
	}
	source := saramaStreamSource{consumer: rawConsumer}

	if !cfg.execute {
		return client, source, nil, nil
	}

	producerConfig := sarama.NewConfig()
	producerConfig.Producer.RequiredAcks = sarama.WaitForAll
	producerConfig.Producer.Retry.Max = 5
	producerConfig.Producer.Return.Successes = true
	producerConfig.Producer.Compression = sarama.CompressionSnappy
	producerConfig.Producer.Idempotent = true
	producerConfig.Net.MaxOpenRequests = 1

	producer, err := sarama.NewSyncProducer(cfg.brokers, producerConfig)
	if err != nil {
		_ = source.Close()
		_ = client.Close()
		return nil, nil, nil, fmt.Errorf("create kafka producer: %w", err)
	}

	return client, source, producer, nil
}

func main() {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	log.SetLevel(log.InfoLevel)

	cfg, err := buildConfig()
	if err != nil {
		fail("%v", err)
	}

	if err := run(context.Background(), cfg); err != nil {
		fail("dlq replay failed: %v", err)
	}
}

func buildConfig() (replayConfig, error) {
	var (
		brokersRaw string
		cfg        replayConfig
	)

	flag.StringVar(&brokersRaw, "brokers", "", "Kafka brokers as comma-separated list (fallback: KAFKA_BROKERS)")
	flag.StringVar(&cfg.sourceTopic, "source-topic", kafka.TopicDeadLetterQueue, "DLQ source topic")
	flag.StringVar(&cfg.topicOverride, "target-topic", "", "force target topic; default routes by aggregate type")
	flag.StringVar(&cfg.eventType, "event-type", "", "replay only events of this type (e.g. order.updated)")
	flag.IntVar(&cfg.limit, "limit", defaultScanLimit, "max number of messages to scan")
	flag.BoolVar(&cfg.execute, "execute", false, "execute replay; default is dry-run")
	flag.BoolVar(&cfg.fromNewest, "from-newest", false, "scan latest messages first (bounded by limit)")
	flag.DurationVar(&cfg.idleTimeout, "idle-timeout", defaultIdleTimeout, "idle timeout per partition")
	flag.Parse()

	if strings.TrimSpace(brokersRaw) == "" {
		brokersRaw = os.Getenv("KAFKA_BROKERS")
	}

	cfg.brokers = splitBrokers(brokersRaw)
	if len(cfg.brokers) == 0 {
		return replayConfig{}, fmt.Errorf("kafka brokers are required (-brokers or KAFKA_BROKERS)")
	}
	if strings.TrimSpace(cfg.sourceTopic) == "" {
		return replayConfig{}, fmt.Errorf("source-topic is required")
	}
	if cfg.limit <= 0 {
		return replayConfig{}, fmt.Errorf("limit must be > 0")
	}
	if cfg.idleTimeout <= 0 {
		return replayConfig{}, fmt.Errorf("idle-timeout must be > 0")
	}

	return cfg, nil
}

func splitBrokers(raw string) []string {
	chunks := strings.Split(raw, ",")
	brokers := make([]string, 0, len(chunks))
	for _, chunk := range chunks {
		broker := strings.TrimSpace(chunk)
		if broker == "" {
			continue
		}
		brokers = append(brokers, broker)
	}
	return brokers
}

// routeTopic выбирает рабочий топик для повтора: явный override,
// иначе — по типу агрегата.
func routeTopic(aggregateType, override string) string {
	if strings.TrimSpace(override) != "" {
		return override
	}
	if strings.EqualFold(strings.TrimSpace(aggregateType), aggregateTypeCommission) {
		return kafka.TopicCommissionEvents
	}
	return kafka.TopicOrderEvents
}

func run(ctx context.Context, cfg replayConfig) error {
	log.WithFields(log.Fields{
		"source_topic": cfg.sourceTopic,
		"event_type":   cfg.eventType,
		"limit":        cfg.limit,
		"execute":      cfg.execute,
		"from_newest":  cfg.fromNewest,
	}).Info("starting dlq replay")

	client, source, sink, err := connectKafka(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if sink != nil {
			_ = sink.Close()
		}
		if source != nil {
			_ = source.Close()
		}
		if client != nil {
			_ = client.Close()
		}
	}()

	return replayAll(ctx, cfg, client, source, sink)
}

func replayAll(ctx context.Context, cfg replayConfig, client offsetReader, source streamSource, sink candidateSink) error {
	if client == nil || source == nil {
		return fmt.Errorf("kafka client and consumer are required")
	}
	if cfg.execute && sink == nil {
		return fmt.Errorf("producer is required in execute mode")
	}

	partitions, err := client.Partitions(cfg.sourceTopic)
	if err != nil {
		return fmt.Errorf("get partitions for topic %s: %w", cfg.sourceTopic, err)
	}
	if len(partitions) == 0 {
		log.WithField("topic", cfg.sourceTopic).Warn("source topic has no partitions")
		return nil
	}
	sort.Slice(partitions, func(i, j int) bool { return partitions[i] < partitions[j] })

	var total replayStats
	for _, partition := range partitions {
		if total.scanned >= cfg.limit {
			break
		}

		stats, err := scanPartition(ctx, cfg, client, source, sink, partition, cfg.limit-total.scanned)
		if err != nil {
			return err
		}
		total.add(stats)
	}

	mode := "dry-run"
	if cfg.execute {
		mode = "execute"
	}
	log.WithFields(log.Fields{
		"mode":     mode,
		"scanned":  total.scanned,
		"requeued": total.requeued,
		"skipped":  total.skipped,
	}).Info("dlq replay finished")

	return nil
}

type replayStats struct {
	scanned  int
	requeued int
	skipped  int
}

func (s *replayStats) add(other replayStats) {
	s.scanned += other.scanned
	s.requeued += other.requeued
	s.skipped += other.skipped
}

func scanPartition(
	ctx context.Context,
	cfg replayConfig,
	client offsetReader,
	source streamSource,
	sink candidateSink,
	partition int32,
	budget int,
) (replayStats, error) {
	var stats replayStats
	if budget <= 0 {
		return stats, nil
	}

	oldest, err := client.GetOffset(cfg.sourceTopic, partition, sarama.OffsetOldest)
	if err != nil {
		return stats, fmt.Errorf("get oldest offset for partition %d: %w", partition, err)
	}
	newest, err := client.GetOffset(cfg.sourceTopic, partition, sarama.OffsetNewest)
	if err != nil {
		return stats, fmt.Errorf("get newest offset for partition %d: %w", partition, err)
	}
	if newest <= oldest {
		return stats, nil
	}

	start := oldest
	if cfg.fromNewest {
		if start = newest - int64(budget); start < oldest {
			start = oldest
		}
	}

	stream, err := source.ConsumePartition(cfg.sourceTopic, partition, start)
	if err != nil {
		return stats, fmt.Errorf("consume partition %d: %w", partition, err)
	}
	defer func() { _ = stream.Close() }()

	idle := time.NewTimer(cfg.idleTimeout)
	defer idle.Stop()

	for stats.scanned < budget {
		select {
		case <-ctx.Done():
			return stats, ctx.Err()
		case streamErr := <-stream.Errors():
			if streamErr != nil {
				return stats, fmt.Errorf("partition %d consumer error: %w", partition, streamErr)
			}
		case msg, ok := <-stream.Messages():
			if !ok || msg == nil {
				return stats, nil
			}
			resetTimer(idle, cfg.idleTimeout)

			if msg.Offset >= newest {
				return stats, nil
			}

			if err := handleMessage(cfg, sink, msg, &stats); err != nil {
				return stats, err
			}
			if msg.Offset+1 >= newest {
				return stats, nil
			}
		case <-idle.C:
			return stats, nil
		}
	}

	return stats, nil
}

func resetTimer(timer *time.Timer, d time.Duration) {
	if !timer.Stop() {
		select {
		case <-timer.C:
		default:
		}
	}
	timer.Reset(d)
}

func handleMessage(cfg replayConfig, sink candidateSink, msg *sarama.ConsumerMessage, stats *replayStats) error {
	stats.scanned++

	candidate, ok, err := decodeCandidate(msg, cfg.topicOverride)
	if err != nil {
		stats.skipped++
		log.WithError(err).WithFields(log.Fields{
			"partition": msg.Partition,
			"offset":    msg.Offset,
		}).Warn("skip unsupported dlq message")
		return nil
	}
	if !ok {
		stats.skipped++
		return nil
	}
	if cfg.eventType != "" && candidate.eventType != cfg.eventType {
		stats.skipped++
		return nil
	}

	if !cfg.execute {
		log.WithFields(log.Fields{
			"partition":    msg.Partition,
			"offset":       msg.Offset,
			"target_topic": candidate.topic,
			"event_type":   candidate.eventType,
			"key":          candidate.key,
		}).Info("dlq replay candidate")
		stats.requeued++
		return nil
	}

	if err := requeue(sink, candidate); err != nil {
		return fmt.Errorf("publish replay message: %w", err)
	}
	stats.requeued++
	return nil
}

func requeue(sink candidateSink, candidate replayCandidate) error {
	if sink == nil {
		return fmt.Errorf("producer is nil")
	}

	_, _, err := sink.SendMessage(&sarama.ProducerMessage{
		Topic:     candidate.topic,
		Key:       sarama.StringEncoder(candidate.key),
		Value:     sarama.ByteEncoder(candidate.value),
		Timestamp: time.Now().UTC(),
	})
	return err
}

// decodeCandidate разбирает оба формата DLQ. Сообщения consumer'а
// возвращаются в их исходный топик как есть; записи outbox worker'а
// заворачиваются в свежий envelope и маршрутизируются по типу агрегата.
func decodeCandidate(msg *sarama.ConsumerMessage, topicOverride string) (replayCandidate, bool, error) {
	var dead consumerDeadLetter
	if err := json.Unmarshal(msg.Value, &dead); err == nil && dead.OriginalValue != "" {
		topic := strings.TrimSpace(dead.OriginalTopic)
		if topic == "" {
			topic = routeTopic("", topicOverride)
		}
		return replayCandidate{
			topic: topic,
			key:   dead.OriginalKey,
			value: []byte(dead.OriginalValue),
		}, true, nil
	}

	var envelope dlqEnvelope
	if err := json.Unmarshal(msg.Value, &envelope); err != nil {
		return replayCandidate{}, false, nil
	}
	if len(envelope.Payload) == 0 {
		return replayCandidate{}, false, nil
	}

	var body deadLetterBody
	if err := json.Unmarshal(envelope.Payload, &body); err != nil {
		return replayCandidate{}, false, fmt.Errorf("decode outbox dlq payload: %w", err)
	}
	if len(body.Payload) == 0 {
		return replayCandidate{}, false, fmt.Errorf("outbox dlq payload does not contain original event payload")
	}

	outbound := outboundEnvelope{
		ID:            coalesce(body.OutboxID, envelope.ID),
		AggregateType: coalesce(body.AggregateType, envelope.AggregateType),
		AggregateID:   coalesce(body.AggregateID, envelope.AggregateID),
		EventType:     coalesce(body.EventType, envelope.EventType),
		Payload:       body.Payload,
		PublishedAt:   time.Now().UTC(),
	}
	encoded, err := json.Marshal(outbound)
	if err != nil {
		return replayCandidate{}, false, fmt.Errorf("encode replay envelope: %w", err)
	}

	key := outbound.AggregateID
	if key == "" {
		key = outbound.ID
	}

	return replayCandidate{
		topic:     routeTopic(outbound.AggregateType, topicOverride),
		key:       key,
		eventType: outbound.EventType,
		value:     encoded,
	}, true, nil
}

func coalesce(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return value
		}
	}
	return ""
}

func fail(format string, args ...any) {
	_, _ = fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
