// Package kafka publishes history rows to a Kafka topic so dashboards can
// follow a run while it converges.
//
// Messages carry the jsonl column and row encodings. The first message of a
// run has type "header"; every following one is a row. All messages of a
// zone share the key <run_id>/<zone>, which keeps them on one partition and
// in iteration order.
package kafka

import (
	"context"
	"strconv"

	"github.com/IBM/sarama"
	"go.uber.org/zap"

	"github.com/ajitpratap0/feaout/pkg/config"
	"github.com/ajitpratap0/feaout/pkg/errors"
	"github.com/ajitpratap0/feaout/pkg/field"
	"github.com/ajitpratap0/feaout/pkg/json"
	"github.com/ajitpratap0/feaout/pkg/record"
	"github.com/ajitpratap0/feaout/pkg/sink"
	"github.com/ajitpratap0/feaout/pkg/sink/jsonl"
)

// Writer is the Kafka history sink
type Writer struct {
	cfg    config.KafkaConfig
	runID  string
	zone   int
	logger *zap.Logger

	producer sarama.SyncProducer
	fields   []field.Descriptor
	closed   bool
}

var _ sink.HistoryWriter = (*Writer)(nil)

// New creates a writer that connects to cfg.Brokers on Open
func New(cfg config.KafkaConfig, runID string, zone int, logger *zap.Logger) *Writer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Writer{
		cfg:    cfg,
		runID:  runID,
		zone:   zone,
		logger: logger.With(zap.String("sink", "kafka"), zap.String("topic", cfg.Topic)),
	}
}

// NewWithProducer creates a writer publishing through an existing producer
func NewWithProducer(p sarama.SyncProducer, cfg config.KafkaConfig, runID string, zone int, logger *zap.Logger) *Writer {
	w := New(cfg, runID, zone, logger)
	w.producer = p
	return w
}

// Config builds the producer configuration. Sync producers need
// Return.Successes.
func Config(cfg config.KafkaConfig) *sarama.Config {
	c := sarama.NewConfig()
	c.ClientID = cfg.ClientID
	if c.ClientID == "" {
		c.ClientID = "feaout"
	}
	c.Producer.Return.Successes = true
	c.Producer.Return.Errors = true

	switch cfg.RequiredAcks {
	case "none":
		c.Producer.RequiredAcks = sarama.NoResponse
	case "local":
		c.Producer.RequiredAcks = sarama.WaitForLocal
	default:
		c.Producer.RequiredAcks = sarama.WaitForAll
	}

	switch cfg.Compression {
	case "gzip":
		c.Producer.Compression = sarama.CompressionGZIP
	case "snappy":
		c.Producer.Compression = sarama.CompressionSnappy
	case "lz4":
		c.Producer.Compression = sarama.CompressionLZ4
	case "zstd":
		c.Producer.Compression = sarama.CompressionZSTD
		c.Version = sarama.V2_1_0_0
	default:
		c.Producer.Compression = sarama.CompressionNone
	}
	return c
}

func (w *Writer) Name() string { return "kafka" }

// Open connects if needed and publishes the column header
func (w *Writer) Open(_ context.Context, fields []field.Descriptor) error {
	if w.producer == nil {
		p, err := sarama.NewSyncProducer(w.cfg.Brokers, Config(w.cfg))
		if err != nil {
			return errors.Wrap(err, errors.ErrorTypeFile, "failed to connect to kafka").
				WithDetail("brokers", w.cfg.Brokers)
		}
		w.producer = p
	}
	w.fields = append([]field.Descriptor(nil), fields...)

	header := jsonl.Header{Type: "header", Columns: jsonl.Columns(fields)}
	if err := w.send("header", header); err != nil {
		return err
	}
	w.logger.Info("publishing history", zap.Strings("brokers", w.cfg.Brokers))
	return nil
}

// WriteRow publishes one iteration
func (w *Writer) WriteRow(_ context.Context, snap record.HistorySnapshot) error {
	if w.producer == nil || w.closed {
		return errors.New(errors.ErrorTypeInternal, "kafka sink not opened")
	}
	row, err := jsonl.NewRow(snap, w.fields)
	if err != nil {
		return err
	}
	return w.send("row", row)
}

func (w *Writer) send(kind string, v interface{}) error {
	value, err := json.Marshal(v)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeData, "failed to encode kafka message")
	}
	msg := &sarama.ProducerMessage{
		Topic: w.cfg.Topic,
		Key:   sarama.StringEncoder(w.Key()),
		Value: sarama.ByteEncoder(value),
		Headers: []sarama.RecordHeader{
			{Key: []byte("type"), Value: []byte(kind)},
			{Key: []byte("run_id"), Value: []byte(w.runID)},
			{Key: []byte("zone"), Value: []byte(strconv.Itoa(w.zone))},
		},
	}
	if _, _, err := w.producer.SendMessage(msg); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to publish history").
			WithDetail("topic", w.cfg.Topic)
	}
	return nil
}

// Key is the message key shared by all messages of this zone
func (w *Writer) Key() string { return w.runID + "/" + strconv.Itoa(w.zone) }

// Close closes the producer
func (w *Writer) Close() error {
	if w.closed || w.producer == nil {
		return nil
	}
	w.closed = true
	if err := w.producer.Close(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to close kafka producer")
	}
	return nil
}
