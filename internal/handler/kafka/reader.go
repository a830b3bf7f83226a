package kafka

import (
	"context"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/finflow/payment-stream-engine/config"
	"github.com/finflow/payment-stream-engine/infra/metrics"
	"github.com/finflow/payment-stream-engine/internal/domain/model"
	"github.com/finflow/payment-stream-engine/internal/pipeline"
	"github.com/finflow/payment-stream-engine/internal/service"
)

// NewClient builds the consumer-group client. Offset commits are fully
// manual: the reader never advances its own durable position, that
// authority belongs to the checkpoint coordinator.
func NewClient(cfg *config.Config) (*kgo.Client, error) {
	return kgo.NewClient(
		kgo.SeedBrokers(cfg.Consumer.Brokers...),
		kgo.ConsumeTopics(cfg.Consumer.Topic),
		kgo.ConsumerGroup(cfg.Consumer.Group),
		kgo.DisableAutoCommit(),
		kgo.ConsumeResetOffset(startOffset(cfg.Consumer.StartOffset)),
	)
}

// startOffset maps the configured start policy to the reset offset used
// when the group has no committed checkpoint. With one on record, the
// group resumes from it regardless of policy.
func startOffset(policy string) kgo.Offset {
	switch policy {
	case config.StartEarliest, config.StartResume:
		return kgo.NewOffset().AtStart()
	default:
		return kgo.NewOffset().AtEnd()
	}
}

// Reader is the single sequential producer feeding the router: within a
// partition, events enter the router in offset order.
type Reader struct {
	client   *kgo.Client
	enricher service.Enricher
	router   *pipeline.Router
	coord    *pipeline.Coordinator
	logger   *slog.Logger
	topic    string
}

func NewReader(
	client *kgo.Client,
	cfg *config.Config,
	enricher service.Enricher,
	router *pipeline.Router,
	coord *pipeline.Coordinator,
	logger *slog.Logger,
) *Reader {
	return &Reader{
		client:   client,
		enricher: enricher,
		router:   router,
		coord:    coord,
		logger:   logger,
		topic:    cfg.Consumer.Topic,
	}
}

// Run polls until ctx is canceled. Each poll first passes the
// coordinator's backpressure gate, so a slow sink suspends consumption
// instead of growing an unbounded buffer.
func (r *Reader) Run(ctx context.Context) error {
	r.logger.Info("READER_STARTED", "topic", r.topic)
	for {
		if err := r.coord.WaitReady(ctx); err != nil {
			return nil
		}

		fetches := r.client.PollFetches(ctx)
		if fetches.IsClientClosed() || ctx.Err() != nil {
			r.logger.Info("READER_STOPPED")
			return nil
		}
		fetches.EachError(func(topic string, partition int32, err error) {
			r.logger.Error("FETCH_FAILED",
				"topic", topic,
				"partition", partition,
				"err", err,
			)
		})
		fetches.EachRecord(r.consume)
	}
}

func (r *Reader) consume(rec *kgo.Record) {
	pos := model.Position{Partition: rec.Partition, Offset: rec.Offset}

	ev, err := decodeRawEvent(rec.Value)
	if err != nil {
		// Malformed input never halts ingestion: skip, count, log with
		// enough context for a manual replay, and let the checkpoint
		// pass over the offset.
		metrics.RecordsTotal.WithLabelValues("malformed").Inc()
		r.logger.Warn("MESSAGE_SKIPPED", "position", pos.String(), "err", err)
		r.router.MarkSkipped(pos)
		return
	}

	metrics.RecordsTotal.WithLabelValues("ok").Inc()
	r.router.Dispatch(r.enricher.Enrich(ev), pos)
}

// Close releases the underlying client. Called after the pipelines have
// drained so the final checkpoint commits still have a live connection.
func (r *Reader) Close() {
	r.client.Close()
}
