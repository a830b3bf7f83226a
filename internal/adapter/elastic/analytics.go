package elastic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/elastic/go-elasticsearch/v8"

	"github.com/finflow/payment-stream-engine/config"
	"github.com/finflow/payment-stream-engine/internal/domain/model"
	"github.com/finflow/payment-stream-engine/internal/pipeline"
)

// Destination writes analytics documents to an index through the bulk
// API. The index is append-only by contract: one document per event, no
// updates or deletes, duplicates on redelivery are acceptable.
type Destination struct {
	client *elasticsearch.Client
	index  string
	name   string
	logger *slog.Logger
}

// Build is the registry constructor for sink type "elasticsearch".
func Build(name string, cfg config.SinkConfig, logger *slog.Logger) (pipeline.Destination, error) {
	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: cfg.Addresses,
	})
	if err != nil {
		return nil, fmt.Errorf("elasticsearch client: %w", err)
	}
	return &Destination{
		client: client,
		index:  cfg.Index,
		name:   name,
		logger: logger,
	}, nil
}

func (d *Destination) Name() string { return d.name }

func (d *Destination) Deliver(ctx context.Context, records []pipeline.Envelope) error {
	body, err := encodeBulk(records)
	if err != nil {
		return pipeline.Terminal(err)
	}

	res, err := d.client.Bulk(bytes.NewReader(body),
		d.client.Bulk.WithContext(ctx),
		d.client.Bulk.WithIndex(d.index),
	)
	if err != nil {
		return fmt.Errorf("bulk request: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		err := fmt.Errorf("bulk status %s", res.Status())
		if isClientFault(res.StatusCode) {
			return pipeline.Terminal(err)
		}
		return err
	}

	var parsed bulkResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return fmt.Errorf("bulk response: %w", err)
	}
	if parsed.Errors {
		// Partial rejection. The whole batch is retried unchanged;
		// re-indexing the accepted documents just duplicates them,
		// which the append-only contract tolerates.
		failed := parsed.failedCount()
		d.logger.Warn("BULK_PARTIAL_FAILURE",
			"sink", d.name,
			"failed", failed,
			"total", len(records),
		)
		return fmt.Errorf("bulk rejected %d of %d items", failed, len(records))
	}
	return nil
}

func (d *Destination) Close(ctx context.Context) error { return nil }

// isClientFault marks statuses that will fail identically on retry.
func isClientFault(status int) bool {
	return status >= 400 && status < 500 && status != http.StatusTooManyRequests
}

// encodeBulk renders action/document pairs as NDJSON.
func encodeBulk(records []pipeline.Envelope) ([]byte, error) {
	var buf bytes.Buffer
	for _, env := range records {
		doc, ok := env.Record.(model.AnalyticsDoc)
		if !ok {
			return nil, fmt.Errorf("unexpected record type %T", env.Record)
		}
		buf.WriteString(`{"index":{}}` + "\n")
		if err := json.NewEncoder(&buf).Encode(doc); err != nil {
			return nil, fmt.Errorf("encode document: %w", err)
		}
	}
	return buf.Bytes(), nil
}

type bulkResponse struct {
	Errors bool `json:"errors"`
	Items  []map[string]bulkItem `json:"items"`
}

type bulkItem struct {
	Status int `json:"status"`
}

func (r bulkResponse) failedCount() int {
	failed := 0
	for _, item := range r.Items {
		for _, res := range item {
			if res.Status >= 300 {
				failed++
			}
		}
	}
	return failed
}
