package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/finflow/payment-stream-engine/config"
	"github.com/finflow/payment-stream-engine/infra/metrics"
	"github.com/finflow/payment-stream-engine/internal/domain/model"
	"github.com/finflow/payment-stream-engine/internal/pipeline"
)

// The ledger table declares transaction_id as its key without enforcing
// it, so idempotence under at-least-once redelivery lives here: every
// write is an upsert, and a recent-transaction cache suppresses obvious
// replays. Suppressions are counted, never silent.

const dedupCacheSize = 100_000

var tableNamePattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

type Destination struct {
	pool   *pgxpool.Pool
	sql    string
	name   string
	seen   *lru.Cache[string, struct{}]
	logger *slog.Logger
}

// Build is the registry constructor for sink type "postgres".
func Build(name string, cfg config.SinkConfig, logger *slog.Logger) (pipeline.Destination, error) {
	if !tableNamePattern.MatchString(cfg.Table) {
		return nil, fmt.Errorf("invalid table name %q", cfg.Table)
	}
	pool, err := pgxpool.New(context.Background(), cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("postgres pool: %w", err)
	}
	seen, err := lru.New[string, struct{}](dedupCacheSize)
	if err != nil {
		return nil, err
	}
	return &Destination{
		pool:   pool,
		sql:    upsertStatement(cfg.Table),
		name:   name,
		seen:   seen,
		logger: logger,
	}, nil
}

func upsertStatement(table string) string {
	return fmt.Sprintf(`INSERT INTO %s (
	transaction_id, product_id, product_name, product_category,
	product_price, product_quantity, product_brand, currency,
	customer_id, transaction_date, payment_method, total_amount
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
ON CONFLICT (transaction_id) DO UPDATE SET
	product_id = EXCLUDED.product_id,
	product_name = EXCLUDED.product_name,
	product_category = EXCLUDED.product_category,
	product_price = EXCLUDED.product_price,
	product_quantity = EXCLUDED.product_quantity,
	product_brand = EXCLUDED.product_brand,
	currency = EXCLUDED.currency,
	customer_id = EXCLUDED.customer_id,
	transaction_date = EXCLUDED.transaction_date,
	payment_method = EXCLUDED.payment_method,
	total_amount = EXCLUDED.total_amount`, table)
}

func (d *Destination) Name() string { return d.name }

func (d *Destination) Deliver(ctx context.Context, records []pipeline.Envelope) error {
	batch := &pgx.Batch{}
	ids := make([]string, 0, len(records))
	deduped := 0

	for _, env := range records {
		row, ok := env.Record.(model.LedgerRow)
		if !ok {
			return pipeline.Terminal(fmt.Errorf("unexpected record type %T", env.Record))
		}
		if _, dup := d.seen.Get(row.TransactionID); dup {
			deduped++
			continue
		}
		batch.Queue(d.sql,
			row.TransactionID, row.ProductID, row.ProductName,
			row.ProductCategory, row.ProductPrice, row.ProductQuantity,
			row.ProductBrand, row.Currency, row.CustomerID,
			row.TransactionDate, row.PaymentMethod, row.TotalAmount,
		)
		ids = append(ids, row.TransactionID)
	}

	if deduped > 0 {
		metrics.DedupedRows.WithLabelValues(d.name).Add(float64(deduped))
		d.logger.Debug("ROWS_DEDUPED", "sink", d.name, "rows", deduped)
	}
	if len(ids) == 0 {
		return nil
	}

	results := d.pool.SendBatch(ctx, batch)
	for range ids {
		if _, err := results.Exec(); err != nil {
			_ = results.Close()
			return classify(err)
		}
	}
	if err := results.Close(); err != nil {
		return classify(err)
	}

	// Only remember ids the destination durably accepted.
	for _, id := range ids {
		d.seen.Add(id, struct{}{})
	}
	return nil
}

func (d *Destination) Close(ctx context.Context) error {
	d.pool.Close()
	return nil
}

// classify splits rejections into retryable and terminal. Data and
// constraint errors (SQLSTATE classes 22, 23, 42) fail the same way on
// every attempt; everything else is assumed transient.
func classify(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && len(pgErr.Code) >= 2 {
		switch pgErr.Code[:2] {
		case "22", "23", "42":
			return pipeline.Terminal(fmt.Errorf("ledger upsert: %w", err))
		}
	}
	return fmt.Errorf("ledger upsert: %w", err)
}
