package feed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	pgxdecimal "github.com/jackc/pgx-shopspring-decimal"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"edgelab/internal/domain"
	"edgelab/internal/util"
)

// Compile-time interface check.
var _ Fetcher = (*PostgresFetcher)(nil)

// dailyCandlesSQL rolls candles of any resolution up to daily bars. It
// runs on plain Postgres and on TimescaleDB hypertables.
const dailyCandlesSQL = `
SELECT date_trunc('day', ts)                AS bucket,
       (array_agg(open ORDER BY ts))[1]      AS open,
       max(high)                             AS high,
       min(low)                              AS low,
       (array_agg(close ORDER BY ts DESC))[1] AS close,
       sum(volume)                           AS volume
FROM candles
WHERE symbol = $1 AND ts >= $2 AND ts <= $3
GROUP BY bucket
ORDER BY bucket`

// candleRow is one aggregated daily row. Prices are NUMERIC columns decoded
// through shopspring decimal.
type candleRow struct {
	Bucket time.Time       `db:"bucket"`
	Open   decimal.Decimal `db:"open"`
	High   decimal.Decimal `db:"high"`
	Low    decimal.Decimal `db:"low"`
	Close  decimal.Decimal `db:"close"`
	Volume decimal.Decimal `db:"volume"`
}

type candleQuerier interface {
	DailyCandles(ctx context.Context, symbol string, start, end time.Time) ([]candleRow, error)
}

// pgxCandles runs dailyCandlesSQL on a pool.
type pgxCandles struct {
	pool *pgxpool.Pool
}

func (q pgxCandles) DailyCandles(ctx context.Context, symbol string, start, end time.Time) ([]candleRow, error) {
	rows, err := q.pool.Query(ctx, dailyCandlesSQL, symbol, start, end)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowToStructByName[candleRow])
}

// PostgresFetcher reads daily bars from a `candles` table.
type PostgresFetcher struct {
	candles  candleQuerier
	pool     *pgxpool.Pool
	attempts int
	backoff  time.Duration
	log      *slog.Logger
}

// NewPostgresFetcher connects to dbURL and verifies connectivity.
func NewPostgresFetcher(ctx context.Context, dbURL string) (*PostgresFetcher, error) {
	config, err := pgxpool.ParseConfig(dbURL)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	// Register shopspring decimal for NUMERIC columns.
	config.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		pgxdecimal.Register(conn.TypeMap())
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	f := newPostgresFetcher(pgxCandles{pool: pool})
	f.pool = pool
	return f, nil
}

func newPostgresFetcher(q candleQuerier) *PostgresFetcher {
	return &PostgresFetcher{
		candles:  q,
		attempts: 3,
		backoff:  500 * time.Millisecond,
		log:      slog.Default().With("component", "feed.postgres"),
	}
}

// Close releases the connection pool.
func (f *PostgresFetcher) Close() error {
	if f.pool != nil {
		f.pool.Close()
	}
	return nil
}

// FetchBars loads symbol's daily bars within [start, end]. SQL errors
// reported by the server are not retried.
func (f *PostgresFetcher) FetchBars(ctx context.Context, symbol string, start, end time.Time) ([]domain.Bar, error) {
	symbol = strings.ToUpper(symbol)

	var rows []candleRow
	err := util.Retry(ctx, f.attempts, f.backoff, func() error {
		var err error
		rows, err = f.candles.DailyCandles(ctx, symbol, start, end)
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			return util.Permanent(err)
		}
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("daily candles %s: %w", symbol, err)
	}

	bars := make([]domain.Bar, 0, len(rows))
	for _, r := range rows {
		bars = append(bars, domain.Bar{
			Symbol:    symbol,
			Timestamp: r.Bucket.UTC(),
			Open:      r.Open.InexactFloat64(),
			High:      r.High.InexactFloat64(),
			Low:       r.Low.InexactFloat64(),
			Close:     r.Close.InexactFloat64(),
			Volume:    r.Volume.IntPart(),
		})
	}
	f.log.Debug("loaded candles", "symbol", symbol, "bars", len(bars))
	return bars, nil
}
