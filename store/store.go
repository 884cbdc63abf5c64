/*
Copyright 2024

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/rs/zerolog/log"
)

// ErrStore is returned when one or more records in a batch could not be
// written.
var ErrStore = errors.New("store write failed")

const (
	upsertReferenceSQL = `INSERT INTO stock_reference (
		"symbol",
		"company_name",
		"industry",
		"sector",
		"instrument",
		"exchange",
		"currency",
		"shares_outstanding",
		"indices"
	) VALUES (
		$1, $2, $3, $4, $5, $6, $7, $8, $9
	) ON CONFLICT (symbol)
	DO UPDATE SET
		company_name = EXCLUDED.company_name,
		industry = EXCLUDED.industry,
		sector = EXCLUDED.sector,
		instrument = EXCLUDED.instrument,
		exchange = EXCLUDED.exchange,
		currency = EXCLUDED.currency,
		shares_outstanding = EXCLUDED.shares_outstanding,
		indices = EXCLUDED.indices;`

	upsertSnapshotSQL = `INSERT INTO stock_snapshot (
		"symbol",
		"event_date",
		"price",
		"change",
		"change_pct",
		"volume",
		"volume_avg",
		"market_cap",
		"eps",
		"pe",
		"volume_spike",
		"near_year_high",
		"near_year_low",
		"new_year_high",
		"new_year_low"
	) VALUES (
		$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15
	) ON CONFLICT (symbol, event_date)
	DO UPDATE SET
		price = EXCLUDED.price,
		change = EXCLUDED.change,
		change_pct = EXCLUDED.change_pct,
		volume = EXCLUDED.volume,
		volume_avg = EXCLUDED.volume_avg,
		market_cap = EXCLUDED.market_cap,
		eps = EXCLUDED.eps,
		pe = EXCLUDED.pe,
		volume_spike = EXCLUDED.volume_spike,
		near_year_high = EXCLUDED.near_year_high,
		near_year_low = EXCLUDED.near_year_low,
		new_year_high = EXCLUDED.new_year_high,
		new_year_low = EXCLUDED.new_year_low;`

	upsertHistorySQL = `INSERT INTO stock_history (
		"symbol",
		"event_date",
		"open",
		"close",
		"high",
		"low",
		"volume",
		"volume_avg"
	) VALUES (
		$1, $2, $3, $4, $5, $6, $7, $8
	) ON CONFLICT (symbol, event_date)
	DO UPDATE SET
		open = EXCLUDED.open,
		close = EXCLUDED.close,
		high = EXCLUDED.high,
		low = EXCLUDED.low,
		volume = EXCLUDED.volume,
		volume_avg = EXCLUDED.volume_avg;`
)

// Store writes normalized records into the three quote tables. It is
// constructed once at process start and shared; the pool handles connection
// reuse.
type Store struct {
	pool *pgxpool.Pool
}

// Config bounds the connection pool.
type Config struct {
	MinConns int32
	MaxConns int32
}

// New connects a pool to the database at dsn and verifies it with a ping.
func New(ctx context.Context, dsn string, cfg Config) (*Store, error) {
	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}

	pool, err := pgxpool.ConnectConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &Store{pool: pool}, nil
}

// Ping verifies the pool is healthy.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

// UpsertReference writes reference records keyed by symbol.
func (s *Store) UpsertReference(ctx context.Context, records []ReferenceRecord) (UpsertResult, error) {
	var res UpsertResult
	var firstErr error
	for i := range records {
		r := &records[i]
		_, err := s.pool.Exec(ctx, upsertReferenceSQL,
			r.Symbol, r.CompanyName, r.Industry, r.Sector, r.Instrument,
			r.Exchange, r.Currency, r.SharesOutstanding, r.Indices)
		if err != nil {
			log.Error().Err(err).Str("Symbol", r.Symbol).Msg("error saving reference record")
			res.Failed++
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		res.Applied++
	}
	return res, batchErr("reference", res, firstErr)
}

// UpsertSnapshots writes daily snapshot records keyed by (symbol, event_date).
func (s *Store) UpsertSnapshots(ctx context.Context, records []SnapshotRecord) (UpsertResult, error) {
	var res UpsertResult
	var firstErr error
	for i := range records {
		r := &records[i]
		_, err := s.pool.Exec(ctx, upsertSnapshotSQL,
			r.Symbol, r.Date, r.Price, r.Change, r.ChangePct, r.Volume,
			r.VolumeAvg, r.MarketCap, r.EPS, r.PE, r.VolumeSpike,
			r.NearYearHigh, r.NearYearLow, r.NewYearHigh, r.NewYearLow)
		if err != nil {
			log.Error().Err(err).Str("Symbol", r.Symbol).Time("EventDate", r.Date).Msg("error saving snapshot record")
			res.Failed++
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		res.Applied++
	}
	return res, batchErr("snapshot", res, firstErr)
}

// UpsertHistory writes OHLCV bars keyed by (symbol, event_date).
func (s *Store) UpsertHistory(ctx context.Context, records []HistoricalPoint) (UpsertResult, error) {
	var res UpsertResult
	var firstErr error
	for i := range records {
		r := &records[i]
		_, err := s.pool.Exec(ctx, upsertHistorySQL,
			r.Symbol, r.Date, r.Open, r.Close, r.High, r.Low,
			r.Volume, r.VolumeAvg)
		if err != nil {
			log.Error().Err(err).Str("Symbol", r.Symbol).Time("EventDate", r.Date).Msg("error saving historical bar")
			res.Failed++
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		res.Applied++
	}
	return res, batchErr("historical", res, firstErr)
}

func batchErr(table string, res UpsertResult, firstErr error) error {
	if firstErr == nil {
		return nil
	}
	return fmt.Errorf("%w: %s: %d of %d records failed: %v",
		ErrStore, table, res.Failed, res.Applied+res.Failed, firstErr)
}
