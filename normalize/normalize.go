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

// Package normalize maps untyped feed rows into the three persisted record
// families. All feed parsing lives here; the rest of the pipeline only sees
// typed records.
package normalize

import (
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sammedchougule/stocker-ingest/feed"
	"github.com/sammedchougule/stocker-ingest/store"
)

// knownIndices are the index memberships tested against each row. Names the
// feed sends that are not in this list are ignored.
var knownIndices = []string{
	"Nifty 50",
	"Nifty Next 50",
	"Nifty 100",
	"Nifty 200",
	"Nifty 500",
	"Nifty Bank",
	"Nifty IT",
	"Nifty Auto",
	"Nifty FMCG",
	"Nifty Pharma",
	"Nifty Metal",
	"Nifty Midcap 100",
}

// Result is one cycle's normalized output. The three slices are derived from
// the same accepted-row set, so they correspond by symbol. Skipped counts
// rows dropped for a missing symbol.
type Result struct {
	Reference  []store.ReferenceRecord
	Snapshots  []store.SnapshotRecord
	Historical []store.HistoricalPoint
	Skipped    int
}

// Normalize maps raw feed rows into typed records for the given trading
// date. It is pure: a malformed row is skipped and counted, never fatal to
// the batch.
func Normalize(rows []feed.RawRow, asOf time.Time) Result {
	date := time.Date(asOf.Year(), asOf.Month(), asOf.Day(), 0, 0, 0, 0, time.UTC)

	res := Result{
		Reference:  make([]store.ReferenceRecord, 0, len(rows)),
		Snapshots:  make([]store.SnapshotRecord, 0, len(rows)),
		Historical: make([]store.HistoricalPoint, 0, len(rows)),
	}

	for i, row := range rows {
		symbol := asString(row["symbol"])
		if symbol == "" {
			log.Warn().Int("Row", i).Msg("skipping row without symbol")
			res.Skipped++
			continue
		}

		res.Reference = append(res.Reference, store.ReferenceRecord{
			Symbol:            symbol,
			CompanyName:       asString(row["companyName"]),
			Industry:          asString(row["industry"]),
			Sector:            asString(row["sector"]),
			Instrument:        asString(row["instrument"]),
			Exchange:          asString(row["exchange"]),
			Currency:          asString(row["currency"]),
			SharesOutstanding: asInt(row["sharesOutstanding"]),
			Indices:           memberIndices(row),
		})

		res.Snapshots = append(res.Snapshots, store.SnapshotRecord{
			Symbol:       symbol,
			Date:         date,
			Price:        asFloat(row["price"]),
			Change:       asFloat(row["change"]),
			ChangePct:    asFloat(row["changePercent"]),
			Volume:       asInt(row["volume"]),
			VolumeAvg:    asFloat(row["volumeAvg"]),
			MarketCap:    asFloat(row["marketCap"]),
			EPS:          asFloat(row["eps"]),
			PE:           asFloat(row["pe"]),
			VolumeSpike:  asBool(row["volumeSpike"]),
			NearYearHigh: asBool(row["nearYearHigh"]),
			NearYearLow:  asBool(row["nearYearLow"]),
			NewYearHigh:  asBool(row["newYearHigh"]),
			NewYearLow:   asBool(row["newYearLow"]),
		})

		res.Historical = append(res.Historical, store.HistoricalPoint{
			Symbol:    symbol,
			Date:      date,
			Open:      asFloat(row["open"]),
			Close:     asFloat(row["close"]),
			High:      asFloat(row["high"]),
			Low:       asFloat(row["low"]),
			Volume:    asInt(row["volume"]),
			VolumeAvg: asFloat(row["volumeAvg"]),
		})
	}

	return res
}

// memberIndices tests each known index against the row's membership
// indicators.
func memberIndices(row feed.RawRow) []string {
	indicators, ok := row["indices"].(map[string]any)
	if !ok {
		return nil
	}
	var out []string
	for _, name := range knownIndices {
		if asBool(indicators[name]) {
			out = append(out, name)
		}
	}
	return out
}
