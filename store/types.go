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

import "time"

// ReferenceRecord holds the static identity and classification of a symbol.
// Keyed by symbol; re-ingestion replaces all non-key fields.
type ReferenceRecord struct {
	Symbol            string   `json:"symbol"`
	CompanyName       string   `json:"companyName"`
	Industry          string   `json:"industry"`
	Sector            string   `json:"sector"`
	Instrument        string   `json:"instrument"`
	Exchange          string   `json:"exchange"`
	Currency          string   `json:"currency"`
	SharesOutstanding *int64   `json:"sharesOutstanding"`
	Indices           []string `json:"indices"`
}

// SnapshotRecord holds one day's trading metrics for a symbol. Keyed by
// (symbol, event_date). Numeric fields are pointers so an unparsable feed
// value stays NULL instead of polluting aggregates with zeroes.
type SnapshotRecord struct {
	Symbol       string    `json:"symbol"`
	Date         time.Time `json:"date"`
	Price        *float64  `json:"price"`
	Change       *float64  `json:"change"`
	ChangePct    *float64  `json:"changePct"`
	Volume       *int64    `json:"volume"`
	VolumeAvg    *float64  `json:"volumeAvg"`
	MarketCap    *float64  `json:"marketCap"`
	EPS          *float64  `json:"eps"`
	PE           *float64  `json:"pe"`
	VolumeSpike  bool      `json:"volumeSpike"`
	NearYearHigh bool      `json:"nearYearHigh"`
	NearYearLow  bool      `json:"nearYearLow"`
	NewYearHigh  bool      `json:"newYearHigh"`
	NewYearLow   bool      `json:"newYearLow"`
}

// HistoricalPoint is one OHLCV bar for a symbol. Keyed by
// (symbol, event_date); a same-key upsert corrects the bar.
type HistoricalPoint struct {
	Symbol    string    `json:"symbol"`
	Date      time.Time `json:"date"`
	Open      *float64  `json:"open"`
	Close     *float64  `json:"close"`
	High      *float64  `json:"high"`
	Low       *float64  `json:"low"`
	Volume    *int64    `json:"volume"`
	VolumeAvg *float64  `json:"volumeAvg"`
}

// UpsertResult reports how a batched upsert went. Records are applied
// independently, so a batch can partially succeed.
type UpsertResult struct {
	Applied int `json:"applied"`
	Failed  int `json:"failed"`
}
