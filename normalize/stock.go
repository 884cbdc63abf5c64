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
package normalize

import "github.com/sammedchougule/stocker-ingest/feed"

// Stock is the consumer-facing view served by the read cache: one flattened
// record per instrument with today's metrics. It carries the same coercion
// rules as the persisted families.
type Stock struct {
	Symbol       string   `json:"symbol"`
	CompanyName  string   `json:"companyName"`
	Sector       string   `json:"sector"`
	Industry     string   `json:"industry"`
	Instrument   string   `json:"instrument"`
	Price        *float64 `json:"price"`
	Change       *float64 `json:"change"`
	ChangePct    *float64 `json:"changePercent"`
	Open         *float64 `json:"open"`
	High         *float64 `json:"high"`
	Low          *float64 `json:"low"`
	Close        *float64 `json:"close"`
	Volume       *int64   `json:"volume"`
	MarketCap    *float64 `json:"marketCap"`
	NearYearHigh bool     `json:"nearYearHigh"`
	NearYearLow  bool     `json:"nearYearLow"`
	Indices      []string `json:"indices"`
}

// Stocks maps raw feed rows into the read-side view. Rows without a symbol
// are dropped, mirroring Normalize.
func Stocks(rows []feed.RawRow) []Stock {
	out := make([]Stock, 0, len(rows))
	for _, row := range rows {
		symbol := asString(row["symbol"])
		if symbol == "" {
			continue
		}
		out = append(out, Stock{
			Symbol:       symbol,
			CompanyName:  asString(row["companyName"]),
			Sector:       asString(row["sector"]),
			Industry:     asString(row["industry"]),
			Instrument:   asString(row["instrument"]),
			Price:        asFloat(row["price"]),
			Change:       asFloat(row["change"]),
			ChangePct:    asFloat(row["changePercent"]),
			Open:         asFloat(row["open"]),
			High:         asFloat(row["high"]),
			Low:          asFloat(row["low"]),
			Close:        asFloat(row["close"]),
			Volume:       asInt(row["volume"]),
			MarketCap:    asFloat(row["marketCap"]),
			NearYearHigh: asBool(row["nearYearHigh"]),
			NearYearLow:  asBool(row["nearYearLow"]),
			Indices:      memberIndices(row),
		})
	}
	return out
}
