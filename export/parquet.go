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

// Package export writes snapshot batches to parquet for offline analysis.
package export

import (
	"github.com/rs/zerolog/log"
	"github.com/schollz/progressbar/v3"
	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"

	"github.com/sammedchougule/stocker-ingest/store"
)

// snapshotRow mirrors store.SnapshotRecord with parquet tags. Nullable
// numerics stay OPTIONAL so a missing feed value is a parquet null, not 0.
type snapshotRow struct {
	Symbol       string   `parquet:"name=symbol, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	Date         string   `parquet:"name=date, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	Price        *float64 `parquet:"name=price, type=DOUBLE, repetitiontype=OPTIONAL"`
	Change       *float64 `parquet:"name=change, type=DOUBLE, repetitiontype=OPTIONAL"`
	ChangePct    *float64 `parquet:"name=changePct, type=DOUBLE, repetitiontype=OPTIONAL"`
	Volume       *int64   `parquet:"name=volume, type=INT64, convertedtype=INT_64, repetitiontype=OPTIONAL"`
	VolumeAvg    *float64 `parquet:"name=volumeAvg, type=DOUBLE, repetitiontype=OPTIONAL"`
	MarketCap    *float64 `parquet:"name=marketCap, type=DOUBLE, repetitiontype=OPTIONAL"`
	EPS          *float64 `parquet:"name=eps, type=DOUBLE, repetitiontype=OPTIONAL"`
	PE           *float64 `parquet:"name=pe, type=DOUBLE, repetitiontype=OPTIONAL"`
	VolumeSpike  bool     `parquet:"name=volumeSpike, type=BOOLEAN"`
	NearYearHigh bool     `parquet:"name=nearYearHigh, type=BOOLEAN"`
	NearYearLow  bool     `parquet:"name=nearYearLow, type=BOOLEAN"`
	NewYearHigh  bool     `parquet:"name=newYearHigh, type=BOOLEAN"`
	NewYearLow   bool     `parquet:"name=newYearLow, type=BOOLEAN"`
}

// SaveToParquet writes snapshot records to a local parquet file.
func SaveToParquet(records []store.SnapshotRecord, fn string) error {
	fh, err := local.NewLocalFileWriter(fn)
	if err != nil {
		log.Error().Str("OriginalError", err.Error()).Str("FileName", fn).Msg("cannot create local file")
		return err
	}
	defer fh.Close()

	pw, err := writer.NewParquetWriter(fh, new(snapshotRow), 4)
	if err != nil {
		log.Error().Str("OriginalError", err.Error()).Msg("Parquet write failed")
		return err
	}

	pw.RowGroupSize = 128 * 1024 * 1024 // 128M
	pw.PageSize = 8 * 1024              // 8k
	pw.CompressionType = parquet.CompressionCodec_GZIP

	bar := progressbar.Default(int64(len(records)))
	for i := range records {
		bar.Add(1)
		r := &records[i]
		row := snapshotRow{
			Symbol:       r.Symbol,
			Date:         r.Date.Format("2006-01-02"),
			Price:        r.Price,
			Change:       r.Change,
			ChangePct:    r.ChangePct,
			Volume:       r.Volume,
			VolumeAvg:    r.VolumeAvg,
			MarketCap:    r.MarketCap,
			EPS:          r.EPS,
			PE:           r.PE,
			VolumeSpike:  r.VolumeSpike,
			NearYearHigh: r.NearYearHigh,
			NearYearLow:  r.NearYearLow,
			NewYearHigh:  r.NewYearHigh,
			NewYearLow:   r.NewYearLow,
		}
		if err = pw.Write(row); err != nil {
			log.Error().
				Str("OriginalError", err.Error()).
				Str("EventDate", row.Date).Str("Symbol", row.Symbol).
				Msg("Parquet write failed for record")
		}
	}

	if err = pw.WriteStop(); err != nil {
		log.Error().Str("OriginalError", err.Error()).Msg("Parquet write failed")
		return err
	}

	log.Info().Int("NumRecords", len(records)).Str("FileName", fn).Msg("Parquet write finished")
	return nil
}
