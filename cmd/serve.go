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
package cmd

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/sammedchougule/stocker-ingest/api"
	"github.com/sammedchougule/stocker-ingest/cache"
	"github.com/sammedchougule/stocker-ingest/feed"
	"github.com/sammedchougule/stocker-ingest/ingest"
	"github.com/sammedchougule/stocker-ingest/normalize"
	"github.com/sammedchougule/stocker-ingest/store"
)

// serveCmd runs the HTTP API: the cached read surface plus the ingestion
// trigger, and optionally a periodic ingestion loop.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the stock read API and ingestion trigger",
	Run: func(cmd *cobra.Command, args []string) {
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		feedURL := viper.GetString("feed.url")
		if feedURL == "" {
			log.Fatal().Msg("feed.url must be configured")
		}
		client := feed.NewClient(feedURL, viper.GetDuration("feed.timeout"))

		var st *store.Store
		var gateway ingest.Gateway
		if dsn := viper.GetString("database.url"); dsn != "" {
			var err error
			st, err = store.New(ctx, dsn, store.Config{
				MinConns: viper.GetInt32("database.min_conns"),
				MaxConns: viper.GetInt32("database.max_conns"),
			})
			if err != nil {
				log.Fatal().Err(err).Msg("could not connect to database")
			}
			defer st.Close()
			gateway = st
		} else {
			log.Warn().Msg("database.url not set; ingestion cycles will be dry runs")
		}

		orch := ingest.New(client, gateway)

		readCache := cache.New(func(ctx context.Context) ([]normalize.Stock, error) {
			rows, err := client.Fetch(ctx)
			if err != nil {
				return nil, err
			}
			return normalize.Stocks(rows), nil
		}, viper.GetDuration("cache.max_age"))

		var pinger api.Pinger
		if st != nil {
			pinger = st
		}
		server := api.NewServer(readCache, orch, pinger, viper.GetInt("ingest.rate_limit"))

		if interval := viper.GetDuration("ingest.interval"); interval > 0 {
			runner := ingest.NewRunner(orch, interval)
			runner.Start(ctx)
			defer func() {
				stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
				defer cancel()
				if err := runner.Stop(stopCtx); err != nil {
					log.Error().Err(err).Msg("ingestion runner did not stop cleanly")
				}
			}()
		}

		httpServer := &http.Server{
			Addr:    viper.GetString("server.address"),
			Handler: server.Handler(),
		}

		go func() {
			log.Info().Str("Address", httpServer.Addr).Msg("http server listening")
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error().Err(err).Msg("http server failed")
				stop()
			}
		}()

		<-ctx.Done()
		log.Info().Msg("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("http server shutdown failed")
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("address", ":8080", "address for the HTTP server to listen on")
	viper.BindPFlag("server.address", serveCmd.Flags().Lookup("address"))

	serveCmd.Flags().Duration("cache-max-age", cache.DefaultMaxAge, "staleness window for the read cache")
	viper.BindPFlag("cache.max_age", serveCmd.Flags().Lookup("cache-max-age"))

	serveCmd.Flags().Duration("ingest-interval", 0, "run an ingestion cycle on this interval (0 disables)")
	viper.BindPFlag("ingest.interval", serveCmd.Flags().Lookup("ingest-interval"))

	serveCmd.Flags().Int("ingest-rate-limit", 4, "max triggered ingestion cycles per minute")
	viper.BindPFlag("ingest.rate_limit", serveCmd.Flags().Lookup("ingest-rate-limit"))
}
