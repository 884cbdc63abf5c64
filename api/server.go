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

// Package api exposes the read surface and the ingestion trigger over HTTP.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"go.uber.org/ratelimit"

	"github.com/sammedchougule/stocker-ingest/cache"
	"github.com/sammedchougule/stocker-ingest/ingest"
)

// CycleRunner runs one ingestion cycle.
type CycleRunner interface {
	RunCycle(ctx context.Context) *ingest.CycleReport
}

// Pinger reports store health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server serves the latest stock list and an on-demand ingestion trigger.
type Server struct {
	cache *cache.Cache
	orch  CycleRunner
	store Pinger

	// Bounds how often the trigger endpoint can start cycles, so a
	// misconfigured scheduler cannot stack them.
	limiter ratelimit.Limiter
}

// NewServer creates a Server. cyclesPerMinute bounds the trigger endpoint;
// zero or negative falls back to 4.
func NewServer(c *cache.Cache, orch CycleRunner, store Pinger, cyclesPerMinute int) *Server {
	if cyclesPerMinute <= 0 {
		cyclesPerMinute = 4
	}
	return &Server{
		cache:   c,
		orch:    orch,
		store:   store,
		limiter: ratelimit.New(cyclesPerMinute, ratelimit.Per(time.Minute)),
	}
}

// RegisterRoutes registers all API routes on the given mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/stocks", s.handleStocks)
	mux.HandleFunc("POST /api/ingest", s.handleIngest)
	mux.HandleFunc("GET /healthz", s.handleHealth)
}

// Handler returns an http.Handler with CORS middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)
	return corsMiddleware(mux)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("encoding JSON response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// handleStocks serves the latest normalized stock list from the cache. The
// Cache-Control max-age matches the cache's staleness window so intermediary
// caches behave consistently.
func (s *Server) handleStocks(w http.ResponseWriter, r *http.Request) {
	stocks := s.cache.GetLatest(r.Context())
	w.Header().Set("Cache-Control", fmt.Sprintf("public, max-age=%d", int(s.cache.MaxAge().Seconds())))
	writeJSON(w, StocksResponse{Stocks: stocks, Count: len(stocks)})
}

// handleIngest runs one ingestion cycle and returns its report. A failed
// cycle maps to 502 so schedulers can alert on the status alone.
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	s.limiter.Take()

	report := s.orch.RunCycle(r.Context())
	if report.Outcome == ingest.OutcomeFailed {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadGateway)
		json.NewEncoder(w).Encode(report)
		return
	}
	writeJSON(w, report)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.store != nil {
		if err := s.store.Ping(r.Context()); err != nil {
			writeError(w, http.StatusServiceUnavailable, "database unavailable")
			return
		}
	}
	writeJSON(w, map[string]string{"status": "ok"})
}
