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
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sammedchougule/stocker-ingest/cache"
	"github.com/sammedchougule/stocker-ingest/ingest"
	"github.com/sammedchougule/stocker-ingest/normalize"
)

type fakeRunner struct {
	report *ingest.CycleReport
}

func (f *fakeRunner) RunCycle(ctx context.Context) *ingest.CycleReport {
	return f.report
}

type fakePinger struct {
	err error
}

func (f *fakePinger) Ping(ctx context.Context) error {
	return f.err
}

func newTestServer(t *testing.T, runner CycleRunner, pinger Pinger) *httptest.Server {
	t.Helper()
	c := cache.New(func(ctx context.Context) ([]normalize.Stock, error) {
		return []normalize.Stock{{Symbol: "RELIANCE"}, {Symbol: "TCS"}}, nil
	}, 300*time.Second)
	s := NewServer(c, runner, pinger, 60)
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func TestHandleStocks(t *testing.T) {
	ts := newTestServer(t, &fakeRunner{}, nil)

	resp, err := http.Get(ts.URL + "/api/stocks")
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if got := resp.Header.Get("Cache-Control"); got != "public, max-age=300" {
		t.Errorf("Cache-Control = %q, want max-age matching the staleness window", got)
	}

	var body StocksResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if body.Count != 2 || len(body.Stocks) != 2 {
		t.Errorf("count = %d, stocks = %d, want 2", body.Count, len(body.Stocks))
	}
}

func TestHandleIngest(t *testing.T) {
	report := &ingest.CycleReport{
		Fetched:    5,
		Normalized: 5,
		Outcome:    ingest.OutcomeDone,
	}
	ts := newTestServer(t, &fakeRunner{report: report}, nil)

	resp, err := http.Post(ts.URL+"/api/ingest", "application/json", nil)
	if err != nil {
		t.Fatalf("POST failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var got ingest.CycleReport
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decoding report: %v", err)
	}
	if got.Fetched != 5 || got.Outcome != ingest.OutcomeDone {
		t.Errorf("report = %+v", got)
	}
}

func TestHandleIngest_FailedCycle(t *testing.T) {
	report := &ingest.CycleReport{
		Outcome: ingest.OutcomeFailed,
		Errors:  []string{"feed fetch failed"},
	}
	ts := newTestServer(t, &fakeRunner{report: report}, nil)

	resp, err := http.Post(ts.URL+"/api/ingest", "application/json", nil)
	if err != nil {
		t.Fatalf("POST failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", resp.StatusCode)
	}
}

func TestHandleHealth(t *testing.T) {
	tests := []struct {
		name       string
		pinger     Pinger
		wantStatus int
	}{
		{"no store configured", nil, http.StatusOK},
		{"healthy store", &fakePinger{}, http.StatusOK},
		{"unreachable store", &fakePinger{err: errors.New("connection refused")}, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t, &fakeRunner{}, tt.pinger)

			resp, err := http.Get(ts.URL + "/healthz")
			if err != nil {
				t.Fatalf("GET failed: %v", err)
			}
			resp.Body.Close()

			if resp.StatusCode != tt.wantStatus {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.wantStatus)
			}
		})
	}
}

func TestCORSPreflight(t *testing.T) {
	ts := newTestServer(t, &fakeRunner{}, nil)

	req, _ := http.NewRequest(http.MethodOptions, ts.URL+"/api/stocks", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("OPTIONS failed: %v", err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("status = %d, want 204", resp.StatusCode)
	}
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Allow-Origin = %q, want *", got)
	}
}
