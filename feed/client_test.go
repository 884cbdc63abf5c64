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
package feed

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestFetch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data":[
			{"symbol":"RELIANCE","price":2931.5},
			{"symbol":"TCS","price":"4012.10"}
		]}`))
	}))
	defer server.Close()

	c := NewClient(server.URL, 5*time.Second)
	rows, err := c.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("len(rows) = %d, want 2", len(rows))
	}
	if got := rows[0]["symbol"]; got != "RELIANCE" {
		t.Errorf("rows[0][symbol] = %v, want RELIANCE", got)
	}
	// Numeric typing is preserved as-is; coercion is the normalizer's job.
	if got := rows[1]["price"]; got != "4012.10" {
		t.Errorf("rows[1][price] = %v, want the raw string", got)
	}
}

func TestFetch_ErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream broken", http.StatusBadGateway)
	}))
	defer server.Close()

	c := NewClient(server.URL, 5*time.Second)
	_, err := c.Fetch(context.Background())
	if !errors.Is(err, ErrFetch) {
		t.Errorf("err = %v, want ErrFetch", err)
	}
}

func TestFetch_InvalidShape(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"not json", `<html>error</html>`},
		{"missing data field", `{"rows":[]}`},
		{"data is null", `{"data":null}`},
		{"data is not an array", `{"data":{"symbol":"TCS"}}`},
		{"data is an array of scalars", `{"data":[1,2,3]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			c := NewClient(server.URL, 5*time.Second)
			_, err := c.Fetch(context.Background())
			if !errors.Is(err, ErrInvalidShape) {
				t.Errorf("err = %v, want ErrInvalidShape", err)
			}
		})
	}
}

func TestFetch_EmptyData(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":[]}`))
	}))
	defer server.Close()

	c := NewClient(server.URL, 5*time.Second)
	rows, err := c.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if len(rows) != 0 {
		t.Errorf("len(rows) = %d, want 0", len(rows))
	}
}

func TestFetch_Timeout(t *testing.T) {
	block := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-block
	}))
	defer server.Close()
	defer close(block)

	c := NewClient(server.URL, 50*time.Millisecond)
	start := time.Now()
	_, err := c.Fetch(context.Background())
	if !errors.Is(err, ErrFetchTimeout) {
		t.Errorf("err = %v, want ErrFetchTimeout", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("fetch took %v, timeout did not cancel the request", elapsed)
	}
}

func TestFetch_ContextCancelled(t *testing.T) {
	block := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-block
	}))
	defer server.Close()
	defer close(block)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	c := NewClient(server.URL, 5*time.Second)
	if _, err := c.Fetch(ctx); err == nil {
		t.Error("expected an error after context cancellation")
	}
}
