package subgraph

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

type pagingServer struct {
	mu       sync.Mutex
	requests int
	served   int
	events   int
	pageSize int
	fail     int
}

func (s *pagingServer) handler(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.requests++
	if s.fail > 0 {
		s.fail--
		s.mu.Unlock()
		w.WriteHeader(http.StatusBadGateway)
		return
	}
	served := s.served
	s.mu.Unlock()
	remaining := s.events - served
	if remaining < 0 {
		remaining = 0
	}
	if remaining > s.pageSize {
		remaining = s.pageSize
	}

	swaps := make([]map[string]any, 0, remaining)
	for i := 0; i < remaining; i++ {
		swaps = append(swaps, map[string]any{
			"id":        fmt.Sprintf("evt-%d", served+i),
			"sender":    "0xaaa",
			"recipient": "0xbbb",
			"amount0":   "-1.5",
			"amountUSD": "600.25",
			"timestamp": "1700000000",
		})
	}

	s.mu.Lock()
	s.served += remaining
	s.mu.Unlock()

	json.NewEncoder(w).Encode(map[string]any{
		"data": map[string]any{"swaps": swaps},
	})
}

func (s *pagingServer) requestCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests
}

func TestFetchAllPaginationComplete(t *testing.T) {
	server := &pagingServer{events: 5, pageSize: 2}
	ts := httptest.NewServer(http.HandlerFunc(server.handler))
	defer ts.Close()

	client := NewClient(Config{URL: ts.URL, PageSize: 2}, nil)

	events, err := client.FetchAll(context.Background(), Filter{Side: SideSell})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(events) != 5 {
		t.Fatalf("event count mismatch: %d", len(events))
	}
	// ceil(5/2) full-or-partial pages plus the final empty page.
	if got := server.requestCount(); got != 4 {
		t.Fatalf("request count mismatch: %d", got)
	}
	for i, event := range events {
		if event.ID != fmt.Sprintf("evt-%d", i) {
			t.Fatalf("order not preserved at %d: %s", i, event.ID)
		}
	}
	if !events[0].TokenAmount.Equal(decimal.RequireFromString("1.5")) {
		t.Fatalf("token amount not absolute: %s", events[0].TokenAmount)
	}
	if !events[0].UsdAmount.Equal(decimal.RequireFromString("600.25")) {
		t.Fatalf("usd amount mismatch: %s", events[0].UsdAmount)
	}
	if events[0].Timestamp != 1700000000 {
		t.Fatalf("timestamp mismatch: %d", events[0].Timestamp)
	}
}

func TestFetchAllRetriesTransientFailure(t *testing.T) {
	server := &pagingServer{events: 1, pageSize: 10, fail: 2}
	ts := httptest.NewServer(http.HandlerFunc(server.handler))
	defer ts.Close()

	client := NewClient(Config{URL: ts.URL, PageSize: 10, MaxRetries: 3, RetryBackoff: time.Millisecond}, nil)

	events, err := client.FetchAll(context.Background(), Filter{Side: SideSell})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("event count mismatch: %d", len(events))
	}
}

func TestFetchAllSourceUnavailable(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("not json"))
	}))
	defer ts.Close()

	client := NewClient(Config{URL: ts.URL, RetryBackoff: time.Millisecond}, nil)

	_, err := client.FetchAll(context.Background(), Filter{Side: SideBuy})
	if !errors.Is(err, ErrSourceUnavailable) {
		t.Fatalf("expected ErrSourceUnavailable, got %v", err)
	}
}

func TestFetchPageQueryErrors(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"errors": []map[string]any{{"message": "field not found"}},
		})
	}))
	defer ts.Close()

	client := NewClient(Config{URL: ts.URL}, nil)

	_, err := client.FetchPage(context.Background(), Filter{}, 0)
	if !errors.Is(err, ErrSourceUnavailable) {
		t.Fatalf("expected ErrSourceUnavailable, got %v", err)
	}
}

func TestBuildQuerySideCondition(t *testing.T) {
	filter := Filter{Token: "0xtoken", MinUsd: decimal.NewFromInt(500), FromTs: 10, ToTs: 20}

	filter.Side = SideSell
	sellQuery := buildQuery(filter, 100, 0)
	if !strings.Contains(sellQuery, "amount0_gt: 0") {
		t.Fatalf("sell query missing sign condition:\n%s", sellQuery)
	}

	filter.Side = SideBuy
	buyQuery := buildQuery(filter, 100, 50)
	if !strings.Contains(buyQuery, "amount0_lt: 0") {
		t.Fatalf("buy query missing sign condition:\n%s", buyQuery)
	}
	if !strings.Contains(buyQuery, "skip: 50") {
		t.Fatalf("buy query missing skip offset:\n%s", buyQuery)
	}
}
