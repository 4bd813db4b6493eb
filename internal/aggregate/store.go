package aggregate

import (
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"walletScope/internal/model"
)

// SortKey selects the ordering of a dataset report.
type SortKey string

const (
	SortByUsd   SortKey = "usd"
	SortByToken SortKey = "token"
	SortByCount SortKey = "count"
)

type walletEntry struct {
	agg  model.WalletAggregate
	seen map[string]struct{}
}

// Store accumulates per-wallet totals across pagination batches. Batch
// workers merge concurrently, so the wallet map is guarded by a mutex;
// one wallet's events are always applied under a single lock hold.
type Store struct {
	mu      sync.Mutex
	entries map[string]*walletEntry
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{entries: make(map[string]*walletEntry)}
}

// Merge applies the wallet's events to its aggregate. The merge is
// idempotent: an event whose id has already been applied is a no-op,
// so overlapping pages and repeated merges cannot inflate totals.
func (s *Store) Merge(wallet string, events []model.SwapEvent) {
	if len(events) == 0 {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entry := s.entries[wallet]
	if entry == nil {
		entry = &walletEntry{
			agg:  model.WalletAggregate{Address: wallet, TotalUsd: decimal.Zero, TotalToken: decimal.Zero},
			seen: make(map[string]struct{}),
		}
		s.entries[wallet] = entry
	}

	for _, event := range events {
		if _, applied := entry.seen[event.ID]; applied {
			continue
		}
		entry.seen[event.ID] = struct{}{}

		entry.agg.TotalUsd = entry.agg.TotalUsd.Add(event.UsdAmount)
		entry.agg.TotalToken = entry.agg.TotalToken.Add(event.TokenAmount)
		entry.agg.EventCount++
		entry.agg.EventIDs = append(entry.agg.EventIDs, event.ID)
		if entry.agg.FirstSeen == 0 || event.Timestamp < entry.agg.FirstSeen {
			entry.agg.FirstSeen = event.Timestamp
		}
	}
}

// Len returns the number of wallets in the store.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Get returns the aggregate for one wallet.
func (s *Store) Get(wallet string) (model.WalletAggregate, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[wallet]
	if !ok {
		return model.WalletAggregate{}, false
	}
	return cloneAggregate(entry.agg), true
}

// Snapshot returns the dataset as an address-keyed map.
func (s *Store) Snapshot() map[string]model.WalletAggregate {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]model.WalletAggregate, len(s.entries))
	for wallet, entry := range s.entries {
		out[wallet] = cloneAggregate(entry.agg)
	}
	return out
}

// SortedReport returns the aggregates ordered descending by the chosen
// key, with ties broken by ascending address so the ordering does not
// depend on map iteration.
func (s *Store) SortedReport(key SortKey) []model.WalletAggregate {
	snapshot := s.Snapshot()

	report := make([]model.WalletAggregate, 0, len(snapshot))
	for _, agg := range snapshot {
		report = append(report, agg)
	}

	sort.Slice(report, func(i, j int) bool {
		if cmp := compareByKey(report[i], report[j], key); cmp != 0 {
			return cmp > 0
		}
		return report[i].Address < report[j].Address
	})
	return report
}

func compareByKey(a, b model.WalletAggregate, key SortKey) int {
	switch key {
	case SortByToken:
		return a.TotalToken.Cmp(b.TotalToken)
	case SortByCount:
		switch {
		case a.EventCount > b.EventCount:
			return 1
		case a.EventCount < b.EventCount:
			return -1
		}
		return 0
	default:
		return a.TotalUsd.Cmp(b.TotalUsd)
	}
}

func cloneAggregate(agg model.WalletAggregate) model.WalletAggregate {
	out := agg
	out.EventIDs = append([]string(nil), agg.EventIDs...)
	return out
}
