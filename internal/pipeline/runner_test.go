package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"walletScope/internal/batch"
	"walletScope/internal/model"
	"walletScope/internal/storage"
	"walletScope/internal/subgraph"
)

type fakeSource struct {
	events []model.SwapEvent
	err    error
}

func (f *fakeSource) FetchAll(_ context.Context, _ subgraph.Filter) ([]model.SwapEvent, error) {
	return f.events, f.err
}

type fakeClassifier struct {
	reject map[string]bool
}

func (f *fakeClassifier) Classify(_ context.Context, address string) model.WalletVerdict {
	return model.WalletVerdict{Address: address, TxCount: 1}
}

func (f *fakeClassifier) Accept(verdict model.WalletVerdict) bool {
	return !f.reject[verdict.Address]
}

func event(id, wallet string, usd int64, ts uint64) model.SwapEvent {
	return model.SwapEvent{
		ID:          id,
		Recipient:   wallet,
		TokenAmount: decimal.NewFromInt(1),
		UsdAmount:   decimal.NewFromInt(usd),
		Timestamp:   ts,
	}
}

func testBatch() batch.Config {
	return batch.Config{GroupSize: 4, GroupDelay: time.Millisecond}
}

func TestRunAggregatesAcceptedWallets(t *testing.T) {
	source := &fakeSource{events: []model.SwapEvent{
		event("a", "0x1", 100, 10),
		event("b", "0x2", 200, 20),
		event("c", "0x1", 50, 5),
	}}
	classifier := &fakeClassifier{reject: map[string]bool{"0x2": true}}

	runner := NewRunner(Config{Batch: testBatch()}, source, classifier, nil)

	dataset, err := runner.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(dataset) != 1 {
		t.Fatalf("dataset size mismatch: %d", len(dataset))
	}
	agg, ok := dataset["0x1"]
	if !ok {
		t.Fatalf("accepted wallet missing")
	}
	if !agg.TotalUsd.Equal(decimal.NewFromInt(150)) {
		t.Fatalf("total usd mismatch: %s", agg.TotalUsd)
	}
	if agg.FirstSeen != 5 {
		t.Fatalf("first seen mismatch: %d", agg.FirstSeen)
	}
}

func TestRunFetchFailureIsFatal(t *testing.T) {
	source := &fakeSource{err: fmt.Errorf("wrap: %w", subgraph.ErrSourceUnavailable)}
	runner := NewRunner(Config{Batch: testBatch()}, source, &fakeClassifier{}, nil)

	dataset, err := runner.Run(context.Background())
	if !errors.Is(err, subgraph.ErrSourceUnavailable) {
		t.Fatalf("expected source error, got %v", err)
	}
	if dataset != nil {
		t.Fatalf("partial dataset returned after fetch failure")
	}
}

func TestRunPersistsDataset(t *testing.T) {
	out := filepath.Join(t.TempDir(), "dataset.json")
	source := &fakeSource{events: []model.SwapEvent{event("a", "0x1", 100, 10)}}

	runner := NewRunner(Config{Batch: testBatch(), Out: out}, source, &fakeClassifier{}, nil)

	if _, err := runner.Run(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	loaded, err := storage.ReadDataset(out)
	if err != nil {
		t.Fatalf("read dataset: %v", err)
	}
	if !loaded["0x1"].TotalUsd.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("persisted total mismatch: %s", loaded["0x1"].TotalUsd)
	}
}

func TestRunPersistFailureReturnsDataset(t *testing.T) {
	// Output path sits below a file, so the directory create fails.
	blocker := filepath.Join(t.TempDir(), "blocker")
	if err := storage.WriteDataset(blocker, map[string]model.WalletAggregate{}); err != nil {
		t.Fatalf("prepare blocker: %v", err)
	}
	out := filepath.Join(blocker, "sub", "dataset.json")

	source := &fakeSource{events: []model.SwapEvent{event("a", "0x1", 100, 10)}}
	runner := NewRunner(Config{Batch: testBatch(), Out: out}, source, &fakeClassifier{}, nil)

	dataset, err := runner.Run(context.Background())

	var persistErr *storage.PersistError
	if !errors.As(err, &persistErr) {
		t.Fatalf("expected PersistError, got %v", err)
	}
	if len(dataset) != 1 {
		t.Fatalf("in-memory dataset must survive a persist failure: %d", len(dataset))
	}
}

func TestGroupByWalletOrder(t *testing.T) {
	events := []model.SwapEvent{
		event("a", "0x2", 1, 1),
		event("b", "0x1", 1, 1),
		event("c", "0x2", 1, 1),
	}

	byWallet, wallets := groupByWallet(events)

	if len(wallets) != 2 || wallets[0] != "0x2" || wallets[1] != "0x1" {
		t.Fatalf("wallet order mismatch: %v", wallets)
	}
	if len(byWallet["0x2"]) != 2 {
		t.Fatalf("grouping mismatch: %v", byWallet)
	}
}
