package classify

import (
	"context"
	"fmt"
	"testing"
	"time"

	"walletScope/internal/model"
)

type fakeChain struct {
	hasCode bool
	err     error
}

func (f *fakeChain) HasCode(_ context.Context, _ string) (bool, error) {
	return f.hasCode, f.err
}

type fakeExplorer struct {
	tag       string
	tagErr    error
	count     int
	countErr  error
	latestTs  uint64
	latestErr error
}

func (f *fakeExplorer) GetTag(_ context.Context, _ string) (string, error) {
	return f.tag, f.tagErr
}

func (f *fakeExplorer) GetTxCount(_ context.Context, _ string) (int, error) {
	return f.count, f.countErr
}

func (f *fakeExplorer) GetLatestTxTimestamp(_ context.Context, _ string) (uint64, error) {
	return f.latestTs, f.latestErr
}

func newTestClassifier(cfg Config, chain *fakeChain, exp *fakeExplorer) *Classifier {
	c := New(cfg, chain, exp, nil)
	c.now = func() time.Time { return time.Unix(100*24*3600, 0) }
	return c
}

func TestClassifyVerdict(t *testing.T) {
	chain := &fakeChain{hasCode: true}
	exp := &fakeExplorer{tag: "Binance", count: 42, latestTs: uint64(99 * 24 * 3600)}
	c := newTestClassifier(Config{}, chain, exp)

	verdict := c.Classify(context.Background(), "0x1")

	want := model.WalletVerdict{
		Address:        "0x1",
		IsContract:     true,
		HasPublicTag:   true,
		RecentlyActive: true,
		TxCount:        42,
	}
	if verdict != want {
		t.Fatalf("verdict mismatch: %+v != %+v", verdict, want)
	}
}

func TestAcceptRule(t *testing.T) {
	c := newTestClassifier(Config{MaxTxCount: 10000}, &fakeChain{}, &fakeExplorer{})

	cases := []struct {
		name    string
		verdict model.WalletVerdict
		want    bool
	}{
		{"plain wallet", model.WalletVerdict{TxCount: 5}, true},
		{"at threshold", model.WalletVerdict{TxCount: 10000}, true},
		{"over threshold", model.WalletVerdict{TxCount: 10001}, false},
		{"contract", model.WalletVerdict{IsContract: true, TxCount: 5}, false},
		{"tagged", model.WalletVerdict{HasPublicTag: true, TxCount: 5}, false},
		{"unknown count", model.WalletVerdict{TxCount: model.TxCountUnknown}, false},
		{"inactive ungated", model.WalletVerdict{TxCount: 5, RecentlyActive: false}, true},
	}

	for _, tc := range cases {
		if got := c.Accept(tc.verdict); got != tc.want {
			t.Fatalf("%s: accept mismatch: %v", tc.name, got)
		}
	}
}

func TestAcceptRecentActivityGate(t *testing.T) {
	c := newTestClassifier(Config{RequireRecentActivity: true}, &fakeChain{}, &fakeExplorer{})

	if c.Accept(model.WalletVerdict{TxCount: 5, RecentlyActive: false}) {
		t.Fatalf("inactive wallet accepted with gate enabled")
	}
	if !c.Accept(model.WalletVerdict{TxCount: 5, RecentlyActive: true}) {
		t.Fatalf("active wallet rejected with gate enabled")
	}
}

func TestClassifyFailurePolicies(t *testing.T) {
	lookupErr := fmt.Errorf("rate limited")

	chain := &fakeChain{err: lookupErr}
	exp := &fakeExplorer{tagErr: lookupErr, countErr: lookupErr, latestErr: lookupErr}
	c := newTestClassifier(Config{}, chain, exp)

	verdict := c.Classify(context.Background(), "0x1")

	// Contract and tag checks fail open, activity fails closed, count
	// resolves to the unknown sentinel.
	if verdict.IsContract {
		t.Fatalf("contract check must fail open")
	}
	if verdict.HasPublicTag {
		t.Fatalf("tag check must fail open")
	}
	if verdict.RecentlyActive {
		t.Fatalf("activity check must fail closed")
	}
	if verdict.TxCount != model.TxCountUnknown {
		t.Fatalf("count failure must resolve to unknown: %d", verdict.TxCount)
	}
	if c.Accept(verdict) {
		t.Fatalf("unknown count must reject")
	}
}

func TestRecencyWindow(t *testing.T) {
	exp := &fakeExplorer{count: 1, latestTs: uint64(10 * 24 * 3600)}
	c := newTestClassifier(Config{RecencyWindow: 45 * 24 * time.Hour}, &fakeChain{}, exp)

	verdict := c.Classify(context.Background(), "0x1")
	if verdict.RecentlyActive {
		t.Fatalf("stale wallet reported active")
	}

	exp.latestTs = uint64(60 * 24 * 3600)
	verdict = c.Classify(context.Background(), "0x1")
	if !verdict.RecentlyActive {
		t.Fatalf("recent wallet reported inactive")
	}
}

func TestClassifyNoActivity(t *testing.T) {
	exp := &fakeExplorer{count: 0, latestTs: 0}
	c := newTestClassifier(Config{}, &fakeChain{}, exp)

	verdict := c.Classify(context.Background(), "0x1")
	if verdict.RecentlyActive {
		t.Fatalf("wallet without transactions reported active")
	}
}
