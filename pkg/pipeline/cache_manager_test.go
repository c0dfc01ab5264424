package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/certenio/ethprover/pkg/cache"
)

func TestCacheManagerPrunesOnSuccessUnderOnFailurePolicy(t *testing.T) {
	store := cache.New(t.TempDir())
	if err := store.Put(10, []byte(`{"number":"0xa"}`), nil); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if !store.Has(10) {
		t.Fatalf("Has(10) = false after Put")
	}

	mgr := NewCacheManager(store, CacheOnFailure)
	in := make(chan Update, 1)
	out := make(chan Update, 1)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- mgr.Run(ctx, in, out) }()

	in <- WitnessCalculated{BlockNumber: 10}
	select {
	case got := <-out:
		if Number(got) != 10 {
			t.Errorf("forwarded update block number = %d, want 10", Number(got))
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for forwarded update")
	}

	if store.Has(10) {
		t.Errorf("Has(10) = true after a success update under CacheOnFailure, want pruned")
	}

	close(in)
	if err := <-done; err != nil {
		t.Errorf("Run returned error after channel close: %v", err)
	}
}

func TestCacheManagerKeepsEntryUnderAlwaysPolicy(t *testing.T) {
	store := cache.New(t.TempDir())
	if err := store.Put(20, []byte(`{"number":"0x14"}`), nil); err != nil {
		t.Fatalf("Put: %v", err)
	}

	mgr := NewCacheManager(store, CacheAlways)
	in := make(chan Update, 1)
	out := make(chan Update, 1)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- mgr.Run(ctx, in, out) }()

	in <- WitnessCalculated{BlockNumber: 20}
	<-out

	if !store.Has(20) {
		t.Errorf("Has(20) = false under CacheAlways, want entry kept")
	}

	close(in)
	<-done
}

func TestCacheManagerForwardsUnrecognizedUpdateTypes(t *testing.T) {
	mgr := NewCacheManager(nil, CacheOff)
	in := make(chan Update, 1)
	out := make(chan Update, 1)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- mgr.Run(ctx, in, out) }()

	in <- ProofQueued{BlockNumber: 5}
	got := <-out
	if _, ok := got.(ProofQueued); !ok {
		t.Errorf("forwarded update type = %T, want ProofQueued", got)
	}

	close(in)
	<-done
}
