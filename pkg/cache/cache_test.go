package cache

import (
	"encoding/json"
	"math/big"
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/certenio/ethprover/pkg/prover"
)

func mustBlockJSON(t *testing.T, number uint64) json.RawMessage {
	t.Helper()
	header := &types.Header{Number: new(big.Int).SetUint64(number), Difficulty: new(big.Int)}
	raw, err := json.Marshal(header)
	if err != nil {
		t.Fatalf("marshal header: %v", err)
	}
	return raw
}

func TestStoreRoundTripsBlockAndWitness(t *testing.T) {
	store := New(t.TempDir())

	const number = 123
	blockJSON := mustBlockJSON(t, number)
	witness := &prover.ExecutionWitness{}

	if err := store.Put(number, blockJSON, witness); err != nil {
		t.Fatalf("Put: %v", err)
	}

	if !store.Has(number) {
		t.Fatalf("Has(%d) = false after Put", number)
	}

	gotBlock, gotWitness, ok, err := store.Load(number)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !ok {
		t.Fatalf("Load(%d) ok = false, want true", number)
	}

	var header types.Header
	if err := json.Unmarshal(gotBlock, &header); err != nil {
		t.Fatalf("unmarshal loaded block json: %v", err)
	}
	if header.Number.Uint64() != number {
		t.Errorf("loaded header number = %d, want %d", header.Number.Uint64(), number)
	}
	if len(gotWitness.Headers) != 0 || len(gotWitness.State) != 0 {
		t.Errorf("loaded witness = %+v, want zero-value", gotWitness)
	}
}

func TestStoreHasIsFalseForPartialWrite(t *testing.T) {
	store := New(t.TempDir())

	if store.Has(1) {
		t.Fatalf("Has(1) = true for empty store")
	}

	// Simulate a crash between the two file writes: only block.json
	// lands on disk.
	dir := store.blockDir(1)
	if err := store.Put(1, mustBlockJSON(t, 1), &prover.ExecutionWitness{}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := os.Remove(filepath.Join(dir, witnessFileName)); err != nil {
		t.Fatalf("remove witness file: %v", err)
	}

	if store.Has(1) {
		t.Errorf("Has(1) = true with execution_witness.json missing, want false")
	}
}

func TestStoreRemoveThenHasIsFalse(t *testing.T) {
	store := New(t.TempDir())

	if err := store.Put(7, mustBlockJSON(t, 7), &prover.ExecutionWitness{}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if !store.Has(7) {
		t.Fatalf("Has(7) = false after Put")
	}

	if err := store.Remove(7); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if store.Has(7) {
		t.Errorf("Has(7) = true after Remove, want false")
	}

	// Removing again must not error.
	if err := store.Remove(7); err != nil {
		t.Errorf("Remove on already-removed entry: %v", err)
	}
}

func TestStoreReceiptRoundTrip(t *testing.T) {
	store := New(t.TempDir())
	hash := common.HexToHash("0xabc")
	payload := json.RawMessage(`{"status":"0x1"}`)

	if err := store.SaveReceipt(42, hash, payload); err != nil {
		t.Fatalf("SaveReceipt: %v", err)
	}

	got, ok, err := store.LoadReceipt(42, hash)
	if err != nil {
		t.Fatalf("LoadReceipt: %v", err)
	}
	if !ok {
		t.Fatalf("LoadReceipt ok = false, want true")
	}
	var decoded map[string]string
	if err := json.Unmarshal(got, &decoded); err != nil {
		t.Fatalf("unmarshal receipt: %v", err)
	}
	if decoded["status"] != "0x1" {
		t.Errorf("receipt status = %q, want 0x1", decoded["status"])
	}

	if _, ok, err := store.LoadReceipt(42, common.HexToHash("0xdead")); err != nil {
		t.Fatalf("LoadReceipt miss: %v", err)
	} else if ok {
		t.Errorf("LoadReceipt ok = true for uncached hash, want false")
	}
}
