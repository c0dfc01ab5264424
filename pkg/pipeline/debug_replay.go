package pipeline

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/log"

	"github.com/certenio/ethprover/pkg/cache"
	"github.com/certenio/ethprover/pkg/prover"
)

// ReceiptFetcher fetches a transaction's canonical receipt over RPC,
// for debug replay's status/gas mismatch comparison. blocksource.RPCClient
// satisfies this.
type ReceiptFetcher interface {
	FetchReceipt(ctx context.Context, txHash common.Hash) (json.RawMessage, error)
}

// canonicalReceipt is the subset of an eth_getTransactionReceipt
// response debug replay compares against.
type canonicalReceipt struct {
	Status  hexutil.Uint64 `json:"status"`
	GasUsed hexutil.Uint64 `json:"gasUsed"`
}

// debugReplay rebuilds the oracle for input and replays every
// transaction locally, comparing each against its canonical receipt
// (served from cache when present, else fetched over RPC and cached
// for next time) and logging a problem report for every status or gas
// mismatch. It never returns an error and never aborts early: its
// entire output is advisory logging, run only after ForwardRun has
// already failed the block.
func debugReplay(ctx context.Context, blockNumber uint64, input *prover.BlockInput, fetcher ReceiptFetcher, store *cache.Store) {
	oracle, err := prover.BuildOracle(input)
	if err != nil {
		log.Error("pipeline: debug replay: rebuild oracle failed", "block", blockNumber, "err", err)
		return
	}

	results, err := prover.Replay(oracle)
	if err != nil {
		log.Error("pipeline: debug replay: local replay failed", "block", blockNumber, "err", err)
		return
	}

	for _, result := range results {
		receipt, err := fetchOrCacheReceipt(ctx, blockNumber, result.TxHash, fetcher, store)
		if err != nil {
			log.Warn("pipeline: debug replay: fetch canonical receipt failed", "block", blockNumber, "tx", result.TxHash, "err", err)
			continue
		}

		wantStatus := receipt.Status == 1
		if result.Valid != wantStatus {
			log.Warn("pipeline: debug replay: status mismatch", "block", blockNumber, "tx", result.TxHash,
				"local_valid", result.Valid, "canonical_status", uint64(receipt.Status))
		}
		if uint64(receipt.GasUsed) != result.GasUsed {
			log.Warn("pipeline: debug replay: gas mismatch", "block", blockNumber, "tx", result.TxHash,
				"local_gas", result.GasUsed, "canonical_gas", uint64(receipt.GasUsed))
		}
	}
}

func fetchOrCacheReceipt(ctx context.Context, blockNumber uint64, txHash common.Hash, fetcher ReceiptFetcher, store *cache.Store) (*canonicalReceipt, error) {
	if store != nil {
		if raw, ok, err := store.LoadReceipt(blockNumber, txHash); err == nil && ok {
			var receipt canonicalReceipt
			if err := json.Unmarshal(raw, &receipt); err == nil {
				return &receipt, nil
			}
		}
	}

	raw, err := fetcher.FetchReceipt(ctx, txHash)
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, fmt.Errorf("receipt not found for %s", txHash)
	}

	var receipt canonicalReceipt
	if err := json.Unmarshal(raw, &receipt); err != nil {
		return nil, fmt.Errorf("decode receipt for %s: %w", txHash, err)
	}

	if store != nil {
		if err := store.SaveReceipt(blockNumber, txHash, raw); err != nil {
			log.Error("pipeline: debug replay: cache receipt failed", "block", blockNumber, "tx", txHash, "err", err)
		}
	}

	return &receipt, nil
}
