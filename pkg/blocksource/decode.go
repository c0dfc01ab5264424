package blocksource

import (
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/core/types"
)

// rpcBlock mirrors the subset of the eth_getBlockByNumber(tag, true)
// response shape this package needs. types.Header and types.Transaction
// already (un)marshal the hex-encoded RPC field names directly, so the
// header is decoded straight from the same bytes; only the transaction
// and withdrawal lists need an explicit field.
type rpcBlock struct {
	Transactions []*types.Transaction `json:"transactions"`
	Withdrawals  types.Withdrawals    `json:"withdrawals"`
}

// decodeBlock parses a raw eth_getBlockByNumber(tag, true) response into
// a *types.Block. Extra RPC-only fields (hash, size, totalDifficulty,
// and per-transaction metadata such as blockHash/from) are ignored by
// the underlying unmarshalers, which is the intended behavior: this
// package only needs the canonical header, transactions and withdrawals.
func decodeBlock(raw json.RawMessage) (*types.Block, error) {
	var header types.Header
	if err := json.Unmarshal(raw, &header); err != nil {
		return nil, fmt.Errorf("decode header: %w", err)
	}

	var body rpcBlock
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, fmt.Errorf("decode transactions: %w", err)
	}

	block := types.NewBlockWithHeader(&header).WithBody(types.Body{
		Transactions: body.Transactions,
		Withdrawals:  body.Withdrawals,
	})

	return block, nil
}
