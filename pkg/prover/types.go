// Package prover builds the non-deterministic oracle a proving backend
// consumes for a single block and drives the two supported proving
// backends (CPU witness generation and GPU proof generation).
package prover

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rlp"
)

// ExecutionWitness is the stateless-execution witness returned by the
// debug_executionWitness RPC method: the minimal set of trie nodes,
// contract code blobs and ancestor headers needed to re-execute a block
// without access to the full state trie.
type ExecutionWitness struct {
	Headers []hexutil.Bytes `json:"headers"`
	State   []hexutil.Bytes `json:"state"`
	Codes   []hexutil.Bytes `json:"codes"`
	Keys    []hexutil.Bytes `json:"keys"`
}

// BlockInput is everything a ProverWorker needs to build an oracle and
// run a block through the proving backend. It is the unit of work
// carried on the BlockSource -> ProverWorker channel.
type BlockInput struct {
	BlockHeader      *types.Header      `json:"block_header"`
	Transactions     [][]byte           `json:"transactions"`
	ExecutionWitness *ExecutionWitness  `json:"execution_witness"`
	WithdrawalsRLP   []byte             `json:"withdrawals_rlp"`
}

// NewBlockInput assembles a BlockInput from a decoded block and its
// execution witness, RLP-encoding each transaction and the withdrawals
// list to the canonical wire representation the oracle expects.
func NewBlockInput(block *types.Block, witness *ExecutionWitness) (*BlockInput, error) {
	if block == nil {
		return nil, fmt.Errorf("prover: nil block")
	}
	if witness == nil {
		return nil, fmt.Errorf("prover: nil execution witness")
	}

	txs := block.Transactions()
	encoded := make([][]byte, 0, len(txs))
	for i, tx := range txs {
		raw, err := tx.MarshalBinary()
		if err != nil {
			return nil, fmt.Errorf("prover: encode transaction %d: %w", i, err)
		}
		encoded = append(encoded, raw)
	}

	var withdrawalsRLP []byte
	if w := block.Withdrawals(); len(w) > 0 {
		buf, err := rlp.EncodeToBytes(w)
		if err != nil {
			return nil, fmt.Errorf("prover: encode withdrawals: %w", err)
		}
		withdrawalsRLP = buf
	} else {
		withdrawalsRLP = []byte{}
	}

	header := block.Header()

	return &BlockInput{
		BlockHeader:      header,
		Transactions:     encoded,
		ExecutionWitness: witness,
		WithdrawalsRLP:   withdrawalsRLP,
	}, nil
}

// BlockNumber reports the number of the block this input describes.
func (b *BlockInput) BlockNumber() uint64 {
	if b == nil || b.BlockHeader == nil {
		return 0
	}
	return b.BlockHeader.Number.Uint64()
}
