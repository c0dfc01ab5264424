// Package blocksource produces the stream of BlockInputs the pipeline
// proves, either a single requested block or a continuous striped feed
// of chain-head blocks selected by SelectBlock.
package blocksource

import "fmt"

// SelectBlock picks the candidate block number this prover instance is
// responsible for out of the current chain head, given a cluster of
// blockMod cooperating provers identified by proverID.
//
// The chain is partitioned into stripes of blockMod consecutive block
// numbers; within each stripe, prover proverID owns the block at offset
// proverID from the stripe's base. If that offset would land above the
// current head, selection falls back to the previous stripe so the
// returned block never exceeds head.
func SelectBlock(head uint64, proverID, blockMod uint64) (uint64, error) {
	if blockMod == 0 {
		return 0, fmt.Errorf("blocksource: block_mod must be greater than 0")
	}
	if proverID >= blockMod {
		return 0, fmt.Errorf("blocksource: prover_id must be less than block_mod")
	}

	base := head - (head % blockMod)
	selected := base + proverID
	if selected > head {
		if base < blockMod {
			return 0, fmt.Errorf("blocksource: candidate block is below prover_id selection window")
		}
		selected = base - blockMod + proverID
	}

	return selected, nil
}
