package blocksource

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/log"

	"github.com/certenio/ethprover/pkg/cache"
	"github.com/certenio/ethprover/pkg/prover"
)

const pollInterval = 2 * time.Second

// Continuous streams the rolling head of the chain, handing this
// prover instance its striped share of blocks as selected by
// SelectBlock. It never terminates on its own; cancel ctx to stop it.
type Continuous struct {
	client      *RPCClient
	proverID    uint64
	blockMod    uint64
	cache       *cache.Store
	cachePolicy CachePolicy

	lastSelected *uint64
}

// NewContinuous builds a Continuous block source. Every block is
// fetched over RPC; store is only written to, never read. store may be
// nil, in which case nothing is cached.
func NewContinuous(client *RPCClient, proverID, blockMod uint64, store *cache.Store, policy CachePolicy) *Continuous {
	return &Continuous{
		client:      client,
		proverID:    proverID,
		blockMod:    blockMod,
		cache:       store,
		cachePolicy: policy,
	}
}

// Run feeds BlockInputs to out until ctx is cancelled or an
// unrecoverable error occurs. Run never closes out; pipeline.Run closes
// it once Run has returned.
//
// KNOWN GAP: lastSelected only ever advances forward. If the upstream
// chain reorganizes below the last selected block, this source will
// stall rather than re-select — this mirrors the upstream behavior and
// is accepted rather than fixed here.
func (c *Continuous) Run(ctx context.Context, out chan<- *prover.BlockInput) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		head, err := c.client.HeadNumber(ctx)
		if err != nil {
			return fmt.Errorf("blocksource: continuous: %w", err)
		}

		selected, err := SelectBlock(head, c.proverID, c.blockMod)
		if err != nil {
			return fmt.Errorf("blocksource: continuous: %w", err)
		}

		if c.lastSelected != nil && selected <= *c.lastSelected {
			if err := sleepOrDone(ctx, pollInterval); err != nil {
				return err
			}
			continue
		}
		c.lastSelected = &selected

		input, raw, err := c.client.FetchInput(ctx, selected)
		if err != nil {
			return fmt.Errorf("blocksource: continuous: %w", err)
		}
		if c.cachePolicy != CacheOff && c.cache != nil {
			if err := c.cache.Put(selected, raw, input.ExecutionWitness); err != nil {
				log.Error("blocksource: cache block failed", "block", selected, "err", err)
			}
		}

		select {
		case out <- input:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func sleepOrDone(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
