package blocksource

import (
	"context"
	"fmt"

	"github.com/certenio/ethprover/pkg/cache"
	"github.com/certenio/ethprover/pkg/prover"
)

// Single produces exactly one BlockInput, for the `block` CLI
// subcommand. If Number is nil the current chain head is used. A
// cached copy of the requested block, if present, is served without
// touching the RPC client at all (Client may be nil in that case).
type Single struct {
	Number      *uint64
	Client      *RPCClient
	Cache       *cache.Store
	CachePolicy CachePolicy
}

// Run sends the single requested BlockInput to out and returns.
func (s *Single) Run(ctx context.Context, out chan<- *prover.BlockInput) error {
	if s.Number != nil && s.Cache != nil && s.Cache.Has(*s.Number) {
		input, _, err := fetchWithCache(ctx, s.Client, s.Cache, *s.Number)
		if err != nil {
			return fmt.Errorf("blocksource: single: %w", err)
		}
		out <- input
		return nil
	}

	if s.Client == nil {
		return fmt.Errorf("blocksource: single: no rpc client configured and block not cached")
	}

	number := uint64(0)
	if s.Number != nil {
		number = *s.Number
	} else {
		head, err := s.Client.HeadNumber(ctx)
		if err != nil {
			return fmt.Errorf("blocksource: single: %w", err)
		}
		number = head
	}

	input, raw, err := s.Client.FetchInput(ctx, number)
	if err != nil {
		return fmt.Errorf("blocksource: single: %w", err)
	}

	if s.CachePolicy != CacheOff && s.Cache != nil {
		if err := s.Cache.Put(number, raw, input.ExecutionWitness); err != nil {
			return fmt.Errorf("blocksource: single: cache block: %w", err)
		}
	}

	out <- input
	return nil
}
