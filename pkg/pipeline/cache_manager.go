package pipeline

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/log"

	"github.com/certenio/ethprover/pkg/cache"
)

// CachePolicy controls when the CacheManager prunes a block's cached
// inputs.
type CachePolicy int

const (
	// CacheOff never prunes; CacheManager still forwards every update.
	CacheOff CachePolicy = iota
	// CacheOnFailure prunes a block's cached entry once it has
	// successfully produced a witness or a proof, keeping the cache
	// populated only for blocks that are still failing.
	CacheOnFailure
	// CacheAlways never prunes.
	CacheAlways
)

// CacheManager sits between the ProverWorker and the Submitter. On a
// success update (WitnessCalculated in CPU-witness mode, ProofProvided
// in GPU-prove mode) it applies CachePolicy, then — regardless of
// policy or update type — forwards the update unchanged downstream.
// This transparency is what lets the Submitter stage stay ignorant of
// caching entirely.
type CacheManager struct {
	store  *cache.Store
	policy CachePolicy
}

// NewCacheManager builds a CacheManager. store may be nil, in which
// case pruning is a no-op regardless of policy (updates are still
// forwarded).
func NewCacheManager(store *cache.Store, policy CachePolicy) *CacheManager {
	return &CacheManager{store: store, policy: policy}
}

// Run reads updates from in, applies the cache policy, and writes every
// update to out in order. It returns when in is closed or ctx is
// cancelled.
func (m *CacheManager) Run(ctx context.Context, in <-chan Update, out chan<- Update) error {
	for {
		select {
		case update, ok := <-in:
			if !ok {
				return nil
			}
			m.applyPolicy(update)
			select {
			case out <- update:
			case <-ctx.Done():
				return ctx.Err()
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (m *CacheManager) applyPolicy(update Update) {
	if m.store == nil || m.policy != CacheOnFailure {
		return
	}

	var isSuccess bool
	switch update.(type) {
	case WitnessCalculated, ProofProvided:
		isSuccess = true
	}
	if !isSuccess {
		return
	}

	number := Number(update)
	if err := m.store.Remove(number); err != nil {
		log.Error("pipeline: cache manager: prune failed", "block", number, "err", fmt.Errorf("%w: %v", ErrCacheIO, err))
	}
}
