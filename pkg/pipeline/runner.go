package pipeline

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/certenio/ethprover/pkg/prover"
)

// ContinuousBlockChannelCapacity gives the prover worker a small buffer
// of pre-fetched work when streaming the rolling chain head.
// SingleBlockChannelCapacity is 1: a single-block run produces exactly
// one BlockInput and buffering it further serves no purpose.
//
// updateChannelCapacity is sized generously in both cases since updates
// are small and the cache manager / submitter should never be the
// pipeline's bottleneck.
const (
	ContinuousBlockChannelCapacity = 10
	SingleBlockChannelCapacity     = 1
	updateChannelCapacity          = 10
)

// BlockSource produces BlockInputs for the pipeline to prove.
type BlockSource interface {
	Run(ctx context.Context, out chan<- *prover.BlockInput) error
}

// ProverWorker consumes BlockInputs and emits Updates describing their
// progress through witness generation or proof generation.
type ProverWorker interface {
	Run(ctx context.Context, in <-chan *prover.BlockInput, out chan<- Update) error
}

// Run wires BlockSource -> ProverWorker -> CacheManager -> Submitter
// and runs all four concurrently, returning as soon as any one of them
// returns a non-nil error and cancelling the rest. This is the Go
// analogue of joining every pipeline task and propagating the first
// failure: golang.org/x/sync/errgroup.WithContext gives every stage a
// context that is cancelled the instant any stage's Run returns an
// error, so a stuck or indefinitely-blocked stage unwinds alongside the
// one that actually failed.
func Run(ctx context.Context, source BlockSource, worker ProverWorker, cacheManager *CacheManager, submitter Submitter, blockChannelCapacity int) error {
	g, ctx := errgroup.WithContext(ctx)

	blocks := make(chan *prover.BlockInput, blockChannelCapacity)
	rawUpdates := make(chan Update, updateChannelCapacity)
	forwardedUpdates := make(chan Update, updateChannelCapacity)

	g.Go(func() error {
		defer close(blocks)
		return source.Run(ctx, blocks)
	})

	g.Go(func() error {
		defer close(rawUpdates)
		return worker.Run(ctx, blocks, rawUpdates)
	})

	g.Go(func() error {
		defer close(forwardedUpdates)
		return cacheManager.Run(ctx, rawUpdates, forwardedUpdates)
	})

	g.Go(func() error {
		return submitter.Run(ctx, forwardedUpdates)
	})

	return g.Wait()
}
