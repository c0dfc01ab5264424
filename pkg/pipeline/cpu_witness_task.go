package pipeline

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/log"

	"github.com/certenio/ethprover/pkg/cache"
	"github.com/certenio/ethprover/pkg/metrics"
	"github.com/certenio/ethprover/pkg/prover"
)

// OnFailure controls what a ProverWorker does when a single block
// fails to process.
type OnFailure int

const (
	// OnFailureExit terminates the whole pipeline on the first failure.
	OnFailureExit OnFailure = iota
	// OnFailureContinue logs the failure and moves on to the next
	// block.
	OnFailureContinue
)

// CPUWitnessTask drives CPU-mode witness generation: for each received
// BlockInput it builds the oracle, generates a witness, and emits a
// WitnessCalculated update. It never emits ProofQueued/ProofProving/
// ProofProvided — those belong to GPU-prove mode.
type CPUWitnessTask struct {
	generator      *prover.CPUWitnessGenerator
	onFailure      OnFailure
	metrics        *metrics.Metrics
	receiptFetcher ReceiptFetcher
	cache          *cache.Store
}

// NewCPUWitnessTask builds a CPUWitnessTask. m may be nil to disable
// metrics. fetcher may be nil, in which case a forward-run failure
// skips debug replay entirely (no RPC endpoint to fetch canonical
// receipts from), matching spec's "AND an RPC URL is available" gate.
func NewCPUWitnessTask(generator *prover.CPUWitnessGenerator, onFailure OnFailure, m *metrics.Metrics, fetcher ReceiptFetcher, store *cache.Store) *CPUWitnessTask {
	return &CPUWitnessTask{generator: generator, onFailure: onFailure, metrics: m, receiptFetcher: fetcher, cache: store}
}

// Run consumes blocks from in and writes WitnessCalculated updates to
// out until in is closed, ctx is cancelled, or (under OnFailureExit) a
// block fails to process.
func (t *CPUWitnessTask) Run(ctx context.Context, in <-chan *prover.BlockInput, out chan<- Update) error {
	for {
		select {
		case input, ok := <-in:
			if !ok {
				return nil
			}
			if err := t.processBlock(ctx, input, out); err != nil {
				if t.onFailure == OnFailureExit {
					return fmt.Errorf("pipeline: cpu witness task: %w", err)
				}
				log.Error("pipeline: cpu witness task: block failed, continuing", "block", input.BlockNumber(), "err", err)
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (t *CPUWitnessTask) processBlock(ctx context.Context, input *prover.BlockInput, out chan<- Update) error {
	if t.metrics != nil {
		t.metrics.BlocksReceivedTotal.Inc()
		guard := metrics.StartInflight(t.metrics.InflightWitnessTasks)
		defer guard.Done(t.metrics.WitnessDuration)
	}

	oracle, err := prover.BuildOracle(input)
	if err != nil {
		t.recordFailure()
		return fmt.Errorf("%w: %v", ErrInvalidWitness, err)
	}

	// Forward run is CPU-heavy and synchronous; it runs on a dedicated
	// goroutine, Go's analogue of spawn_blocking, so a slow or stuck
	// run doesn't stall this task's channel draining.
	if err := runBlocking(ctx, func() error { return prover.ForwardRun(oracle) }); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if t.receiptFetcher != nil {
			debugReplay(ctx, input.BlockNumber(), input, t.receiptFetcher, t.cache)
		}
		t.recordFailure()
		return fmt.Errorf("%w: %v", ErrForwardRunFailed, err)
	}

	witness, err := t.generator.GenerateWitness(ctx, oracle)
	if err != nil {
		t.recordFailure()
		return fmt.Errorf("%w: %v", ErrWitnessGenFailed, err)
	}
	t.recordSuccess(input.BlockNumber())

	update := WitnessCalculated{BlockNumber: input.BlockNumber(), WitnessSize: len(witness)}
	select {
	case out <- update:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// runBlocking runs fn on a dedicated goroutine and waits for it to
// finish or for ctx to be cancelled, whichever comes first. fn keeps
// running in the background after a cancellation (there is no way to
// interrupt it), but the caller stops waiting on it rather than
// blocking the pipeline indefinitely.
func runBlocking(ctx context.Context, fn func() error) error {
	done := make(chan error, 1)
	go func() { done <- fn() }()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (t *CPUWitnessTask) recordFailure() {
	if t.metrics != nil {
		t.metrics.WitnessFailureTotal.Inc()
	}
}

func (t *CPUWitnessTask) recordSuccess(blockNumber uint64) {
	if t.metrics != nil {
		t.metrics.WitnessSuccessTotal.Inc()
		t.metrics.LastProcessedBlock.Set(float64(blockNumber))
	}
}
