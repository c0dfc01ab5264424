package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/log"

	"github.com/certenio/ethprover/pkg/crashreport"
	"github.com/certenio/ethprover/pkg/metrics"
	"github.com/certenio/ethprover/pkg/prover"
)

// GPUProveTask drives GPU-mode proof generation: for each received
// BlockInput it emits ProofQueued, then ProofProving, then builds the
// oracle and proves it, finally emitting ProofProvided. The queued/
// proving updates are sent best-effort (dropped if the downstream
// consumer has gone away) since they are progress signals, not proof
// data the pipeline depends on.
type GPUProveTask struct {
	supervisor *prover.Supervisor
	reporter   crashreport.Reporter
	onFailure  OnFailure
	metrics    *metrics.Metrics
}

// NewGPUProveTask builds a GPUProveTask. reporter may be
// crashreport.NoOp{}; m may be nil to disable metrics.
func NewGPUProveTask(supervisor *prover.Supervisor, reporter crashreport.Reporter, onFailure OnFailure, m *metrics.Metrics) *GPUProveTask {
	return &GPUProveTask{supervisor: supervisor, reporter: reporter, onFailure: onFailure, metrics: m}
}

// Run consumes blocks from in and writes updates to out until in is
// closed, ctx is cancelled, or (under OnFailureExit) a block fails.
func (t *GPUProveTask) Run(ctx context.Context, in <-chan *prover.BlockInput, out chan<- Update) error {
	for {
		select {
		case input, ok := <-in:
			if !ok {
				return nil
			}
			if err := t.processBlock(ctx, input, out); err != nil {
				t.reporter.Report(ctx, err, map[string]string{
					"mode":         "gpu_prove",
					"block_number": fmt.Sprintf("%d", input.BlockNumber()),
				})
				if t.onFailure == OnFailureExit {
					return fmt.Errorf("pipeline: gpu prove task: %w", err)
				}
				log.Error("pipeline: gpu prove task: block failed, continuing", "block", input.BlockNumber(), "err", err)
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (t *GPUProveTask) processBlock(ctx context.Context, input *prover.BlockInput, out chan<- Update) error {
	number := input.BlockNumber()

	if t.metrics != nil {
		t.metrics.BlocksReceivedTotal.Inc()
		guard := metrics.StartInflight(t.metrics.InflightProofTasks)
		defer guard.Done(t.metrics.ProofDuration)
	}

	sendBestEffort(ctx, out, ProofQueued{BlockNumber: number})
	sendBestEffort(ctx, out, ProofProving{BlockNumber: number})

	oracle, err := prover.BuildOracle(input)
	if err != nil {
		t.recordFailure()
		return fmt.Errorf("%w: %v", ErrInvalidWitness, err)
	}

	result, err := t.supervisor.Prove(ctx, number, oracle)
	if err != nil {
		t.recordFailure()
		if isPanicError(err) {
			return fmt.Errorf("%w: %v", ErrProverPanicked, err)
		}
		return fmt.Errorf("%w: %v", ErrProveFailed, err)
	}
	t.recordSuccess(number)

	update := ProofProvided{
		BlockNumber:   number,
		ProofBytes:    result.ProofBytes,
		ProvingTimeMS: result.ProvingTimeMS,
		ProvingCycles: result.Cycles,
	}
	select {
	case out <- update:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// sendBestEffort writes update to out, waiting for room in the channel;
// the update is dropped only if ctx is cancelled first, which is how
// the pipeline signals that the downstream stages have gone away. It is
// used for progress updates whose loss does not fail the block.
func sendBestEffort(ctx context.Context, out chan<- Update, update Update) {
	select {
	case out <- update:
	case <-ctx.Done():
	}
}

func isPanicError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "panic during proof generation")
}

func (t *GPUProveTask) recordFailure() {
	if t.metrics != nil {
		t.metrics.ProofFailureTotal.Inc()
	}
}

func (t *GPUProveTask) recordSuccess(blockNumber uint64) {
	if t.metrics != nil {
		t.metrics.ProofSuccessTotal.Inc()
		t.metrics.LastProcessedBlock.Set(float64(blockNumber))
	}
}
