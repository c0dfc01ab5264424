package pipeline

import (
	"context"

	"github.com/ethereum/go-ethereum/log"

	"github.com/certenio/ethprover/pkg/ethproofs"
)

// Submitter consumes the final stage's updates and reports them
// upstream. NoOpSubmitter and EthproofsSubmitter both satisfy it.
type Submitter interface {
	Run(ctx context.Context, in <-chan Update) error
}

// NoOpSubmitter drains updates without reporting them anywhere, used
// when ethproofs submission is disabled.
type NoOpSubmitter struct{}

// Run drains in until it closes or ctx is cancelled.
func (NoOpSubmitter) Run(ctx context.Context, in <-chan Update) error {
	for {
		select {
		case _, ok := <-in:
			if !ok {
				return nil
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// EthproofsSubmitter forwards every update it understands to
// ethproofs.org. A request failure is logged, not propagated: the
// pipeline keeps running even if the tracking service is unreachable.
type EthproofsSubmitter struct {
	client *ethproofs.Client
}

// NewEthproofsSubmitter builds an EthproofsSubmitter.
func NewEthproofsSubmitter(client *ethproofs.Client) *EthproofsSubmitter {
	return &EthproofsSubmitter{client: client}
}

// Run consumes updates from in, submitting each recognized variant to
// ethproofs.org, until in closes or ctx is cancelled.
func (s *EthproofsSubmitter) Run(ctx context.Context, in <-chan Update) error {
	for {
		select {
		case update, ok := <-in:
			if !ok {
				return nil
			}
			s.handle(ctx, update)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (s *EthproofsSubmitter) handle(ctx context.Context, update Update) {
	var err error
	switch u := update.(type) {
	case ProofQueued:
		err = s.client.QueueProof(ctx, u.BlockNumber)
	case ProofProving:
		err = s.client.ProvingProof(ctx, u.BlockNumber)
	case ProofProvided:
		err = s.client.SendProof(ctx, u.BlockNumber, u.ProvingTimeMS, u.ProvingCycles, u.ProofBytes)
	default:
		// WitnessCalculated and any future update variant have no
		// ethproofs.org endpoint; nothing to do.
		return
	}
	if err != nil {
		log.Error("pipeline: ethproofs submission failed", "block", Number(update), "err", err)
	}
}
