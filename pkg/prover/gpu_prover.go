package prover

import (
	"context"
	"fmt"
	"time"

	zkvm "github.com/ProjectZKM/Ziren/crates/go-runtime/zkvm_runtime"
)

// ProofResult is the output of a single GPU proving run.
type ProofResult struct {
	ProofBytes    []byte
	Cycles        uint64
	ProvingTimeMS uint64
}

// proveRequest is a single unit of work sent to the supervisor
// goroutine: an oracle to prove, and a channel to receive the result
// on.
type proveRequest struct {
	blockNumber uint64
	oracle      *Oracle
	result      chan<- proveResponse
}

type proveResponse struct {
	proof *ProofResult
	err   error
}

// proverHandle is the non-reentrant GPU prover handle's surface, as
// used by the supervisor. Narrowed to an interface (rather than the
// concrete zkvm.Prover) so tests can substitute a handle that panics
// on demand without a real zkVM binary.
type proverHandle interface {
	Prove(headerRLP []byte, transactions [][]byte, preimages map[string][]byte, accountIndex map[string]accountPropertiesWire) (proof []byte, cycles uint64, err error)
}

// handleFactory constructs a fresh prover handle, used both for the
// initial handle and to rebuild one after a panic.
type handleFactory func(appBinPath string) (proverHandle, error)

// Supervisor owns the single, non-reentrant GPU prover handle and
// services proof requests one at a time on a dedicated goroutine. The
// underlying zkVM prover handle cannot be shared across goroutines and
// is left in an undefined state if the proving call it is in the
// middle of panics, so every call runs under recover(); a recovered
// panic discards the handle and rebuilds it before the next request is
// accepted. If rebuilding itself fails, the supervisor goroutine exits
// and every request still queued (and all future ones) fails fast.
type Supervisor struct {
	appBinPath string
	newHandle  handleFactory
	requests   chan proveRequest
	done       chan struct{}
}

// NewSupervisor starts the supervisor goroutine and returns once the
// initial prover handle has been constructed.
func NewSupervisor(ctx context.Context, appBinPath string) (*Supervisor, error) {
	return newSupervisorWithFactory(ctx, appBinPath, newProverHandle)
}

func newSupervisorWithFactory(ctx context.Context, appBinPath string, factory handleFactory) (*Supervisor, error) {
	s := &Supervisor{
		appBinPath: appBinPath,
		newHandle:  factory,
		requests:   make(chan proveRequest),
		done:       make(chan struct{}),
	}

	handle, err := factory(appBinPath)
	if err != nil {
		return nil, fmt.Errorf("prover: construct prover handle: %w", err)
	}

	go s.run(ctx, handle)
	return s, nil
}

// Prove submits oracle for proving and blocks until a result is
// available, ctx is cancelled, or the supervisor has permanently
// stopped after a failed handle rebuild.
func (s *Supervisor) Prove(ctx context.Context, blockNumber uint64, oracle *Oracle) (*ProofResult, error) {
	result := make(chan proveResponse, 1)
	req := proveRequest{blockNumber: blockNumber, oracle: oracle, result: result}

	select {
	case s.requests <- req:
	case <-s.done:
		return nil, fmt.Errorf("prover: supervisor has stopped")
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	select {
	case resp := <-result:
		return resp.proof, resp.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *Supervisor) run(ctx context.Context, handle proverHandle) {
	defer close(s.done)

	for {
		select {
		case <-ctx.Done():
			return
		case req := <-s.requests:
			proof, err, panicked := proveOneRecovered(handle, req.oracle)
			if panicked {
				rebuilt, rebuildErr := s.newHandle(s.appBinPath)
				if rebuildErr != nil {
					req.result <- proveResponse{err: fmt.Errorf("prover: rebuild handle after panic: %w", rebuildErr)}
					return
				}
				handle = rebuilt
			}
			req.result <- proveResponse{proof: proof, err: err}
		}
	}
}

func newProverHandle(appBinPath string) (proverHandle, error) {
	handle, err := zkvm.NewProver(appBinPath)
	if err != nil {
		return nil, err
	}
	return handle, nil
}

// proveOneRecovered runs a single proving call under recover(), so a
// panic inside the zkVM prover (which can leave its internal state
// corrupted) never takes down the supervisor goroutine. panicked is
// true only when recover() actually caught something; handle rebuild
// decisions are made by the caller based on that flag alone.
func proveOneRecovered(handle proverHandle, oracle *Oracle) (proof *ProofResult, err error, panicked bool) {
	defer func() {
		if r := recover(); r != nil {
			panicked = true
			err = fmt.Errorf("prover: panic during proof generation: %v", r)
		}
	}()

	start := time.Now()
	wire := oracleWireFormatFrom(oracle)
	raw, cycles, proveErr := handle.Prove(wire.TargetHeaderRLP, wire.Transactions, wire.Preimages, wire.AccountIndex)
	if proveErr != nil {
		return nil, proveErr, false
	}

	// raw is handed back uncompressed: gzip happens exactly once, at the
	// ethproofs submission boundary (pkg/ethproofs.EncodeProof), not here.
	return &ProofResult{
		ProofBytes:    raw,
		Cycles:        cycles,
		ProvingTimeMS: uint64(time.Since(start).Milliseconds()),
	}, nil, false
}
