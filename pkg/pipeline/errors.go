package pipeline

import "errors"

// ErrKind is a stable tag attached to pipeline errors so callers (and
// the crash reporter) can classify a failure without string-matching
// its message. Wrap an underlying error with one of the sentinels
// below using fmt.Errorf("...: %w", ErrProveFailed) and test with
// errors.Is.
type ErrKind = error

var (
	// ErrConfig marks a configuration validation failure.
	ErrConfig ErrKind = errors.New("config")
	// ErrRPC marks a failure talking to the Ethereum JSON-RPC endpoint.
	ErrRPC ErrKind = errors.New("rpc")
	// ErrInvalidWitness marks a block or witness that failed to decode
	// or did not satisfy the oracle's structural preconditions.
	ErrInvalidWitness ErrKind = errors.New("invalid_witness")
	// ErrForwardRunFailed marks a failure replaying a block's
	// transactions against the assembled oracle (the forward run).
	ErrForwardRunFailed ErrKind = errors.New("forward_run_failed")
	// ErrWitnessGenFailed marks a CPU witness generation failure.
	ErrWitnessGenFailed ErrKind = errors.New("witness_gen_failed")
	// ErrProveFailed marks a GPU proof generation failure.
	ErrProveFailed ErrKind = errors.New("prove_failed")
	// ErrProverPanicked marks a recovered panic inside the proving
	// backend.
	ErrProverPanicked ErrKind = errors.New("prover_panicked")
	// ErrSubmissionFailed marks a terminal (non-retryable, or
	// retries-exhausted) submission failure.
	ErrSubmissionFailed ErrKind = errors.New("submission_failed")
	// ErrCacheIO marks a cache filesystem failure.
	ErrCacheIO ErrKind = errors.New("cache_io")
)
