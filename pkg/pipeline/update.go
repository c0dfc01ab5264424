package pipeline

// Update is a status event flowing from a ProverWorker through the
// CacheManager to the Submitter. It is a closed set of four concrete
// types; consumers type-switch on it rather than inspecting a
// discriminant field.
type Update interface {
	update()
}

// WitnessCalculated reports that CPU witness generation for a block
// completed. The witness data itself is not retained past this point;
// only its size is carried, for logging and metrics.
type WitnessCalculated struct {
	BlockNumber uint64
	WitnessSize int
}

// ProofQueued reports that a block has been accepted by the GPU prover
// and is waiting for its turn on the prover handle.
type ProofQueued struct {
	BlockNumber uint64
}

// ProofProving reports that a block has started proof generation.
type ProofProving struct {
	BlockNumber uint64
}

// ProofProvided reports a completed proof, ready for submission.
type ProofProvided struct {
	BlockNumber   uint64
	ProofBytes    []byte
	ProvingTimeMS uint64
	ProvingCycles uint64
}

func (WitnessCalculated) update() {}
func (ProofQueued) update()       {}
func (ProofProving) update()      {}
func (ProofProvided) update()     {}

// Number returns the block number an Update concerns, regardless of
// its concrete type.
func Number(u Update) uint64 {
	switch v := u.(type) {
	case WitnessCalculated:
		return v.BlockNumber
	case ProofQueued:
		return v.BlockNumber
	case ProofProving:
		return v.BlockNumber
	case ProofProvided:
		return v.BlockNumber
	default:
		return 0
	}
}
