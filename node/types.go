package node

import "math/big"

// FileRef locates a position inside one of the BlockStore's append-only files: the
// start of a length-prefixed block record, or (as OutputRef.Ref) the value field of
// an output inside such a record.
type FileRef struct {
	FileID  uint16
	FilePos uint64
}

// BlockRef is the per-block entry kept in a branch's reference array, in
// insertion (height) order.
type BlockRef struct {
	Ref    FileRef
	Target uint32
	Time   uint32
}

// HashIndexEntry is one entry of a branch's sorted hash lookup table.
type HashIndexEntry struct {
	BlockHash [32]byte
	RefIndex  uint32
}

// OutputRef is one entry of a branch's sorted unspent-output set.
type OutputRef struct {
	TxHash      [32]byte
	OutputIndex uint32
	Ref         FileRef
	Height      uint32
	Coinbase    bool
	BranchID    uint8
}

// outpointKey is the sort/search key for OutputRef: (tx_hash, output_index).
type outpointKey struct {
	TxHash      [32]byte
	OutputIndex uint32
}

// Orphan is a block whose parent hash is not yet known to any branch.
type Orphan struct {
	Bytes []byte
	Hash  [32]byte
}

// Status is the disposition process_block assigns a candidate block.
type Status int

const (
	Main Status = iota
	Side
	OrphanStatus
	Duplicate
	Bad
	BadTime
	MaxCache
	ErrorStatus
)

func (s Status) String() string {
	switch s {
	case Main:
		return "MAIN"
	case Side:
		return "SIDE"
	case OrphanStatus:
		return "ORPHAN"
	case Duplicate:
		return "DUPLICATE"
	case Bad:
		return "BAD"
	case BadTime:
		return "BAD_TIME"
	case MaxCache:
		return "MAX_CACHE"
	case ErrorStatus:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// MaxBranches and MaxOrphans are the cache-size limits of §6.3.
const (
	MaxBranches = 4
	MaxOrphans  = 3
)

// zeroWork returns a fresh *big.Int set to zero, used as the genesis work value.
func zeroWork() *big.Int { return new(big.Int) }
