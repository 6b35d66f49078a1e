package node

import (
	"bytes"
	"encoding/binary"
	"math/big"
)

// Branch is one linear (from its own perspective) sequence of blocks, rooted either
// at genesis (branch 0) or at an interior block of another branch. It owns its
// reference array, hash lookup table, unspent-output set and cumulative work.
type Branch struct {
	ID uint8

	Refs   []BlockRef
	Lookup []HashIndexEntry // sorted by BlockHash

	ParentBranch     uint8
	ParentBlockIndex uint32
	HasParent        bool

	StartHeight        uint32
	LastValidatedIndex uint32
	LastRetargetTime   uint32
	PrevTimes          [6]uint32

	Work *big.Int

	Unspent []OutputRef // sorted by (tx_hash, output_index)

	tipHash [32]byte
}

// TipHeight returns the height of the branch's most recent reference.
func (b *Branch) TipHeight() uint32 {
	return b.StartHeight + uint32(len(b.Refs)) - 1
}

func (b *Branch) TipBlockRef() BlockRef {
	return b.Refs[len(b.Refs)-1]
}

func (b *Branch) TipHash() [32]byte {
	return b.tipHash
}

func hashMiniKey(h [32]byte) uint64 {
	return binary.BigEndian.Uint64(h[24:32])
}

// FindHash searches the branch's lookup table for hash, returning the position of an
// equal entry or the insertion point if absent.
func (b *Branch) FindHash(hash [32]byte) (int, bool) {
	target := hashMiniKey(hash)
	return interpolationSearch(len(b.Lookup), target,
		func(i int) uint64 { return hashMiniKey(b.Lookup[i].BlockHash) },
		func(i int) int { return bytes.Compare(hash[:], b.Lookup[i].BlockHash[:]) },
	)
}

// InsertBlock appends ref to the reference array (height order) and inserts a new
// HashIndexEntry for hash at its sorted position in the lookup table.
func (b *Branch) InsertBlock(hash [32]byte, ref BlockRef) {
	refIndex := uint32(len(b.Refs))
	b.Refs = append(b.Refs, ref)

	pos, found := b.FindHash(hash)
	entry := HashIndexEntry{BlockHash: hash, RefIndex: refIndex}
	if found {
		// Should not happen for a hash the caller already checked is novel, but keep the
		// lookup table's invariant (one entry per distinct hash) rather than duplicate it.
		b.Lookup[pos] = entry
		return
	}
	b.Lookup = append(b.Lookup, HashIndexEntry{})
	copy(b.Lookup[pos+1:], b.Lookup[pos:])
	b.Lookup[pos] = entry
	b.tipHash = hash
}

// RotatePrevTimes shifts a new block time into PrevTimes, dropping the oldest.
func (b *Branch) RotatePrevTimes(newTime uint32) {
	copy(b.PrevTimes[0:], b.PrevTimes[1:])
	b.PrevTimes[5] = newTime
}

func outpointOf(o OutputRef) outpointKey {
	return outpointKey{TxHash: o.TxHash, OutputIndex: o.OutputIndex}
}

func compareOutpoint(a, b outpointKey) int {
	if c := bytes.Compare(a.TxHash[:], b.TxHash[:]); c != 0 {
		return c
	}
	switch {
	case a.OutputIndex < b.OutputIndex:
		return -1
	case a.OutputIndex > b.OutputIndex:
		return 1
	default:
		return 0
	}
}

func outpointMiniKey(k outpointKey) uint64 {
	// Fold the output index into the low bytes of the tx_hash's tail so that it still
	// participates in the mini-key ordering used to narrow the interpolation window.
	tail := binary.BigEndian.Uint64(k.TxHash[24:32])
	return tail ^ uint64(k.OutputIndex)
}

// FindUnspent searches the branch's unspent set for (txHash, outputIndex).
func (b *Branch) FindUnspent(txHash [32]byte, outputIndex uint32) (int, bool) {
	target := outpointKey{TxHash: txHash, OutputIndex: outputIndex}
	targetMini := outpointMiniKey(target)
	return interpolationSearch(len(b.Unspent), targetMini,
		func(i int) uint64 { return outpointMiniKey(outpointOf(b.Unspent[i])) },
		func(i int) int { return compareOutpoint(target, outpointOf(b.Unspent[i])) },
	)
}

// InsertUnspent inserts entry into the sorted unspent set.
func (b *Branch) InsertUnspent(entry OutputRef) {
	pos, found := b.FindUnspent(entry.TxHash, entry.OutputIndex)
	if found {
		b.Unspent[pos] = entry
		return
	}
	b.Unspent = append(b.Unspent, OutputRef{})
	copy(b.Unspent[pos+1:], b.Unspent[pos:])
	b.Unspent[pos] = entry
}

// RemoveUnspent deletes the entry for (txHash, outputIndex) if present.
func (b *Branch) RemoveUnspent(txHash [32]byte, outputIndex uint32) bool {
	pos, found := b.FindUnspent(txHash, outputIndex)
	if !found {
		return false
	}
	b.Unspent = append(b.Unspent[:pos], b.Unspent[pos+1:]...)
	return true
}

