package node

import (
	"encoding/binary"

	"ledgercore.dev/node/consensus"
)

// compactSizeLen returns how many bytes the canonical CompactSize encoding of v
// occupies, measured by encoding it with consensus.CompactSize.Encode.
func compactSizeLen(v uint64) int {
	return len(consensus.CompactSize(v).Encode())
}

// outputByteOffset computes the byte offset, from the start of a serialized block,
// of the value field of transaction txIndex's output outIndex — the walk §4.3
// describes ("skipping each transaction's inputs and outputs using their var-length
// size prefixes") so the unspent-output index never has to re-load a transaction to
// learn where its outputs live.
func outputByteOffset(block *consensus.Block, txIndex, outIndex int) (int, error) {
	if txIndex < 0 || txIndex >= len(block.Transactions) {
		return 0, newErr(CodeCorruptStore, "tx index out of range")
	}
	offset := consensus.BlockHeaderSize
	offset += compactSizeLen(uint64(len(block.Transactions)))

	for i := 0; i < txIndex; i++ {
		offset += serializedTxLen(&block.Transactions[i])
	}

	tx := &block.Transactions[txIndex]
	if outIndex < 0 || outIndex >= len(tx.Outputs) {
		return 0, newErr(CodeCorruptStore, "output index out of range")
	}
	inner := 4 + compactSizeLen(uint64(len(tx.Inputs)))
	for _, in := range tx.Inputs {
		inner += 32 + 4 + compactSizeLen(uint64(len(in.ScriptSig))) + len(in.ScriptSig) + 4
	}
	inner += compactSizeLen(uint64(len(tx.Outputs)))
	for j := 0; j < outIndex; j++ {
		out := tx.Outputs[j]
		inner += 8 + compactSizeLen(uint64(len(out.PkScript))) + len(out.PkScript)
	}
	return offset + inner, nil
}

func serializedTxLen(tx *consensus.Tx) int {
	inner := 4 + compactSizeLen(uint64(len(tx.Inputs)))
	for _, in := range tx.Inputs {
		inner += 32 + 4 + compactSizeLen(uint64(len(in.ScriptSig))) + len(in.ScriptSig) + 4
	}
	inner += compactSizeLen(uint64(len(tx.Outputs)))
	for _, out := range tx.Outputs {
		inner += 8 + compactSizeLen(uint64(len(out.PkScript))) + len(out.PkScript)
	}
	inner += 4 // locktime
	return inner
}

// ReadOutputAt resolves the value and pkScript stored at ref, which must point at the
// start of a TxOut's value field inside a block record (as computed by
// outputByteOffset at acceptance time).
func (bs *BlockStore) ReadOutputAt(branch uint8, ref FileRef) (value uint64, pkScript []byte, err error) {
	const probeLen = 8 + 9 + 4096 // value + max compactsize tag + a generous script guess
	chunk, err := bs.ReadRawAt(branch, ref.FileID, ref.FilePos, probeLen)
	if err != nil {
		return 0, nil, err
	}
	if len(chunk) < 8 {
		return 0, nil, newErr(CodeCorruptStore, "output record truncated: value")
	}
	value = binary.LittleEndian.Uint64(chunk[:8])

	scriptLen, consumed, err := consensus.DecodeCompactSize(chunk[8:])
	if err != nil {
		return 0, nil, wrapErr(CodeCorruptStore, "output record: script length", err)
	}
	total := 8 + consumed + int(scriptLen)
	if total <= len(chunk) {
		return value, append([]byte(nil), chunk[8+consumed:total]...), nil
	}
	full, err := bs.ReadRawAt(branch, ref.FileID, ref.FilePos, total)
	if err != nil {
		return 0, nil, err
	}
	if len(full) < total {
		return 0, nil, newErr(CodeCorruptStore, "output record truncated: script")
	}
	return value, append([]byte(nil), full[8+consumed:total]...), nil
}
