package consensus

import "crypto/sha256"

// DoubleSHA256 is the hash function used for block/transaction identifiers and the
// Merkle tree: sha256(sha256(b)).
func DoubleSHA256(b []byte) [32]byte {
	first := sha256.Sum256(b)
	return sha256.Sum256(first[:])
}

// BlockHash returns the double-SHA256 of a block header's 80-byte encoding.
func BlockHash(headerBytes []byte) ([32]byte, error) {
	if len(headerBytes) != BlockHeaderSize {
		return [32]byte{}, ruleErr(ErrParse, "header: wrong length")
	}
	return DoubleSHA256(headerBytes), nil
}

// TxHash computes a transaction's identifier (double-SHA256 of its serialization).
func TxHash(tx *Tx) [32]byte {
	return DoubleSHA256(SerializeTx(tx))
}
