package consensus

import "encoding/binary"

// parseBlockHeader parses the fixed 80-byte header from the front of cur.
func parseBlockHeader(cur *cursor) (BlockHeader, error) {
	var h BlockHeader
	var err error
	if h.Version, err = cur.readU32LE(); err != nil {
		return h, err
	}
	if h.PrevBlockHash, err = cur.readHash32(); err != nil {
		return h, err
	}
	if h.MerkleRoot, err = cur.readHash32(); err != nil {
		return h, err
	}
	if h.Time, err = cur.readU32LE(); err != nil {
		return h, err
	}
	if h.Bits, err = cur.readU32LE(); err != nil {
		return h, err
	}
	if h.Nonce, err = cur.readU32LE(); err != nil {
		return h, err
	}
	return h, nil
}

// SerializeBlockHeader returns the canonical 80-byte encoding of h.
func SerializeBlockHeader(h BlockHeader) []byte {
	w := &writer{buf: make([]byte, 0, BlockHeaderSize)}
	w.writeU32LE(h.Version)
	w.writeHash32(h.PrevBlockHash)
	w.writeHash32(h.MerkleRoot)
	w.writeU32LE(h.Time)
	w.writeU32LE(h.Bits)
	w.writeU32LE(h.Nonce)
	return w.buf
}

// ParseBlockHeaderBytes parses a standalone 80-byte header (e.g. from a headers-only
// peer message), rejecting trailing bytes.
func ParseBlockHeaderBytes(b []byte) (BlockHeader, error) {
	cur := newCursor(b)
	h, err := parseBlockHeader(cur)
	if err != nil {
		return BlockHeader{}, err
	}
	if cur.remaining() != 0 {
		return BlockHeader{}, ruleErr(ErrParse, "header: trailing bytes")
	}
	return h, nil
}

func parseOutpoint(cur *cursor) (Outpoint, error) {
	var op Outpoint
	var err error
	if op.TxHash, err = cur.readHash32(); err != nil {
		return op, err
	}
	if op.Index, err = cur.readU32LE(); err != nil {
		return op, err
	}
	return op, nil
}

func parseTxIn(cur *cursor) (TxIn, error) {
	var in TxIn
	var err error
	if in.PrevOut, err = parseOutpoint(cur); err != nil {
		return in, err
	}
	scriptLen, err := cur.readCompactSize()
	if err != nil {
		return in, err
	}
	if scriptLen > uint64(cur.remaining()) {
		return in, ruleErr(ErrParse, "txin: script too long")
	}
	script, err := cur.readExact(int(scriptLen))
	if err != nil {
		return in, err
	}
	in.ScriptSig = append([]byte(nil), script...)
	if in.Sequence, err = cur.readU32LE(); err != nil {
		return in, err
	}
	return in, nil
}

func parseTxOut(cur *cursor) (TxOut, error) {
	var out TxOut
	v, err := cur.readExact(8)
	if err != nil {
		return out, err
	}
	out.Value = binary.LittleEndian.Uint64(v)
	scriptLen, err := cur.readCompactSize()
	if err != nil {
		return out, err
	}
	if scriptLen > uint64(cur.remaining()) {
		return out, ruleErr(ErrParse, "txout: script too long")
	}
	script, err := cur.readExact(int(scriptLen))
	if err != nil {
		return out, err
	}
	out.PkScript = append([]byte(nil), script...)
	return out, nil
}

func parseTx(cur *cursor) (Tx, error) {
	var tx Tx
	var err error
	if tx.Version, err = cur.readU32LE(); err != nil {
		return tx, err
	}
	inCount, err := cur.readCompactSize()
	if err != nil {
		return tx, err
	}
	if inCount == 0 {
		return tx, ruleErr(ErrParse, "tx: no inputs")
	}
	if inCount > MaxTxInputsOutputs {
		return tx, ruleErr(ErrParse, "tx: too many inputs")
	}
	tx.Inputs = make([]TxIn, inCount)
	for i := range tx.Inputs {
		if tx.Inputs[i], err = parseTxIn(cur); err != nil {
			return tx, err
		}
	}
	outCount, err := cur.readCompactSize()
	if err != nil {
		return tx, err
	}
	if outCount == 0 {
		return tx, ruleErr(ErrParse, "tx: no outputs")
	}
	if outCount > MaxTxInputsOutputs {
		return tx, ruleErr(ErrParse, "tx: too many outputs")
	}
	tx.Outputs = make([]TxOut, outCount)
	for i := range tx.Outputs {
		if tx.Outputs[i], err = parseTxOut(cur); err != nil {
			return tx, err
		}
	}
	if tx.LockTime, err = cur.readU32LE(); err != nil {
		return tx, err
	}
	return tx, nil
}

// SerializeTx returns the canonical wire encoding of tx.
func SerializeTx(tx *Tx) []byte {
	w := &writer{buf: make([]byte, 0, 64)}
	serializeTxInto(w, tx)
	return w.buf
}

func serializeTxInto(w *writer, tx *Tx) {
	w.writeU32LE(tx.Version)
	w.writeCompactSize(uint64(len(tx.Inputs)))
	for _, in := range tx.Inputs {
		w.writeHash32(in.PrevOut.TxHash)
		w.writeU32LE(in.PrevOut.Index)
		w.writeBytes(in.ScriptSig)
		w.writeU32LE(in.Sequence)
	}
	w.writeCompactSize(uint64(len(tx.Outputs)))
	for _, out := range tx.Outputs {
		var v [8]byte
		binary.LittleEndian.PutUint64(v[:], out.Value)
		w.buf = append(w.buf, v[:]...)
		w.writeBytes(out.PkScript)
	}
	w.writeU32LE(tx.LockTime)
}

// ParseBlockBytes parses a full serialized block: header, tx count, transactions.
func ParseBlockBytes(b []byte) (Block, error) {
	cur := newCursor(b)
	var block Block
	var err error
	if block.Header, err = parseBlockHeader(cur); err != nil {
		return block, err
	}
	txCount, err := cur.readCompactSize()
	if err != nil {
		return block, err
	}
	if txCount == 0 {
		return block, ruleErr(ErrParse, "block: no transactions")
	}
	block.Transactions = make([]Tx, txCount)
	for i := range block.Transactions {
		if block.Transactions[i], err = parseTx(cur); err != nil {
			return block, err
		}
	}
	if cur.remaining() != 0 {
		return block, ruleErr(ErrParse, "block: trailing bytes")
	}
	return block, nil
}

// SerializeBlock returns the canonical wire encoding of block.
func SerializeBlock(block *Block) []byte {
	w := &writer{buf: make([]byte, 0, 256)}
	w.buf = append(w.buf, SerializeBlockHeader(block.Header)...)
	w.writeCompactSize(uint64(len(block.Transactions)))
	for i := range block.Transactions {
		w.buf = append(w.buf, SerializeTx(&block.Transactions[i])...)
	}
	return w.buf
}

// ParseBlockPrefix parses one serialized block from the front of b, tolerating
// trailing bytes, and reports how many bytes of b the block consumed. Used to read
// self-delimited blocks packed back-to-back with no external length prefix (the
// orphan list inside validation.dat).
func ParseBlockPrefix(b []byte) (Block, int, error) {
	cur := newCursor(b)
	var block Block
	var err error
	if block.Header, err = parseBlockHeader(cur); err != nil {
		return block, 0, err
	}
	txCount, err := cur.readCompactSize()
	if err != nil {
		return block, 0, err
	}
	if txCount == 0 {
		return block, 0, ruleErr(ErrParse, "block: no transactions")
	}
	block.Transactions = make([]Tx, txCount)
	for i := range block.Transactions {
		if block.Transactions[i], err = parseTx(cur); err != nil {
			return block, 0, err
		}
	}
	return block, cur.pos, nil
}

// MaxTxInputsOutputs bounds the input/output count accepted while parsing, guarding
// against absurd CompactSize values before any allocation.
const MaxTxInputsOutputs = 1_000_000
