package consensus

// SigHashType is the classic signature hash type byte appended to a DER signature.
type SigHashType byte

const (
	SigHashAll          SigHashType = 0x01
	SigHashNone         SigHashType = 0x02
	SigHashSingle       SigHashType = 0x03
	SigHashAnyOneCanPay SigHashType = 0x80
)

// ComputeSignatureHash builds the legacy (pre-segwit) signature hash for inputIdx of
// tx, as OP_CHECKSIG and OP_CHECKMULTISIG require: every input's scriptSig is blanked
// except inputIdx's, which is replaced by subscript (the previous output's pkScript,
// or the P2SH redeem script), then the hash type's NONE/SINGLE/ANYONECANPAY variants
// are applied before double-SHA256 and a trailing little-endian hash-type word.
func ComputeSignatureHash(tx *Tx, inputIdx int, subscript []byte, hashType SigHashType) ([32]byte, error) {
	if inputIdx < 0 || inputIdx >= len(tx.Inputs) {
		return [32]byte{}, ruleErr(ErrScript, "sighash: input index out of range")
	}

	baseType := hashType &^ SigHashAnyOneCanPay
	anyoneCanPay := hashType&SigHashAnyOneCanPay != 0

	subscript = removeOpCodeSeparators(subscript)

	var inputs []TxIn
	if anyoneCanPay {
		inputs = []TxIn{{
			PrevOut:   tx.Inputs[inputIdx].PrevOut,
			ScriptSig: subscript,
			Sequence:  tx.Inputs[inputIdx].Sequence,
		}}
	} else {
		inputs = make([]TxIn, len(tx.Inputs))
		for i, in := range tx.Inputs {
			script := []byte{}
			seq := in.Sequence
			if i == inputIdx {
				script = subscript
			} else if baseType == SigHashNone || baseType == SigHashSingle {
				seq = 0
			}
			inputs[i] = TxIn{PrevOut: in.PrevOut, ScriptSig: script, Sequence: seq}
		}
	}

	var outputs []TxOut
	switch baseType {
	case SigHashNone:
		outputs = nil
	case SigHashSingle:
		if inputIdx >= len(tx.Outputs) {
			// SIGHASH_SINGLE bug: hash of 0x01 followed by 31 zero bytes, matching the
			// historical behavior every validator must reproduce for compatibility.
			var h [32]byte
			h[0] = 0x01
			return h, nil
		}
		outputs = make([]TxOut, inputIdx+1)
		for i := 0; i < inputIdx; i++ {
			outputs[i] = TxOut{Value: ^uint64(0), PkScript: nil}
		}
		outputs[inputIdx] = tx.Outputs[inputIdx]
	default: // SigHashAll and unrecognized types fall back to ALL semantics
		outputs = tx.Outputs
	}

	shallow := Tx{
		Version:  tx.Version,
		Inputs:   inputs,
		Outputs:  outputs,
		LockTime: tx.LockTime,
	}

	w := &writer{}
	serializeTxInto(w, &shallow)
	w.writeU32LE(uint32(hashType))

	return DoubleSHA256(w.buf), nil
}

// removeOpCodeSeparators strips OP_CODESEPARATOR (0xab) from subscript per the legacy
// signature-hash rule; classic P2PKH/P2SH/multisig templates never contain one, but the
// strip is unconditional to match reference behavior exactly.
func removeOpCodeSeparators(script []byte) []byte {
	const opCodeSeparator = 0xab
	out := make([]byte, 0, len(script))
	i := 0
	for i < len(script) {
		op := script[i]
		switch {
		case op <= 0x4b:
			n := 1 + int(op)
			if i+n > len(script) {
				return append(out, script[i:]...)
			}
			out = append(out, script[i:i+n]...)
			i += n
		case op == opPushData1:
			if i+2 > len(script) {
				return append(out, script[i:]...)
			}
			n := 2 + int(script[i+1])
			if i+n > len(script) {
				return append(out, script[i:]...)
			}
			out = append(out, script[i:i+n]...)
			i += n
		case op == opPushData2:
			if i+3 > len(script) {
				return append(out, script[i:]...)
			}
			n := 3 + (int(script[i+1]) | int(script[i+2])<<8)
			if i+n > len(script) {
				return append(out, script[i:]...)
			}
			out = append(out, script[i:i+n]...)
			i += n
		case op == opCodeSeparator:
			i++
		default:
			out = append(out, op)
			i++
		}
	}
	return out
}
