package node

import (
	"ledgercore.dev/node/consensus"
)

// inBlockOutputs gives resolveOutput access to transactions earlier in the same
// block, which §4.7.4b requires checking before falling back to the branch's
// committed unspent set.
type inBlockOutputs struct {
	txs []consensus.Tx
}

// resolveOutput looks up op first among transactions before index upTo in the block
// under validation, then in branch's committed unspent set, reading the output's
// value/script from the block store when it resolves there.
func (v *Validator) resolveOutput(branch *Branch, inBlock *inBlockOutputs, upTo int, op consensus.Outpoint, height uint32) (out consensus.TxOut, prodHeight uint32, isCoinbase, found bool, err error) {
	for i := 0; i < upTo; i++ {
		h := consensus.TxHash(&inBlock.txs[i])
		if h == op.TxHash {
			if int(op.Index) >= len(inBlock.txs[i].Outputs) {
				return consensus.TxOut{}, 0, false, false, nil
			}
			return inBlock.txs[i].Outputs[op.Index], height, i == 0, true, nil
		}
	}
	pos, ok := branch.FindUnspent(op.TxHash, op.Index)
	if !ok {
		return consensus.TxOut{}, 0, false, false, nil
	}
	entry := branch.Unspent[pos]
	value, pkScript, rerr := v.Store.ReadOutputAt(branch.ID, entry.Ref)
	if rerr != nil {
		return consensus.TxOut{}, 0, false, false, rerr
	}
	return consensus.TxOut{Value: value, PkScript: pkScript}, entry.Height, entry.Coinbase, true, nil
}

func ruleErrBad(msg string) error { return newErr(CodeBadBlock, msg) }

// fullyValidateBlock runs §4.7's full validation of block, which is at height on
// branch (whose unspent set reflects branch's state immediately before this block).
// It never mutates branch; the caller commits index/unspent changes afterward.
func (v *Validator) fullyValidateBlock(branch *Branch, height uint32, block *consensus.Block) error {
	if len(block.Transactions) == 0 {
		return ruleErrBad("block: no transactions")
	}
	if !block.Transactions[0].IsCoinbase() {
		return ruleErrBad("block: first transaction is not coinbase")
	}
	for i := 1; i < len(block.Transactions); i++ {
		if block.Transactions[i].IsCoinbase() {
			return ruleErrBad("block: non-first transaction is coinbase")
		}
	}
	if err := consensus.CheckBlockTransactionsUnique(block.Transactions); err != nil {
		return err
	}

	blockReward := consensus.Reward(uint64(height))
	totalSigOps := 0
	inBlock := &inBlockOutputs{txs: block.Transactions}
	blockTime := block.Header.Time

	for i := range block.Transactions {
		tx := &block.Transactions[i]

		if err := consensus.CheckFinality(tx, uint64(height), blockTime); err != nil {
			return err
		}
		if err := consensus.CheckTransactionSanity(tx); err != nil {
			return err
		}
		if tx.IsCoinbase() {
			continue
		}

		var inputSum uint64
		for j := range tx.Inputs {
			in := &tx.Inputs[j]

			prevOut, prevHeight, prevCoinbase, found, rerr := v.resolveOutput(branch, inBlock, i, in.PrevOut, height)
			if rerr != nil {
				return wrapErr(CodeIoError, "resolve previous output", rerr)
			}
			if !found {
				return ruleErrBad("tx: spends unknown or already-spent outpoint")
			}
			if prevCoinbase && uint64(height) < uint64(prevHeight)+consensus.CoinbaseMaturity {
				return ruleErrBad("tx: spends immature coinbase output")
			}

			isP2SH := consensus.IsPayToScriptHash(prevOut.PkScript)
			totalSigOps += consensus.GetPreciseSigOpCount(in.ScriptSig, prevOut.PkScript, isP2SH)
			if totalSigOps > consensus.MaxSigOps {
				return ruleErrBad("block: sigop budget exceeded")
			}

			subscript := prevOut.PkScript
			if isP2SH {
				if !consensus.IsPushOnly(in.ScriptSig) {
					return ruleErrBad("p2sh: scriptSig is not push-only")
				}
				redeem, ok := consensus.ExtractRedeemScript(in.ScriptSig)
				if !ok {
					return ruleErrBad("p2sh: scriptSig has no redeem script")
				}
				subscript = redeem
			}

			txCopy, jIdx := tx, j
			check := func(sig, pubkey []byte) bool {
				if len(sig) == 0 {
					return false
				}
				hashType := consensus.SigHashType(sig[len(sig)-1])
				derSig := sig[:len(sig)-1]
				digest, herr := consensus.ComputeSignatureHash(txCopy, jIdx, subscript, hashType)
				if herr != nil {
					return false
				}
				return v.Crypto.VerifyECDSASignature(pubkey, derSig, digest)
			}

			result, serr := consensus.ExecuteScript(in.ScriptSig, prevOut.PkScript, v.Crypto.Hash160, check)
			if serr != nil {
				return wrapErr(CodeOutOfMemory, "script execution error", serr)
			}
			if result != consensus.ScriptOK {
				return ruleErrBad("script: execution failed")
			}

			if inputSum+prevOut.Value < inputSum {
				return ruleErrBad("tx: input value sum overflow")
			}
			inputSum += prevOut.Value
		}

		var outputSum uint64
		for _, o := range tx.Outputs {
			outputSum += o.Value
		}
		if outputSum > inputSum {
			return ruleErrBad("tx: outputs exceed inputs")
		}
		fee := inputSum - outputSum
		if blockReward+fee < blockReward {
			return ruleErrBad("block: reward overflow")
		}
		blockReward += fee
	}

	var coinbaseValue uint64
	for _, o := range block.Transactions[0].Outputs {
		coinbaseValue += o.Value
	}
	if coinbaseValue > blockReward {
		return ruleErrBad("coinbase: pays more than subsidy plus fees")
	}
	return nil
}
