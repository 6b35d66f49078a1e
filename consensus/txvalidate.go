package consensus

// MaxMoney is the maximum number of satoshis that can ever exist, used to bound any
// single value and any value sum against silent overflow.
const MaxMoney = 21_000_000 * 100_000_000

// CheckTransactionSanity performs the structural checks that do not require chain
// context: every output value is in range and the sum of output values does not
// exceed MaxMoney. Input/output count and parse-level limits are already enforced by
// parseTx.
func CheckTransactionSanity(tx *Tx) error {
	var total uint64
	for _, out := range tx.Outputs {
		if out.Value > MaxMoney {
			return ruleErr(ErrValueRange, "tx: output value exceeds max money")
		}
		total += out.Value
		if total > MaxMoney {
			return ruleErr(ErrValueRange, "tx: output value sum exceeds max money")
		}
	}
	if tx.IsCoinbase() {
		if len(tx.Inputs) != 1 {
			return ruleErr(ErrCoinbase, "coinbase: must have exactly one input")
		}
		scriptLen := len(tx.Inputs[0].ScriptSig)
		if scriptLen < 2 || scriptLen > 100 {
			return ruleErr(ErrCoinbase, "coinbase: scriptSig length out of range")
		}
		return nil
	}
	for _, in := range tx.Inputs {
		if in.PrevOut.Index == CoinbasePrevoutIndex {
			return ruleErr(ErrCoinbase, "tx: non-coinbase input references coinbase prevout index")
		}
	}
	return nil
}

// CheckBlockTransactionsUnique rejects a block whose non-coinbase transactions spend
// the same outpoint twice, directly or across different transactions in the block —
// a double spend that a per-transaction check alone cannot see.
func CheckBlockTransactionsUnique(txs []Tx) error {
	seen := make(map[Outpoint]struct{})
	for t, tx := range txs {
		if t == 0 {
			continue // coinbase
		}
		for _, in := range tx.Inputs {
			if _, dup := seen[in.PrevOut]; dup {
				return ruleErr(ErrDoubleSpend, "block: outpoint spent more than once")
			}
			seen[in.PrevOut] = struct{}{}
		}
	}
	return nil
}

// UTXOEntry is the resolved previous output a non-coinbase input spends, plus the
// bookkeeping needed to enforce coinbase maturity.
type UTXOEntry struct {
	Output      TxOut
	Height      uint64
	IsCoinbase  bool
}

// UTXOLookup resolves an outpoint against the unspent set of the branch a block is
// being validated against. Implementations come from the unspent-output index; tests
// may supply a map-backed stub.
type UTXOLookup interface {
	Lookup(op Outpoint) (UTXOEntry, bool)
}

// ResolveInputs looks up every non-coinbase input of tx against utxos, enforcing
// existence and coinbase maturity, and returns the resolved previous outputs in
// input order.
func ResolveInputs(tx *Tx, utxos UTXOLookup, spendHeight uint64) ([]UTXOEntry, error) {
	if tx.IsCoinbase() {
		return nil, nil
	}
	entries := make([]UTXOEntry, len(tx.Inputs))
	for i, in := range tx.Inputs {
		entry, ok := utxos.Lookup(in.PrevOut)
		if !ok {
			return nil, ruleErr(ErrMissingUTXO, "tx: spends unknown or already-spent outpoint")
		}
		if entry.IsCoinbase && spendHeight < entry.Height+CoinbaseMaturity {
			return nil, ruleErr(ErrImmature, "tx: spends immature coinbase output")
		}
		entries[i] = entry
	}
	return entries, nil
}

// TransactionFee returns the fee a transaction pays given its resolved inputs: the
// sum of input values minus the sum of output values. Coinbase transactions (nil
// inputs) always return a fee of zero; ResolveInputs already guarantees
// len(inputs) == len(tx.Inputs) for non-coinbase transactions.
func TransactionFee(tx *Tx, inputs []UTXOEntry) (uint64, error) {
	if tx.IsCoinbase() {
		return 0, nil
	}
	var in, out uint64
	for _, e := range inputs {
		in += e.Output.Value
		if in > MaxMoney {
			return 0, ruleErr(ErrValueRange, "tx: input value sum exceeds max money")
		}
	}
	for _, o := range tx.Outputs {
		out += o.Value
	}
	if out > in {
		return 0, ruleErr(ErrValueRange, "tx: outputs exceed inputs")
	}
	return in - out, nil
}

// CheckFinality reports whether tx may be included in a block at height with the
// given block time, per the classic nLockTime rule: a zero locktime is always final;
// otherwise it is interpreted as a height (< 500,000,000) or a UNIX time and must
// already have passed, unless every input carries a final sequence number.
func CheckFinality(tx *Tx, height uint64, blockTime uint32) error {
	if tx.LockTime == 0 {
		return nil
	}
	allFinal := true
	for _, in := range tx.Inputs {
		if in.Sequence != 0xffffffff {
			allFinal = false
			break
		}
	}
	if allFinal {
		return nil
	}
	const lockTimeThreshold = 500_000_000
	if tx.LockTime < lockTimeThreshold {
		if uint64(tx.LockTime) < height {
			return nil
		}
	} else if tx.LockTime < blockTime {
		return nil
	}
	return ruleErr(ErrNotFinal, "tx: not final at this height/time")
}
