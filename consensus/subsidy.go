package consensus

// InitialSubsidy is the block reward at height 0, in satoshis.
const InitialSubsidy = 50 * 100_000_000

// SubsidyHalvingInterval is the number of blocks between reward halvings.
const SubsidyHalvingInterval = 210_000

// Reward returns the coinbase subsidy owed at height, halving every
// SubsidyHalvingInterval blocks until it reaches zero.
func Reward(height uint64) uint64 {
	halvings := height / SubsidyHalvingInterval
	if halvings >= 64 {
		return 0
	}
	return InitialSubsidy >> halvings
}

// CoinbaseMaturity is the number of confirmations a coinbase output needs before it
// can be spent.
const CoinbaseMaturity = 100

// MaxSigOps bounds total signature operations across a single block (§4.7.3/§6.3).
const MaxSigOps = 20_000
