package consensus

import "math/big"

// MaxTarget is the standard difficulty-1 compact target (0x1d00ffff).
const MaxTarget uint32 = 0x1d00ffff

var twoTo256 = new(big.Int).Lsh(big.NewInt(1), 256)

// TargetToBig expands a compact ("nBits") target into its full big.Int magnitude.
func TargetToBig(bits uint32) *big.Int {
	exponent := uint(bits >> 24)
	mantissa := bits & 0x007fffff
	if bits&0x00800000 != 0 {
		mantissa = 0
	}
	result := new(big.Int).SetUint64(uint64(mantissa))
	if exponent <= 3 {
		result.Rsh(result, 8*(3-exponent))
	} else {
		result.Lsh(result, 8*(exponent-3))
	}
	return result
}

// BigToTarget compresses a big.Int magnitude into the compact ("nBits") encoding,
// the inverse of TargetToBig (modulo the precision loss compact encoding implies).
func BigToTarget(v *big.Int) uint32 {
	if v.Sign() == 0 {
		return 0
	}
	b := v.Bytes()
	exponent := uint32(len(b))
	var mantissa uint32
	switch {
	case exponent <= 3:
		for _, x := range b {
			mantissa = mantissa<<8 | uint32(x)
		}
		mantissa <<= 8 * (3 - exponent)
	default:
		mantissa = uint32(b[0])<<16 | uint32(b[1])<<8 | uint32(b[2])
	}
	if mantissa&0x00800000 != 0 {
		mantissa >>= 8
		exponent++
	}
	return exponent<<24 | mantissa
}

// TargetExceedsMax reports whether bits decodes to a target above the network
// difficulty-1 ceiling.
func TargetExceedsMax(bits uint32) bool {
	return TargetToBig(bits).Cmp(TargetToBig(MaxTarget)) > 0
}

// BlockWork returns the proof-of-work contribution of a block with the given compact
// target: floor(2^256 / (target+1)).
func BlockWork(bits uint32) *big.Int {
	t := TargetToBig(bits)
	denom := new(big.Int).Add(t, big.NewInt(1))
	return new(big.Int).Quo(twoTo256, denom)
}

// RetargetWindowBlocks is the number of blocks between difficulty adjustments.
const RetargetWindowBlocks = 2016

// TargetBlockIntervalSeconds is the intended spacing between blocks.
const TargetBlockIntervalSeconds = 600

// Retarget computes the next period's compact target given the previous period's
// target and the elapsed wall-clock time across RetargetWindowBlocks blocks, clamped
// to a factor of four in either direction per the standard difficulty adjustment rule.
func Retarget(prevBits uint32, actualTimespan int64) uint32 {
	const expected = RetargetWindowBlocks * TargetBlockIntervalSeconds
	span := actualTimespan
	if span < expected/4 {
		span = expected / 4
	}
	if span > expected*4 {
		span = expected * 4
	}

	oldTarget := TargetToBig(prevBits)
	newTarget := new(big.Int).Mul(oldTarget, big.NewInt(span))
	newTarget.Quo(newTarget, big.NewInt(expected))

	maxTarget := TargetToBig(MaxTarget)
	if newTarget.Cmp(maxTarget) > 0 {
		newTarget = maxTarget
	}
	return BigToTarget(newTarget)
}
