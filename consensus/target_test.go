package consensus

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTargetToBigRoundTrip(t *testing.T) {
	for _, bits := range []uint32{0x1d00ffff, 0x1b0404cb, 0x207fffff, 0x1903a30c} {
		magnitude := TargetToBig(bits)
		back := BigToTarget(magnitude)
		require.Equal(t, bits, back, "round trip for bits %#x", bits)
	}
}

func TestTargetToBigKnownValue(t *testing.T) {
	// 0x1d00ffff expands to 0x00ffff * 2^(8*(0x1d-3)), the standard difficulty-1 target.
	want := new(big.Int).Lsh(big.NewInt(0xffff), 208)
	require.Equal(t, 0, want.Cmp(TargetToBig(MaxTarget)))
}

func TestTargetExceedsMax(t *testing.T) {
	require.False(t, TargetExceedsMax(MaxTarget))
	require.False(t, TargetExceedsMax(0x1b0404cb)) // a harder (smaller) target is always in range
	require.True(t, TargetExceedsMax(0x1d01ffff))  // looser than difficulty-1
}

func TestBlockWorkAtDifficultyOne(t *testing.T) {
	work := BlockWork(MaxTarget)
	require.Equal(t, big.NewInt(4295032833), work)
}

func TestBlockWorkMonotonicWithDifficulty(t *testing.T) {
	easy := BlockWork(MaxTarget)
	hard := BlockWork(0x1b0404cb)
	require.Equal(t, -1, easy.Cmp(hard), "a harder target must contribute more work")
}

func TestRetargetClampedToQuarterAndFourTimes(t *testing.T) {
	const expected = RetargetWindowBlocks * TargetBlockIntervalSeconds

	tooFast := Retarget(0x1b0404cb, expected/100)
	tooFastClamped := Retarget(0x1b0404cb, expected/4)
	require.Equal(t, tooFastClamped, tooFast)

	tooSlow := Retarget(0x1b0404cb, expected*100)
	tooSlowClamped := Retarget(0x1b0404cb, expected*4)
	require.Equal(t, tooSlowClamped, tooSlow)
}

func TestRetargetNeverExceedsMaxTarget(t *testing.T) {
	const expected = RetargetWindowBlocks * TargetBlockIntervalSeconds
	got := Retarget(MaxTarget, expected*4)
	require.False(t, TargetExceedsMax(got))
	require.Equal(t, MaxTarget, got)
}

func TestRetargetUnchangedSpanReturnsSameTarget(t *testing.T) {
	const expected = RetargetWindowBlocks * TargetBlockIntervalSeconds
	got := Retarget(0x1b0404cb, expected)
	require.Equal(t, uint32(0x1b0404cb), got)
}
