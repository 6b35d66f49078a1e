package consensus

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/require"
)

// genesisHeaderHex/block1HeaderHex are the 80-byte headers of the real Bitcoin
// mainnet genesis block and block 1, both mined at the network's difficulty-1 floor.
// Used throughout the consensus test suite since they are the only blocks available
// here with genuine, verifiable proof-of-work.
const (
	genesisHeaderHex = "0100000000000000000000000000000000000000000000000000000000000000000000003ba3edfd7a7b12b27ac72c3e67768f617fc81bc3888a51323a9fb8aa4b1e5e4a29ab5f49ffff001d1dac2b7c"
	block1HeaderHex  = "010000006fe28c0ab6f1b372c1a6a246ae63f74f931e8365e15a089c68d6190000000000982051fd1e4ba744bbbe680e1fee14677ba1a3c3540bf7b1cdb606e857233e0e61bc6649ffff001d01e36299"
)

func mustHeaderBytes(t *testing.T, hexStr string) []byte {
	t.Helper()
	b, err := hex.DecodeString(hexStr)
	require.NoError(t, err)
	require.Len(t, b, BlockHeaderSize)
	return b
}

func TestCheckProofOfWorkGenesis(t *testing.T) {
	header := mustHeaderBytes(t, genesisHeaderHex)
	h, err := BlockHash(header)
	require.NoError(t, err)
	require.NoError(t, CheckProofOfWork(h, MaxTarget))
}

func TestCheckProofOfWorkBlock1(t *testing.T) {
	header := mustHeaderBytes(t, block1HeaderHex)
	h, err := BlockHash(header)
	require.NoError(t, err)
	require.NoError(t, CheckProofOfWork(h, MaxTarget))
}

func TestCheckProofOfWorkRejectsLooseTarget(t *testing.T) {
	header := mustHeaderBytes(t, genesisHeaderHex)
	h, err := BlockHash(header)
	require.NoError(t, err)
	err = CheckProofOfWork(h, 0x1d01ffff)
	require.Error(t, err)
	require.True(t, IsRuleError(err))
}

func TestCheckProofOfWorkRejectsUnmetTarget(t *testing.T) {
	// A hash of all 0xff bytes cannot be below any legal target.
	var h [32]byte
	for i := range h {
		h[i] = 0xff
	}
	err := CheckProofOfWork(h, MaxTarget)
	require.Error(t, err)
}

func TestBlockHashRejectsWrongLength(t *testing.T) {
	_, err := BlockHash([]byte{1, 2, 3})
	require.Error(t, err)
}
