package node

import "encoding/hex"

// genesisBlockHex is the canonical 285-byte Bitcoin genesis block (header + single
// coinbase transaction paying 50 BTC to the well-known pay-to-pubkey script),
// self-bootstrapped on cold start per §6.2 rather than requiring a caller-supplied
// genesis.
const genesisBlockHex = "0100000000000000000000000000000000000000000000000000000000000000000000003ba3edfd7a7b12b27ac72c3e67768f617fc81bc3888a51323a9fb8aa4b1e5e4a29ab5f49ffff001d1dac2b7c0101000000010000000000000000000000000000000000000000000000000000000000000000ffffffff4d04ffff001d0104455468652054696d65732030332f4a616e2f32303039204368616e63656c6c6f72206f6e206272696e6b206f66207365636f6e64206261696c6f757420666f722062616e6b73ffffffff0100f2052a01000000434104678afdb0fe5548271967f1a67130b7105cd6a828e03909a67962e0ea1f61deb649f6bc3f4cef38c4f35504e51ec112de5c384df7ba0b8d578a4c702b6bf11d5fac00000000"

// genesisRetargetTime is the historical genesis block timestamp (2009-01-03
// 18:15:05 UTC), used to seed LastRetargetTime and all six PrevTimes slots per §6.2.
const genesisRetargetTime = 1231006505

// genesisBlockBytes decodes and returns a fresh copy of the genesis block bytes.
func genesisBlockBytes() []byte {
	b, err := hex.DecodeString(genesisBlockHex)
	if err != nil {
		panic("node: malformed embedded genesis hex: " + err.Error())
	}
	return b
}
