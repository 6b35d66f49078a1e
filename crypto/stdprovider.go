package crypto

import (
	"crypto/sha256"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"golang.org/x/crypto/ripemd160" //nolint:staticcheck // RIPEMD160 is load-bearing for Bitcoin-compatible P2PKH/P2SH templates, not a new design choice.
)

// StdProvider is the default Provider, backed by the standard library for SHA256,
// golang.org/x/crypto/ripemd160 for RIPEMD160 and btcec for secp256k1 signature
// verification.
type StdProvider struct{}

// NewStdProvider constructs the default Provider.
func NewStdProvider() *StdProvider { return &StdProvider{} }

func (StdProvider) Hash160(b []byte) [20]byte {
	sum := sha256.Sum256(b)
	h := ripemd160.New()
	h.Write(sum[:])
	var out [20]byte
	copy(out[:], h.Sum(nil))
	return out
}

func (StdProvider) VerifyECDSASignature(pubkeyBytes, sigBytes []byte, digest [32]byte) bool {
	pubkey, err := btcec.ParsePubKey(pubkeyBytes)
	if err != nil {
		return false
	}
	sig, err := ecdsa.ParseDERSignature(sigBytes)
	if err != nil {
		return false
	}
	return sig.Verify(digest[:], pubkey)
}
