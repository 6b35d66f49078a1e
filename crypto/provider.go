// Package crypto provides the pluggable primitives the consensus and script-execution
// code call through: hashing used by address/script templates and signature
// verification. Threading a Provider explicitly through the consensus functions (the
// way the teacher threads a CryptoProvider through ApplyBlock) keeps the hot
// signature-verification path swappable and testable without a package-level global.
package crypto

// Provider is the narrow crypto interface consensus code depends on.
type Provider interface {
	// Hash160 returns RIPEMD160(SHA256(b)), used by P2PKH/P2SH script templates.
	Hash160(b []byte) [20]byte

	// VerifyECDSASignature checks a DER-encoded secp256k1 signature over digest
	// against a serialized (compressed or uncompressed) public key.
	VerifyECDSASignature(pubkey, sig []byte, digest [32]byte) bool
}
