package crypto

import (
	"crypto/ecdsa"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// resolutionPrefix namespaces resolution digests so a signature produced
// here can never be replayed as any other kind of message.
const resolutionPrefix = "zmartd/resolve/v1"

// ResolutionDigest computes the 32-byte digest a resolver signs to resolve
// a market: keccak256(prefix || marketAddress || outcome).
func ResolutionDigest(marketAddress, outcome string) []byte {
	data := make([]byte, 0, len(resolutionPrefix)+20+len(outcome))
	data = append(data, []byte(resolutionPrefix)...)
	data = append(data, common.HexToAddress(marketAddress).Bytes()...)
	data = append(data, []byte(outcome)...)
	return ethcrypto.Keccak256(data)
}

// Signer signs market resolutions with a secp256k1 key. It is used by
// resolver tooling and tests; the service side only verifies.
type Signer struct {
	privateKey *ecdsa.PrivateKey
	address    common.Address
}

// NewSigner creates a Signer from a hex-encoded secp256k1 private key.
func NewSigner(privateKeyHex string) (*Signer, error) {
	keyHex := strings.TrimPrefix(privateKeyHex, "0x")
	pk, err := ethcrypto.HexToECDSA(keyHex)
	if err != nil {
		return nil, fmt.Errorf("crypto/signer: invalid private key: %w", err)
	}
	return &Signer{
		privateKey: pk,
		address:    ethcrypto.PubkeyToAddress(pk.PublicKey),
	}, nil
}

// Address returns the address derived from the signer's private key.
func (s *Signer) Address() common.Address {
	return s.address
}

// SignResolution signs the resolution of a market to the given outcome and
// returns the hex-encoded 65-byte signature (r || s || v).
func (s *Signer) SignResolution(marketAddress, outcome string) (string, error) {
	sig, err := ethcrypto.Sign(ResolutionDigest(marketAddress, outcome), s.privateKey)
	if err != nil {
		return "", fmt.Errorf("crypto/signer: signing: %w", err)
	}
	return "0x" + hex.EncodeToString(sig), nil
}

// RecoverResolver recovers the address that signed a market resolution.
// The caller compares it against the configured resolver set.
func RecoverResolver(marketAddress, outcome, sigHex string) (common.Address, error) {
	sig, err := hex.DecodeString(strings.TrimPrefix(sigHex, "0x"))
	if err != nil {
		return common.Address{}, fmt.Errorf("crypto/signer: invalid signature hex: %w", err)
	}
	if len(sig) != 65 {
		return common.Address{}, fmt.Errorf("crypto/signer: signature must be 65 bytes, got %d", len(sig))
	}
	// Normalise v from {27,28} back to {0,1} for recovery.
	if sig[64] >= 27 {
		sig = append([]byte(nil), sig...)
		sig[64] -= 27
	}

	pub, err := ethcrypto.SigToPub(ResolutionDigest(marketAddress, outcome), sig)
	if err != nil {
		return common.Address{}, fmt.Errorf("crypto/signer: recover: %w", err)
	}
	return ethcrypto.PubkeyToAddress(*pub), nil
}

// ValidIdentity reports whether s is a well-formed 20-byte hex identity.
func ValidIdentity(s string) bool {
	return common.IsHexAddress(s)
}
