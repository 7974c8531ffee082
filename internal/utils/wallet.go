package utils

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// NonceTTL is how long a wallet has to sign an issued nonce.
const NonceTTL = 5 * time.Minute

// ErrBadSignature is returned for signatures that are not 65 bytes of hex
// or that recover no public key.
var ErrBadSignature = errors.New("malformed wallet signature")

// NewNonce returns 32 random hex chars.
func NewNonce() (string, error) { return randomHex(16) }

// WalletMessage builds the EIP-4361 sign-in text binding address to nonce.
// The wallet signs it with personal_sign.
func WalletMessage(domain string, chainID int64, address, nonce string, issuedAt time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s wants you to sign in with your Ethereum account:\n", domain)
	fmt.Fprintf(&b, "%s\n\n", address)
	b.WriteString("Sign in to SmartRent to bind this wallet to your account.\n\n")
	fmt.Fprintf(&b, "URI: https://%s\n", domain)
	b.WriteString("Version: 1\n")
	fmt.Fprintf(&b, "Chain ID: %d\n", chainID)
	fmt.Fprintf(&b, "Nonce: %s\n", nonce)
	fmt.Fprintf(&b, "Issued At: %s", issuedAt.UTC().Format(time.RFC3339))
	return b.String()
}

// RecoverAddress returns the lower-case address whose key produced the
// personal_sign signature over message.  Both the 27/28 and the 0/1
// recovery id encodings are accepted.
func RecoverAddress(message, signature string) (string, error) {
	raw, err := hexutil.Decode(strings.TrimSpace(signature))
	if err != nil || len(raw) != crypto.SignatureLength {
		return "", ErrBadSignature
	}
	sig := make([]byte, len(raw))
	copy(sig, raw)
	if sig[crypto.RecoveryIDOffset] >= 27 {
		sig[crypto.RecoveryIDOffset] -= 27
	}
	pub, err := crypto.SigToPub(personalHash(message), sig)
	if err != nil {
		return "", ErrBadSignature
	}
	return strings.ToLower(crypto.PubkeyToAddress(*pub).Hex()), nil
}

// personalHash is the EIP-191 digest wallets sign for personal_sign.
func personalHash(message string) []byte {
	prefix := fmt.Sprintf("\x19Ethereum Signed Message:\n%d", len(message))
	return crypto.Keccak256([]byte(prefix), []byte(message))
}
