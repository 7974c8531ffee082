package utils

import (
	"crypto/ecdsa"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAccessTokenClaims(t *testing.T) {
	at, err := NewAccessToken("s3cret", 7, "0x00000000000000000000000000000000000000aa", "MEMBER", 15)
	require.NoError(t, err)

	tok, err := jwt.Parse(at.Token, func(*jwt.Token) (interface{}, error) { return []byte("s3cret"), nil })
	require.NoError(t, err)
	claims := tok.Claims.(jwt.MapClaims)
	assert.Equal(t, "0x00000000000000000000000000000000000000aa", claims["sub"])
	assert.Equal(t, "MEMBER", claims["role"])
	assert.EqualValues(t, 7, claims["aid"])

	_, err = jwt.Parse(at.Token, func(*jwt.Token) (interface{}, error) { return []byte("other"), nil })
	assert.Error(t, err)
}

func TestRefreshTokenHashing(t *testing.T) {
	a, err := NewRefreshToken(7)
	require.NoError(t, err)
	b, err := NewRefreshToken(7)
	require.NoError(t, err)

	assert.Len(t, a.Raw, 96)
	assert.NotEqual(t, a.Raw, b.Raw)
	assert.Len(t, HashRefreshRaw(a.Raw), 64)
	assert.Equal(t, HashRefreshRaw(a.Raw), HashRefreshRaw(a.Raw))
}

func TestPasswordRoundTrip(t *testing.T) {
	hash, err := HashPassword("correct horse", 4)
	require.NoError(t, err)
	assert.True(t, VerifyPassword(hash, "correct horse"))
	assert.False(t, VerifyPassword(hash, "wrong"))
}

// signPersonal signs message the way a browser wallet does.
func signPersonal(t *testing.T, key *ecdsa.PrivateKey, message string) string {
	t.Helper()
	sig, err := crypto.Sign(personalHash(message), key)
	require.NoError(t, err)
	sig[crypto.RecoveryIDOffset] += 27
	return hexutil.Encode(sig)
}

func TestRecoverAddress(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	addr := strings.ToLower(crypto.PubkeyToAddress(key.PublicKey).Hex())
	msg := WalletMessage("smartrent.app", 137, addr, "00112233445566778899aabbccddeeff", time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC))
	assert.Contains(t, msg, "Nonce: 00112233445566778899aabbccddeeff")
	assert.Contains(t, msg, "Chain ID: 137")

	got, err := RecoverAddress(msg, signPersonal(t, key, msg))
	require.NoError(t, err)
	assert.Equal(t, addr, got)

	raw, err := crypto.Sign(personalHash(msg), key)
	require.NoError(t, err)
	got, err = RecoverAddress(msg, hexutil.Encode(raw))
	require.NoError(t, err)
	assert.Equal(t, addr, got, "0/1 recovery id")

	other, err := crypto.GenerateKey()
	require.NoError(t, err)
	got, err = RecoverAddress(msg, signPersonal(t, other, msg))
	require.NoError(t, err)
	assert.NotEqual(t, addr, got)

	got, err = RecoverAddress(msg+" ", signPersonal(t, key, msg))
	if err == nil {
		assert.NotEqual(t, addr, got)
	}

	for _, bad := range []string{"", "0x", "zz", "0x1234", hexutil.Encode(make([]byte, 65))} {
		_, err := RecoverAddress(msg, bad)
		assert.ErrorIs(t, err, ErrBadSignature, bad)
	}
}

func TestNewNonce(t *testing.T) {
	a, err := NewNonce()
	require.NoError(t, err)
	b, err := NewNonce()
	require.NoError(t, err)
	assert.Len(t, a, 32)
	assert.NotEqual(t, a, b)
}
